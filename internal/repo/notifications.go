package repo

import (
	"context"
	"database/sql"

	"taskdesk/internal/domain"
)

func (r Repo) InsertNotification(ctx context.Context, tx *sql.Tx, n domain.Notification) (int64, error) {
	var taskID any
	if n.TaskID != nil {
		taskID = *n.TaskID
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO notifications(user_id,task_id,kind,body,read,created_at) VALUES (?,?,?,?,?,?)`,
		n.UserID, taskID, n.Kind, n.Body, boolInt(n.Read), n.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) ListNotifications(ctx context.Context, userID int64, unreadOnly bool) ([]domain.Notification, error) {
	query := `SELECT id,user_id,task_id,kind,COALESCE(body,''),read,created_at FROM notifications WHERE user_id=?`
	if unreadOnly {
		query += ` AND read=0`
	}
	query += ` ORDER BY id DESC`
	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var taskID sql.NullInt64
		var read int
		if err := rows.Scan(&n.ID, &n.UserID, &taskID, &n.Kind, &n.Body, &read, &n.CreatedAt); err != nil {
			return nil, err
		}
		if taskID.Valid {
			n.TaskID = &taskID.Int64
		}
		n.Read = read != 0
		res = append(res, n)
	}
	return res, rows.Err()
}

func (r Repo) MarkNotificationRead(ctx context.Context, id, userID int64) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE notifications SET read=1 WHERE id=? AND user_id=?`, id, userID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

package repo

import (
	"context"
	"database/sql"

	"taskdesk/internal/domain"
)

func (r Repo) InsertComment(ctx context.Context, tx *sql.Tx, c domain.Comment) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO comments (task_id, creator_id, body, created_at) VALUES (?,?,?,?)`,
		c.TaskID, c.CreatorID, c.Body, c.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) ListComments(ctx context.Context, taskID int64) ([]domain.Comment, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, task_id, creator_id, body, created_at FROM comments WHERE task_id=? ORDER BY id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Comment
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.CreatorID, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

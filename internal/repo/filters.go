package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"taskdesk/internal/domain"
)

// --- saved filters ---

func (r Repo) InsertFilter(ctx context.Context, tx *sql.Tx, f domain.SavedFilter) (int64, error) {
	params, err := json.Marshal(f.Params)
	if err != nil {
		return 0, fmt.Errorf("marshal filter params: %w", err)
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO saved_filters(title,params,public,creator_id,project_id,created_at) VALUES (?,?,?,?,?,?)`,
		f.Title, string(params), boolInt(f.Public), f.CreatorID, nullableID(f.ProjectID), f.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func scanFilter(scan func(...any) error) (domain.SavedFilter, error) {
	var f domain.SavedFilter
	var params string
	var public int
	var projectID sql.NullInt64
	if err := scan(&f.ID, &f.Title, &params, &public, &f.CreatorID, &projectID, &f.CreatedAt); err != nil {
		return f, err
	}
	f.Public = public != 0
	if projectID.Valid {
		f.ProjectID = &projectID.Int64
	}
	if err := json.Unmarshal([]byte(params), &f.Params); err != nil {
		return f, fmt.Errorf("filter %d: invalid params json: %w", f.ID, err)
	}
	return f, nil
}

func (r Repo) GetFilter(ctx context.Context, id int64) (domain.SavedFilter, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,title,params,public,creator_id,project_id,created_at FROM saved_filters WHERE id=?`, id)
	f, err := scanFilter(row.Scan)
	if err == sql.ErrNoRows {
		return f, ErrNotFound
	}
	return f, err
}

// ListVisibleFilters returns public filters plus the user's own.
func (r Repo) ListVisibleFilters(ctx context.Context, userID int64) ([]domain.SavedFilter, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,title,params,public,creator_id,project_id,created_at FROM saved_filters WHERE public=1 OR creator_id=? ORDER BY title`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.SavedFilter
	for rows.Next() {
		f, err := scanFilter(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, f)
	}
	return res, rows.Err()
}

func (r Repo) UpdateFilter(ctx context.Context, tx *sql.Tx, f domain.SavedFilter) error {
	params, err := json.Marshal(f.Params)
	if err != nil {
		return fmt.Errorf("marshal filter params: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE saved_filters SET title=?,params=?,public=?,project_id=? WHERE id=?`,
		f.Title, string(params), boolInt(f.Public), nullableID(f.ProjectID), f.ID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteFilter(ctx context.Context, tx *sql.Tx, id int64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM saved_filters WHERE id=?`, id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- repeating tasks ---

func (r Repo) InsertRepeatingTask(ctx context.Context, tx *sql.Tx, rt domain.RepeatingTask) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO repeating_tasks(task_id,creator_id,interval,repeats,next_at,created_at) VALUES (?,?,?,?,?,?)`,
		rt.TaskID, rt.CreatorID, rt.Interval, rt.Repeats, rt.NextAt, rt.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetRepeatingTask(ctx context.Context, id int64) (domain.RepeatingTask, error) {
	var rt domain.RepeatingTask
	err := r.DB.QueryRowContext(ctx, `SELECT id,task_id,creator_id,interval,repeats,next_at,created_at FROM repeating_tasks WHERE id=?`, id).
		Scan(&rt.ID, &rt.TaskID, &rt.CreatorID, &rt.Interval, &rt.Repeats, &rt.NextAt, &rt.CreatedAt)
	if err == sql.ErrNoRows {
		return rt, ErrNotFound
	}
	return rt, err
}

func (r Repo) ListRepeatingTasksForTasks(ctx context.Context, taskIDs []int64) ([]domain.RepeatingTask, error) {
	if len(taskIDs) == 0 {
		return nil, nil
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,task_id,creator_id,interval,repeats,next_at,created_at FROM repeating_tasks WHERE task_id IN (`+placeholders(len(taskIDs))+`) ORDER BY id`, idArgs(taskIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.RepeatingTask
	for rows.Next() {
		var rt domain.RepeatingTask
		if err := rows.Scan(&rt.ID, &rt.TaskID, &rt.CreatorID, &rt.Interval, &rt.Repeats, &rt.NextAt, &rt.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, rt)
	}
	return res, rows.Err()
}

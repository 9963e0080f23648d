package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"taskdesk/internal/domain"
)

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO projects(title,creator_id,is_active,created_at) VALUES (?,?,?,?)`,
		p.Title, p.CreatorID, boolInt(p.IsActive), p.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func scanProject(scan func(...any) error) (domain.Project, error) {
	var p domain.Project
	var active int
	if err := scan(&p.ID, &p.Title, &p.CreatorID, &active, &p.CreatedAt); err != nil {
		return p, err
	}
	p.IsActive = active != 0
	return p, nil
}

func (r Repo) GetProject(ctx context.Context, id int64) (domain.Project, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,title,creator_id,is_active,created_at FROM projects WHERE id=?`, id)
	p, err := scanProject(row.Scan)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) ListProjects(ctx context.Context, ids []int64) ([]domain.Project, error) {
	query := `SELECT id,title,creator_id,is_active,created_at FROM projects`
	var args []any
	if ids != nil {
		if len(ids) == 0 {
			return nil, nil
		}
		query += ` WHERE id IN (` + placeholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	query += ` ORDER BY id`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProject(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) UpdateProject(ctx context.Context, tx *sql.Tx, id int64, title *string, isActive *bool) error {
	var (
		fields []string
		args   []any
	)
	if title != nil {
		fields = append(fields, "title=?")
		args = append(args, *title)
	}
	if isActive != nil {
		fields = append(fields, "is_active=?")
		args = append(args, boolInt(*isActive))
	}
	if len(fields) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := tx.ExecContext(ctx, `UPDATE projects SET `+joinFields(fields)+` WHERE id=?`, args...)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteProject(ctx context.Context, tx *sql.Tx, id int64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id=?`, id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- project ACL grants ---

func (r Repo) UpsertGrant(ctx context.Context, tx *sql.Tx, g domain.ProjectAclGrant) error {
	acl, err := json.Marshal(g.Acl)
	if err != nil {
		return fmt.Errorf("marshal grant acl: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO project_acl(project_id,user_id,acl) VALUES (?,?,?)
		ON CONFLICT(project_id,user_id) DO UPDATE SET acl=excluded.acl`,
		g.ProjectID, g.UserID, string(acl))
	return err
}

func (r Repo) RevokeGrant(ctx context.Context, tx *sql.Tx, projectID, userID int64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM project_acl WHERE project_id=? AND user_id=?`, projectID, userID)
	return err
}

func (r Repo) FindGrant(ctx context.Context, projectID, userID int64) (domain.ProjectAclGrant, error) {
	g := domain.ProjectAclGrant{ProjectID: projectID, UserID: userID}
	var acl string
	err := r.DB.QueryRowContext(ctx, `SELECT acl FROM project_acl WHERE project_id=? AND user_id=?`, projectID, userID).Scan(&acl)
	if err == sql.ErrNoRows {
		return g, ErrNotFound
	}
	if err != nil {
		return g, err
	}
	if err := json.Unmarshal([]byte(acl), &g.Acl); err != nil {
		return g, fmt.Errorf("grant %d/%d: invalid acl json: %w", projectID, userID, err)
	}
	return g, nil
}

// GrantsForUser returns every project grant held by a user, the raw
// material for building the per-request actor.
func (r Repo) GrantsForUser(ctx context.Context, userID int64) ([]domain.ProjectAclGrant, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT project_id,acl FROM project_acl WHERE user_id=? ORDER BY project_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ProjectAclGrant
	for rows.Next() {
		g := domain.ProjectAclGrant{UserID: userID}
		var acl string
		if err := rows.Scan(&g.ProjectID, &acl); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(acl), &g.Acl); err != nil {
			return nil, fmt.Errorf("grant %d/%d: invalid acl json: %w", g.ProjectID, userID, err)
		}
		res = append(res, g)
	}
	return res, rows.Err()
}

// OwnedProjects returns ids of projects the user created.
func (r Repo) OwnedProjects(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id FROM projects WHERE creator_id=? ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		res = append(res, id)
	}
	return res, rows.Err()
}

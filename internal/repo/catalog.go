package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"taskdesk/internal/domain"
	"taskdesk/internal/filter"
)

// --- statuses ---

func (r Repo) InsertStatus(ctx context.Context, tx *sql.Tx, s domain.Status) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO statuses(title,is_default,is_closed,position) VALUES (?,?,?,?)`,
		s.Title, boolInt(s.Default), boolInt(s.Closed), s.Position)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) ListStatuses(ctx context.Context) ([]domain.Status, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,title,is_default,is_closed,position FROM statuses ORDER BY position,id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Status
	for rows.Next() {
		var s domain.Status
		var def, closed int
		if err := rows.Scan(&s.ID, &s.Title, &def, &closed, &s.Position); err != nil {
			return nil, err
		}
		s.Default = def != 0
		s.Closed = closed != 0
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) DefaultStatus(ctx context.Context) (domain.Status, error) {
	var s domain.Status
	var def, closed int
	err := r.DB.QueryRowContext(ctx, `SELECT id,title,is_default,is_closed,position FROM statuses WHERE is_default=1 LIMIT 1`).
		Scan(&s.ID, &s.Title, &def, &closed, &s.Position)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	s.Default = def != 0
	s.Closed = closed != 0
	return s, err
}

// --- tags ---

func (r Repo) InsertTag(ctx context.Context, tx *sql.Tx, t domain.Tag) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO tags(title,color,public,creator_id) VALUES (?,?,?,?)`,
		t.Title, t.Color, boolInt(t.Public), t.CreatorID)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func scanTag(scan func(...any) error) (domain.Tag, error) {
	var t domain.Tag
	var public int
	if err := scan(&t.ID, &t.Title, &t.Color, &public, &t.CreatorID); err != nil {
		return t, err
	}
	t.Public = public != 0
	return t, nil
}

func (r Repo) GetTag(ctx context.Context, id int64) (domain.Tag, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,title,COALESCE(color,''),public,creator_id FROM tags WHERE id=?`, id)
	t, err := scanTag(row.Scan)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

// ListVisibleTags returns public tags plus the user's own.
func (r Repo) ListVisibleTags(ctx context.Context, userID int64) ([]domain.Tag, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,title,COALESCE(color,''),public,creator_id FROM tags WHERE public=1 OR creator_id=? ORDER BY title`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Tag
	for rows.Next() {
		t, err := scanTag(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) UpdateTag(ctx context.Context, tx *sql.Tx, t domain.Tag) error {
	res, err := tx.ExecContext(ctx, `UPDATE tags SET title=?,color=?,public=? WHERE id=?`,
		t.Title, t.Color, boolInt(t.Public), t.ID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- task attributes ---

func (r Repo) InsertTaskAttribute(ctx context.Context, tx *sql.Tx, a domain.TaskAttribute) (int64, error) {
	options, err := json.Marshal(a.Options)
	if err != nil {
		return 0, fmt.Errorf("marshal attribute options: %w", err)
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO task_attributes(title,kind,options,position) VALUES (?,?,?,?)`,
		a.Title, a.Kind, string(options), a.Position)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) ListTaskAttributes(ctx context.Context) ([]domain.TaskAttribute, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,title,kind,options,position FROM task_attributes ORDER BY position,id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TaskAttribute
	for rows.Next() {
		var a domain.TaskAttribute
		var options string
		if err := rows.Scan(&a.ID, &a.Title, &a.Kind, &options, &a.Position); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(options), &a.Options); err != nil {
			return nil, fmt.Errorf("attribute %d: invalid options json: %w", a.ID, err)
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) SetTaskAttributeValue(ctx context.Context, tx *sql.Tx, taskID, attributeID int64, value string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO task_attribute_values(task_id,attribute_id,value) VALUES (?,?,?)
		ON CONFLICT(task_id,attribute_id) DO UPDATE SET value=excluded.value`,
		taskID, attributeID, value)
	return err
}

// AttributeKinds builds the filter compiler's id-to-kind lookup from
// the task attribute catalog. Checkbox and date attributes get their
// dedicated parse paths; everything else compiles as plain text.
func (r Repo) AttributeKinds(ctx context.Context) (filter.KindLookup, error) {
	attrs, err := r.ListTaskAttributes(ctx)
	if err != nil {
		return nil, err
	}
	kinds := make(map[int64]filter.Kind, len(attrs))
	for _, a := range attrs {
		switch a.Kind {
		case domain.AttributeCheckbox:
			kinds[a.ID] = filter.KindCheckbox
		case domain.AttributeDate:
			kinds[a.ID] = filter.KindDate
		default:
			kinds[a.ID] = filter.KindOther
		}
	}
	return filter.KindLookupFunc(func(id int64) (filter.Kind, bool) {
		k, ok := kinds[id]
		return k, ok
	}), nil
}

// --- company attributes ---

func (r Repo) InsertCompanyAttribute(ctx context.Context, tx *sql.Tx, a domain.CompanyAttribute) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO company_attributes(title,kind,position) VALUES (?,?,?)`,
		a.Title, a.Kind, a.Position)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) ListCompanyAttributes(ctx context.Context) ([]domain.CompanyAttribute, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,title,kind,position FROM company_attributes ORDER BY position,id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.CompanyAttribute
	for rows.Next() {
		var a domain.CompanyAttribute
		if err := rows.Scan(&a.ID, &a.Title, &a.Kind, &a.Position); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

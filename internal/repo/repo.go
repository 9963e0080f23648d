package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"taskdesk/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func nullableTime(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

func joinFields(fields []string) string {
	return strings.Join(fields, ",")
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// --- companies ---

func (r Repo) InsertCompany(ctx context.Context, tx *sql.Tx, c domain.Company) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO companies(title,created_at) VALUES (?,?)`, c.Title, c.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetCompany(ctx context.Context, id int64) (domain.Company, error) {
	var c domain.Company
	err := r.DB.QueryRowContext(ctx, `SELECT id,title,created_at FROM companies WHERE id=?`, id).
		Scan(&c.ID, &c.Title, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

func (r Repo) ListCompanies(ctx context.Context) ([]domain.Company, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,title,created_at FROM companies ORDER BY title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Company
	for rows.Next() {
		var c domain.Company
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// --- roles ---

func (r Repo) InsertRole(ctx context.Context, tx *sql.Tx, role domain.Role) (int64, error) {
	acl, err := json.Marshal(role.Acl)
	if err != nil {
		return 0, fmt.Errorf("marshal role acl: %w", err)
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO roles(title,admin,acl,position) VALUES (?,?,?,?)`,
		role.Title, boolInt(role.Admin), string(acl), role.Position)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func scanRole(scan func(...any) error) (domain.Role, error) {
	var role domain.Role
	var admin int
	var acl string
	if err := scan(&role.ID, &role.Title, &admin, &acl, &role.Position); err != nil {
		return role, err
	}
	role.Admin = admin != 0
	if err := json.Unmarshal([]byte(acl), &role.Acl); err != nil {
		return role, fmt.Errorf("role %d: invalid acl json: %w", role.ID, err)
	}
	return role, nil
}

func (r Repo) GetRole(ctx context.Context, id int64) (domain.Role, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,title,admin,acl,position FROM roles WHERE id=?`, id)
	role, err := scanRole(row.Scan)
	if err == sql.ErrNoRows {
		return role, ErrNotFound
	}
	return role, err
}

func (r Repo) GetRoleByTitle(ctx context.Context, title string) (domain.Role, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,title,admin,acl,position FROM roles WHERE title=?`, title)
	role, err := scanRole(row.Scan)
	if err == sql.ErrNoRows {
		return role, ErrNotFound
	}
	return role, err
}

func (r Repo) ListRoles(ctx context.Context) ([]domain.Role, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,title,admin,acl,position FROM roles ORDER BY position,id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Role
	for rows.Next() {
		role, err := scanRole(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, role)
	}
	return res, rows.Err()
}

// --- users ---

func (r Repo) InsertUser(ctx context.Context, tx *sql.Tx, u domain.User) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO users(email,name,role_id,company_id,created_at) VALUES (?,?,?,?,?)`,
		u.Email, u.Name, nullableID(u.RoleID), nullableID(u.CompanyID), u.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func scanUser(scan func(...any) error) (domain.User, error) {
	var u domain.User
	var roleID, companyID sql.NullInt64
	if err := scan(&u.ID, &u.Email, &u.Name, &roleID, &companyID, &u.CreatedAt); err != nil {
		return u, err
	}
	if roleID.Valid {
		u.RoleID = &roleID.Int64
	}
	if companyID.Valid {
		u.CompanyID = &companyID.Int64
	}
	return u, nil
}

func (r Repo) GetUser(ctx context.Context, id int64) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,email,name,role_id,company_id,created_at FROM users WHERE id=?`, id)
	u, err := scanUser(row.Scan)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}

func (r Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,email,name,role_id,company_id,created_at FROM users WHERE email=?`, email)
	u, err := scanUser(row.Scan)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}

func (r Repo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,email,name,role_id,company_id,created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

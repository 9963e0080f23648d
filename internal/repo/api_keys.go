package repo

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"strings"

	"taskdesk/internal/domain"
)

// HashAPIKey returns a stable SHA-256 hex digest for the provided key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(key)))
	return hex.EncodeToString(sum[:])
}

// InsertAPIKey stores a hashed API key. KeyHash must already contain
// the hashed value.
func (r Repo) InsertAPIKey(ctx context.Context, tx *sql.Tx, key domain.APIKey) (int64, error) {
	if key.UserID == 0 {
		return 0, errors.New("user id required")
	}
	if key.KeyHash == "" {
		return 0, errors.New("key hash required")
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO api_keys(user_id,label,key_hash,created_at) VALUES (?,?,?,?)`,
		key.UserID, key.Label, key.KeyHash, key.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetAPIKeyByHash returns an API key by its hashed value.
func (r Repo) GetAPIKeyByHash(ctx context.Context, hash string) (domain.APIKey, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,user_id,label,key_hash,created_at FROM api_keys WHERE key_hash=? LIMIT 1`, hash)
	var key domain.APIKey
	err := row.Scan(&key.ID, &key.UserID, &key.Label, &key.KeyHash, &key.CreatedAt)
	if err == sql.ErrNoRows {
		return domain.APIKey{}, ErrNotFound
	}
	return key, err
}

// ListAPIKeys returns API keys, optionally filtered by user.
func (r Repo) ListAPIKeys(ctx context.Context, userID int64) ([]domain.APIKey, error) {
	query := `SELECT id,user_id,label,key_hash,created_at FROM api_keys`
	var args []any
	if userID != 0 {
		query += ` WHERE user_id=?`
		args = append(args, userID)
	}
	query += ` ORDER BY id`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []domain.APIKey
	for rows.Next() {
		var key domain.APIKey
		if err := rows.Scan(&key.ID, &key.UserID, &key.Label, &key.KeyHash, &key.CreatedAt); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// DeleteAPIKey deletes an API key by id.
func (r Repo) DeleteAPIKey(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM api_keys WHERE id=?`, id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

package repo

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"

	"tableside/internal/domain"
)

// HashStaffKey returns the hex sha256 of a raw key. Only hashes are stored.
func HashStaffKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func (r Repo) InsertStaffKey(ctx context.Context, k domain.StaffKey) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO staff_keys(id,name,role,key_hash,created_at) VALUES (?,?,?,?,?)`,
		k.ID, k.Name, k.Role, k.KeyHash, k.CreatedAt)
	return err
}

func (r Repo) GetStaffKeyByHash(ctx context.Context, hash string) (domain.StaffKey, error) {
	var k domain.StaffKey
	err := r.DB.QueryRowContext(ctx,
		`SELECT id,name,role,key_hash,created_at FROM staff_keys WHERE key_hash=?`, hash).
		Scan(&k.ID, &k.Name, &k.Role, &k.KeyHash, &k.CreatedAt)
	if err == sql.ErrNoRows {
		return k, ErrNotFound
	}
	return k, err
}

func (r Repo) ListStaffKeys(ctx context.Context) ([]domain.StaffKey, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,name,role,key_hash,created_at FROM staff_keys ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.StaffKey
	for rows.Next() {
		var k domain.StaffKey
		if err := rows.Scan(&k.ID, &k.Name, &k.Role, &k.KeyHash, &k.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, k)
	}
	return res, rows.Err()
}

func (r Repo) DeleteStaffKey(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM staff_keys WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetBlob returns the job state blob stored under key.
func (s *Store) GetBlob(ctx context.Context, key string) ([]byte, bool, error) {
	var blob []byte
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, "SELECT blob FROM job_state WHERE key = ?", key).Scan(&blob)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get job state %s: %w", key, err)
	}
	return blob, true, nil
}

// ownerClause matches rows whose JSON job_id equals the bound owner.
const ownerClause = "key = ? AND json_extract(CAST(blob AS TEXT), '$.job_id') = ?"

// UpdateBlob replaces blob under key only while the stored record belongs to
// owner, and reports whether it did.
func (s *Store) UpdateBlob(ctx context.Context, key, owner string, blob []byte) (bool, error) {
	res, err := s.execWithRetry(ctx,
		"UPDATE job_state SET blob = ?, updated_at = ? WHERE "+ownerClause,
		blob, formatTime(s.now()), key, owner,
	)
	if err != nil {
		return false, fmt.Errorf("update job state %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update job state %s: rows affected: %w", key, err)
	}
	return n == 1, nil
}

// CreateBlob writes blob only if key is absent and reports whether it did.
func (s *Store) CreateBlob(ctx context.Context, key string, blob []byte) (bool, error) {
	res, err := s.execWithRetry(ctx,
		"INSERT OR IGNORE INTO job_state (key, blob, updated_at) VALUES (?, ?, ?)",
		key, blob, formatTime(s.now()),
	)
	if err != nil {
		return false, fmt.Errorf("create job state %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create job state %s: rows affected: %w", key, err)
	}
	return n == 1, nil
}

// DeleteBlob removes key and reports whether a row existed.
func (s *Store) DeleteBlob(ctx context.Context, key string) (bool, error) {
	res, err := s.execWithRetry(ctx, "DELETE FROM job_state WHERE key = ?", key)
	if err != nil {
		return false, fmt.Errorf("delete job state %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete job state %s: rows affected: %w", key, err)
	}
	return n > 0, nil
}

// DeleteOwnedBlob removes key only while the stored record belongs to owner.
func (s *Store) DeleteOwnedBlob(ctx context.Context, key, owner string) (bool, error) {
	res, err := s.execWithRetry(ctx, "DELETE FROM job_state WHERE "+ownerClause, key, owner)
	if err != nil {
		return false, fmt.Errorf("release job state %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("release job state %s: rows affected: %w", key, err)
	}
	return n > 0, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"linksort/internal/learning"
)

// ListPatterns returns all learned patterns ordered by match key.
func (s *Store) ListPatterns(ctx context.Context) ([]learning.Pattern, error) {
	var out []learning.Pattern
	err := retryOnBusy(ctx, func() error {
		out = out[:0]
		rows, err := s.db.QueryContext(ctx,
			`SELECT match_key, category_path, confidence, source, hits, updated_at
			 FROM learned_patterns ORDER BY match_key`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			p, err := scanPattern(rows)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	return out, nil
}

// GetPattern returns the pattern for matchKey or nil when absent.
func (s *Store) GetPattern(ctx context.Context, matchKey string) (*learning.Pattern, error) {
	var p learning.Pattern
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx,
			`SELECT match_key, category_path, confidence, source, hits, updated_at
			 FROM learned_patterns WHERE match_key = ?`, normalizeKey(matchKey))
		var scanErr error
		p, scanErr = scanPattern(row)
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pattern %s: %w", matchKey, err)
	}
	return &p, nil
}

// UpsertPattern inserts or replaces a pattern.
func (s *Store) UpsertPattern(ctx context.Context, p learning.Pattern) error {
	key := normalizeKey(p.MatchKey)
	if key == "" || strings.TrimSpace(p.CategoryPath) == "" {
		return errors.New("upsert pattern: match key and category path required")
	}
	if p.Source == "" {
		p.Source = learning.SourceUser
	}
	updated := p.UpdatedAt
	if updated.IsZero() {
		updated = s.now()
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO learned_patterns (match_key, category_path, confidence, source, hits, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(match_key) DO UPDATE SET
		   category_path = excluded.category_path,
		   confidence = excluded.confidence,
		   source = excluded.source,
		   hits = excluded.hits,
		   updated_at = excluded.updated_at`,
		key, p.CategoryPath, p.Confidence, p.Source, p.Hits, formatTime(updated),
	)
	if err != nil {
		return fmt.Errorf("upsert pattern %s: %w", key, err)
	}
	return nil
}

// DeletePattern removes the pattern for matchKey and reports whether it existed.
func (s *Store) DeletePattern(ctx context.Context, matchKey string) (bool, error) {
	res, err := s.execWithRetry(ctx, "DELETE FROM learned_patterns WHERE match_key = ?", normalizeKey(matchKey))
	if err != nil {
		return false, fmt.Errorf("delete pattern %s: %w", matchKey, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete pattern %s: rows affected: %w", matchKey, err)
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPattern(row rowScanner) (learning.Pattern, error) {
	var (
		p       learning.Pattern
		updated string
	)
	if err := row.Scan(&p.MatchKey, &p.CategoryPath, &p.Confidence, &p.Source, &p.Hits, &updated); err != nil {
		return learning.Pattern{}, err
	}
	p.UpdatedAt = parseTime(updated)
	return p, nil
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

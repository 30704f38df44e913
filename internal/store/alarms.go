package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"linksort/internal/scheduler"
)

// ArmAlarm upserts the alarm for id.
func (s *Store) ArmAlarm(ctx context.Context, id string, at time.Time) error {
	_, err := s.execWithRetry(ctx,
		`INSERT INTO alarms (callback_id, fire_at) VALUES (?, ?)
		 ON CONFLICT(callback_id) DO UPDATE SET fire_at = excluded.fire_at`,
		id, at.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("arm alarm %s: %w", id, err)
	}
	return nil
}

// GetAlarm returns the fire time for id, if armed.
func (s *Store) GetAlarm(ctx context.Context, id string) (time.Time, bool, error) {
	var ms int64
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, "SELECT fire_at FROM alarms WHERE callback_id = ?", id).Scan(&ms)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get alarm %s: %w", id, err)
	}
	return time.UnixMilli(ms).UTC(), true, nil
}

// DueAlarms lists alarms firing at or before now, oldest first.
func (s *Store) DueAlarms(ctx context.Context, now time.Time) ([]scheduler.Alarm, error) {
	var alarms []scheduler.Alarm
	err := retryOnBusy(ctx, func() error {
		alarms = alarms[:0]
		rows, err := s.db.QueryContext(ctx,
			"SELECT callback_id, fire_at FROM alarms WHERE fire_at <= ? ORDER BY fire_at", now.UnixMilli())
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				id string
				ms int64
			)
			if err := rows.Scan(&id, &ms); err != nil {
				return err
			}
			alarms = append(alarms, scheduler.Alarm{ID: id, FireAt: time.UnixMilli(ms).UTC()})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list due alarms: %w", err)
	}
	return alarms, nil
}

// ClearAlarmIfAt deletes the alarm for id only when it still fires at at.
func (s *Store) ClearAlarmIfAt(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := s.execWithRetry(ctx, "DELETE FROM alarms WHERE callback_id = ? AND fire_at = ?", id, at.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("clear alarm %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("clear alarm %s: rows affected: %w", id, err)
	}
	return n > 0, nil
}

// ClearAlarm deletes the alarm for id unconditionally.
func (s *Store) ClearAlarm(ctx context.Context, id string) error {
	if _, err := s.execWithRetry(ctx, "DELETE FROM alarms WHERE callback_id = ?", id); err != nil {
		return fmt.Errorf("clear alarm %s: %w", id, err)
	}
	return nil
}

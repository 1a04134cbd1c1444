package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Well-known state keys.
const (
	KeySessionID      = "session_id"
	KeyEditing        = "editing"
	KeyActiveTab      = "active_tab"
	KeyLastBackupTime = "last_backup_time"
)

const (
	sqlGetKV = `SELECT value FROM kv WHERE key = ?`

	sqlPutKV = `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
		 value = excluded.value,
		 updated_at = excluded.updated_at`

	sqlDeleteKV = `DELETE FROM kv WHERE key = ?`
)

// Get returns the value stored under key. ok is false when the key is absent.
func (s *Store) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, sqlGetKV, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("localstore: reading %s: %w", key, err)
	}

	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, sqlPutKV, key, value, s.nowFunc().UnixMilli()); err != nil {
		return fmt.Errorf("localstore: writing %s: %w", key, err)
	}

	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, sqlDeleteKV, key); err != nil {
		return fmt.Errorf("localstore: deleting %s: %w", key, err)
	}

	return nil
}

// GetBool reads a boolean flag. Absent or unparseable values read as false.
func (s *Store) GetBool(ctx context.Context, key string) (bool, error) {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}

	b, parseErr := strconv.ParseBool(v)
	if parseErr != nil {
		return false, nil
	}

	return b, nil
}

// SetBool stores a boolean flag.
func (s *Store) SetBool(ctx context.Context, key string, v bool) error {
	return s.Set(ctx, key, strconv.FormatBool(v))
}

// GetTime reads a timestamp stored with SetTime. Absent or unparseable
// values return the zero time.
func (s *Store) GetTime(ctx context.Context, key string) (time.Time, error) {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return time.Time{}, err
	}

	ms, parseErr := strconv.ParseInt(v, 10, 64)
	if parseErr != nil {
		return time.Time{}, nil
	}

	return time.UnixMilli(ms), nil
}

// SetTime stores t with millisecond precision.
func (s *Store) SetTime(ctx context.Context, key string, t time.Time) error {
	return s.Set(ctx, key, strconv.FormatInt(t.UnixMilli(), 10))
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetMetaData gets the value stored under key. ok is false when the key is unset.
func (q *Queries) GetMetaData(ctx context.Context, key string) (value string, ok bool, err error) {
	err = q.queryRow(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get metadata %s: %w", key, err)
	}
	return value, true, nil
}

// SetMetaData stores value under key
func (q *Queries) SetMetaData(ctx context.Context, key, value string) error {
	_, err := q.exec(ctx, `
	INSERT INTO metadata (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata %s: %w", key, err)
	}
	return nil
}

// GetMetaDataTime reads a timestamp stored with SetMetaDataTime. A missing key
// yields the zero time.
func (q *Queries) GetMetaDataTime(ctx context.Context, key string) (time.Time, error) {
	value, ok, err := q.GetMetaData(ctx, key)
	if err != nil || !ok {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse metadata %s: %w", key, err)
	}
	return t, nil
}

// SetMetaDataTime stores t under key in RFC 3339 form
func (q *Queries) SetMetaDataTime(ctx context.Context, key string, t time.Time) error {
	return q.SetMetaData(ctx, key, t.UTC().Format(time.RFC3339Nano))
}

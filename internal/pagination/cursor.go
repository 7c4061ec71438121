// Package pagination implements keyset cursors over (timestamp, id) ordered
// listings.
package pagination

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Cursor is the position after the last item of a page.
type Cursor struct {
	LastID    string
	Timestamp time.Time
}

var ErrInvalidCursor = errors.New("invalid cursor format")

// ClampLimit maps a requested page size into [1, MaxLimit], defaulting
// non-positive values.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// EncodeCursor returns an opaque URL-safe cursor, or "" when lastID is empty.
func EncodeCursor(lastID string, timestamp time.Time) string {
	if lastID == "" {
		return ""
	}
	raw := lastID + "|" + timestamp.UTC().Format(time.RFC3339Nano)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a cursor produced by EncodeCursor. An empty cursor
// decodes to nil, meaning the first page.
func DecodeCursor(cursor string) (*Cursor, error) {
	if cursor == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	id, ts, ok := strings.Cut(string(decoded), "|")
	if !ok || id == "" {
		return nil, ErrInvalidCursor
	}

	timestamp, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	return &Cursor{LastID: id, Timestamp: timestamp}, nil
}

// Page trims a limit+1 fetch to limit items and derives the next cursor.
func Page[T any](items []T, limit int, getID func(T) string, getTimestamp func(T) time.Time) ([]T, string, bool) {
	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}
	if !hasMore || len(items) == 0 {
		return items, "", hasMore
	}
	last := items[len(items)-1]
	return items, EncodeCursor(getID(last), getTimestamp(last)), true
}

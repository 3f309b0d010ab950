// Package pagination implements keyset paging over (created_at, id), newest first.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alo17/ilan-backend/pkg/db/models"
)

const (
	DefaultLimit = 24
	MaxLimit     = 100
)

// Params holds the limit and opaque cursor sent by a client.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the position after the last row of a page.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

type wireCursor struct {
	At int64  `json:"t"`
	ID string `json:"id"`
}

// NormalizeLimit clamps limit into [1, MaxLimit], using DefaultLimit when unset.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// EncodeCursor renders c as an opaque URL-safe token.
func EncodeCursor(c Cursor) string {
	raw, _ := json.Marshal(wireCursor{At: c.CreatedAt.UTC().UnixMicro(), ID: c.ID})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// ParseCursor decodes a token from EncodeCursor. An empty token means the first page.
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	var wire wireCursor
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	if wire.At <= 0 {
		return nil, errors.New("invalid cursor timestamp")
	}
	if !models.IsID(wire.ID) {
		return nil, errors.New("invalid cursor id")
	}
	return &Cursor{CreatedAt: time.UnixMicro(wire.At).UTC(), ID: wire.ID}, nil
}

// Trim cuts rows fetched with limit+1 back to limit. more reports whether the extra
// row existed, i.e. whether a next page follows.
func Trim[T any](rows []T, limit int) (page []T, more bool) {
	if limit <= 0 || len(rows) <= limit {
		return rows, false
	}
	return rows[:limit], true
}

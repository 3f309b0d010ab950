package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormalizeLimit(t *testing.T) {
	cases := map[int]int{0: DefaultLimit, -3: DefaultLimit, 10: 10, MaxLimit: MaxLimit, MaxLimit + 1: MaxLimit}
	for in, want := range cases {
		require.Equal(t, want, NormalizeLimit(in), "limit %d", in)
	}
}

func TestCursorRoundTripKeepsMicroseconds(t *testing.T) {
	created := time.Date(2026, 3, 1, 8, 30, 0, 123456000, time.UTC)
	id := "0123456789abcdef0123456789abcdef"

	cursor, err := ParseCursor(EncodeCursor(Cursor{CreatedAt: created, ID: id}))
	require.NoError(t, err)
	require.True(t, cursor.CreatedAt.Equal(created))
	require.Equal(t, id, cursor.ID)
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	c, err := ParseCursor("  ")
	require.NoError(t, err)
	require.Nil(t, c)

	bad := []string{
		"!!!",
		base64.RawURLEncoding.EncodeToString([]byte("not json")),
		EncodeCursor(Cursor{CreatedAt: time.Now(), ID: "nope"}),
		EncodeCursor(Cursor{ID: "0123456789abcdef0123456789abcdef"}),
	}
	for _, value := range bad {
		_, err := ParseCursor(value)
		require.Error(t, err, "cursor %q", value)
	}
}

func TestTrim(t *testing.T) {
	rows := []int{1, 2, 3, 4}

	page, more := Trim(rows, 3)
	require.Equal(t, []int{1, 2, 3}, page)
	require.True(t, more)

	page, more = Trim(rows, 4)
	require.Len(t, page, 4)
	require.False(t, more)
}

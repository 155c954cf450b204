// Package keyset implements the (created_at, id) pagination cursor used by
// every list endpoint.
package keyset

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MiriamHerrera/cosmetics-api/internal/apperr"
)

// Decode splits a cursor into its timestamp and id parts. An empty cursor is
// valid and yields zero values.
func Decode(cursor string) (time.Time, string, error) {
	if cursor == "" {
		return time.Time{}, "", nil
	}
	parts := strings.SplitN(cursor, ":", 2)
	if len(parts) != 2 {
		return time.Time{}, "", apperr.Invalidf("invalid cursor %q", cursor)
	}
	n, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, "", apperr.Invalidf("invalid cursor timestamp %q", parts[0])
	}
	if parts[1] == "" {
		return time.Time{}, "", apperr.Invalid("invalid cursor id")
	}
	return time.Unix(0, n).UTC(), parts[1], nil
}

// Encode builds the cursor for the row after (ts, id).
func Encode(ts time.Time, id string) string {
	return fmt.Sprintf("%d:%s", ts.UTC().UnixNano(), id)
}

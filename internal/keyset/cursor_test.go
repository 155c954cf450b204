package keyset

import (
	"testing"
	"time"
)

func TestCursorRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	id := "prd_abc123"

	cursor := Encode(now, id)
	decodedTime, decodedID, err := Decode(cursor)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if !decodedTime.Equal(now) {
		t.Fatalf("decoded time mismatch: got %s want %s", decodedTime, now)
	}
	if decodedID != id {
		t.Fatalf("decoded id mismatch: got %s want %s", decodedID, id)
	}
}

func TestEmptyCursorIsValid(t *testing.T) {
	ts, id, err := Decode("")
	if err != nil {
		t.Fatalf("empty cursor should decode: %v", err)
	}
	if !ts.IsZero() || id != "" {
		t.Fatalf("empty cursor should yield zero values, got %s %q", ts, id)
	}
}

func TestMalformedCursors(t *testing.T) {
	for _, c := range []string{"garbage", "notanumber:id", "123"} {
		if _, _, err := Decode(c); err == nil {
			t.Fatalf("expected error decoding %q", c)
		}
	}
}

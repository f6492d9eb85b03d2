package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeLimit(t *testing.T) {
	if got := NormalizeLimit(0); got != DefaultLimit {
		t.Fatalf("expected default limit, got %d", got)
	}
	if got := NormalizeLimit(-5); got != DefaultLimit {
		t.Fatalf("expected default limit for negative input, got %d", got)
	}
	if got := NormalizeLimit(MaxLimit + 1); got != MaxLimit {
		t.Fatalf("expected max limit cap, got %d", got)
	}
	if got := NormalizeLimit(7); got != 7 {
		t.Fatalf("expected passthrough, got %d", got)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC), ID: uuid.New()}
	out, err := ParseCursor(EncodeCursor(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.CreatedAt.Equal(in.CreatedAt) || out.ID != in.ID {
		t.Fatalf("cursor did not round trip: %+v vs %+v", out, in)
	}
}

func TestParseCursor_Invalid(t *testing.T) {
	if c, err := ParseCursor("   "); err != nil || c != nil {
		t.Fatalf("blank cursor should be nil, got %+v / %v", c, err)
	}
	if _, err := ParseCursor("not-base64!"); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := ParseCursor("aGVsbG8="); err == nil {
		t.Fatal("expected format error for payload without separator")
	}
}

func TestBuildPage(t *testing.T) {
	type row struct {
		createdAt time.Time
		id        uuid.UUID
	}
	cursorOf := func(r row) Cursor { return Cursor{CreatedAt: r.createdAt, ID: r.id} }

	var rows []row
	base := time.Now().UTC()
	for i := 0; i < 4; i++ {
		rows = append(rows, row{createdAt: base.Add(-time.Duration(i) * time.Minute), id: uuid.New()})
	}

	// Over-fetched one extra row: next page exists.
	page := BuildPage(rows, 3, cursorOf)
	if len(page.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(page.Items))
	}
	if page.NextCursor == "" {
		t.Fatal("expected a next cursor")
	}
	c, err := ParseCursor(page.NextCursor)
	if err != nil {
		t.Fatalf("next cursor should parse: %v", err)
	}
	if c.ID != rows[2].id {
		t.Fatal("next cursor should point at the last visible row")
	}

	// Exact fit: final page.
	page = BuildPage(rows[:2], 3, cursorOf)
	if len(page.Items) != 2 || page.NextCursor != "" {
		t.Fatalf("expected final page, got %+v", page)
	}

	// Empty never serializes as null.
	page = BuildPage(nil, 3, cursorOf)
	if page.Items == nil {
		t.Fatal("items should be an empty slice, not nil")
	}
}

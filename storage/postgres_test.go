package storage

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"rentradar/models"
)

func TestTruncateRuneBoundary(t *testing.T) {
	// 350 CJK characters span 1050 bytes but stay under the 1024-character
	// cap, so nothing is cut.
	cn := strings.Repeat("好", 350)
	if got := truncate(cn, maxDescriptionLen); got != cn {
		t.Errorf("truncate cut a %d-character string under the cap", utf8.RuneCountInString(cn))
	}

	long := strings.Repeat("好", 1100)
	got := truncate(long, maxDescriptionLen)
	if !utf8.ValidString(got) {
		t.Fatal("truncate produced invalid UTF-8")
	}
	if n := utf8.RuneCountInString(got); n != maxDescriptionLen {
		t.Errorf("truncated to %d characters, want %d", n, maxDescriptionLen)
	}

	if got := truncate("short", 60); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
	if got := truncate(strings.Repeat("a", 100), 60); got != strings.Repeat("a", 60) {
		t.Errorf("ascii truncation = %q", got)
	}
}

func TestSaveRowSkipsUnresolvedRegion(t *testing.T) {
	store := &PostgresStore{}
	var stats SaveStats

	// No addressLine2 means no region; the row must be skipped before any
	// SQL runs, never inserted with a null region.
	p := &models.Property{HouseID: "9001", Source: models.SourceRealEstate, PricePerWeek: 650}
	if err := store.saveRow(context.Background(), nil, p, "UNSW", 1, map[string]int64{}, &stats); err != nil {
		t.Fatalf("saveRow returned error for unresolvable region: %v", err)
	}
	if stats.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", stats.Skipped)
	}
	if stats.Inserted+stats.Updated+stats.Unchanged+stats.Failed != 0 {
		t.Errorf("unexpected stats %+v for a skipped row", stats)
	}
}

func TestFilterDelisted(t *testing.T) {
	stored := []PropertyRef{
		{ID: 1, HouseID: "A", URL: "https://www.realestate.com.au/property-a"},
		{ID: 2, HouseID: "B", URL: "https://www.realestate.com.au/property-b"},
		{ID: 3, HouseID: "C", URL: "https://www.realestate.com.au/property-c"},
	}

	// Today's sweep saw A and B; only C is delisted.
	gone := filterDelisted(stored, map[string]bool{"A": true, "B": true})
	if len(gone) != 1 || gone[0].HouseID != "C" {
		t.Fatalf("filterDelisted = %+v, want only C", gone)
	}

	if gone := filterDelisted(stored, map[string]bool{"A": true, "B": true, "C": true}); len(gone) != 0 {
		t.Errorf("full live set should delist nothing, got %+v", gone)
	}

	// An empty sweep marks every stored row, which is what the
	// confirmation gate upstream is there to catch.
	if gone := filterDelisted(stored, map[string]bool{}); len(gone) != len(stored) {
		t.Errorf("empty live set delisted %d of %d", len(gone), len(stored))
	}
}

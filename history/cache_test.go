package history

import (
	"os"
	"testing"
	"time"

	"rentradar/export"
	"rentradar/models"
)

func writeHistory(t *testing.T, dir string, props []*models.Property) string {
	t.Helper()
	path := export.ExportPath(dir, "UNSW", time.Now())
	if err := export.Write(path, props); err != nil {
		t.Fatalf("write history export: %v", err)
	}
	return path
}

func enriched(houseID string) *models.Property {
	avail := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	p := &models.Property{
		HouseID:       houseID,
		Source:        models.SourceDomain,
		PricePerWeek:  700,
		AddressLine1:  "1-22-houston-road",
		AddressLine2:  "kensington-nsw-2033",
		DescriptionEN: "Sunny two bedroom apartment",
		DescriptionCN: "阳光充足的两居室公寓",
		Keywords:      "balcony, air conditioning",
		AverageScore:  12.3,
		AvailableDate: &avail,
		ThumbnailURL:  "https://rent.domainstatic.com.au/800x600/a.jpg",
	}
	p.SetCommute("UNSW", 18)
	return p
}

func TestLoadIndexesEnrichedRows(t *testing.T) {
	dir := t.TempDir()
	bare := &models.Property{HouseID: "2", Source: models.SourceDomain, PricePerWeek: 500}
	writeHistory(t, dir, []*models.Property{enriched("1"), bare})

	cache := Load(dir, "UNSW")
	if cache.Len() != 1 {
		t.Fatalf("cache has %d entries, want 1 (bare rows skipped)", cache.Len())
	}
	entry, ok := cache.Lookup("1")
	if !ok {
		t.Fatal("enriched row not indexed")
	}
	if entry.DescriptionEN == "" || entry.AverageScore != 12.3 {
		t.Errorf("entry fields not carried: %+v", entry)
	}
	if entry.CommuteTimes["UNSW"] != 18 {
		t.Errorf("commute = %d, want 18", entry.CommuteTimes["UNSW"])
	}
}

func TestLoadMissingAndStale(t *testing.T) {
	dir := t.TempDir()
	if cache := Load(dir, "UNSW"); cache.Len() != 0 {
		t.Errorf("empty dir should yield empty cache, got %d entries", cache.Len())
	}

	path := writeHistory(t, dir, []*models.Property{enriched("1")})
	old := time.Now().Add(-MaxAge - time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}
	if cache := Load(dir, "UNSW"); cache.Len() != 0 {
		t.Errorf("stale export should be ignored, got %d entries", cache.Len())
	}
}

func TestApplyFillsGapsOnly(t *testing.T) {
	dir := t.TempDir()
	writeHistory(t, dir, []*models.Property{enriched("1"), enriched("2")})
	cache := Load(dir, "UNSW")

	missing := &models.Property{HouseID: "1", Source: models.SourceDomain, PricePerWeek: 720}
	fresh := &models.Property{
		HouseID:       "2",
		Source:        models.SourceDomain,
		DescriptionEN: "Freshly scraped description",
		AverageScore:  15,
	}
	fresh.SetCommute("UNSW", 22)
	unknown := &models.Property{HouseID: "99", Source: models.SourceDomain}

	stats := cache.Apply([]*models.Property{missing, fresh, unknown})

	if stats.Details != 1 || stats.Scores != 1 || stats.Commutes != 1 {
		t.Errorf("stats = %+v, want 1 detail, 1 score, 1 commute", stats)
	}
	if missing.DescriptionEN != "Sunny two bedroom apartment" {
		t.Errorf("description not reused: %q", missing.DescriptionEN)
	}
	if missing.AverageScore != 12.3 {
		t.Errorf("score not reused: %v", missing.AverageScore)
	}
	if minutes, _ := missing.CommuteFor("UNSW"); minutes != 18 {
		t.Errorf("commute not reused: %d", minutes)
	}
	if missing.PricePerWeek != 720 {
		t.Errorf("scraped price overwritten: %d", missing.PricePerWeek)
	}

	if fresh.DescriptionEN != "Freshly scraped description" {
		t.Errorf("fresh description overwritten: %q", fresh.DescriptionEN)
	}
	if fresh.AverageScore != 15 {
		t.Errorf("fresh score overwritten: %v", fresh.AverageScore)
	}
	if minutes, _ := fresh.CommuteFor("UNSW"); minutes != 22 {
		t.Errorf("fresh commute overwritten: %d", minutes)
	}

	if unknown.HasDetail() {
		t.Error("unknown house ID should be untouched")
	}
}

func TestApplyEmptyCache(t *testing.T) {
	cache := Load(t.TempDir(), "UNSW")
	p := &models.Property{HouseID: "1"}
	if stats := cache.Apply([]*models.Property{p}); stats != (ReuseStats{}) {
		t.Errorf("empty cache produced stats %+v", stats)
	}
}

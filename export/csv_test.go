package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rentradar/models"
)

func sampleProperty() *models.Property {
	avail := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)
	published := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	p := &models.Property{
		HouseID:       "17012345",
		Source:        models.SourceDomain,
		PricePerWeek:  750,
		AddressLine1:  "1-22-houston-road",
		AddressLine2:  "kensington-nsw-2033",
		BedroomCount:  2,
		BathroomCount: 1,
		ParkingCount:  1,
		PropertyType:  models.TypeApartment,
		DescriptionEN: "Sunny two bedroom apartment near UNSW",
		DescriptionCN: "阳光充足的两居室公寓",
		Keywords:      "air conditioning, balcony, internal laundry",
		URL:           "https://www.domain.com.au/1-22-houston-road-kensington-nsw-2033-17012345/",
		ThumbnailURL:  "https://rent.domainstatic.com.au/800x600/a.jpg",
		AvailableDate: &avail,
		PublishedAt:   &published,
		AverageScore:  12.3,
	}
	p.SetCommute("UNSW", 18)
	p.SetCommute("USYD", 35)
	return p
}

func TestRowRoundTrip(t *testing.T) {
	p := sampleProperty()
	got := FromRow(Columns, ToRow(p))

	if got.HouseID != p.HouseID || got.Source != p.Source {
		t.Errorf("identity mismatch: %s/%s", got.HouseID, got.Source)
	}
	if got.PricePerWeek != p.PricePerWeek {
		t.Errorf("price = %d, want %d", got.PricePerWeek, p.PricePerWeek)
	}
	if got.AddressLine1 != p.AddressLine1 || got.AddressLine2 != p.AddressLine2 {
		t.Error("address mismatch")
	}
	if got.BedroomCount != 2 || got.BathroomCount != 1 || got.ParkingCount != 1 {
		t.Error("feature counts mismatch")
	}
	if got.PropertyType != p.PropertyType {
		t.Errorf("type = %d, want %d", got.PropertyType, p.PropertyType)
	}
	if got.DescriptionEN != p.DescriptionEN || got.DescriptionCN != p.DescriptionCN {
		t.Error("descriptions mismatch")
	}
	if got.Keywords != p.Keywords {
		t.Error("keywords mismatch")
	}
	if got.AverageScore != p.AverageScore {
		t.Errorf("score = %v, want %v", got.AverageScore, p.AverageScore)
	}
	if got.AvailableDate == nil || !got.AvailableDate.Equal(*p.AvailableDate) {
		t.Errorf("available date = %v, want %v", got.AvailableDate, p.AvailableDate)
	}
	if got.PublishedAt == nil || !got.PublishedAt.Equal(*p.PublishedAt) {
		t.Errorf("published at = %v, want %v", got.PublishedAt, p.PublishedAt)
	}
	if minutes, _ := got.CommuteFor("UNSW"); minutes != 18 {
		t.Errorf("UNSW commute = %d, want 18", minutes)
	}
	if minutes, _ := got.CommuteFor("USYD"); minutes != 35 {
		t.Errorf("USYD commute = %d, want 35", minutes)
	}
	if _, ok := got.CommuteFor("UTS"); ok {
		t.Error("UTS commute should be absent")
	}
}

func TestWriteRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "UNSW_rentdata_260224.csv")

	props := []*models.Property{sampleProperty()}
	if err := Write(path, props); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !strings.HasPrefix(string(raw), bom) {
		t.Error("export should start with a UTF-8 BOM")
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("read %d rows, want 1", len(got))
	}
	if got[0].HouseID != "17012345" || got[0].PricePerWeek != 750 {
		t.Errorf("row mismatch: %+v", got[0])
	}
}

func TestExportPaths(t *testing.T) {
	stamp := time.Date(2026, 2, 24, 14, 30, 5, 0, time.UTC)

	if got := ExportPath("out", "UNSW", stamp); got != filepath.Join("out", "UNSW_rentdata_260224.csv") {
		t.Errorf("ExportPath = %s", got)
	}
	if got := MergedListPath("out", "UNSW", models.SourceDomain, stamp); got != filepath.Join("out", "UNSW_list_merged_domain_260224_1430.csv") {
		t.Errorf("MergedListPath = %s", got)
	}
	if got := ListPartPath("out", "UNSW", models.SourceRealEstate, stamp, 2); got != filepath.Join("out", "UNSW_rentdata_list_realestate_260224_part2.csv") {
		t.Errorf("ListPartPath = %s", got)
	}
}

func TestLatestExportSkipsListFiles(t *testing.T) {
	dir := t.TempDir()
	props := []*models.Property{sampleProperty()}

	older := filepath.Join(dir, "UNSW_rentdata_260223.csv")
	newer := filepath.Join(dir, "UNSW_rentdata_260224.csv")
	listFile := filepath.Join(dir, "UNSW_rentdata_list_domain_260224_part1.csv")

	for _, path := range []string{older, newer, listFile} {
		if err := Write(path, props); err != nil {
			t.Fatalf("Write %s: %v", path, err)
		}
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(older, past, past); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(listFile, future, future); err != nil {
		t.Fatal(err)
	}

	got, _, err := LatestExport(dir, "UNSW")
	if err != nil {
		t.Fatalf("LatestExport failed: %v", err)
	}
	if got != newer {
		t.Errorf("LatestExport = %s, want %s", got, newer)
	}

	if got, _, _ := LatestExport(dir, "USYD"); got != "" {
		t.Errorf("LatestExport for missing university = %s, want empty", got)
	}
}

func TestWriteListParts(t *testing.T) {
	dir := t.TempDir()
	props := make([]*models.Property, 0, 5)
	for i := 0; i < 5; i++ {
		p := sampleProperty()
		p.HouseID = p.HouseID + string(rune('a'+i))
		props = append(props, p)
	}

	parts, err := WriteListParts(dir, "UNSW", models.SourceDomain, props, 2)
	if err != nil {
		t.Fatalf("WriteListParts failed: %v", err)
	}
	if parts != 3 {
		t.Errorf("parts = %d, want 3", parts)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "UNSW_rentdata_list_domain_*_part*.csv"))
	if len(matches) != 3 {
		t.Errorf("found %d part files, want 3", len(matches))
	}
}

func TestWriteMergedListAnnotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "merged.csv")

	withDetail := sampleProperty()
	bare := sampleProperty()
	bare.HouseID = "999"
	bare.DescriptionEN = ""

	if err := WriteMergedList(path, []*models.Property{withDetail, bare}); err != nil {
		t.Fatalf("WriteMergedList failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	if !strings.HasSuffix(lines[0], "has_history_detail") {
		t.Errorf("header missing annotation column: %s", lines[0])
	}
	if !strings.HasSuffix(lines[1], "Yes") {
		t.Errorf("detail row should end with Yes: %s", lines[1])
	}
	if !strings.HasSuffix(lines[2], "No") {
		t.Errorf("bare row should end with No: %s", lines[2])
	}
}

package scraper

import (
	"os"
	"path/filepath"
	"testing"

	"rentradar/models"
)

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("Failed to load fixture %s: %v", name, err)
	}
	return string(data)
}

func TestDomainSearchURL(t *testing.T) {
	a := &DomainAdapter{}

	got := a.SearchURL("kensington-nsw-2033")
	want := "https://www.domain.com.au/rent/kensington-nsw-2033/?excludedeposittaken=1"
	if got != want {
		t.Errorf("SearchURL = %s, want %s", got, want)
	}

	if got := a.PageURL(want, 1); got != want {
		t.Errorf("PageURL page 1 = %s, want unchanged", got)
	}
	if got := a.PageURL(want, 3); got != want+"&page=3" {
		t.Errorf("PageURL page 3 = %s", got)
	}
}

func TestDomainParseList(t *testing.T) {
	a := &DomainAdapter{}
	props, err := a.ParseList(loadFixture(t, "domain_list.html"))
	if err != nil {
		t.Fatalf("ParseList failed: %v", err)
	}

	// The ad card has no address and must be dropped.
	if len(props) != 2 {
		t.Fatalf("ParseList returned %d properties, want 2", len(props))
	}

	p := props[0]
	if p.HouseID != "17012345" {
		t.Errorf("HouseID = %s, want 17012345", p.HouseID)
	}
	if p.Source != models.SourceDomain {
		t.Errorf("Source = %s, want domain", p.Source)
	}
	if p.PricePerWeek != 750 {
		t.Errorf("PricePerWeek = %d, want 750", p.PricePerWeek)
	}
	if p.AddressLine1 != "1-22-houston-road" {
		t.Errorf("AddressLine1 = %s, want 1-22-houston-road", p.AddressLine1)
	}
	if p.AddressLine2 != "kensington-nsw-2033" {
		t.Errorf("AddressLine2 = %s, want kensington-nsw-2033", p.AddressLine2)
	}
	if p.BedroomCount != 2 || p.BathroomCount != 1 || p.ParkingCount != 1 {
		t.Errorf("features = %d/%d/%d, want 2/1/1", p.BedroomCount, p.BathroomCount, p.ParkingCount)
	}
	if p.PropertyType != models.TypeApartment {
		t.Errorf("PropertyType = %d, want %d", p.PropertyType, models.TypeApartment)
	}
	if p.URL != "https://www.domain.com.au/1-22-houston-road-kensington-nsw-2033-17012345/" {
		t.Errorf("URL = %s", p.URL)
	}
	if p.ThumbnailURL != "https://rent.domainstatic.com.au/800x600/listing-17012345.jpg" {
		t.Errorf("ThumbnailURL = %s", p.ThumbnailURL)
	}

	if props[1].PricePerWeek != 1100 {
		t.Errorf("second card price = %d, want 1100", props[1].PricePerWeek)
	}
	if props[1].PropertyType != models.TypeHouse {
		t.Errorf("second card type = %d, want %d", props[1].PropertyType, models.TypeHouse)
	}
}

func TestDomainHasNextPage(t *testing.T) {
	a := &DomainAdapter{}
	if !a.HasNextPage(loadFixture(t, "domain_list.html")) {
		t.Error("expected a next page")
	}
	if a.HasNextPage("<html><body><p>no paginator</p></body></html>") {
		t.Error("expected no next page")
	}
}

func TestDomainParseDetail(t *testing.T) {
	a := &DomainAdapter{}
	p := &models.Property{HouseID: "17012345", Source: models.SourceDomain}

	if err := a.ParseDetail(p, loadFixture(t, "domain_detail.html")); err != nil {
		t.Fatalf("ParseDetail failed: %v", err)
	}

	want := "Sunny two bedroom apartment Freshly renovated apartment moments from UNSW with a large balcony. Internal laundry, secure parking and air conditioning throughout."
	if p.DescriptionEN != want {
		t.Errorf("DescriptionEN = %q, want %q", p.DescriptionEN, want)
	}
	if p.AvailableDate == nil || p.AvailableDate.Format("2006-01-02") != "2026-02-10" {
		t.Errorf("AvailableDate = %v, want 2026-02-10", p.AvailableDate)
	}
	if p.ThumbnailURL != "https://rent.domainstatic.com.au/1200x800/detail-17012345.jpg" {
		t.Errorf("ThumbnailURL = %s", p.ThumbnailURL)
	}
	if p.PublishedAt == nil {
		t.Error("PublishedAt not set")
	}
}

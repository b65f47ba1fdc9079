package scraper

import (
	"strings"
	"testing"
	"unicode/utf8"

	"rentradar/models"
)

func TestRealEstateSearchURL(t *testing.T) {
	a := &RealEstateAdapter{}

	// Postcode extracted from a portal-d style slug.
	got := a.SearchURL("kensington-nsw-2033")
	want := "https://www.realestate.com.au/rent/in-2033/list-1"
	if got != want {
		t.Errorf("SearchURL = %s, want %s", got, want)
	}

	// Slug without a postcode passes through.
	got = a.SearchURL("sydney-city-nsw")
	if got != "https://www.realestate.com.au/rent/in-sydney-city-nsw/list-1" {
		t.Errorf("SearchURL = %s", got)
	}

	if got := a.PageURL(want, 4); got != "https://www.realestate.com.au/rent/in-2033/list-4" {
		t.Errorf("PageURL = %s", got)
	}
}

func TestRealEstateParseList(t *testing.T) {
	a := &RealEstateAdapter{}
	props, err := a.ParseList(loadFixture(t, "rea_list.html"))
	if err != nil {
		t.Fatalf("ParseList failed: %v", err)
	}

	// The card without a price must be dropped.
	if len(props) != 2 {
		t.Fatalf("ParseList returned %d properties, want 2", len(props))
	}

	p := props[0]
	if p.HouseID != "144556677" {
		t.Errorf("HouseID = %s, want 144556677", p.HouseID)
	}
	if p.Source != models.SourceRealEstate {
		t.Errorf("Source = %s, want realestate", p.Source)
	}
	if p.PricePerWeek != 750 {
		t.Errorf("PricePerWeek = %d, want 750", p.PricePerWeek)
	}
	if p.AddressLine1 != "2/10 High Street" {
		t.Errorf("AddressLine1 = %q", p.AddressLine1)
	}
	if p.AddressLine2 != "kensington-nsw-2033" {
		t.Errorf("AddressLine2 = %q", p.AddressLine2)
	}
	if p.BedroomCount != 2 || p.BathroomCount != 1 || p.ParkingCount != 1 {
		t.Errorf("features = %d/%d/%d, want 2/1/1", p.BedroomCount, p.BathroomCount, p.ParkingCount)
	}
	if p.PropertyType != models.TypeApartment {
		t.Errorf("PropertyType = %d, want %d", p.PropertyType, models.TypeApartment)
	}
	if !strings.HasSuffix(p.URL, "/property-apartment-nsw-kensington-2033-144556677") {
		t.Errorf("URL = %s", p.URL)
	}
	if p.ThumbnailURL != "https://i2.au.reastatic.net/500x300-format=webp/0a1b2c3d4e5f/image.jpg" {
		t.Errorf("ThumbnailURL = %s", p.ThumbnailURL)
	}

	if props[1].PricePerWeek != 1200 {
		t.Errorf("second card price = %d, want 1200", props[1].PricePerWeek)
	}
	if props[1].PropertyType != models.TypeHouse {
		t.Errorf("second card type = %d, want %d", props[1].PropertyType, models.TypeHouse)
	}
}

func TestRealEstateHasNextPage(t *testing.T) {
	a := &RealEstateAdapter{}
	if !a.HasNextPage(loadFixture(t, "rea_list.html")) {
		t.Error("expected a next page")
	}
	if a.HasNextPage("<html><body><a href='/x'>back</a></body></html>") {
		t.Error("expected no next page")
	}
}

func TestRealEstateParseDetail(t *testing.T) {
	a := &RealEstateAdapter{}
	p := &models.Property{HouseID: "144556677", Source: models.SourceRealEstate}

	if err := a.ParseDetail(p, loadFixture(t, "rea_detail.html")); err != nil {
		t.Fatalf("ParseDetail failed: %v", err)
	}

	if !strings.HasPrefix(p.DescriptionEN, "Bright and airy two bedroom apartment") {
		t.Errorf("DescriptionEN = %q", p.DescriptionEN)
	}
	if p.AvailableDate == nil || p.AvailableDate.Format("2006-01-02") != "2026-02-15" {
		t.Errorf("AvailableDate = %v, want 2026-02-15", p.AvailableDate)
	}
	if p.ThumbnailURL != "https://i2.au.reastatic.net/800x600/0a1b2c3d4e5f/image.jpg" {
		t.Errorf("ThumbnailURL = %s", p.ThumbnailURL)
	}
}

func TestRealEstateDescriptionTruncation(t *testing.T) {
	a := &RealEstateAdapter{}
	long := strings.Repeat("spacious sunlit room ", 100)
	html := `<html><body><div data-testid="listing-details__description">` + long + `</div></body></html>`

	p := &models.Property{}
	if err := a.ParseDetail(p, html); err != nil {
		t.Fatalf("ParseDetail failed: %v", err)
	}
	if len(p.DescriptionEN) != reaMaxDescription+3 {
		t.Errorf("description length = %d, want %d", len(p.DescriptionEN), reaMaxDescription+3)
	}
	if !strings.HasSuffix(p.DescriptionEN, "...") {
		t.Error("truncated description should end with ellipsis")
	}

	// Multi-byte text must be cut on a character boundary, not mid-rune.
	longCN := strings.Repeat("阳光充足的宽敞房间", 150)
	html = `<html><body><div data-testid="listing-details__description">` + longCN + `</div></body></html>`
	p = &models.Property{}
	if err := a.ParseDetail(p, html); err != nil {
		t.Fatalf("ParseDetail failed: %v", err)
	}
	if !utf8.ValidString(p.DescriptionEN) {
		t.Fatal("truncated description is not valid UTF-8")
	}
	if n := utf8.RuneCountInString(p.DescriptionEN); n != reaMaxDescription+3 {
		t.Errorf("description runes = %d, want %d", n, reaMaxDescription+3)
	}
}

func TestKasadaDetection(t *testing.T) {
	if !kasadaActive("<script>KPSDK.configure()</script>") {
		t.Error("short KPSDK page should read as active challenge")
	}
	if kasadaActive(strings.Repeat("x", 6000) + "KPSDK") {
		t.Error("large page should not read as challenge even with KPSDK present")
	}
	if !looksBlocked("tiny") {
		t.Error("tiny page should look blocked")
	}
	if looksBlocked(strings.Repeat("x", 20000)) {
		t.Error("full page should not look blocked")
	}
}

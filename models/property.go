package models

import (
	"strconv"
	"strings"
	"time"
)

type Source string

const (
	SourceDomain     Source = "domain"
	SourceRealEstate Source = "realestate"
)

// ParseSource returns the source for a stored string, defaulting to domain.
func ParseSource(s string) Source {
	if Source(s) == SourceRealEstate {
		return SourceRealEstate
	}
	return SourceDomain
}

// Property type codes as stored in the properties table.
const (
	TypeHouse        = 1
	TypeApartment    = 2
	TypeStudio       = 3
	TypeSemiDetached = 4
	TypeTownhouse    = 5
	TypeVilla        = 6
	TypeDuplex       = 7
	TypeTerrace      = 8
)

var propertyTypeCodes = map[string]int{
	"house":                   TypeHouse,
	"apartment":               TypeApartment,
	"apartment / unit / flat": TypeApartment,
	"unit":                    TypeApartment,
	"flat":                    TypeApartment,
	"studio":                  TypeStudio,
	"semi-detached":           TypeSemiDetached,
	"townhouse":               TypeTownhouse,
	"villa":                   TypeVilla,
	"duplex":                  TypeDuplex,
	"terrace":                 TypeTerrace,
}

// PropertyTypeCode maps a portal's free-form type label to a stored code.
// Unrecognised labels fall back to townhouse, matching the stored data the
// front end already depends on.
func PropertyTypeCode(label string) int {
	key := strings.ToLower(strings.TrimSpace(label))
	if code, ok := propertyTypeCodes[key]; ok {
		return code
	}
	return TypeTownhouse
}

// Property is the canonical listing record every adapter produces and every
// downstream stage consumes. Identity is (Source, HouseID).
type Property struct {
	HouseID string
	Source  Source

	PricePerWeek int

	AddressLine1 string
	AddressLine2 string

	BedroomCount  int
	BathroomCount int
	ParkingCount  int

	PropertyType    int
	PropertyTypeRaw string

	DescriptionEN string
	DescriptionCN string
	Keywords      string

	URL          string
	ThumbnailURL string

	AvailableDate *time.Time
	PublishedAt   *time.Time
	ScrapedAt     time.Time

	AverageScore float64
	Scores       []float64

	// CommuteTimes maps a university code to minutes by public transit.
	CommuteTimes map[string]int
}

// FullAddress joins the two address lines for display and geocoding.
func (p *Property) FullAddress() string {
	parts := make([]string, 0, 2)
	if p.AddressLine1 != "" {
		parts = append(parts, p.AddressLine1)
	}
	if p.AddressLine2 != "" {
		parts = append(parts, p.AddressLine2)
	}
	return strings.Join(parts, ", ")
}

// HasDetail reports whether the detail pass (or history reuse) populated
// this property.
func (p *Property) HasDetail() bool {
	return strings.TrimSpace(p.DescriptionEN) != ""
}

// SetCommute records a commute time, allocating the map on first use.
func (p *Property) SetCommute(university string, minutes int) {
	if p.CommuteTimes == nil {
		p.CommuteTimes = make(map[string]int)
	}
	p.CommuteTimes[university] = minutes
}

// CommuteFor returns the stored minutes for a university, if any.
func (p *Property) CommuteFor(university string) (int, bool) {
	v, ok := p.CommuteTimes[university]
	return v, ok
}

// ScrapeResult wraps one area's listing harvest.
type ScrapeResult struct {
	Success      bool
	Properties   []*Property
	ErrorMessage string
	PagesScraped int
}

// RegionInfo is the locality triple parsed from addressLine2.
type RegionInfo struct {
	Name     string
	State    string
	Postcode int
}

// ParseRegion extracts (suburb, state, postcode) from an addressLine2 such
// as "Kensington NSW 2033". The suburb may span several tokens; anything
// before the NSW marker belongs to it. Area slugs without a postcode
// ("sydney-city-nsw") still resolve: postcode 0 marks the triple for fuzzy
// region matching downstream. Returns nil only when no suburb is present.
func ParseRegion(addressLine2 string) *RegionInfo {
	if strings.TrimSpace(addressLine2) == "" {
		return nil
	}

	parts := strings.Split(strings.ReplaceAll(addressLine2, " ", "-"), "-")

	nswIndex := -1
	for i, part := range parts {
		if strings.EqualFold(strings.TrimSpace(part), "NSW") {
			nswIndex = i
			break
		}
	}
	if nswIndex == 0 {
		return nil
	}

	if nswIndex > 0 {
		suburb := strings.ToLower(strings.TrimSpace(strings.Join(parts[:nswIndex], " ")))
		if nswIndex < len(parts)-1 {
			if postcode, err := strconv.Atoi(strings.TrimSpace(parts[nswIndex+1])); err == nil && postcode > 0 {
				return &RegionInfo{Name: suburb, State: "NSW", Postcode: postcode}
			}
		}
		return &RegionInfo{Name: suburb, State: "NSW", Postcode: 0}
	}

	suburb := strings.ToLower(strings.TrimSpace(strings.Join(parts, " ")))
	return &RegionInfo{Name: suburb, State: "NSW", Postcode: 0}
}

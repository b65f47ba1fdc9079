package scraper

import (
	"rentradar/models"
)

// Adapter knows one portal: how to build its search URLs and how to read
// its markup. Adapters are pure parsers; the Collector owns the browser and
// all pacing.
type Adapter interface {
	Source() models.Source

	// SearchURL builds the first-page search URL for an area slug.
	SearchURL(area string) string

	// PageURL derives page n of a search from its first-page URL.
	PageURL(searchURL string, page int) string

	// ParseList extracts listing cards from a search results page.
	ParseList(html string) ([]*models.Property, error)

	// HasNextPage reports whether the results page links a further page.
	HasNextPage(html string) bool

	// ParseDetail fills description, availability and thumbnail from a
	// detail page.
	ParseDetail(p *models.Property, html string) error

	// ResetPerArea reports whether the browser profile must be wiped
	// before each area. Kasada-protected portals need this.
	ResetPerArea() bool
}

// AdapterFor returns the adapter for a source.
func AdapterFor(source models.Source) Adapter {
	if source == models.SourceRealEstate {
		return &RealEstateAdapter{}
	}
	return &DomainAdapter{}
}

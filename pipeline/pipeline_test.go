package pipeline

import (
	"testing"

	"rentradar/models"
)

func TestOptionsNormalise(t *testing.T) {
	var opts Options
	opts.normalise()

	if len(opts.Universities) != len(models.Universities) {
		t.Errorf("universities = %v, want all of %v", opts.Universities, models.Universities)
	}
	if len(opts.Sources) != 2 {
		t.Fatalf("sources = %v, want both portals", opts.Sources)
	}
	if opts.Sources[0] != models.SourceDomain || opts.Sources[1] != models.SourceRealEstate {
		t.Errorf("sources = %v", opts.Sources)
	}

	narrow := Options{Universities: []string{"UNSW"}, Sources: []models.Source{models.SourceRealEstate}}
	narrow.normalise()
	if len(narrow.Universities) != 1 || narrow.Universities[0] != "UNSW" {
		t.Errorf("explicit universities changed: %v", narrow.Universities)
	}
	if len(narrow.Sources) != 1 || narrow.Sources[0] != models.SourceRealEstate {
		t.Errorf("explicit sources changed: %v", narrow.Sources)
	}
}

func TestDedupe(t *testing.T) {
	first := &models.Property{HouseID: "1", Source: models.SourceDomain, PricePerWeek: 700}
	dup := &models.Property{HouseID: "1", Source: models.SourceDomain, PricePerWeek: 750}
	otherSource := &models.Property{HouseID: "1", Source: models.SourceRealEstate}
	noID := &models.Property{Source: models.SourceDomain}

	got := dedupe([]*models.Property{first, dup, otherSource, noID})

	if len(got) != 2 {
		t.Fatalf("got %d properties, want 2", len(got))
	}
	if got[0] != first {
		t.Error("first occurrence should win")
	}
	if got[0].PricePerWeek != 700 {
		t.Errorf("price = %d, want 700 from the first occurrence", got[0].PricePerWeek)
	}
	if got[1] != otherSource {
		t.Error("same house ID on a different portal is a distinct listing")
	}
}

func TestSourceURLPrefixes(t *testing.T) {
	if sourceURLPrefix[models.SourceDomain] != "https://www.domain.com.au" {
		t.Errorf("domain prefix = %s", sourceURLPrefix[models.SourceDomain])
	}
	if sourceURLPrefix[models.SourceRealEstate] != "https://www.realestate.com.au" {
		t.Errorf("realestate prefix = %s", sourceURLPrefix[models.SourceRealEstate])
	}
}

package history

import (
	"log"
	"time"

	"rentradar/export"
	"rentradar/models"
)

// MaxAge is how far back a prior export still counts as reusable. Ads
// churn quickly; week-old descriptions and scores are still valid, but
// anything older risks describing a relisted property.
const MaxAge = 7 * 24 * time.Hour

// Entry holds the enriched fields carried forward for one house ID.
type Entry struct {
	DescriptionEN string
	DescriptionCN string
	Keywords      string
	AverageScore  float64
	AvailableDate *time.Time
	ThumbnailURL  string
	CommuteTimes  map[string]int
}

// Cache indexes a prior export by house ID. Immutable after Load, so
// worker pools may read it concurrently.
type Cache struct {
	entries    map[string]Entry
	SourceFile string
}

// Load finds the newest canonical export for the university and indexes
// rows that carry detail data. A missing or stale file yields an empty
// cache, never an error the caller has to branch on.
func Load(dir, university string) *Cache {
	cache := &Cache{entries: make(map[string]Entry)}

	path, modTime, err := export.LatestExport(dir, university)
	if err != nil || path == "" {
		log.Printf("No history CSV found for %s", university)
		return cache
	}
	if time.Since(modTime) > MaxAge {
		log.Printf("History CSV for %s is older than 7 days, ignoring: %s", university, path)
		return cache
	}

	props, err := export.Read(path)
	if err != nil {
		log.Printf("Failed to load history CSV %s: %v", path, err)
		return cache
	}

	for _, p := range props {
		if p.HouseID == "" || !p.HasDetail() {
			continue
		}
		entry := Entry{
			DescriptionEN: p.DescriptionEN,
			DescriptionCN: p.DescriptionCN,
			Keywords:      p.Keywords,
			AverageScore:  p.AverageScore,
			AvailableDate: p.AvailableDate,
			ThumbnailURL:  p.ThumbnailURL,
		}
		if len(p.CommuteTimes) > 0 {
			entry.CommuteTimes = make(map[string]int, len(p.CommuteTimes))
			for uni, minutes := range p.CommuteTimes {
				if minutes > 0 {
					entry.CommuteTimes[uni] = minutes
				}
			}
		}
		cache.entries[p.HouseID] = entry
	}

	cache.SourceFile = path
	log.Printf("Loaded %d enriched rows from history: %s", len(cache.entries), path)
	return cache
}

// Len returns the number of indexed house IDs.
func (c *Cache) Len() int { return len(c.entries) }

// Lookup returns the cached entry for a house ID.
func (c *Cache) Lookup(houseID string) (Entry, bool) {
	e, ok := c.entries[houseID]
	return e, ok
}

// ReuseStats counts what Apply carried over, per category.
type ReuseStats struct {
	Details  int
	Scores   int
	Commutes int
}

// Apply merges cached values into each property wherever the current
// value is missing or zero. Fresh data always wins; the cache only fills
// gaps.
func (c *Cache) Apply(props []*models.Property) ReuseStats {
	var stats ReuseStats
	if len(c.entries) == 0 {
		return stats
	}

	for _, p := range props {
		hist, ok := c.entries[p.HouseID]
		if !ok {
			continue
		}

		if !p.HasDetail() && hist.DescriptionEN != "" {
			p.DescriptionEN = hist.DescriptionEN
			p.DescriptionCN = hist.DescriptionCN
			p.Keywords = hist.Keywords
			p.AvailableDate = hist.AvailableDate
			if hist.ThumbnailURL != "" {
				p.ThumbnailURL = hist.ThumbnailURL
			}
			stats.Details++
		}

		if p.AverageScore == 0 && hist.AverageScore != 0 {
			p.AverageScore = hist.AverageScore
			stats.Scores++
		}

		if p.Keywords == "" && hist.Keywords != "" {
			p.Keywords = hist.Keywords
		}

		for uni, minutes := range hist.CommuteTimes {
			if _, have := p.CommuteFor(uni); !have {
				p.SetCommute(uni, minutes)
				stats.Commutes++
			}
		}
	}

	if stats.Details+stats.Scores+stats.Commutes > 0 {
		log.Printf("History reuse: %d details, %d scores, %d commute times",
			stats.Details, stats.Scores, stats.Commutes)
	}
	return stats
}

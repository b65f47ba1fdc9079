package scraper

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"rentradar/config"
	"rentradar/models"
)

// Collector drives one adapter through the shared browser: area pagination
// for the list stage and per-URL fetches for the detail stage. All pacing
// and anti-bot recovery lives here so adapters stay pure parsers.
type Collector struct {
	cfg     config.ScraperConfig
	adapter Adapter
	browser *Browser

	// beforeArea runs before each area's first navigation, outside the
	// browser session. Used for VPN rotation.
	beforeArea func(area string)

	detailCount int
}

// SetBeforeArea registers a hook invoked before each area is scraped.
func (c *Collector) SetBeforeArea(fn func(area string)) {
	c.beforeArea = fn
}

func NewCollector(cfg config.ScraperConfig, adapter Adapter) *Collector {
	profileDir := fmt.Sprintf("%s-%s", cfg.ProfileDir, adapter.Source())
	return &Collector{
		cfg:     cfg,
		adapter: adapter,
		browser: NewBrowser(cfg, profileDir),
	}
}

func (c *Collector) Source() models.Source { return c.adapter.Source() }

// Close releases the browser session.
func (c *Collector) Close() {
	c.browser.Close()
}

// ScrapeAreas harvests listing cards for every area in turn. One area
// failing does not abort the rest.
func (c *Collector) ScrapeAreas(ctx context.Context, areas []string) ([]*models.Property, error) {
	var all []*models.Property
	defer c.browser.Close()

	for i, area := range areas {
		if err := ctx.Err(); err != nil {
			return all, err
		}

		log.Printf("Area %d/%d: %s [%s]", i+1, len(areas), area, c.adapter.Source())

		if c.beforeArea != nil {
			c.beforeArea(area)
		}

		result := c.scrapeArea(ctx, area)
		if !result.Success {
			log.Printf("Area %s failed: %s", area, result.ErrorMessage)
		}
		all = append(all, result.Properties...)

		if i < len(areas)-1 {
			c.browser.Wait(3 * time.Second)
		}
	}

	log.Printf("All areas done for %s: %d properties", c.adapter.Source(), len(all))
	return all, nil
}

func (c *Collector) scrapeArea(ctx context.Context, area string) *models.ScrapeResult {
	result := &models.ScrapeResult{Success: true}

	if c.adapter.ResetPerArea() {
		if err := c.browser.ResetProfile(); err != nil {
			return &models.ScrapeResult{ErrorMessage: err.Error()}
		}
	} else if err := c.browser.Open(); err != nil {
		return &models.ScrapeResult{ErrorMessage: err.Error()}
	}

	searchURL := c.adapter.SearchURL(area)
	consecutiveFailures := 0

	for page := 1; page <= c.cfg.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			result.ErrorMessage = err.Error()
			return result
		}

		pageURL := c.adapter.PageURL(searchURL, page)
		log.Printf("Page %d: %s", page, pageURL)

		if err := c.browser.Navigate(pageURL, c.cfg.PageDelay); err != nil {
			consecutiveFailures++
			log.Printf("Navigation failed (%d consecutive): %v", consecutiveFailures, err)
			if consecutiveFailures >= c.cfg.MaxBlockRetries {
				result.Success = false
				result.ErrorMessage = "too many consecutive navigation failures, likely blocked"
				return result
			}
			c.browser.Wait(30 * time.Second)
			continue
		}
		consecutiveFailures = 0

		for i := 0; i < 3; i++ {
			c.browser.Scroll(200 + rand.Intn(200))
			humanDelay(time.Second, 2*time.Second)
		}

		html, err := c.browser.PageSource()
		if err != nil {
			log.Printf("Failed to read page %d: %v", page, err)
			continue
		}

		if kasadaActive(html) {
			log.Printf("Anti-bot interstitial active, backing off")
			c.browser.Wait(20 * time.Second)
			for i := 0; i < 3; i++ {
				c.browser.Scroll(200)
				c.browser.Wait(time.Second)
			}
			html, _ = c.browser.PageSource()
			if looksBlocked(html) {
				result.Success = false
				result.ErrorMessage = fmt.Sprintf("page did not load past protection (%d bytes)", len(html))
				return result
			}
		}

		props, err := c.adapter.ParseList(html)
		if err != nil {
			log.Printf("Parse failed on page %d: %v", page, err)
			continue
		}
		if len(props) == 0 {
			log.Printf("No listings on page %d, stopping area", page)
			break
		}

		for _, p := range props {
			if p.URL == "" {
				p.URL = searchURL
			}
		}

		result.Properties = append(result.Properties, props...)
		result.PagesScraped++
		log.Printf("Page %d: %d listings (area total %d)", page, len(props), len(result.Properties))

		if !c.adapter.HasNextPage(html) {
			break
		}

		humanDelay(c.cfg.RequestDelay+2*time.Second, c.cfg.RequestDelay+5*time.Second)
	}

	return result
}

// ScrapeDetails fetches each property's detail page and lets the adapter
// fill description, availability and thumbnail. Properties that already
// carry a description are skipped when skipExisting is set, which is how
// history reuse avoids refetching.
func (c *Collector) ScrapeDetails(ctx context.Context, props []*models.Property, skipExisting bool) error {
	var toScrape []*models.Property
	for _, p := range props {
		if skipExisting && p.HasDetail() {
			continue
		}
		if p.URL != "" {
			toScrape = append(toScrape, p)
		}
	}

	if len(toScrape) == 0 {
		log.Printf("No detail pages to fetch")
		return nil
	}
	log.Printf("Fetching %d detail pages [%s]", len(toScrape), c.adapter.Source())

	if err := c.browser.Open(); err != nil {
		return err
	}
	defer c.browser.Close()

	success, failed := 0, 0
	for i, p := range toScrape {
		if err := ctx.Err(); err != nil {
			return err
		}

		if c.detailCount > 0 && c.detailCount%c.cfg.ProfileResetEvery == 0 {
			log.Printf("Fetched %d details, resetting browser profile", c.detailCount)
			if err := c.browser.ResetProfile(); err != nil {
				return err
			}
			c.browser.Wait(3 * time.Second)
		}

		if err := c.browser.Navigate(p.URL, 3*time.Second); err != nil {
			log.Printf("[%d/%d] navigation failed: %v", i+1, len(toScrape), err)
			failed++
			continue
		}

		c.browser.Scroll(500)
		c.browser.Wait(time.Second)
		c.browser.Scroll(500)
		c.browser.Wait(500 * time.Millisecond)

		html, err := c.browser.PageSource()
		if err != nil {
			failed++
			continue
		}
		if looksBlocked(html) {
			log.Printf("[%d/%d] page likely intercepted (%d bytes)", i+1, len(toScrape), len(html))
			failed++
			continue
		}

		if err := c.adapter.ParseDetail(p, html); err != nil {
			log.Printf("Detail parse failed (%s): %v", p.HouseID, err)
			failed++
			continue
		}
		c.detailCount++
		if p.HasDetail() {
			success++
		}

		if (i+1)%10 == 0 {
			log.Printf("Detail progress: %d/%d", i+1, len(toScrape))
		}

		humanDelay(time.Second, 2*time.Second)
	}

	log.Printf("Detail fetch done: %d succeeded, %d failed", success, failed)
	return nil
}

package scraper

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"rentradar/config"
)

// Browser wraps a persistent-profile Chromium session. Both portals track
// sessions aggressively, so the profile directory outlives the process and
// can be wiped between areas to shed accumulated fingerprinting state.
type Browser struct {
	cfg        config.ScraperConfig
	profileDir string

	mu      sync.Mutex
	pw      *playwright.Playwright
	context playwright.BrowserContext
	page    playwright.Page
	open    bool
}

func NewBrowser(cfg config.ScraperConfig, profileDir string) *Browser {
	return &Browser{cfg: cfg, profileDir: profileDir}
}

// Open launches the persistent context. Idempotent.
func (b *Browser) Open() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.open {
		return nil
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("start playwright: %w", err)
	}

	context, err := pw.Chromium.LaunchPersistentContext(b.profileDir, playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(b.cfg.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		pw.Stop()
		return fmt.Errorf("launch browser: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		pw.Stop()
		return fmt.Errorf("create page: %w", err)
	}

	b.pw = pw
	b.context = context
	b.page = page
	b.open = true
	return nil
}

// Close tears the session down. Safe to call repeatedly.
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.page != nil {
		b.page.Close()
		b.page = nil
	}
	if b.context != nil {
		b.context.Close()
		b.context = nil
	}
	if b.pw != nil {
		b.pw.Stop()
		b.pw = nil
	}
	b.open = false
}

// ResetProfile closes the session, wipes the on-disk profile and relaunches
// with a clean identity.
func (b *Browser) ResetProfile() error {
	b.Close()

	if err := os.RemoveAll(b.profileDir); err != nil {
		log.Printf("Failed to remove profile %s: %v", b.profileDir, err)
	} else {
		log.Printf("Browser profile reset: %s", b.profileDir)
	}

	time.Sleep(2 * time.Second)
	return b.Open()
}

// Navigate loads a URL and settles for wait afterwards. Navigation errors
// surface to the caller so area loops can count consecutive failures.
func (b *Browser) Navigate(url string, wait time.Duration) error {
	if err := b.Open(); err != nil {
		return err
	}

	_, err := b.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(60000),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}

	b.Wait(wait)
	return nil
}

// Scroll nudges the page down to trigger lazy-loaded content.
func (b *Browser) Scroll(pixels int) {
	if b.page == nil {
		return
	}
	b.page.Evaluate(fmt.Sprintf(`window.scrollBy(0, %d)`, pixels))
}

func (b *Browser) Wait(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}

// PageSource returns the rendered HTML of the current page.
func (b *Browser) PageSource() (string, error) {
	if b.page == nil {
		return "", fmt.Errorf("browser not open")
	}
	return b.page.Content()
}

// humanDelay sleeps for a uniformly random duration within [min, max].
func humanDelay(min, max time.Duration) {
	if max <= min {
		time.Sleep(min)
		return
	}
	time.Sleep(min + time.Duration(rand.Int63n(int64(max-min))))
}

// kasadaActive reports the Kasada interstitial: the bootstrap page carries
// the KPSDK loader and almost no markup.
func kasadaActive(html string) bool {
	return strings.Contains(html, "KPSDK") && len(html) < 5000
}

// looksBlocked reports a page too small to hold real listing markup.
func looksBlocked(html string) bool {
	return len(html) < 10000
}

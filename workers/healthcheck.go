package workers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"rentradar/models"
	"rentradar/storage"
)

// HealthcheckWorker re-verifies active listings that a sweep has not seen
// for a while. A listing that 404s, 410s or redirects back to the portal's
// search page gets marked inactive so the next delisting pass can reap it.
type HealthcheckWorker struct {
	store      *storage.PostgresStore
	httpClient *http.Client
	triggerCh  chan struct{}
	logFunc    LogFunc

	staleFor  time.Duration
	batchSize int
}

func NewHealthcheckWorker(store *storage.PostgresStore, client *http.Client, staleFor time.Duration, batchSize int) *HealthcheckWorker {
	return &HealthcheckWorker{
		store:      store,
		httpClient: client,
		triggerCh:  make(chan struct{}, 1),
		logFunc:    NoOpLogger,
		staleFor:   staleFor,
		batchSize:  batchSize,
	}
}

func (w *HealthcheckWorker) SetLogger(fn LogFunc) {
	w.logFunc = fn
}

// Trigger causes the worker to run a batch immediately.
func (w *HealthcheckWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// Run processes batches on the given interval until the context ends.
func (w *HealthcheckWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Healthcheck worker stopping")
			return
		case <-ticker.C:
			w.ProcessBatch(ctx)
		case <-w.triggerCh:
			log.Println("Healthcheck worker triggered manually")
			w.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch checks one batch of stale active listings.
func (w *HealthcheckWorker) ProcessBatch(ctx context.Context) {
	refs, err := w.store.StaleActiveProperties(ctx, w.staleFor, w.batchSize)
	if err != nil {
		log.Printf("Healthcheck: query error: %v", err)
		return
	}
	if len(refs) == 0 {
		return
	}

	log.Printf("Healthcheck: checking %d stale listings", len(refs))

	var checked, delisted int
	for _, ref := range refs {
		if ctx.Err() != nil {
			return
		}
		if ref.URL == "" {
			continue
		}

		live, err := w.checkURL(ctx, ref.URL)
		checked++
		if err != nil {
			log.Printf("Healthcheck: error checking %s: %v", ref.URL, err)
			continue
		}

		if live {
			if err := w.store.MarkSeen(ctx, ref.ID); err != nil {
				log.Printf("Healthcheck: failed to touch %s: %v", ref.HouseID, err)
			}
		} else {
			log.Printf("Healthcheck: listing gone: %s", ref.URL)
			if err := w.store.MarkInactive(ctx, ref.ID); err != nil {
				log.Printf("Healthcheck: failed to mark inactive: %v", err)
			} else {
				delisted++
			}
		}

		time.Sleep(500 * time.Millisecond)
	}

	if delisted > 0 {
		w.logFunc(models.LogLevelInfo, "healthcheck",
			fmt.Sprintf("checked %d listings, %d marked inactive", checked, delisted))
	}
}

// checkURL does a HEAD request. The portals answer 404 or 410 for removed
// listings and redirect to a search page for expired ones.
func (w *HealthcheckWorker) checkURL(ctx context.Context, listingURL string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, listingURL, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound, http.StatusGone:
		return false, nil
	case http.StatusMovedPermanently, http.StatusFound:
		return !isDelistRedirect(resp.Header.Get("Location")), nil
	default:
		return true, nil
	}
}

// isDelistRedirect reports whether a redirect target is the portal's
// search or error page rather than a moved listing.
func isDelistRedirect(location string) bool {
	lower := strings.ToLower(location)
	for _, pattern := range []string{"/rent/", "/search", "notfound", "error", "expired"} {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

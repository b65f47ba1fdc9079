package workers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"rentradar/models"
	"rentradar/storage"
)

// maxThumbnailBytes caps a single download; portal thumbnails are a few
// hundred KB at most.
const maxThumbnailBytes = 10 * 1024 * 1024

// Uploader is the slice of the archive store the worker needs.
type Uploader interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
}

// ThumbnailWorker mirrors listing thumbnails into object storage. Portal
// image URLs expire; a mirrored copy keyed by content hash survives the
// listing.
type ThumbnailWorker struct {
	store      *storage.PostgresStore
	uploader   Uploader
	httpClient *http.Client
	triggerCh  chan struct{}
	logFunc    LogFunc
	batchSize  int
}

func NewThumbnailWorker(store *storage.PostgresStore, uploader Uploader, client *http.Client, batchSize int) *ThumbnailWorker {
	return &ThumbnailWorker{
		store:      store,
		uploader:   uploader,
		httpClient: client,
		triggerCh:  make(chan struct{}, 1),
		logFunc:    NoOpLogger,
		batchSize:  batchSize,
	}
}

func (w *ThumbnailWorker) SetLogger(fn LogFunc) {
	w.logFunc = fn
}

// Trigger causes the worker to run a batch immediately.
func (w *ThumbnailWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// Run processes batches on the given interval until the context ends.
func (w *ThumbnailWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Thumbnail worker stopping")
			return
		case <-ticker.C:
			w.ProcessBatch(ctx)
		case <-w.triggerCh:
			log.Println("Thumbnail worker triggered manually")
			w.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch mirrors one batch of pending thumbnails.
func (w *ThumbnailWorker) ProcessBatch(ctx context.Context) {
	pending, err := w.store.PendingThumbnails(ctx, w.batchSize)
	if err != nil {
		log.Printf("Thumbnails: query error: %v", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	log.Printf("Thumbnails: mirroring %d images", len(pending))

	var mirrored, failed int
	for _, item := range pending {
		if ctx.Err() != nil {
			return
		}

		key, hash, err := w.mirror(ctx, item.URL)
		if err != nil {
			log.Printf("Thumbnails: failed %s: %v", item.URL, err)
			failed++
			continue
		}

		if err := w.store.InsertPropertyImage(ctx, item.PropertyID, item.URL, key, hash); err != nil {
			log.Printf("Thumbnails: failed to record %s: %v", key, err)
			failed++
			continue
		}
		mirrored++

		time.Sleep(200 * time.Millisecond)
	}

	if mirrored > 0 || failed > 0 {
		w.logFunc(models.LogLevelInfo, "thumbnails",
			fmt.Sprintf("mirrored %d thumbnails, %d failed", mirrored, failed))
	}
}

// mirror downloads one image, hashes it and uploads it under a
// content-addressed key. Returns the key and hex hash.
func (w *ThumbnailWorker) mirror(ctx context.Context, imageURL string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "image/*,*/*")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("download status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxThumbnailBytes))
	if err != nil {
		return "", "", fmt.Errorf("read body: %w", err)
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	ext := guessExtension(imageURL, contentType)
	key := fmt.Sprintf("images/%s/%s%s", hash[:2], hash, ext)

	if err := w.uploader.Upload(ctx, key, bytes.NewReader(data), contentType); err != nil {
		return "", "", fmt.Errorf("upload: %w", err)
	}
	return key, hash, nil
}

// guessExtension picks an extension from the URL path, falling back to the
// response content type.
func guessExtension(url, contentType string) string {
	ext := strings.ToLower(path.Ext(url))
	if i := strings.IndexAny(ext, "?#"); i >= 0 {
		ext = ext[:i]
	}
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return ext
	}

	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

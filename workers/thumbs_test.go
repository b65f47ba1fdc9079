package workers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGuessExtension(t *testing.T) {
	cases := []struct {
		url         string
		contentType string
		want        string
	}{
		{"https://rent.domainstatic.com.au/800x600/a.jpg", "image/jpeg", ".jpg"},
		{"https://i2.au.reastatic.net/800x600/b.webp", "", ".webp"},
		{"https://rent.domainstatic.com.au/a.JPEG", "", ".jpeg"},
		{"https://rent.domainstatic.com.au/a.jpg?w=800", "image/png", ".jpg"},
		{"https://rent.domainstatic.com.au/image", "image/png", ".png"},
		{"https://rent.domainstatic.com.au/image", "image/gif", ".gif"},
		{"https://rent.domainstatic.com.au/image", "", ".jpg"},
		{"https://rent.domainstatic.com.au/a.svg", "text/html", ".jpg"},
	}
	for _, tc := range cases {
		if got := guessExtension(tc.url, tc.contentType); got != tc.want {
			t.Errorf("guessExtension(%q, %q) = %q, want %q", tc.url, tc.contentType, got, tc.want)
		}
	}
}

// memUploader records the last upload for assertions.
type memUploader struct {
	key         string
	contentType string
	data        []byte
}

func (m *memUploader) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	m.key = key
	m.contentType = contentType
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.data = b
	return nil
}

func TestMirror(t *testing.T) {
	payload := []byte("not really a jpeg but good enough")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(payload)
	}))
	defer srv.Close()

	uploader := &memUploader{}
	worker := NewThumbnailWorker(nil, uploader, srv.Client(), 10)

	key, hash, err := worker.mirror(context.Background(), srv.URL+"/thumb.jpg")
	if err != nil {
		t.Fatalf("mirror failed: %v", err)
	}

	sum := sha256.Sum256(payload)
	wantHash := hex.EncodeToString(sum[:])
	if hash != wantHash {
		t.Errorf("hash = %s, want %s", hash, wantHash)
	}
	wantKey := "images/" + wantHash[:2] + "/" + wantHash + ".jpg"
	if key != wantKey {
		t.Errorf("key = %s, want %s", key, wantKey)
	}
	if uploader.key != wantKey || uploader.contentType != "image/jpeg" {
		t.Errorf("upload saw key %s type %s", uploader.key, uploader.contentType)
	}
	if string(uploader.data) != string(payload) {
		t.Error("uploaded bytes differ from download")
	}
}

func TestMirrorRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	worker := NewThumbnailWorker(nil, &memUploader{}, srv.Client(), 10)
	if _, _, err := worker.mirror(context.Background(), srv.URL+"/gone.jpg"); err == nil {
		t.Fatal("expected error for 404 download")
	} else if !strings.Contains(err.Error(), "404") {
		t.Errorf("error = %v, want status in message", err)
	}
}

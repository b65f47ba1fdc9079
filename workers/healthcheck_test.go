package workers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIsDelistRedirect(t *testing.T) {
	cases := []struct {
		location string
		want     bool
	}{
		{"https://www.domain.com.au/rent/kensington-nsw-2033/", true},
		{"https://www.realestate.com.au/rent/in-kensington,+nsw+2033", true},
		{"https://www.domain.com.au/search?suburb=kensington", true},
		{"https://www.realestate.com.au/404-notfound", true},
		{"https://www.domain.com.au/listing-expired", true},
		{"https://www.domain.com.au/2-10-high-street-kensington-nsw-2033-17012345/", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := isDelistRedirect(tc.location); got != tc.want {
			t.Errorf("isDelistRedirect(%q) = %v, want %v", tc.location, got, tc.want)
		}
	}
}

func TestCheckURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/live", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("method = %s, want HEAD", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/delisted", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "https://www.domain.com.au/rent/kensington-nsw-2033/")
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "https://www.domain.com.au/2-10-high-street-kensington-nsw-2033-17012345/")
		w.WriteHeader(http.StatusMovedPermanently)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := &http.Client{
		Timeout: 5 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	worker := NewHealthcheckWorker(nil, client, time.Hour, 10)

	cases := []struct {
		path string
		want bool
	}{
		{"/live", true},
		{"/gone", false},
		{"/missing", false},
		{"/delisted", false},
		{"/moved", true},
	}
	for _, tc := range cases {
		got, err := worker.checkURL(context.Background(), srv.URL+tc.path)
		if err != nil {
			t.Fatalf("checkURL(%s) error: %v", tc.path, err)
		}
		if got != tc.want {
			t.Errorf("checkURL(%s) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

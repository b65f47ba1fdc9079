package scraper

import (
	"testing"
	"time"
)

func TestExtractWeeklyPrice(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"$750 per week", 750},
		{"$1,200 pw", 1200},
		{"$680/week", 680},
		{"$520 p.w.", 520},
		{"DEPOSIT TAKEN - $750 per week", 750},
		{"$450,000 for sale", 0},
		{"Contact agent", 0},
		{"", 0},
	}
	for _, tc := range cases {
		if got := extractWeeklyPrice(tc.text); got != tc.want {
			t.Errorf("extractWeeklyPrice(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}

func TestExtractPrice(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"$750 per week", 750},
		{"$ 1,100", 1100},
		{"no dollars here", 0},
	}
	for _, tc := range cases {
		if got := extractPrice(tc.text); got != tc.want {
			t.Errorf("extractPrice(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}

func TestParseAvailableDate(t *testing.T) {
	if got := ParseAvailableDate("Available Now"); got == nil {
		t.Fatal("Available Now should yield today")
	} else if time.Since(*got) > time.Minute {
		t.Errorf("Available Now yielded %v, want about now", got)
	}

	cases := []struct {
		text string
		want string
	}{
		{"10 February 2026", "2026-02-10"},
		{"Available from 10 February 2026", "2026-02-10"},
		{"15/02/2026", "2026-02-15"},
		{"15/2/26", "2026-02-15"},
		{"2026-02-15", "2026-02-15"},
		{"Monday, 2 February 2026", "2026-02-02"},
		{"2nd February 2026", "2026-02-02"},
	}
	for _, tc := range cases {
		got := ParseAvailableDate(tc.text)
		if got == nil {
			t.Errorf("ParseAvailableDate(%q) = nil, want %s", tc.text, tc.want)
			continue
		}
		if got.Format("2006-01-02") != tc.want {
			t.Errorf("ParseAvailableDate(%q) = %s, want %s", tc.text, got.Format("2006-01-02"), tc.want)
		}
	}

	for _, text := range []string{"", "soon", "TBA"} {
		if got := ParseAvailableDate(text); got != nil {
			t.Errorf("ParseAvailableDate(%q) = %v, want nil", text, got)
		}
	}
}

func TestIsValidImageURL(t *testing.T) {
	cases := []struct {
		url  string
		want bool
	}{
		{"https://rent.domainstatic.com.au/800x600/a.jpg", true},
		{"http://i2.au.reastatic.net/640x480/a/image.jpg", true},
		{"/relative/path.jpg", false},
		{"", false},
		{"https://a.jpg 800w, https://b.jpg", false},
		{"https://cdn.example.com/https://other.com/a.jpg", false},
	}
	for _, tc := range cases {
		if got := IsValidImageURL(tc.url); got != tc.want {
			t.Errorf("IsValidImageURL(%q) = %v, want %v", tc.url, got, tc.want)
		}
	}
}

package scraper

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	weeklyPriceRegexes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\$(\d{1,3}(?:,\d{3})?)\s*(?:per\s*week|pw|/week)`),
		regexp.MustCompile(`(?i)\$(\d{1,3}(?:,\d{3})?)\s*(?:p\.?w\.?)`),
	}
	anyPriceRegex  = regexp.MustCompile(`\$\s*(\d{1,3}(?:,\d{3})*)`)
	firstIntRegex  = regexp.MustCompile(`\d+`)
	ordinalRegex   = regexp.MustCompile(`(\d+)(?:st|nd|rd|th)`)
	httpCountRegex = regexp.MustCompile(`https?://`)
)

// extractWeeklyPrice finds an explicit per-week price in free text.
// Returns 0 when the text carries no weekly figure.
func extractWeeklyPrice(text string) int {
	for _, re := range weeklyPriceRegexes {
		if m := re.FindStringSubmatch(text); m != nil {
			n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
			if err == nil {
				return n
			}
		}
	}
	return 0
}

// extractPrice pulls the first dollar figure from an element's text. Used
// where the portal labels the element as a price, so no per-week suffix is
// required.
func extractPrice(text string) int {
	if m := anyPriceRegex.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
		if err == nil {
			return n
		}
	}
	return 0
}

// extractNumber returns the first integer embedded in text, or 0.
func extractNumber(text string) int {
	if m := firstIntRegex.FindString(text); m != "" {
		n, err := strconv.Atoi(m)
		if err == nil {
			return n
		}
	}
	return 0
}

var availableDateLayouts = []string{
	"Monday, 2 January 2006",
	"2 January 2006",
	"2/1/2006",
	"2/1/06",
	"2-1-2006",
	"2006-01-02",
}

// ParseAvailableDate interprets the availability strings both portals use.
// "Available Now" and "immediately" mean today; otherwise ordinal suffixes
// are stripped and the known portal date formats are tried in order.
func ParseAvailableDate(text string) *time.Time {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	lower := strings.ToLower(text)
	if strings.Contains(lower, "now") || strings.Contains(lower, "immediately") {
		now := time.Now()
		return &now
	}

	text = strings.TrimSpace(strings.TrimPrefix(text, "Available from"))
	text = strings.TrimSpace(strings.TrimPrefix(text, "Available"))
	text = ordinalRegex.ReplaceAllString(text, "$1")

	for _, layout := range availableDateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return &t
		}
	}
	return nil
}

// IsValidImageURL accepts absolute http(s) URLs that have not been mangled
// by srcset concatenation (a second embedded scheme means two URLs ran
// together).
func IsValidImageURL(url string) bool {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return false
	}
	return len(httpCountRegex.FindAllString(url, -1)) == 1
}

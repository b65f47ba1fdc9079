package identity

import (
	"hash/fnv"
	"regexp"
	"strconv"
	"strings"
)

var (
	multiSpaceRegex = regexp.MustCompile(`\s+`)
	trailingIDRegex = regexp.MustCompile(`-(\d{7,})$`)
)

// HouseID derives a stable fallback identifier for listings whose portal
// does not expose one. The hash is over the lowercased, despaced
// address+postcode, reduced to at most nine digits so it fits the same
// column as portal-native IDs.
func HouseID(address, postcode string) string {
	combined := strings.ReplaceAll(strings.ToLower(address+postcode), " ", "")
	h := fnv.New64a()
	h.Write([]byte(combined))
	return strconv.FormatUint(h.Sum64()%1_000_000_000, 10)
}

// FromURL pulls a portal-native listing ID from a detail URL of the form
// .../property-xyz-nsw-2033-1431xxxxx. Returns "" when the URL carries no
// trailing numeric ID of at least seven digits.
func FromURL(url string) string {
	url = strings.TrimRight(url, "/")
	if m := trailingIDRegex.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	return ""
}

// CleanAddress produces the slug form both portals use in URLs and the
// history cache: commas dropped, lowercased, slashes and spaces collapsed
// to hyphens.
func CleanAddress(address string) string {
	if address == "" {
		return ""
	}
	s := strings.ReplaceAll(address, ",", "")
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "/", "-")
	s = multiSpaceRegex.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	return strings.ReplaceAll(s, " ", "-")
}

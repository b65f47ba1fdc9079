package scraper

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"rentradar/identity"
	"rentradar/models"
)

const (
	reaBaseURL = "https://www.realestate.com.au"

	// Detail descriptions can run to pages; the export and database cap
	// them anyway, so cut early.
	reaMaxDescription = 1000
)

var (
	postcodeRegex   = regexp.MustCompile(`(\d{4})`)
	reaURLMetaRegex = regexp.MustCompile(`-(\d{4})-(\d+)$`)
	suburbStateRe   = regexp.MustCompile(`(?i)^(.+?)\s+(NSW|VIC|QLD|SA|WA|TAS|NT|ACT)\s*(\d{4})?$`)
	nonDigitRegex   = regexp.MustCompile(`[^\d]`)
	reaImageRegex   = regexp.MustCompile(`(?i)i2\.au\.reastatic\.net/\d+x\d+.*?/[a-f0-9]+/image\.jpg`)
	reaSizedImageRe = regexp.MustCompile(`\d+x\d+`)

	reaAvailableRegexes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)available\s+(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`),
		regexp.MustCompile(`(?i)available\s+from\s+(\d{1,2}\s+\w+\s+\d{4})`),
		regexp.MustCompile(`(?i)available\s+(now|immediately)`),
		regexp.MustCompile(`(?i)date\s+available[:\s]+(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`),
	}

	reaThumbExclude = []string{"logo", "agent", "agency", "brand", "profile", "avatar", "icon", "branding"}

	reaBedRegex  = regexp.MustCompile(`(?i)(\d+)\s*(?:bed|bedroom)`)
	reaBathRegex = regexp.MustCompile(`(?i)(\d+)\s*(?:bath|bathroom)`)
	reaParkRegex = regexp.MustCompile(`(?i)(\d+)\s*(?:car|parking|garage)`)
)

// RealEstateAdapter reads realestate.com.au. The portal sits behind Kasada,
// so the browser profile is wiped before every area.
type RealEstateAdapter struct{}

func (a *RealEstateAdapter) Source() models.Source { return models.SourceRealEstate }

func (a *RealEstateAdapter) ResetPerArea() bool { return true }

// SearchURL prefers the postcode embedded in an area slug; the portal's
// canonical search path is /rent/in-{postcode}/list-1.
func (a *RealEstateAdapter) SearchURL(area string) string {
	if m := postcodeRegex.FindStringSubmatch(area); m != nil {
		return fmt.Sprintf("%s/rent/in-%s/list-1", reaBaseURL, m[1])
	}
	return fmt.Sprintf("%s/rent/in-%s/list-1", reaBaseURL, area)
}

func (a *RealEstateAdapter) PageURL(searchURL string, page int) string {
	return strings.Replace(searchURL, "/list-1", fmt.Sprintf("/list-%d", page), 1)
}

func (a *RealEstateAdapter) ParseList(html string) ([]*models.Property, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}

	cards := doc.Find("article").FilterFunction(func(_ int, s *goquery.Selection) bool {
		cls, _ := s.Attr("class")
		return strings.Contains(cls, "residential-card")
	})
	if cards.Length() == 0 {
		cards = doc.Find(`article[data-testid="ResidentialCard"]`)
	}

	var props []*models.Property
	cards.Each(func(_ int, card *goquery.Selection) {
		if p := a.parseCard(card); p != nil {
			props = append(props, p)
		}
	})
	return props, nil
}

func (a *RealEstateAdapter) parseCard(card *goquery.Selection) *models.Property {
	price := extractWeeklyPrice(card.Text())
	if price == 0 {
		price = a.priceFromElements(card)
	}
	if price == 0 {
		return nil
	}

	addr := a.extractAddress(card)
	if addr == nil {
		return nil
	}

	bedrooms, bathrooms, parking := a.extractFeatures(card)
	propType, typeRaw := a.extractPropertyType(card)

	houseID := a.extractHouseID(card, addr.detailURL, addr.line1, addr.postcode)
	if houseID == "" {
		return nil
	}

	return &models.Property{
		HouseID:         houseID,
		Source:          models.SourceRealEstate,
		PricePerWeek:    price,
		AddressLine1:    addr.line1,
		AddressLine2:    addr.line2,
		BedroomCount:    bedrooms,
		BathroomCount:   bathrooms,
		ParkingCount:    parking,
		PropertyType:    propType,
		PropertyTypeRaw: typeRaw,
		URL:             addr.detailURL,
		ThumbnailURL:    a.extractThumbnail(card),
		ScrapedAt:       time.Now(),
	}
}

func (a *RealEstateAdapter) priceFromElements(card *goquery.Selection) int {
	price := 0
	card.Find("span,p").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		cls, _ := el.Attr("class")
		if !strings.Contains(strings.ToLower(cls), "price") {
			return true
		}
		if p := extractPrice(strings.TrimSpace(el.Text())); p > 0 {
			price = p
			return false
		}
		return true
	})
	return price
}

type reaAddress struct {
	line1     string
	line2     string
	suburb    string
	postcode  string
	detailURL string
}

// extractAddress reads the card's aria-label first, the most stable place
// the portal exposes the address, then falls back to address spans and
// property links.
func (a *RealEstateAdapter) extractAddress(card *goquery.Selection) *reaAddress {
	detailHref := ""
	card.Find("a[href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		href, _ := link.Attr("href")
		if strings.Contains(href, "/property-") {
			detailHref = href
			return false
		}
		return true
	})

	if label, ok := card.Attr("aria-label"); ok && strings.Contains(label, ",") {
		return a.parseAddress(label, detailHref)
	}

	found := (*reaAddress)(nil)
	card.Find("span").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		cls, _ := el.Attr("class")
		if !strings.Contains(strings.ToLower(cls), "address") {
			return true
		}
		found = a.parseAddress(strings.TrimSpace(el.Text()), detailHref)
		return false
	})
	if found != nil {
		return found
	}

	card.Find("a[href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		href, _ := link.Attr("href")
		if !strings.Contains(href, "/property-") {
			return true
		}
		text := strings.TrimSpace(link.Text())
		if text != "" && strings.Contains(text, ",") {
			found = a.parseAddress(text, href)
			return false
		}
		return true
	})
	return found
}

func (a *RealEstateAdapter) parseAddress(text, href string) *reaAddress {
	addr := &reaAddress{}

	if href != "" {
		if strings.HasPrefix(href, "/") {
			addr.detailURL = reaBaseURL + href
		} else {
			addr.detailURL = href
		}
		if m := reaURLMetaRegex.FindStringSubmatch(href); m != nil {
			addr.postcode = m[1]
		}
	}

	if idx := strings.Index(text, ","); idx >= 0 {
		addr.line1 = strings.TrimSpace(text[:idx])

		parts := strings.Split(text, ",")
		suburb := strings.TrimSpace(parts[len(parts)-1])
		addr.suburb = suburb
		addr.line2 = strings.ReplaceAll(strings.ToLower(suburb), " ", "-")

		if m := suburbStateRe.FindStringSubmatch(suburb); m != nil {
			addr.suburb = strings.TrimSpace(m[1])
			if m[3] != "" {
				addr.postcode = m[3]
			}
		}
	} else {
		addr.line1 = strings.TrimSpace(text)
	}

	if addr.line1 == "" {
		return nil
	}
	return addr
}

// extractFeatures reads the bed/bath/car counts from the digits beside the
// card's SVG icons, in that order, with a text-pattern fallback.
func (a *RealEstateAdapter) extractFeatures(card *goquery.Selection) (int, int, int) {
	var numbers []int
	card.Find("svg").Each(func(_ int, svg *goquery.Selection) {
		text := strings.TrimSpace(svg.Parent().Text())
		if text == "" {
			return
		}
		allDigits := true
		for _, r := range text {
			if r < '0' || r > '9' {
				allDigits = false
				break
			}
		}
		if allDigits {
			numbers = append(numbers, extractNumber(text))
		}
	})

	bedrooms, bathrooms, parking := 0, 0, 0
	if len(numbers) >= 1 {
		bedrooms = numbers[0]
	}
	if len(numbers) >= 2 {
		bathrooms = numbers[1]
	}
	if len(numbers) >= 3 {
		parking = numbers[2]
	}

	if bedrooms == 0 {
		text := card.Text()
		if m := reaBedRegex.FindStringSubmatch(text); m != nil {
			bedrooms = extractNumber(m[1])
		}
		if m := reaBathRegex.FindStringSubmatch(text); m != nil {
			bathrooms = extractNumber(m[1])
		}
		if m := reaParkRegex.FindStringSubmatch(text); m != nil {
			parking = extractNumber(m[1])
		}
	}
	return bedrooms, bathrooms, parking
}

var reaTypeKeywords = []struct {
	keyword string
	label   string
}{
	{"apartment", "Apartment"},
	{"unit", "Unit"},
	{"house", "House"},
	{"townhouse", "Townhouse"},
	{"studio", "Studio"},
	{"villa", "Villa"},
	{"duplex", "Duplex"},
}

func (a *RealEstateAdapter) extractPropertyType(card *goquery.Selection) (int, string) {
	text := strings.ToLower(card.Text())
	for _, entry := range reaTypeKeywords {
		if strings.Contains(text, entry.keyword) {
			return models.PropertyTypeCode(entry.label), entry.label
		}
	}
	return models.PropertyTypeCode(""), ""
}

// extractHouseID tries the card's data attributes, then the detail URL's
// trailing listing ID, then a hash of the address as a last resort.
func (a *RealEstateAdapter) extractHouseID(card *goquery.Selection, detailURL, address, postcode string) string {
	raw, ok := card.Attr("data-listing-id")
	if !ok {
		raw, _ = card.Attr("id")
	}
	if digits := nonDigitRegex.ReplaceAllString(raw, ""); digits != "" {
		return digits
	}

	if id := identity.FromURL(detailURL); id != "" {
		return id
	}

	if address != "" {
		return identity.HouseID(address, postcode)
	}
	return ""
}

func (a *RealEstateAdapter) extractThumbnail(card *goquery.Selection) string {
	img := card.Find("img").First()
	if img.Length() == 0 {
		return ""
	}

	src, ok := img.Attr("src")
	if !ok || src == "" {
		src, _ = img.Attr("data-src")
	}
	if src == "" {
		if srcset, ok := img.Attr("srcset"); ok {
			fields := strings.Fields(srcset)
			if len(fields) > 0 {
				src = fields[0]
			}
		}
	}
	if IsValidImageURL(src) {
		return src
	}
	return ""
}

func (a *RealEstateAdapter) HasNextPage(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	if doc.Find(`a[rel="next"]`).Length() > 0 {
		return true
	}

	hasNext := false
	doc.Find("a").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		cls, _ := link.Attr("class")
		if strings.Contains(strings.ToLower(cls), "next") {
			hasNext = true
			return false
		}
		return true
	})
	return hasNext
}

func (a *RealEstateAdapter) ParseDetail(p *models.Property, html string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("parse detail page: %w", err)
	}

	if desc := a.parseDescription(doc); desc != "" {
		p.DescriptionEN = desc
	}

	if date := a.parseAvailableDate(doc); date != nil {
		p.AvailableDate = date
	}

	if thumb := a.parseThumbnail(doc); thumb != "" {
		p.ThumbnailURL = thumb
	}

	now := time.Now()
	p.PublishedAt = &now
	return nil
}

func (a *RealEstateAdapter) parseDescription(doc *goquery.Document) string {
	description := ""

	if el := doc.Find(`div[data-testid="listing-details__description"]`).First(); el.Length() > 0 {
		description = collapseSpace(el.Text())
	}

	if len(description) <= 50 {
		doc.Find("div,p").EachWithBreak(func(_ int, el *goquery.Selection) bool {
			cls, _ := el.Attr("class")
			id, _ := el.Attr("id")
			if !strings.Contains(strings.ToLower(cls), "description") &&
				!strings.Contains(strings.ToLower(id), "description") {
				return true
			}
			if text := collapseSpace(el.Text()); len(text) > 50 {
				description = text
				return false
			}
			return true
		})
	}

	if len(description) <= 50 {
		doc.Find("article p").EachWithBreak(func(_ int, para *goquery.Selection) bool {
			if text := collapseSpace(para.Text()); len(text) > 100 {
				description = text
				return false
			}
			return true
		})
	}

	if runes := []rune(description); len(runes) > reaMaxDescription {
		description = string(runes[:reaMaxDescription]) + "..."
	}
	if len(description) <= 50 {
		return ""
	}
	return description
}

func (a *RealEstateAdapter) parseAvailableDate(doc *goquery.Document) *time.Time {
	pageText := strings.ToLower(doc.Text())
	for _, re := range reaAvailableRegexes {
		if m := re.FindStringSubmatch(pageText); m != nil {
			return ParseAvailableDate(m[1])
		}
	}
	return nil
}

// parseThumbnail collects every candidate image URL on the page and picks
// the first one matching the portal's listing-photo CDN shape, skipping
// branding assets.
func (a *RealEstateAdapter) parseThumbnail(doc *goquery.Document) string {
	var urls []string

	doc.Find("source[srcset]").Each(func(_ int, source *goquery.Selection) {
		srcset, _ := source.Attr("srcset")
		for _, part := range strings.Split(srcset, ",") {
			fields := strings.Fields(strings.TrimSpace(part))
			if len(fields) > 0 {
				urls = append(urls, fields[0])
			}
		}
	})

	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		for _, attr := range []string{"src", "data-src", "data-lazy-src"} {
			if url, ok := img.Attr(attr); ok && url != "" {
				urls = append(urls, url)
			}
		}
	})

	for _, url := range urls {
		if reaImageRegex.MatchString(url) && !containsAny(strings.ToLower(url), reaThumbExclude) {
			return url
		}
	}

	for _, url := range urls {
		if strings.Contains(url, "i2.au.reastatic.net") &&
			!containsAny(strings.ToLower(url), reaThumbExclude) &&
			reaSizedImageRe.MatchString(url) {
			return url
		}
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

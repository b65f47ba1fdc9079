package scraper

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"rentradar/identity"
	"rentradar/models"
)

const domainBaseURL = "https://www.domain.com.au"

// DomainAdapter reads domain.com.au. The portal renders listing cards with
// stable data-testid attributes, which makes it the better-behaved of the
// two sources.
type DomainAdapter struct{}

func (a *DomainAdapter) Source() models.Source { return models.SourceDomain }

func (a *DomainAdapter) ResetPerArea() bool { return false }

func (a *DomainAdapter) SearchURL(area string) string {
	return fmt.Sprintf("%s/rent/%s/?excludedeposittaken=1", domainBaseURL, area)
}

func (a *DomainAdapter) PageURL(searchURL string, page int) string {
	if page <= 1 {
		return searchURL
	}
	return fmt.Sprintf("%s&page=%d", searchURL, page)
}

func (a *DomainAdapter) ParseList(html string) ([]*models.Property, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}

	var props []*models.Property
	doc.Find(`li[data-testid^="listing-"]`).Each(func(_ int, card *goquery.Selection) {
		if p := a.parseCard(card); p != nil {
			props = append(props, p)
		}
	})
	return props, nil
}

func (a *DomainAdapter) parseCard(card *goquery.Selection) *models.Property {
	price := extractPrice(card.Find(`p[data-testid="listing-card-price"]`).Text())

	addressLine1 := identity.CleanAddress(card.Find(`span[data-testid="address-line1"]`).Text())

	addressLine2Raw := strings.TrimSpace(card.Find(`span[data-testid="address-line2"]`).Text())
	addressLine2 := strings.ReplaceAll(strings.ToLower(addressLine2Raw), " ", "-")

	features := card.Find(`span[data-testid="property-features-feature"]`)
	bedrooms := extractNumber(features.Eq(0).Text())
	bathrooms := extractNumber(features.Eq(1).Text())
	parking := extractNumber(features.Eq(2).Text())

	typeRaw := strings.TrimSpace(card.Find("span.css-693528").Text())

	houseID := ""
	if testID, ok := card.Attr("data-testid"); ok && strings.HasPrefix(testID, "listing-") {
		parts := strings.Split(testID, "-")
		houseID = parts[len(parts)-1]
	}

	detailURL := ""
	card.Find("a[href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		href, _ := link.Attr("href")
		if href == "" {
			return true
		}
		if strings.Contains(href, "/rent/") || (strings.Contains(href, "-") && strings.HasSuffix(href, "/")) {
			if strings.HasPrefix(href, "/") {
				detailURL = domainBaseURL + href
			} else {
				detailURL = href
			}
			return false
		}
		return true
	})

	thumbnail := ""
	if img := card.Find("img").First(); img.Length() > 0 {
		src, ok := img.Attr("src")
		if !ok || src == "" {
			src, _ = img.Attr("data-src")
		}
		if IsValidImageURL(src) {
			thumbnail = src
		}
	}

	// Price 0 means the card carries no weekly rent figure (auction or
	// "contact agent"); such rows never advance past the list stage.
	if houseID == "" || addressLine1 == "" || price == 0 {
		return nil
	}

	return &models.Property{
		HouseID:         houseID,
		Source:          models.SourceDomain,
		PricePerWeek:    price,
		AddressLine1:    addressLine1,
		AddressLine2:    addressLine2,
		BedroomCount:    bedrooms,
		BathroomCount:   bathrooms,
		ParkingCount:    parking,
		PropertyType:    models.PropertyTypeCode(typeRaw),
		PropertyTypeRaw: typeRaw,
		URL:             detailURL,
		ThumbnailURL:    thumbnail,
		ScrapedAt:       time.Now(),
	}
}

func (a *DomainAdapter) HasNextPage(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}

	hasNext := false
	doc.Find(`a[data-testid="paginator-navigation-button"]`).EachWithBreak(func(_ int, btn *goquery.Selection) bool {
		if strings.Contains(strings.ToLower(strings.TrimSpace(btn.Text())), "next") {
			hasNext = true
			return false
		}
		return true
	})
	return hasNext
}

func (a *DomainAdapter) ParseDetail(p *models.Property, html string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("parse detail page: %w", err)
	}

	p.DescriptionEN = a.parseDescription(doc)
	p.AvailableDate = a.parseAvailableDate(doc)

	if p.ThumbnailURL == "" {
		p.ThumbnailURL = a.parseThumbnail(doc)
	}

	now := time.Now()
	p.PublishedAt = &now
	return nil
}

func (a *DomainAdapter) parseDescription(doc *goquery.Document) string {
	container := doc.Find(`div[data-testid="listing-details__description"]`).First()
	if container.Length() == 0 {
		return ""
	}

	var sb strings.Builder
	if headline := container.Find(`h3[data-testid="listing-details__description-headline"]`).First(); headline.Length() > 0 {
		sb.WriteString(strings.TrimSpace(headline.Text()))
	}
	container.Find("p").Each(func(_ int, para *goquery.Selection) {
		text := strings.TrimSpace(para.Text())
		if text == "" {
			return
		}
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(text)
	})
	return strings.TrimSpace(sb.String())
}

func (a *DomainAdapter) parseAvailableDate(doc *goquery.Document) *time.Time {
	item := doc.Find(`ul[data-testid="listing-summary-strip"] li`).First()
	if item.Length() == 0 {
		return nil
	}

	text := strings.TrimSpace(item.Text())
	if strings.Contains(text, "Available Now") {
		now := time.Now()
		return &now
	}
	if strings.Contains(text, "Available from") {
		if strong := item.Find("strong").First(); strong.Length() > 0 {
			return ParseAvailableDate(strings.TrimSpace(strong.Text()))
		}
	}
	return nil
}

var domainThumbExcludeAlt = []string{"logo", "avatar", "agent", "powered by"}
var domainThumbExcludeSrc = []string{"logo", "avatar", "icon", "insight"}

func (a *DomainAdapter) parseThumbnail(doc *goquery.Document) string {
	// Prefer images the portal itself labels as listing photos.
	found := ""
	doc.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src, _ := img.Attr("src")
		alt, _ := img.Attr("alt")
		alt = strings.ToLower(alt)

		if strings.Contains(alt, "image") && strings.Contains(src, "domainstatic.com.au") &&
			IsValidImageURL(src) && !containsAny(alt, domainThumbExcludeAlt) {
			found = src
			return false
		}
		return true
	})
	if found != "" {
		return found
	}

	if img := doc.Find("picture img").First(); img.Length() > 0 {
		src, ok := img.Attr("src")
		if !ok || src == "" {
			src, _ = img.Attr("data-src")
		}
		if src != "" {
			if !strings.HasPrefix(src, "http") {
				src = domainBaseURL + src
			}
			if IsValidImageURL(src) {
				return src
			}
		}
	}

	doc.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src, _ := img.Attr("src")
		alt, _ := img.Attr("alt")

		if strings.Contains(src, "domainstatic.com.au") && IsValidImageURL(src) &&
			!containsAny(strings.ToLower(src), domainThumbExcludeSrc) &&
			!containsAny(strings.ToLower(alt), domainThumbExcludeAlt) {
			found = src
			return false
		}
		return true
	})
	return found
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

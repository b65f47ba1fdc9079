package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"rentradar/models"
)

// Columns is the canonical export schema. Order is part of the public
// contract; the front end and the history cache both key on these names.
var Columns = []string{
	"pricePerWeek",
	"addressLine1",
	"addressLine2",
	"bedroomCount",
	"bathroomCount",
	"parkingCount",
	"propertyType",
	"houseId",
	"url",
	"description_en",
	"description_cn",
	"keywords",
	"average_score",
	"available_date",
	"published_at",
	"thumbnail_url",
	"source",
	"commuteTime_UNSW",
	"commuteTime_USYD",
	"commuteTime_UTS",
}

const (
	dateLayout = "2006-01-02"
	bom        = "\xef\xbb\xbf"
)

// ToRow serialises a property in canonical column order.
func ToRow(p *models.Property) []string {
	row := make([]string, 0, len(Columns))
	for _, col := range Columns {
		row = append(row, fieldValue(p, col))
	}
	return row
}

func fieldValue(p *models.Property, col string) string {
	switch col {
	case "pricePerWeek":
		return strconv.Itoa(p.PricePerWeek)
	case "addressLine1":
		return p.AddressLine1
	case "addressLine2":
		return p.AddressLine2
	case "bedroomCount":
		return strconv.Itoa(p.BedroomCount)
	case "bathroomCount":
		return strconv.Itoa(p.BathroomCount)
	case "parkingCount":
		return strconv.Itoa(p.ParkingCount)
	case "propertyType":
		return strconv.Itoa(p.PropertyType)
	case "houseId":
		return p.HouseID
	case "url":
		return p.URL
	case "description_en":
		return p.DescriptionEN
	case "description_cn":
		return p.DescriptionCN
	case "keywords":
		return p.Keywords
	case "average_score":
		if p.AverageScore == 0 {
			return ""
		}
		return strconv.FormatFloat(p.AverageScore, 'f', 1, 64)
	case "available_date":
		if p.AvailableDate == nil {
			return ""
		}
		return p.AvailableDate.Format(dateLayout)
	case "published_at":
		if p.PublishedAt == nil {
			return ""
		}
		return p.PublishedAt.Format(time.RFC3339)
	case "thumbnail_url":
		return p.ThumbnailURL
	case "source":
		return string(p.Source)
	}
	if uni, ok := strings.CutPrefix(col, "commuteTime_"); ok {
		if minutes, found := p.CommuteFor(uni); found && minutes > 0 {
			return strconv.Itoa(minutes)
		}
		return ""
	}
	return ""
}

// FromRow deserialises a row against a header. Unknown columns are
// ignored; missing columns leave field defaults in place, so FromRow and
// ToRow are inverses on the canonical schema.
func FromRow(header, row []string) *models.Property {
	p := &models.Property{Source: models.SourceDomain}
	for i, col := range header {
		if i >= len(row) {
			break
		}
		val := strings.TrimSpace(row[i])
		if val == "" {
			continue
		}
		switch col {
		case "pricePerWeek":
			p.PricePerWeek = atoi(val)
		case "addressLine1":
			p.AddressLine1 = val
		case "addressLine2":
			p.AddressLine2 = val
		case "bedroomCount":
			p.BedroomCount = atoi(val)
		case "bathroomCount":
			p.BathroomCount = atoi(val)
		case "parkingCount":
			p.ParkingCount = atoi(val)
		case "propertyType":
			p.PropertyType = atoi(val)
		case "houseId":
			p.HouseID = val
		case "url":
			p.URL = val
		case "description_en":
			p.DescriptionEN = val
		case "description_cn":
			p.DescriptionCN = val
		case "keywords":
			p.Keywords = val
		case "average_score":
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				p.AverageScore = f
			}
		case "available_date":
			if t, err := time.Parse(dateLayout, val); err == nil {
				p.AvailableDate = &t
			}
		case "published_at":
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				p.PublishedAt = &t
			}
		case "thumbnail_url":
			p.ThumbnailURL = val
		case "source":
			p.Source = models.ParseSource(val)
		default:
			if uni, ok := strings.CutPrefix(col, "commuteTime_"); ok {
				if minutes := atoi(val); minutes > 0 {
					p.SetCommute(uni, minutes)
				}
			}
		}
	}
	return p
}

func atoi(s string) int {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

// Write writes properties to path with the canonical schema and a UTF-8
// BOM so spreadsheet tools pick up the encoding.
func Write(path string, props []*models.Property) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteString(bom); err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(Columns); err != nil {
		return err
	}
	for _, p := range props {
		if err := w.Write(ToRow(p)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// Read loads a CSV written by Write (or a hand-edited one; extra columns
// are tolerated).
func Read(path string) ([]*models.Property, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], bom)
	}

	props := make([]*models.Property, 0, len(records)-1)
	for _, row := range records[1:] {
		props = append(props, FromRow(header, row))
	}
	return props, nil
}

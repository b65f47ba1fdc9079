package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rentradar/models"
)

const stampLayout = "060102"

// ExportPath names the canonical daily export for a university.
func ExportPath(dir, university string, t time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_rentdata_%s.csv", university, t.Format(stampLayout)))
}

// MergedListPath names the post-LIST merged checkpoint.
func MergedListPath(dir, university string, source models.Source, t time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_list_merged_%s_%s_%s.csv",
		university, source, t.Format(stampLayout), t.Format("1504")))
}

// ListPartPath names one chunked list segment.
func ListPartPath(dir, university string, source models.Source, t time.Time, part int) string {
	return filepath.Join(dir, fmt.Sprintf("%s_rentdata_list_%s_%s_part%d.csv",
		university, source, t.Format(stampLayout), part))
}

// CheckpointPath names the best-effort dump written when a stage fails.
func CheckpointPath(dir, university string, t time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_checkpoint_%s_%s.csv",
		university, t.Format(stampLayout), t.Format("150405")))
}

// LatestExport finds the newest canonical export for a university,
// skipping list-segment files. Returns "" when none exists.
func LatestExport(dir, university string) (string, time.Time, error) {
	pattern := filepath.Join(dir, university+"_rentdata_*.csv")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", time.Time{}, err
	}

	var newest string
	var newestMod time.Time
	for _, m := range matches {
		if strings.Contains(filepath.Base(m), "_list_") {
			continue
		}
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		if info.ModTime().After(newestMod) {
			newest = m
			newestMod = info.ModTime()
		}
	}
	return newest, newestMod, nil
}

// WriteListParts dumps list-stage rows in chunks so progress is visible
// while a long sweep runs. Returns the number of parts written.
func WriteListParts(dir, university string, source models.Source, props []*models.Property, chunk int) (int, error) {
	if len(props) == 0 {
		return 0, nil
	}
	if chunk <= 0 {
		chunk = len(props)
	}

	now := time.Now()
	parts := 0
	for start := 0; start < len(props); start += chunk {
		end := start + chunk
		if end > len(props) {
			end = len(props)
		}
		path := ListPartPath(dir, university, source, now, parts+1)
		if err := Write(path, props[start:end]); err != nil {
			return parts, err
		}
		parts++
	}
	return parts, nil
}

// WriteMergedList writes the combined list checkpoint annotated with a
// has_history_detail column so an operator can see how much of the sweep
// the cache will cover.
func WriteMergedList(path string, props []*models.Property) error {
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
	header := append(append([]string{}, Columns...), "has_history_detail")
	if err := w.Write(header); err != nil {
		return err
	}
	for _, p := range props {
		flag := "No"
		if p.HasDetail() {
			flag = "Yes"
		}
		if err := w.Write(append(ToRow(p), flag)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

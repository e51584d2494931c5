package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"boardhub/pkg/models"
)

// artifactHeader is the fixed column order of the dataset artifact. Field
// names are stable across runs; changing them breaks every consumer.
var artifactHeader = []string{
	"id", "source", "source_id", "name", "year", "category",
	"players_min", "players_max", "time_min", "time_max",
	"age_plus", "weight", "rating", "url", "image_url",
	"gallery_images", "alternate_names", "designers", "artists", "publishers",
	"description",
}

// WriteArtifact sorts records by id ascending — the only ordering the
// exporter applies — and writes the dataset to path as a full-replacement
// artifact: a temp file in the target directory, atomically renamed into
// place. A concurrently-reading server never observes a partial dataset,
// and a failed run leaves the previous artifact untouched.
func WriteArtifact(path string, records []models.ExportRecord) error {
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("export dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".dataset-*.csv")
	if err != nil {
		return fmt.Errorf("export temp file: %w", err)
	}
	defer func() {
		if tmp != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	w := csv.NewWriter(tmp)
	if err := w.Write(artifactHeader); err != nil {
		return fmt.Errorf("export header: %w", err)
	}
	for _, rec := range records {
		if err := w.Write(encodeRow(rec)); err != nil {
			return fmt.Errorf("export row id=%d: %w", rec.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("export flush: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("export sync: %w", err)
	}
	name := tmp.Name()
	if err := tmp.Close(); err != nil {
		tmp = nil
		_ = os.Remove(name)
		return fmt.Errorf("export close: %w", err)
	}
	tmp = nil

	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("export swap: %w", err)
	}
	return nil
}

// ReadArtifact loads a previously exported dataset. Used by the import
// command and by --resume to replay a prior run's output.
func ReadArtifact(path string) ([]models.ExportRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("artifact %s: empty file", path)
	}
	if len(rows[0]) != len(artifactHeader) || rows[0][0] != "id" {
		return nil, fmt.Errorf("artifact %s: unexpected header", path)
	}

	out := make([]models.ExportRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		id, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("artifact %s row %d: bad id %q", path, i+2, row[0])
		}
		rec := models.ExportRecord{
			ID: id,
			CanonicalRecord: models.CanonicalRecord{
				Source:      row[1],
				SourceID:    row[2],
				Name:        row[3],
				Year:        parseIntToken(row[4]),
				Category:    row[5],
				PlayersMin:  parseIntToken(row[6]),
				PlayersMax:  parseIntToken(row[7]),
				TimeMin:     parseIntToken(row[8]),
				TimeMax:     parseIntToken(row[9]),
				AgePlus:     parseIntToken(row[10]),
				Weight:      parseFloatToken(row[11]),
				Rating:      parseFloatToken(row[12]),
				URL:         row[13],
				ImageURL:    row[14],
				Description: row[20],

				GalleryImages:  normalizeList([]string{row[15]}),
				AlternateNames: normalizeList([]string{row[16]}),
				Designers:      normalizeList([]string{row[17]}),
				Artists:        normalizeList([]string{row[18]}),
				Publishers:     normalizeList([]string{row[19]}),
			},
		}
		out = append(out, rec)
	}
	return out, nil
}

func encodeRow(rec models.ExportRecord) []string {
	return []string{
		strconv.FormatInt(rec.ID, 10),
		rec.Source,
		rec.SourceID,
		rec.Name,
		encodeInt(rec.Year),
		rec.Category,
		encodeInt(rec.PlayersMin),
		encodeInt(rec.PlayersMax),
		encodeInt(rec.TimeMin),
		encodeInt(rec.TimeMax),
		encodeInt(rec.AgePlus),
		encodeFloat(rec.Weight),
		encodeFloat(rec.Rating),
		rec.URL,
		rec.ImageURL,
		strings.Join(rec.GalleryImages, " | "),
		strings.Join(rec.AlternateNames, " | "),
		strings.Join(rec.Designers, " | "),
		strings.Join(rec.Artists, " | "),
		strings.Join(rec.Publishers, " | "),
		rec.Description,
	}
}

func encodeInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func encodeFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

package models

// GameRow is the serving-side shape of one board game, as stored in the
// games table and returned by the API. It mirrors ExportRecord but uses
// plain values: the backend trusts the dataset as given and never reasons
// about absence.
type GameRow struct {
	ID             int64    `json:"id"`
	Name           string   `json:"name"`
	Year           int      `json:"year,omitempty"`
	Category       string   `json:"category,omitempty"`
	Source         string   `json:"source,omitempty"`
	SourceID       string   `json:"source_id,omitempty"`
	PlayersMin     int      `json:"players_min,omitempty"`
	PlayersMax     int      `json:"players_max,omitempty"`
	TimeMin        int      `json:"time_min,omitempty"`
	TimeMax        int      `json:"time_max,omitempty"`
	AgePlus        int      `json:"age_plus,omitempty"`
	Weight         float64  `json:"weight,omitempty"`
	Rating         float64  `json:"rating,omitempty"`
	Description    string   `json:"description,omitempty"`
	URL            string   `json:"url,omitempty"`
	ImageURL       string   `json:"image_url,omitempty"`
	GalleryImages  []string `json:"gallery_images,omitempty"`
	AlternateNames []string `json:"alternate_names,omitempty"`
	Designers      []string `json:"designers,omitempty"`
	Artists        []string `json:"artists,omitempty"`
	Publishers     []string `json:"publishers,omitempty"`
}

// ExportFromRow lifts a stored row back into the dataset shape. Zero-valued
// numerics become absence again, matching how they were stored.
func ExportFromRow(row GameRow) ExportRecord {
	rec := ExportRecord{
		ID: row.ID,
		CanonicalRecord: CanonicalRecord{
			Source:         row.Source,
			SourceID:       row.SourceID,
			Name:           row.Name,
			Category:       row.Category,
			Description:    row.Description,
			URL:            row.URL,
			ImageURL:       row.ImageURL,
			GalleryImages:  row.GalleryImages,
			AlternateNames: row.AlternateNames,
			Designers:      row.Designers,
			Artists:        row.Artists,
			Publishers:     row.Publishers,
		},
	}
	rec.Year = optInt(row.Year)
	rec.PlayersMin = optInt(row.PlayersMin)
	rec.PlayersMax = optInt(row.PlayersMax)
	rec.TimeMin = optInt(row.TimeMin)
	rec.TimeMax = optInt(row.TimeMax)
	rec.AgePlus = optInt(row.AgePlus)
	rec.Weight = optFloat(row.Weight)
	rec.Rating = optFloat(row.Rating)
	return rec
}

func optInt(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}

func optFloat(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}

// RowFromExport flattens an ExportRecord into the serving shape.
func RowFromExport(rec ExportRecord) GameRow {
	row := GameRow{
		ID:             rec.ID,
		Name:           rec.Name,
		Category:       rec.Category,
		Source:         rec.Source,
		SourceID:       rec.SourceID,
		Description:    rec.Description,
		URL:            rec.URL,
		ImageURL:       rec.ImageURL,
		GalleryImages:  rec.GalleryImages,
		AlternateNames: rec.AlternateNames,
		Designers:      rec.Designers,
		Artists:        rec.Artists,
		Publishers:     rec.Publishers,
	}
	if rec.Year != nil {
		row.Year = *rec.Year
	}
	if rec.PlayersMin != nil {
		row.PlayersMin = *rec.PlayersMin
	}
	if rec.PlayersMax != nil {
		row.PlayersMax = *rec.PlayersMax
	}
	if rec.TimeMin != nil {
		row.TimeMin = *rec.TimeMin
	}
	if rec.TimeMax != nil {
		row.TimeMax = *rec.TimeMax
	}
	if rec.AgePlus != nil {
		row.AgePlus = *rec.AgePlus
	}
	if rec.Weight != nil {
		row.Weight = *rec.Weight
	}
	if rec.Rating != nil {
		row.Rating = *rec.Rating
	}
	return row
}

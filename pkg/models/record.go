package models

// RawRecord is a single observation of a board game as a source extracted
// it, before any normalization. Numeric fields stay strings here: sources
// hand over whatever token they saw ("1995", "null", "-", "") and the
// pipeline decides what counts as a value.
type RawRecord struct {
	Source   string `json:"source"`
	SourceID string `json:"source_id,omitempty"`
	Name     string `json:"name"`
	Year     string `json:"year,omitempty"`
	Category string `json:"category,omitempty"`
	URL      string `json:"url,omitempty"`
	ImageURL string `json:"image_url,omitempty"`

	PlayersMin string `json:"players_min,omitempty"`
	PlayersMax string `json:"players_max,omitempty"`
	TimeMin    string `json:"time_min,omitempty"`
	TimeMax    string `json:"time_max,omitempty"`
	AgePlus    string `json:"age_plus,omitempty"`
	Weight     string `json:"weight,omitempty"`
	Rating     string `json:"rating,omitempty"`

	Description string `json:"description,omitempty"`

	// List fields may arrive either as already-split slices or as a single
	// pipe-delimited element ("a | b | c"); the canonicalizer handles both.
	GalleryImages  []string `json:"gallery_images,omitempty"`
	AlternateNames []string `json:"alternate_names,omitempty"`
	Designers      []string `json:"designers,omitempty"`
	Artists        []string `json:"artists,omitempty"`
	Publishers     []string `json:"publishers,omitempty"`
}

// CanonicalRecord is a RawRecord after normalization: category casing
// unified, list fields split and trimmed, numeric tokens parsed (absent
// values are nil, never zero), and min/max ranges structurally sound.
type CanonicalRecord struct {
	Source   string
	SourceID string
	Name     string
	Year     *int
	Category string
	URL      string
	ImageURL string

	PlayersMin *int
	PlayersMax *int
	TimeMin    *int
	TimeMax    *int
	AgePlus    *int
	Weight     *float64
	Rating     *float64

	Description string

	GalleryImages  []string
	AlternateNames []string
	Designers      []string
	Artists        []string
	Publishers     []string
}

// ExportRecord is the final unit written to the dataset artifact: a merged
// CanonicalRecord plus its assigned stable id.
type ExportRecord struct {
	ID int64
	CanonicalRecord
}

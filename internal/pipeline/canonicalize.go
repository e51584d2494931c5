package pipeline

import (
	"strconv"
	"strings"

	"boardhub/pkg/models"
)

// categoryCasing is the fixed vocabulary for category names. Keys are the
// lowercased raw value; unknown categories pass through trimmed but
// otherwise untouched — the canonicalizer never invents categories.
var categoryCasing = map[string]string{
	"abstract":          "Abstract",
	"abstract strategy": "Abstract Strategy",
	"adventure":         "Adventure",
	"bluffing":          "Bluffing",
	"card game":         "Card Game",
	"children's game":   "Children's Game",
	"deduction":         "Deduction",
	"dice":              "Dice",
	"economic":          "Economic",
	"fantasy":           "Fantasy",
	"horror":            "Horror",
	"memory":            "Memory",
	"miniatures":        "Miniatures",
	"negotiation":       "Negotiation",
	"party game":        "Party Game",
	"puzzle":            "Puzzle",
	"racing":            "Racing",
	"science fiction":   "Science Fiction",
	"trivia":            "Trivia",
	"war game":          "Wargame",
	"wargame":           "Wargame",
	"word game":         "Word Game",
}

// Canonicalize normalizes one raw observation. It returns ErrInvalidRecord
// when the name is empty or whitespace-only after trimming; every other
// malformed field degrades to absence rather than failing the record.
func Canonicalize(raw models.RawRecord) (models.CanonicalRecord, error) {
	name := collapseSpaces(raw.Name)
	if name == "" {
		return models.CanonicalRecord{}, ErrInvalidRecord
	}

	rec := models.CanonicalRecord{
		Source:      strings.TrimSpace(raw.Source),
		SourceID:    strings.TrimSpace(raw.SourceID),
		Name:        name,
		Category:    canonicalCategory(raw.Category),
		URL:         strings.TrimSpace(raw.URL),
		ImageURL:    strings.TrimSpace(raw.ImageURL),
		Description: collapseSpaces(raw.Description),

		Year:    parseIntToken(raw.Year),
		AgePlus: parseIntToken(raw.AgePlus),
		Weight:  parseFloatToken(raw.Weight),
		Rating:  parseFloatToken(raw.Rating),

		GalleryImages:  normalizeList(raw.GalleryImages),
		AlternateNames: normalizeList(raw.AlternateNames),
		Designers:      normalizeList(raw.Designers),
		Artists:        normalizeList(raw.Artists),
		Publishers:     normalizeList(raw.Publishers),
	}

	rec.PlayersMin, rec.PlayersMax = repairRange(parseIntToken(raw.PlayersMin), parseIntToken(raw.PlayersMax))
	rec.TimeMin, rec.TimeMax = repairRange(parseIntToken(raw.TimeMin), parseIntToken(raw.TimeMax))

	return rec, nil
}

func canonicalCategory(s string) string {
	s = collapseSpaces(s)
	if fixed, ok := categoryCasing[strings.ToLower(s)]; ok {
		return fixed
	}
	return s
}

// normalizeList accepts either already-split elements or pipe-delimited
// strings ("a | b | c") and returns the ordered sequence of trimmed,
// whitespace-collapsed, non-empty entries.
func normalizeList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, "|") {
			part = collapseSpaces(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// parseIntToken maps blank, "null", "-", non-parseable, and negative
// tokens to absence. Missing data stays missing; it is never clamped to
// zero.
func parseIntToken(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") || s == "-" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

func parseFloatToken(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") || s == "-" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return nil
	}
	return &f
}

// repairRange makes a min/max pair structurally sound: a one-sided range
// is mirrored, an inverted range is swapped. Downstream consumers always
// see min <= max or both sides absent.
func repairRange(min, max *int) (*int, *int) {
	switch {
	case min == nil && max == nil:
		return nil, nil
	case min == nil:
		v := *max
		return &v, max
	case max == nil:
		v := *min
		return min, &v
	case *min > *max:
		return max, min
	default:
		return min, max
	}
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

package pipeline

import (
	"log"

	"boardhub/pkg/models"
)

// Dedupe groups records by canonical key and merges each group into one
// record. Keys keep their first-observed position; within a group the
// later observation wins per field (list fields are unioned instead).
// Returns the merged set and the number of conflicting-identity merges.
func Dedupe(records []models.CanonicalRecord) ([]models.CanonicalRecord, int) {
	byKey := make(map[CanonicalKey]models.CanonicalRecord, len(records))
	order := make([]CanonicalKey, 0, len(records))
	conflicts := 0

	for _, rec := range records {
		key := KeyOf(rec)
		base, seen := byKey[key]
		if !seen {
			byKey[key] = rec
			order = append(order, key)
			continue
		}

		// Same key with a wholesale different title means the sources
		// disagree about identity. Keep the later record, never abort:
		// one ambiguous game must not halt the rest of the batch.
		if Slugify(base.Name) != Slugify(rec.Name) {
			conflicts++
			log.Printf("[pipeline] conflicting identity key=%s: keeping %q over %q", key, rec.Name, base.Name)
		}

		byKey[key] = merge(base, rec)
	}

	out := make([]models.CanonicalRecord, 0, len(order))
	for _, key := range order {
		out = append(out, byKey[key])
	}
	return out, conflicts
}

// merge resolves two observations of the same game: the later one wins any
// field it carries a value for, list fields are unioned preserving
// first-seen order with exact duplicates removed.
func merge(base, incoming models.CanonicalRecord) models.CanonicalRecord {
	base.Source = pickString(base.Source, incoming.Source)
	base.SourceID = pickString(base.SourceID, incoming.SourceID)
	base.Name = pickString(base.Name, incoming.Name)
	base.Category = pickString(base.Category, incoming.Category)
	base.URL = pickString(base.URL, incoming.URL)
	base.ImageURL = pickString(base.ImageURL, incoming.ImageURL)
	base.Description = pickString(base.Description, incoming.Description)

	base.Year = pickInt(base.Year, incoming.Year)
	base.PlayersMin = pickInt(base.PlayersMin, incoming.PlayersMin)
	base.PlayersMax = pickInt(base.PlayersMax, incoming.PlayersMax)
	base.TimeMin = pickInt(base.TimeMin, incoming.TimeMin)
	base.TimeMax = pickInt(base.TimeMax, incoming.TimeMax)
	base.AgePlus = pickInt(base.AgePlus, incoming.AgePlus)
	base.Weight = pickFloat(base.Weight, incoming.Weight)
	base.Rating = pickFloat(base.Rating, incoming.Rating)

	base.GalleryImages = unionLists(base.GalleryImages, incoming.GalleryImages)
	base.AlternateNames = unionLists(base.AlternateNames, incoming.AlternateNames)
	base.Designers = unionLists(base.Designers, incoming.Designers)
	base.Artists = unionLists(base.Artists, incoming.Artists)
	base.Publishers = unionLists(base.Publishers, incoming.Publishers)

	return base
}

func pickString(prev, next string) string {
	if next != "" {
		return next
	}
	return prev
}

func pickInt(prev, next *int) *int {
	if next != nil {
		return next
	}
	return prev
}

func pickFloat(prev, next *float64) *float64 {
	if next != nil {
		return next
	}
	return prev
}

func unionLists(a, b []string) []string {
	if len(a) == 0 {
		return b
	}
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, v := range a {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	for _, v := range b {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

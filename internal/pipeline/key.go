package pipeline

import (
	"strconv"

	"boardhub/pkg/models"
)

// CanonicalKey identifies the same logical game across observations. The
// preferred form is the source's native id; when a source exposes none the
// key falls back to slug(name)+year, deliberately ignoring the source so
// that the same game fetched from two id-less origins still converges.
type CanonicalKey string

func KeyOf(rec models.CanonicalRecord) CanonicalKey {
	if rec.SourceID != "" {
		return CanonicalKey("src|" + rec.Source + "|" + rec.SourceID)
	}
	year := ""
	if rec.Year != nil {
		year = strconv.Itoa(*rec.Year)
	}
	return CanonicalKey("slug|" + Slugify(rec.Name) + "|" + year)
}

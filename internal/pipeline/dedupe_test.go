package pipeline

import (
	"reflect"
	"testing"

	"boardhub/pkg/models"
)

func mustCanonical(t *testing.T, source, sourceID, name, year string) models.CanonicalRecord {
	t.Helper()
	rec, err := Canonicalize(models.RawRecord{
		Source:   source,
		SourceID: sourceID,
		Name:     name,
		Year:     year,
	})
	if err != nil {
		t.Fatalf("canonicalize %q: %v", name, err)
	}
	return rec
}

func TestDedupeSizeOneGroupPassesThrough(t *testing.T) {
	in := []models.CanonicalRecord{mustCanonical(t, "bgg", "1", "Catan", "1995")}
	out, conflicts := Dedupe(in)
	if conflicts != 0 {
		t.Fatalf("conflicts = %d", conflicts)
	}
	if len(out) != 1 || !reflect.DeepEqual(out[0], in[0]) {
		t.Fatalf("record mutated on passthrough: %+v", out)
	}
}

func TestDedupeLaterScalarWins(t *testing.T) {
	a := mustCanonical(t, "bgg", "42", "Alhambra", "2003")
	a.Category = "Tile Placement"
	b := mustCanonical(t, "bgg", "42", "Alhambra", "2003")
	b.Category = "Card Game"

	out, conflicts := Dedupe([]models.CanonicalRecord{a, b})
	if conflicts != 0 {
		t.Fatalf("conflicts = %d", conflicts)
	}
	if len(out) != 1 {
		t.Fatalf("got %d records", len(out))
	}
	if out[0].Category != "Card Game" {
		t.Fatalf("category = %q, want later observation", out[0].Category)
	}
}

func TestDedupeEarlierValueSurvivesAbsence(t *testing.T) {
	a := mustCanonical(t, "bgg", "42", "Alhambra", "2003")
	a.Designers = []string{"Dirk Henn"}
	a.Rating = floatp(7.4)
	b := mustCanonical(t, "bgg", "42", "Alhambra", "")
	// b has no designers, no rating, no year

	out, _ := Dedupe([]models.CanonicalRecord{a, b})
	if len(out) != 1 {
		t.Fatalf("got %d records", len(out))
	}
	merged := out[0]
	if !reflect.DeepEqual(merged.Designers, []string{"Dirk Henn"}) {
		t.Fatalf("designers lost: %v", merged.Designers)
	}
	if merged.Rating == nil || *merged.Rating != 7.4 {
		t.Fatalf("rating lost: %v", merged.Rating)
	}
	if merged.Year == nil || *merged.Year != 2003 {
		t.Fatalf("year lost: %v", merged.Year)
	}
}

func TestDedupeUnionsListsFirstSeenOrder(t *testing.T) {
	a := mustCanonical(t, "bgg", "42", "Alhambra", "2003")
	a.Publishers = []string{"Queen Games", "Ravensburger"}
	b := mustCanonical(t, "bgg", "42", "Alhambra", "2003")
	b.Publishers = []string{"Ravensburger", "999 Games"}

	out, _ := Dedupe([]models.CanonicalRecord{a, b})
	want := []string{"Queen Games", "Ravensburger", "999 Games"}
	if !reflect.DeepEqual(out[0].Publishers, want) {
		t.Fatalf("got %v want %v", out[0].Publishers, want)
	}
}

func TestDedupeCaseOnlyNameDifferenceIsNotAConflict(t *testing.T) {
	a := mustCanonical(t, "bgg", "123", "Catan", "1995")
	b := mustCanonical(t, "bgg", "123", "CATAN", "1995")

	out, conflicts := Dedupe([]models.CanonicalRecord{a, b})
	if conflicts != 0 {
		t.Fatalf("case-only rename counted as conflict")
	}
	if len(out) != 1 {
		t.Fatalf("got %d records, want 1", len(out))
	}
	if out[0].Name != "CATAN" {
		t.Fatalf("name = %q, want later observation", out[0].Name)
	}
}

func TestDedupeConflictingIdentityKeepsLater(t *testing.T) {
	a := mustCanonical(t, "bgg", "123", "Catan", "1995")
	b := mustCanonical(t, "bgg", "123", "Monopoly", "1935")

	out, conflicts := Dedupe([]models.CanonicalRecord{a, b})
	if conflicts != 1 {
		t.Fatalf("conflicts = %d, want 1", conflicts)
	}
	if len(out) != 1 {
		t.Fatalf("got %d records, want 1", len(out))
	}
	if out[0].Name != "Monopoly" {
		t.Fatalf("name = %q, want later record", out[0].Name)
	}
}

func TestDedupeKeepsFirstSeenKeyOrder(t *testing.T) {
	a := mustCanonical(t, "bgg", "2", "Azul", "2017")
	b := mustCanonical(t, "bgg", "1", "Catan", "1995")
	c := mustCanonical(t, "bgg", "2", "Azul", "2017")

	out, _ := Dedupe([]models.CanonicalRecord{a, b, c})
	if len(out) != 2 {
		t.Fatalf("got %d records", len(out))
	}
	if out[0].Name != "Azul" || out[1].Name != "Catan" {
		t.Fatalf("order changed: %q, %q", out[0].Name, out[1].Name)
	}
}

func TestDedupeSlugFallbackMergesAcrossSources(t *testing.T) {
	a := mustCanonical(t, "bgg", "", "Risk", "1959")
	b := mustCanonical(t, "mirror", "", "Risk", "1959")

	out, conflicts := Dedupe([]models.CanonicalRecord{a, b})
	if conflicts != 0 {
		t.Fatalf("conflicts = %d", conflicts)
	}
	if len(out) != 1 {
		t.Fatalf("got %d records, want 1 merged", len(out))
	}
}

package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"boardhub/internal/ledger"
	"boardhub/pkg/database"
	"boardhub/pkg/models"
)

func newTestRunner(t *testing.T) (*Runner, string) {
	t.Helper()

	dir := t.TempDir()
	db := database.MustOpen(database.Config{Path: filepath.Join(dir, "data.db")})
	t.Cleanup(func() { _ = db.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	led, err := ledger.Open(db)
	if err != nil {
		t.Fatalf("ledger open: %v", err)
	}

	out := filepath.Join(dir, "dataset.csv")
	return &Runner{Ledger: led, OutPath: out}, out
}

func sampleRaws() []models.RawRecord {
	return []models.RawRecord{
		{Source: "bgg", SourceID: "13", Name: "Catan", Year: "1995", Category: "negotiation"},
		{Source: "bgg", SourceID: "181", Name: "Risk", Year: "1959", Category: "war game"},
		{Source: "mirror", SourceID: "m-9", Name: "Azul", Year: "2017", Category: "abstract"},
	}
}

func TestRunIsIdempotent(t *testing.T) {
	runner, out := newTestRunner(t)

	if _, err := runner.Run(sampleRaws()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}

	res, err := runner.Run(sampleRaws())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.NewIDs != 0 {
		t.Fatalf("second run minted %d new ids", res.NewIDs)
	}

	second, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Fatal("unchanged input produced a different artifact")
	}
}

func TestRunIDsStableWhenNewKeysArrive(t *testing.T) {
	runner, out := newTestRunner(t)

	if _, err := runner.Run(sampleRaws()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	before, err := ReadArtifact(out)
	if err != nil {
		t.Fatal(err)
	}
	idByKey := map[string]int64{}
	for _, rec := range before {
		idByKey[string(KeyOf(rec.CanonicalRecord))] = rec.ID
	}

	// second run adds a new game and changes a field on an old one
	raws := append(sampleRaws(), models.RawRecord{
		Source: "bgg", SourceID: "822", Name: "Carcassonne", Year: "2000",
	})
	raws[0].Category = "economic"

	res, err := runner.Run(raws)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.NewIDs != 1 {
		t.Fatalf("new ids = %d, want 1", res.NewIDs)
	}

	after, err := ReadArtifact(out)
	if err != nil {
		t.Fatal(err)
	}
	for _, rec := range after {
		key := string(KeyOf(rec.CanonicalRecord))
		if want, ok := idByKey[key]; ok && rec.ID != want {
			t.Fatalf("key %s changed id %d -> %d", key, want, rec.ID)
		}
	}
	if len(after) != len(before)+1 {
		t.Fatalf("got %d records, want %d", len(after), len(before)+1)
	}
}

func TestRunMergesSameSourceIDObservations(t *testing.T) {
	runner, out := newTestRunner(t)

	raws := []models.RawRecord{
		{Source: "bgg", SourceID: "123", Name: "Catan"},
		{Source: "bgg", SourceID: "123", Name: "CATAN"},
	}
	res, err := runner.Run(raws)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Unique != 1 || res.NewIDs != 1 {
		t.Fatalf("unique=%d newIDs=%d, want 1/1", res.Unique, res.NewIDs)
	}

	recs, err := ReadArtifact(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d exported records, want exactly one", len(recs))
	}
	if recs[0].Name != "CATAN" {
		t.Fatalf("name = %q, want later observation", recs[0].Name)
	}
}

func TestRunSlugFallbackMergesAcrossSources(t *testing.T) {
	runner, out := newTestRunner(t)

	raws := []models.RawRecord{
		{Source: "bgg", Name: "Risk", Year: "1959"},
		{Source: "mirror", Name: "Risk", Year: "1959"},
	}
	res, err := runner.Run(raws)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Unique != 1 {
		t.Fatalf("unique = %d, want 1", res.Unique)
	}

	recs, err := ReadArtifact(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want merged", len(recs))
	}
}

func TestRunDropsInvalidRecordsAndContinues(t *testing.T) {
	runner, _ := newTestRunner(t)

	raws := []models.RawRecord{
		{Source: "bgg", SourceID: "1", Name: "   "},
		{Source: "bgg", SourceID: "2", Name: "Catan", Year: "1995"},
	}
	res, err := runner.Run(raws)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Dropped != 1 {
		t.Fatalf("dropped = %d, want 1", res.Dropped)
	}
	if res.Exported != 1 {
		t.Fatalf("exported = %d, want 1", res.Exported)
	}
}

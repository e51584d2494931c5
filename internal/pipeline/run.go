package pipeline

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"boardhub/internal/ledger"
	"boardhub/pkg/models"
)

// Runner chains the dataset stages over a batch of raw records:
// canonicalize, dedupe, resolve ids against the ledger, export.
type Runner struct {
	Ledger  *ledger.Ledger
	OutPath string
}

// Result summarizes one pipeline run.
type Result struct {
	TraceID   string `json:"trace_id"`
	Fetched   int    `json:"fetched"`
	Dropped   int    `json:"dropped"`
	Conflicts int    `json:"conflicts"`
	Unique    int    `json:"unique"`
	NewIDs    int    `json:"new_ids"`
	Exported  int    `json:"exported"`
}

// Run processes raws in observation order. Records that fail
// canonicalization are dropped and counted, never fatal; a run only
// fails on ledger or export errors, in which case the previous artifact
// is left in place.
func (r *Runner) Run(raws []models.RawRecord) (Result, error) {
	res := Result{
		TraceID: uuid.NewString(),
		Fetched: len(raws),
	}

	canon := make([]models.CanonicalRecord, 0, len(raws))
	for _, raw := range raws {
		rec, err := Canonicalize(raw)
		if err != nil {
			res.Dropped++
			log.Printf("[pipeline] trace=%s dropping record source=%s source_id=%s: %v",
				res.TraceID, raw.Source, raw.SourceID, err)
			continue
		}
		canon = append(canon, rec)
	}

	unique, conflicts := Dedupe(canon)
	res.Unique = len(unique)
	res.Conflicts = conflicts

	resolved, newIDs, err := AssignIDs(r.Ledger, unique)
	if err != nil {
		return res, fmt.Errorf("assign ids: %w", err)
	}
	res.NewIDs = newIDs

	if err := WriteArtifact(r.OutPath, resolved); err != nil {
		return res, err
	}
	res.Exported = len(resolved)

	log.Printf("[pipeline] trace=%s fetched=%d dropped=%d unique=%d conflicts=%d new_ids=%d exported=%d",
		res.TraceID, res.Fetched, res.Dropped, res.Unique, res.Conflicts, res.NewIDs, res.Exported)
	return res, nil
}

// RecordRun stores the run summary in crawl_runs for later inspection.
func RecordRun(db *sql.DB, res Result) error {
	counts, err := json.Marshal(res)
	if err != nil {
		return err
	}
	_, err = db.Exec(
		`INSERT INTO crawl_runs (trace_id, started_at, counts_json) VALUES (?, ?, ?)`,
		res.TraceID, time.Now().UTC().Format(time.RFC3339), string(counts),
	)
	return err
}

package sources

import (
	"context"
	"log"

	"boardhub/pkg/models"
)

// Source is implemented by each external data source (API / HTML / local
// mirror). Each source fetches its own format and maps it into RawRecord;
// all normalization happens later in the pipeline.
type Source interface {
	Name() string
	FetchAll(ctx context.Context) ([]models.RawRecord, error)
}

// FetchAll runs the sources one by one, in order, and concatenates their
// observations. A broken source is logged and skipped; one failing origin
// must not kill the whole crawl.
func FetchAll(ctx context.Context, srcs ...Source) []models.RawRecord {
	var all []models.RawRecord
	for _, src := range srcs {
		log.Printf("[sources] fetching from %s", src.Name())
		recs, err := src.FetchAll(ctx)
		if err != nil {
			log.Printf("[sources] source %s error: %v", src.Name(), err)
			continue
		}
		log.Printf("[sources] %s yielded %d records", src.Name(), len(recs))
		all = append(all, recs...)
	}
	return all
}

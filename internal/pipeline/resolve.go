package pipeline

import (
	"errors"
	"fmt"

	"boardhub/internal/ledger"
	"boardhub/pkg/models"
)

// AssignIDs resolves every record's canonical key against the ledger,
// minting ids for keys never seen before. A record only becomes exportable
// once its id is durably recorded, so any ledger failure is fatal for the
// run: proceeding would spend ids the next run cannot see.
func AssignIDs(led *ledger.Ledger, records []models.CanonicalRecord) ([]models.ExportRecord, int, error) {
	out := make([]models.ExportRecord, 0, len(records))
	newIDs := 0

	for _, rec := range records {
		key := string(KeyOf(rec))

		id, err := led.Resolve(key)
		if errors.Is(err, ledger.ErrNotFound) {
			id, err = led.Assign(key)
			if err != nil {
				return nil, newIDs, fmt.Errorf("assign %s: %w", key, err)
			}
			newIDs++
		} else if err != nil {
			return nil, newIDs, fmt.Errorf("resolve %s: %w", key, err)
		}

		out = append(out, models.ExportRecord{ID: id, CanonicalRecord: rec})
	}

	return out, newIDs, nil
}

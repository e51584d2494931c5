package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
)

const nextIDKey = "ledger.next_id"

// baselineID is the first id handed out on a fresh dataset.
const baselineID = 1

var (
	// ErrNotFound means the key has never been assigned an id.
	ErrNotFound = errors.New("ledger: key not found")
	// ErrFull means the id space is exhausted; no record can safely be
	// assigned an id and the run must abort.
	ErrFull = errors.New("ledger: id space exhausted")
)

// Ledger is the durable mapping from canonical key to stable integer id.
// Once a key is written its id never changes and is never reused, even if
// the key later disappears from every source. The full mapping is loaded
// on Open; Assign writes through to sqlite before the id is visible to
// callers, so a crash can never leave an id spent but unrecorded.
//
// All writes are serialized through one mutex: the ledger is the single
// owner of id allocation, concurrent fetch workers must funnel into it.
type Ledger struct {
	db *sql.DB

	mu     sync.Mutex
	byKey  map[string]int64
	nextID int64
}

func Open(db *sql.DB) (*Ledger, error) {
	l := &Ledger{db: db, byKey: make(map[string]int64), nextID: baselineID}

	rows, err := db.Query(`SELECT key, id FROM id_ledger`)
	if err != nil {
		return nil, fmt.Errorf("ledger load: %w", err)
	}
	defer rows.Close()

	var maxID int64
	for rows.Next() {
		var key string
		var id int64
		if err := rows.Scan(&key, &id); err != nil {
			return nil, fmt.Errorf("ledger scan: %w", err)
		}
		l.byKey[key] = id
		if id > maxID {
			maxID = id
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger rows: %w", err)
	}

	var stored string
	err = db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, nextIDKey).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
		// fresh ledger, or counter lost: recover from the mapping itself
		if maxID >= l.nextID {
			l.nextID = maxID + 1
		}
	case err != nil:
		return nil, fmt.Errorf("ledger next id: %w", err)
	default:
		n, perr := strconv.ParseInt(stored, 10, 64)
		if perr != nil {
			return nil, fmt.Errorf("ledger next id %q: %w", stored, perr)
		}
		l.nextID = n
		// the mapping is authoritative; never hand out an id below max+1
		if maxID >= l.nextID {
			l.nextID = maxID + 1
		}
	}

	return l, nil
}

// Resolve returns the id assigned to key, or ErrNotFound.
func (l *Ledger) Resolve(key string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id, ok := l.byKey[key]
	if !ok {
		return 0, ErrNotFound
	}
	return id, nil
}

// Assign returns the id for key, minting the next unused id when the key
// is new. The mapping entry and the counter are written in one transaction;
// the in-memory view only advances after commit.
func (l *Ledger) Assign(key string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if id, ok := l.byKey[key]; ok {
		return id, nil
	}

	id := l.nextID
	if id == math.MaxInt64 {
		return 0, ErrFull
	}

	tx, err := l.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("ledger begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT INTO id_ledger (key, id) VALUES (?, ?)`, key, id); err != nil {
		return 0, fmt.Errorf("ledger insert %q: %w", key, err)
	}
	if _, err := tx.Exec(`
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, nextIDKey, strconv.FormatInt(id+1, 10)); err != nil {
		return 0, fmt.Errorf("ledger counter: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("ledger commit: %w", err)
	}

	l.byKey[key] = id
	l.nextID = id + 1
	return id, nil
}

// Len reports how many keys hold assigned ids.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byKey)
}

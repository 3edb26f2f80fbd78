// Package lineage stores the append-only audit trail of per-field extraction
// attempts. The classifier reads it to tell "never attempted" apart from
// "attempted and came back empty".
package lineage

import (
	"context"
	"fmt"
	"time"

	"github.com/sells-group/completeness-cli/internal/model"
)

// ConflictError signals two divergent payloads written for the same lineage
// key. The trail is append-only; a conflicting rewrite is an upstream
// contract violation and is never retried.
type ConflictError struct {
	Key      string
	Existing model.LineageEntry
	Incoming model.LineageEntry
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("lineage: conflicting payload for key %s (have %s/%v, got %s/%v)",
		e.Key, e.Existing.Outcome, e.Existing.Attempted, e.Incoming.Outcome, e.Incoming.Attempted)
}

// Cursor streams lineage entries ordered by timestamp ascending. Large
// entities can carry many attempts; callers iterate instead of
// materializing.
type Cursor interface {
	Next() bool
	Entry() model.LineageEntry
	Err() error
	Close() error
}

// Store is the lineage persistence contract. Record is idempotent on the
// entry key; identical duplicates are no-ops. Query honors the horizon:
// entries stamped after it are invisible, so a run is replayable.
type Store interface {
	Record(ctx context.Context, entry model.LineageEntry) error
	Query(ctx context.Context, entityID, fieldName string, horizon time.Time) (Cursor, error)
}

// Collect drains a cursor into a slice. Test and small-entity helper; the
// classifier itself iterates.
func Collect(c Cursor) ([]model.LineageEntry, error) {
	defer c.Close()
	var out []model.LineageEntry
	for c.Next() {
		out = append(out, c.Entry())
	}
	return out, c.Err()
}

package lineage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sells-group/completeness-cli/internal/model"
)

// MemoryStore is the in-process lineage store used for single-run
// classification. Writes happen upstream during ingestion; during a run the
// store is read-mostly, and reads take only an RLock.
type MemoryStore struct {
	mu      sync.RWMutex
	byKey   map[string]model.LineageEntry
	byField map[fieldKey][]model.LineageEntry
}

type fieldKey struct {
	entityID  string
	fieldName string
}

// NewMemory creates an empty in-memory lineage store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		byKey:   make(map[string]model.LineageEntry),
		byField: make(map[fieldKey][]model.LineageEntry),
	}
}

// Record appends an entry. Writing the same key with the same payload is a
// no-op; a divergent payload fails with ConflictError.
func (s *MemoryStore) Record(_ context.Context, entry model.LineageEntry) error {
	key := entry.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byKey[key]; ok {
		if existing.SamePayload(entry) {
			return nil
		}
		return &ConflictError{Key: key, Existing: existing, Incoming: entry}
	}

	s.byKey[key] = entry
	fk := fieldKey{entityID: entry.EntityID, fieldName: entry.FieldName}
	s.byField[fk] = append(s.byField[fk], entry)
	return nil
}

// Query returns a cursor over the entity's attempts for one field, ordered
// by timestamp ascending, excluding entries after the horizon.
func (s *MemoryStore) Query(_ context.Context, entityID, fieldName string, horizon time.Time) (Cursor, error) {
	s.mu.RLock()
	entries := s.byField[fieldKey{entityID: entityID, fieldName: fieldName}]
	filtered := make([]model.LineageEntry, 0, len(entries))
	for _, e := range entries {
		if !horizon.IsZero() && e.Timestamp.After(horizon) {
			continue
		}
		filtered = append(filtered, e)
	}
	s.mu.RUnlock()

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.Before(filtered[j].Timestamp)
	})

	return &sliceCursor{entries: filtered, pos: -1}, nil
}

// Len reports the number of distinct entries recorded.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byKey)
}

type sliceCursor struct {
	entries []model.LineageEntry
	pos     int
}

func (c *sliceCursor) Next() bool {
	c.pos++
	return c.pos < len(c.entries)
}

func (c *sliceCursor) Entry() model.LineageEntry { return c.entries[c.pos] }
func (c *sliceCursor) Err() error                { return nil }
func (c *sliceCursor) Close() error              { return nil }

// Package store persists runs, classifications, reports, and the lineage
// trail behind a driver-agnostic interface. SQLite serves single-operator
// use; postgres serves the shared deployment.
package store

import (
	"context"
	"time"

	"github.com/sells-group/completeness-cli/internal/lineage"
	"github.com/sells-group/completeness-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store is the persistence interface for the completeness engine.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, runID string, horizon time.Time) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, report *model.RunReport) error
	FailRun(ctx context.Context, runID string, reason string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	GetReport(ctx context.Context, runID string) (*model.RunReport, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Classifications
	SaveClassifications(ctx context.Context, runID string, cls []model.Classification) error
	ListClassifications(ctx context.Context, runID string) ([]model.Classification, error)

	// Lineage trail (append-only, idempotent per key)
	RecordLineage(ctx context.Context, entry model.LineageEntry) error
	QueryLineage(ctx context.Context, entityID, fieldName string, horizon time.Time) (lineage.Cursor, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// LineageView adapts a Store to the lineage.Store contract so the
// classifier can read persisted lineage directly.
type LineageView struct {
	Store Store
}

func (v LineageView) Record(ctx context.Context, entry model.LineageEntry) error {
	return v.Store.RecordLineage(ctx, entry)
}

func (v LineageView) Query(ctx context.Context, entityID, fieldName string, horizon time.Time) (lineage.Cursor, error) {
	return v.Store.QueryLineage(ctx, entityID, fieldName, horizon)
}

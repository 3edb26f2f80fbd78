// Package runner partitions a run's records by entity and executes
// join+classify across a bounded worker pool. Entities share no mutable
// state, so the only coordination is merging results at the end.
package runner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/completeness-cli/internal/classify"
	"github.com/sells-group/completeness-cli/internal/joiner"
	"github.com/sells-group/completeness-cli/internal/lineage"
	"github.com/sells-group/completeness-cli/internal/model"
	"github.com/sells-group/completeness-cli/internal/registry"
)

// Options tunes one run.
type Options struct {
	// RunID identifies the run for diffing; generated when empty.
	RunID string
	// Horizon is the run's time cutoff. Records and lineage stamped after
	// it are invisible. Zero means "now".
	Horizon time.Time
	// Concurrency bounds the worker pool; defaults to 4.
	Concurrency int
}

// Result is the merged output of a run, ordered deterministically: re-running
// on the same input set and horizon yields byte-identical output.
type Result struct {
	RunID           string
	Horizon         time.Time
	Entities        int
	Classifications []model.Classification
	SourceStatuses  []model.SourceFieldStatus
	Failures        []model.EntityFailure
	TypeMismatches  map[string]int
	Undeclared      map[string][]string
}

// Run joins and classifies every entity in the record set. A single
// entity's failure (malformed records, unknown schema, panic) is recorded
// and the rest of the run continues.
func Run(ctx context.Context, reg *registry.Registry, lin lineage.Store, records []model.SourceRecord, opts Options) (*Result, error) {
	if opts.RunID == "" {
		opts.RunID = uuid.New().String()
	}
	if opts.Horizon.IsZero() {
		opts.Horizon = time.Now().UTC()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}

	grouped := joiner.Group(records, opts.Horizon)
	entityIDs := make([]string, 0, len(grouped))
	for id := range grouped {
		entityIDs = append(entityIDs, id)
	}
	sort.Strings(entityIDs)

	cls := classify.New(reg, lin, opts.Horizon)

	type slot struct {
		res     *classify.EntityResult
		failure *model.EntityFailure
	}
	slots := make([]slot, len(entityIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for i, entityID := range entityIDs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := classifyOne(gctx, cls, entityID, grouped[entityID])
			if err != nil {
				zap.L().Warn("runner: entity classification failed",
					zap.String("entity_id", entityID),
					zap.Error(err),
				)
				slots[i] = slot{failure: &model.EntityFailure{EntityID: entityID, Error: err.Error()}}
				return nil
			}
			slots[i] = slot{res: res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{
		RunID:          opts.RunID,
		Horizon:        opts.Horizon,
		Entities:       len(entityIDs),
		TypeMismatches: make(map[string]int),
	}
	undeclared := make(map[string]map[string]struct{})

	for _, s := range slots {
		if s.failure != nil {
			result.Failures = append(result.Failures, *s.failure)
			continue
		}
		result.Classifications = append(result.Classifications, s.res.Classifications...)
		result.SourceStatuses = append(result.SourceStatuses, s.res.SourceStatuses...)
		for src, n := range s.res.TypeMismatches {
			result.TypeMismatches[src] += n
		}
		for src, fields := range s.res.Undeclared {
			if undeclared[src] == nil {
				undeclared[src] = make(map[string]struct{})
			}
			for _, f := range fields {
				undeclared[src][f] = struct{}{}
			}
		}
	}

	result.Undeclared = make(map[string][]string, len(undeclared))
	for src, fields := range undeclared {
		list := make([]string, 0, len(fields))
		for f := range fields {
			list = append(list, f)
		}
		sort.Strings(list)
		result.Undeclared[src] = list
	}

	zap.L().Info("runner: run complete",
		zap.String("run_id", result.RunID),
		zap.Int("entities", result.Entities),
		zap.Int("classifications", len(result.Classifications)),
		zap.Int("failures", len(result.Failures)),
	)

	return result, nil
}

// classifyOne joins and classifies a single entity, converting panics from
// malformed inputs into ordinary errors so one entity cannot sink the run.
func classifyOne(ctx context.Context, cls *classify.Classifier, entityID string, records []model.SourceRecord) (res *classify.EntityResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("runner: panic classifying entity %s: %v", entityID, r)
		}
	}()

	joined, err := joiner.Join(entityID, records)
	if err != nil {
		return nil, err
	}
	return cls.ClassifyEntity(ctx, joined)
}

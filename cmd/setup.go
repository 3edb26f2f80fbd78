package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/completeness-cli/internal/ingest"
	"github.com/sells-group/completeness-cli/internal/lineage"
	"github.com/sells-group/completeness-cli/internal/model"
	"github.com/sells-group/completeness-cli/internal/registry"
	"github.com/sells-group/completeness-cli/internal/store"
	"github.com/sells-group/completeness-cli/pkg/notion"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "completeness.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// loadRegistry builds the expectation registry from the configured source.
// An explicit path overrides the config.
func loadRegistry(ctx context.Context, pathOverride string) (*registry.Registry, error) {
	if pathOverride != "" {
		return registry.LoadYAMLFile(pathOverride)
	}

	switch cfg.Schema.Source {
	case "yaml":
		return registry.LoadYAMLFile(cfg.Schema.Path)
	case "notion":
		if cfg.Notion.Token == "" || cfg.Notion.ExpectationDB == "" {
			return nil, eris.New("notion schema source requires notion.token and notion.expectation_db")
		}
		client := notion.NewClient(cfg.Notion.Token, notion.WithRateLimit(cfg.Notion.RateLimit))
		return registry.LoadNotion(ctx, client, cfg.Notion.ExpectationDB)
	default:
		return nil, eris.Errorf("unsupported schema source: %s", cfg.Schema.Source)
	}
}

// teeLineage mirrors lineage writes into the persistent trail while the
// in-memory store serves the run's reads.
type teeLineage struct {
	mem *lineage.MemoryStore
	st  store.Store
}

func (t teeLineage) Record(ctx context.Context, entry model.LineageEntry) error {
	if err := t.mem.Record(ctx, entry); err != nil {
		return err
	}
	return t.st.RecordLineage(ctx, entry)
}

func (t teeLineage) Query(ctx context.Context, entityID, fieldName string, horizon time.Time) (lineage.Cursor, error) {
	return t.mem.Query(ctx, entityID, fieldName, horizon)
}

func newFTPDrop() *ingest.FTPDrop {
	return ingest.NewFTPDrop(ingest.FTPOptions{
		Timeout:  time.Duration(cfg.Ingest.FTPTimeoutSecs) * time.Second,
		User:     cfg.Ingest.FTPUser,
		Password: cfg.Ingest.FTPPassword,
	})
}

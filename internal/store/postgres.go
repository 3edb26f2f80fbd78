package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/completeness-cli/internal/db"
	"github.com/sells-group/completeness-cli/internal/lineage"
	"github.com/sells-group/completeness-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// the hot paths: lineage writes during ingestion and reads during
// classification.
var preparedStatements = map[string]string{
	"insert_run":     `INSERT INTO runs (id, status, horizon, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
	"complete_run":   `UPDATE runs SET status = $1, report = $2, updated_at = $3 WHERE id = $4`,
	"fail_run":       `UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
	"get_run":        `SELECT id, status, horizon, report, created_at, updated_at FROM runs WHERE id = $1`,
	"insert_lineage": `INSERT INTO lineage_entries (key, entity_id, source_id, field_name, ts, attempted, outcome) VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (key) DO NOTHING`,
	"get_lineage":    `SELECT attempted, outcome FROM lineage_entries WHERE key = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'running',
	horizon    TIMESTAMPTZ NOT NULL,
	report     JSONB,
	error      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS classifications (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	seq         INTEGER NOT NULL,
	entity_id   TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	field_name  TEXT NOT NULL,
	verdict     TEXT NOT NULL,
	flag        TEXT NOT NULL DEFAULT '',
	evidence    JSONB NOT NULL DEFAULT '[]',
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS lineage_entries (
	key        TEXT PRIMARY KEY,
	entity_id  TEXT NOT NULL,
	source_id  TEXT NOT NULL,
	field_name TEXT NOT NULL,
	ts         TIMESTAMPTZ NOT NULL,
	attempted  BOOLEAN NOT NULL,
	outcome    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_classifications_entity ON classifications(run_id, entity_id);
CREATE INDEX IF NOT EXISTS idx_lineage_field ON lineage_entries(entity_id, field_name, ts);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, runID string, horizon time.Time) (*model.Run, error) {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, status, horizon, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		runID, string(model.RunStatusRunning), horizon.UTC(), now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert run %s", runID)
	}
	return &model.Run{
		ID:        runID,
		Status:    model.RunStatusRunning,
		Horizon:   horizon.UTC(),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, report *model.RunReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal report")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, report = $2, updated_at = $3 WHERE id = $4`,
		string(model.RunStatusComplete), reportJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(model.RunStatusFailed), reason, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, status, horizon, report, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	)

	var r model.Run
	var status string
	var reportJSON []byte
	if err := row.Scan(&r.ID, &status, &r.Horizon, &reportJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("postgres: run %s not found", runID)
		}
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	r.Status = model.RunStatus(status)
	if len(reportJSON) > 0 {
		if err := json.Unmarshal(reportJSON, &r.Report); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal report")
		}
	}
	return &r, nil
}

func (s *PostgresStore) GetReport(ctx context.Context, runID string) (*model.RunReport, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Report == nil {
		return nil, eris.Errorf("postgres: run %s has no report", runID)
	}
	return run.Report, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, status, horizon, report, created_at, updated_at FROM runs WHERE 1=1`
	var args []any
	arg := 1

	if filter.Status != "" {
		query += ` AND status = $1`
		args = append(args, string(filter.Status))
		arg++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT $` + strconv.Itoa(arg)
	args = append(args, limit)
	arg++

	if filter.Offset > 0 {
		query += ` OFFSET $` + strconv.Itoa(arg)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var status string
		var reportJSON []byte
		if err := rows.Scan(&r.ID, &status, &r.Horizon, &reportJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Status = model.RunStatus(status)
		if len(reportJSON) > 0 {
			if err := json.Unmarshal(reportJSON, &r.Report); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal report")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) SaveClassifications(ctx context.Context, runID string, cls []model.Classification) error {
	rows := make([][]any, 0, len(cls))
	for i, c := range cls {
		evidenceJSON, err := json.Marshal(c.Evidence)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal evidence")
		}
		rows = append(rows, []any{
			runID, i, c.EntityID, c.EntityType, c.FieldName,
			string(c.Verdict), string(c.Flag), evidenceJSON,
		})
	}

	_, err := db.CopyFrom(ctx, s.pool, "classifications",
		[]string{"run_id", "seq", "entity_id", "entity_type", "field_name", "verdict", "flag", "evidence"},
		rows,
	)
	return err
}

func (s *PostgresStore) ListClassifications(ctx context.Context, runID string) ([]model.Classification, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT entity_id, entity_type, field_name, verdict, flag, evidence
		 FROM classifications WHERE run_id = $1 ORDER BY seq`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list classifications for %s", runID)
	}
	defer rows.Close()

	var out []model.Classification
	for rows.Next() {
		var c model.Classification
		var verdict, flag string
		var evidenceJSON []byte
		if err := rows.Scan(&c.EntityID, &c.EntityType, &c.FieldName, &verdict, &flag, &evidenceJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan classification")
		}
		c.Verdict = model.Verdict(verdict)
		c.Flag = model.EvidenceFlag(flag)
		if err := json.Unmarshal(evidenceJSON, &c.Evidence); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal evidence")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list classifications iterate")
}

func (s *PostgresStore) RecordLineage(ctx context.Context, entry model.LineageEntry) error {
	key := entry.Key()
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO lineage_entries (key, entity_id, source_id, field_name, ts, attempted, outcome)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (key) DO NOTHING`,
		key, entry.EntityID, entry.SourceID, entry.FieldName,
		entry.Timestamp.UTC(), entry.Attempted, string(entry.Outcome),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: record lineage %s", key)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	row := s.pool.QueryRow(ctx,
		`SELECT attempted, outcome FROM lineage_entries WHERE key = $1`, key,
	)
	var attempted bool
	var outcome string
	if err := row.Scan(&attempted, &outcome); err != nil {
		return eris.Wrapf(err, "postgres: read existing lineage %s", key)
	}
	existing := entry
	existing.Attempted = attempted
	existing.Outcome = model.AttemptOutcome(outcome)
	if existing.SamePayload(entry) {
		return nil
	}
	return &lineage.ConflictError{Key: key, Existing: existing, Incoming: entry}
}

func (s *PostgresStore) QueryLineage(ctx context.Context, entityID, fieldName string, horizon time.Time) (lineage.Cursor, error) {
	query := `SELECT entity_id, source_id, field_name, ts, attempted, outcome
	          FROM lineage_entries WHERE entity_id = $1 AND field_name = $2`
	args := []any{entityID, fieldName}
	if !horizon.IsZero() {
		query += ` AND ts <= $3`
		args = append(args, horizon.UTC())
	}
	query += ` ORDER BY ts ASC, source_id ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query lineage %s.%s", entityID, fieldName)
	}
	return &pgxRowsCursor{rows: rows}, nil
}

// pgxRowsCursor streams lineage entries from a live pgx result set.
type pgxRowsCursor struct {
	rows    pgx.Rows
	current model.LineageEntry
	err     error
}

func (c *pgxRowsCursor) Next() bool {
	if c.err != nil || !c.rows.Next() {
		return false
	}
	var outcome string
	if err := c.rows.Scan(
		&c.current.EntityID, &c.current.SourceID, &c.current.FieldName,
		&c.current.Timestamp, &c.current.Attempted, &outcome,
	); err != nil {
		c.err = eris.Wrap(err, "postgres: scan lineage entry")
		return false
	}
	c.current.Outcome = model.AttemptOutcome(outcome)
	return true
}

func (c *pgxRowsCursor) Entry() model.LineageEntry { return c.current }

func (c *pgxRowsCursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.rows.Err()
}

func (c *pgxRowsCursor) Close() error {
	c.rows.Close()
	return nil
}

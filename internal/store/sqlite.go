package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/completeness-cli/internal/lineage"
	"github.com/sells-group/completeness-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'running',
	horizon    DATETIME NOT NULL,
	report     TEXT,
	error      TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS classifications (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	seq         INTEGER NOT NULL,
	entity_id   TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	field_name  TEXT NOT NULL,
	verdict     TEXT NOT NULL,
	flag        TEXT NOT NULL DEFAULT '',
	evidence    TEXT NOT NULL DEFAULT '[]',
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS lineage_entries (
	key        TEXT PRIMARY KEY,
	entity_id  TEXT NOT NULL,
	source_id  TEXT NOT NULL,
	field_name TEXT NOT NULL,
	ts         DATETIME NOT NULL,
	attempted  INTEGER NOT NULL,
	outcome    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_classifications_entity ON classifications(run_id, entity_id);
CREATE INDEX IF NOT EXISTS idx_lineage_field ON lineage_entries(entity_id, field_name, ts);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, runID string, horizon time.Time) (*model.Run, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, horizon, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		runID, string(model.RunStatusRunning), horizon.UTC(), now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert run %s", runID)
	}
	return &model.Run{
		ID:        runID,
		Status:    model.RunStatusRunning,
		Horizon:   horizon.UTC(),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, report *model.RunReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal report")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, report = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusComplete), string(reportJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), reason, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, horizon, report, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) GetReport(ctx context.Context, runID string) (*model.RunReport, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Report == nil {
		return nil, eris.Errorf("sqlite: run %s has no report", runID)
	}
	return run.Report, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, status, horizon, report, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRunFromRows(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveClassifications(ctx context.Context, runID string, cls []model.Classification) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO classifications (run_id, seq, entity_id, entity_type, field_name, verdict, flag, evidence)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert classification")
	}
	defer stmt.Close()

	for i, c := range cls {
		evidenceJSON, err := json.Marshal(c.Evidence)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal evidence")
		}
		if _, err := stmt.ExecContext(ctx,
			runID, i, c.EntityID, c.EntityType, c.FieldName,
			string(c.Verdict), string(c.Flag), string(evidenceJSON),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert classification %s.%s", c.EntityID, c.FieldName)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit classifications")
}

func (s *SQLiteStore) ListClassifications(ctx context.Context, runID string) ([]model.Classification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_id, entity_type, field_name, verdict, flag, evidence
		 FROM classifications WHERE run_id = ? ORDER BY seq`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list classifications for %s", runID)
	}
	defer rows.Close()

	var out []model.Classification
	for rows.Next() {
		var c model.Classification
		var verdict, flag, evidenceJSON string
		if err := rows.Scan(&c.EntityID, &c.EntityType, &c.FieldName, &verdict, &flag, &evidenceJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan classification")
		}
		c.Verdict = model.Verdict(verdict)
		c.Flag = model.EvidenceFlag(flag)
		if err := json.Unmarshal([]byte(evidenceJSON), &c.Evidence); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal evidence")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list classifications iterate")
}

func (s *SQLiteStore) RecordLineage(ctx context.Context, entry model.LineageEntry) error {
	key := entry.Key()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO lineage_entries (key, entity_id, source_id, field_name, ts, attempted, outcome)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO NOTHING`,
		key, entry.EntityID, entry.SourceID, entry.FieldName,
		entry.Timestamp.UTC(), boolToInt(entry.Attempted), string(entry.Outcome),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: record lineage %s", key)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: lineage rows affected")
	}
	if n > 0 {
		return nil
	}

	// The key exists. Identical payload is a no-op; a divergent payload is
	// an upstream contract violation.
	row := s.db.QueryRowContext(ctx,
		`SELECT attempted, outcome FROM lineage_entries WHERE key = ?`, key,
	)
	var attempted int
	var outcome string
	if err := row.Scan(&attempted, &outcome); err != nil {
		return eris.Wrapf(err, "sqlite: read existing lineage %s", key)
	}
	existing := entry
	existing.Attempted = attempted != 0
	existing.Outcome = model.AttemptOutcome(outcome)
	if existing.SamePayload(entry) {
		return nil
	}
	return &lineage.ConflictError{Key: key, Existing: existing, Incoming: entry}
}

func (s *SQLiteStore) QueryLineage(ctx context.Context, entityID, fieldName string, horizon time.Time) (lineage.Cursor, error) {
	query := `SELECT entity_id, source_id, field_name, ts, attempted, outcome
	          FROM lineage_entries WHERE entity_id = ? AND field_name = ?`
	args := []any{entityID, fieldName}
	if !horizon.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, horizon.UTC())
	}
	query += ` ORDER BY ts ASC, source_id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query lineage %s.%s", entityID, fieldName)
	}
	return &rowsCursor{rows: rows}, nil
}

// rowsCursor streams lineage entries straight off the result set without
// materializing the entity's full attempt history.
type rowsCursor struct {
	rows    *sql.Rows
	current model.LineageEntry
	err     error
}

func (c *rowsCursor) Next() bool {
	if c.err != nil || !c.rows.Next() {
		return false
	}
	var attempted int
	var outcome string
	if err := c.rows.Scan(
		&c.current.EntityID, &c.current.SourceID, &c.current.FieldName,
		&c.current.Timestamp, &attempted, &outcome,
	); err != nil {
		c.err = eris.Wrap(err, "sqlite: scan lineage entry")
		return false
	}
	c.current.Attempted = attempted != 0
	c.current.Outcome = model.AttemptOutcome(outcome)
	return true
}

func (c *rowsCursor) Entry() model.LineageEntry { return c.current }

func (c *rowsCursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.rows.Err()
}

func (c *rowsCursor) Close() error { return c.rows.Close() }

func scanRun(row *sql.Row) (*model.Run, error) {
	var r model.Run
	var status string
	var reportJSON sql.NullString
	if err := row.Scan(&r.ID, &status, &r.Horizon, &reportJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, eris.Errorf("sqlite: run not found")
		}
		return nil, eris.Wrap(err, "sqlite: get run")
	}
	r.Status = model.RunStatus(status)
	if reportJSON.Valid && reportJSON.String != "" {
		if err := json.Unmarshal([]byte(reportJSON.String), &r.Report); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal report")
		}
	}
	return &r, nil
}

func scanRunFromRows(rows *sql.Rows) (*model.Run, error) {
	var r model.Run
	var status string
	var reportJSON sql.NullString
	if err := rows.Scan(&r.ID, &status, &r.Horizon, &reportJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	r.Status = model.RunStatus(status)
	if reportJSON.Valid && reportJSON.String != "" {
		if err := json.Unmarshal([]byte(reportJSON.String), &r.Report); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal report")
		}
	}
	return &r, nil
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", kind, id)
	}
	if n == 0 {
		return eris.Errorf("sqlite: %s %s not found", kind, id)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

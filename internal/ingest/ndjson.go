// Package ingest reads the scraper collaborators' deliveries: NDJSON drops
// of source records and lineage entries, from local files, directories, or
// an FTP drop server.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/completeness-cli/internal/lineage"
	"github.com/sells-group/completeness-cli/internal/model"
)

// maxLineBytes bounds one NDJSON line; large entities carry big field maps.
const maxLineBytes = 4 << 20

// ReadRecords decodes one SourceRecord per line. Malformed lines are
// counted and logged, not fatal: one bad record must not sink a delivery.
func ReadRecords(r io.Reader) ([]model.SourceRecord, int, error) {
	var records []model.SourceRecord
	malformed := 0

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec model.SourceRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			malformed++
			zap.L().Warn("ingest: skipping malformed record line",
				zap.Int("line", line),
				zap.Error(err),
			)
			continue
		}
		if rec.SourceID == "" || rec.EntityID == "" || rec.EntityType == "" {
			malformed++
			zap.L().Warn("ingest: skipping record with missing identity",
				zap.Int("line", line),
				zap.String("source_id", rec.SourceID),
				zap.String("entity_id", rec.EntityID),
			)
			continue
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, malformed, eris.Wrap(err, "ingest: scan records")
	}
	return records, malformed, nil
}

// ReadLineage streams one LineageEntry per line straight into the store.
// Malformed lines are skipped; a lineage conflict is a contract violation
// and aborts the delivery.
func ReadLineage(ctx context.Context, r io.Reader, store lineage.Store) (int, int, error) {
	recorded := 0
	malformed := 0

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var entry model.LineageEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			malformed++
			zap.L().Warn("ingest: skipping malformed lineage line",
				zap.Int("line", line),
				zap.Error(err),
			)
			continue
		}
		if entry.SourceID == "" || entry.EntityID == "" || entry.FieldName == "" {
			malformed++
			continue
		}
		if err := store.Record(ctx, entry); err != nil {
			return recorded, malformed, err
		}
		recorded++
	}
	if err := sc.Err(); err != nil {
		return recorded, malformed, eris.Wrap(err, "ingest: scan lineage")
	}
	return recorded, malformed, nil
}

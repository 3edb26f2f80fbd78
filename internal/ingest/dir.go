package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/completeness-cli/internal/lineage"
	"github.com/sells-group/completeness-cli/internal/model"
)

// Delivery is one run's worth of ingested input.
type Delivery struct {
	Records          []model.SourceRecord
	LineageRecorded  int
	MalformedRecords int
	MalformedLineage int
}

// LoadDir reads a delivery directory. Scrapers drop `*.records.ndjson` and
// `*.lineage.ndjson` files; anything else is ignored. Files load in name
// order so repeated loads see identical input ordering.
func LoadDir(ctx context.Context, dir string, store lineage.Store) (*Delivery, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read delivery dir %s", dir)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	d := &Delivery{}
	for _, name := range names {
		path := filepath.Join(dir, name)
		switch {
		case strings.HasSuffix(name, ".records.ndjson"):
			if err := d.loadRecordsFile(path); err != nil {
				return nil, err
			}
		case strings.HasSuffix(name, ".lineage.ndjson"):
			if err := d.loadLineageFile(ctx, path, store); err != nil {
				return nil, err
			}
		default:
			zap.L().Debug("ingest: ignoring file", zap.String("file", name))
		}
	}

	zap.L().Info("ingest: delivery loaded",
		zap.String("dir", dir),
		zap.Int("records", len(d.Records)),
		zap.Int("lineage", d.LineageRecorded),
		zap.Int("malformed_records", d.MalformedRecords),
		zap.Int("malformed_lineage", d.MalformedLineage),
	)
	return d, nil
}

func (d *Delivery) loadRecordsFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "ingest: open %s", path)
	}
	defer f.Close()

	records, malformed, err := ReadRecords(f)
	if err != nil {
		return eris.Wrapf(err, "ingest: read %s", path)
	}
	d.Records = append(d.Records, records...)
	d.MalformedRecords += malformed
	return nil
}

func (d *Delivery) loadLineageFile(ctx context.Context, path string, store lineage.Store) error {
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "ingest: open %s", path)
	}
	defer f.Close()

	recorded, malformed, err := ReadLineage(ctx, f, store)
	d.LineageRecorded += recorded
	d.MalformedLineage += malformed
	if err != nil {
		return eris.Wrapf(err, "ingest: read %s", path)
	}
	return nil
}

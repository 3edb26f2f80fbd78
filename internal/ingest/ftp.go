package ingest

import (
	"context"
	"io"
	"net"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/completeness-cli/internal/lineage"
)

// FTPOptions configures the FTP drop reader.
type FTPOptions struct {
	Timeout  time.Duration
	User     string
	Password string
}

// FTPDrop pulls scraper deliveries from an FTP drop directory. Scrapers
// that cannot reach the warehouse upload their NDJSON files here instead.
type FTPDrop struct {
	opts FTPOptions
}

// NewFTPDrop creates an FTP drop reader. Anonymous login is used when no
// credentials are configured.
func NewFTPDrop(opts FTPOptions) *FTPDrop {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.User == "" {
		opts.User = "anonymous"
		opts.Password = "anonymous@"
	}
	return &FTPDrop{opts: opts}
}

// parseFTPURL extracts host (with port) and directory path from an FTP URL.
func parseFTPURL(rawURL string) (host string, dir string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrap(err, "ingest: parse ftp url")
	}
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("ingest: expected ftp scheme, got %q", u.Scheme)
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}

	dir = u.Path
	if dir == "" {
		dir = "/"
	}
	return host, dir, nil
}

// Load lists the drop directory and ingests every records and lineage file
// found there, in name order.
func (f *FTPDrop) Load(ctx context.Context, dropURL string, store lineage.Store) (*Delivery, error) {
	host, dir, err := parseFTPURL(dropURL)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("ingest: connecting to ftp drop", zap.String("host", host), zap.String("dir", dir))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(f.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "ingest: ftp dial")
	}
	defer conn.Quit()

	if err := conn.Login(f.opts.User, f.opts.Password); err != nil {
		return nil, eris.Wrap(err, "ingest: ftp login")
	}

	names, err := conn.NameList(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: ftp list %s", dir)
	}
	sort.Strings(names)

	d := &Delivery{}
	for _, name := range names {
		full := name
		if !strings.HasPrefix(full, "/") {
			full = path.Join(dir, name)
		}
		switch {
		case strings.HasSuffix(name, ".records.ndjson"):
			err = f.withFile(conn, full, func(r io.Reader) error {
				records, malformed, rerr := ReadRecords(r)
				d.Records = append(d.Records, records...)
				d.MalformedRecords += malformed
				return rerr
			})
		case strings.HasSuffix(name, ".lineage.ndjson"):
			err = f.withFile(conn, full, func(r io.Reader) error {
				recorded, malformed, rerr := ReadLineage(ctx, r, store)
				d.LineageRecorded += recorded
				d.MalformedLineage += malformed
				return rerr
			})
		default:
			continue
		}
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: ftp file %s", full)
		}
	}

	return d, nil
}

func (f *FTPDrop) withFile(conn *ftp.ServerConn, path string, fn func(io.Reader) error) error {
	resp, err := conn.Retr(path)
	if err != nil {
		return eris.Wrap(err, "ftp retrieve")
	}
	defer resp.Close()
	return fn(resp)
}

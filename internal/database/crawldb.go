package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/politecrawl/internal/model"
)

// FileName is the name of the database file inside the database directory.
const FileName = "politecrawl.db"

// CrawlDB stores the pages and failures of crawl runs in SQLite.
//
// Design decision: We upsert pages by URL instead of keeping one row per
// fetch because:
//  1. Re-running a crawl refreshes the stored view of a site
//  2. Queries by host stay small on repeated runs
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so reports can read while a
	// crawl writes.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist,
// ErrDatabaseNotFound is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close() //nolint:errcheck
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close() //nolint:errcheck
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the path of the database file.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- One row per crawled URL; refreshed on every crawl of that URL
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL UNIQUE,
		host TEXT NOT NULL,
		status_code INTEGER NOT NULL,
		depth INTEGER NOT NULL DEFAULT 0,
		title TEXT NOT NULL DEFAULT '',
		content_type TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL DEFAULT 0,
		link_count INTEGER NOT NULL DEFAULT 0,
		followed INTEGER NOT NULL DEFAULT 0,
		hash TEXT NOT NULL DEFAULT '',
		referrer TEXT NOT NULL DEFAULT '',
		fetched_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_pages_host ON pages(host);
	CREATE INDEX IF NOT EXISTS idx_pages_hash ON pages(hash);

	-- Every crawl error, rejections included
	CREATE TABLE IF NOT EXISTS failures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL DEFAULT '',
		host TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		status_code INTEGER NOT NULL DEFAULT 0,
		depth INTEGER NOT NULL DEFAULT 0,
		referrer TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_failures_kind ON failures(kind);
	CREATE INDEX IF NOT EXISTS idx_failures_host ON failures(host);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// InsertPage inserts page, replacing any earlier record of the same URL.
func (cdb *CrawlDB) InsertPage(ctx context.Context, page *model.Page) error {
	query := `
	INSERT INTO pages (url, host, status_code, depth, title, content_type, size, link_count, followed, hash, referrer, fetched_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		host = excluded.host,
		status_code = excluded.status_code,
		depth = excluded.depth,
		title = excluded.title,
		content_type = excluded.content_type,
		size = excluded.size,
		link_count = excluded.link_count,
		followed = excluded.followed,
		hash = excluded.hash,
		referrer = excluded.referrer,
		fetched_at = excluded.fetched_at
	`

	_, err := cdb.db.ExecContext(ctx, query,
		page.URL,
		page.Host,
		page.StatusCode,
		page.Depth,
		page.Title,
		page.ContentType,
		page.Size,
		page.LinkCount,
		page.Followed,
		page.Hash,
		page.Referrer,
		formatTimestamp(page.FetchedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert page: %w", err)
	}
	return nil
}

const pageColumns = `url, host, status_code, depth, title, content_type, size, link_count, followed, hash, referrer, fetched_at`

// GetPage retrieves the page stored for url, or nil when there is none.
func (cdb *CrawlDB) GetPage(ctx context.Context, url string) (*model.Page, error) {
	query := `SELECT ` + pageColumns + ` FROM pages WHERE url = ?`

	page, err := scanPage(cdb.db.QueryRowContext(ctx, query, url))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // absence is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page: %w", err)
	}
	return page, nil
}

// ListPages returns the pages of host ordered by URL. An empty host lists
// every page.
func (cdb *CrawlDB) ListPages(ctx context.Context, host string) ([]*model.Page, error) {
	query := `SELECT ` + pageColumns + ` FROM pages`
	args := make([]any, 0, 1)
	if host != "" {
		query += " WHERE host = ?"
		args = append(args, strings.ToLower(host))
	}
	query += " ORDER BY url"

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close()

	var pages []*model.Page
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

// PagesWithHash returns the URLs whose body had the given digest, ordered
// by URL. It finds the same document served under several addresses.
func (cdb *CrawlDB) PagesWithHash(ctx context.Context, hash string) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT url FROM pages WHERE hash = ? ORDER BY url`, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages by hash: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan url: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// InsertFailure appends f.
func (cdb *CrawlDB) InsertFailure(ctx context.Context, f *model.Failure) error {
	query := `
	INSERT INTO failures (url, host, kind, reason, status_code, depth, referrer, message, timestamp)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := cdb.db.ExecContext(ctx, query,
		f.URL,
		f.Host,
		f.Kind,
		f.Reason,
		f.StatusCode,
		f.Depth,
		f.Referrer,
		f.Message,
		formatTimestamp(f.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to insert failure: %w", err)
	}
	return nil
}

// ListFailures returns failures of the given kind, oldest first. An empty
// kind lists every failure.
func (cdb *CrawlDB) ListFailures(ctx context.Context, kind string) ([]*model.Failure, error) {
	query := `
	SELECT url, host, kind, reason, status_code, depth, referrer, message, timestamp
	FROM failures
	WHERE 1=1
	`
	args := make([]any, 0, 1)
	if kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY id"

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list failures: %w", err)
	}
	defer rows.Close()

	var failures []*model.Failure
	for rows.Next() {
		var f model.Failure
		var timestamp string
		if err := rows.Scan(
			&f.URL,
			&f.Host,
			&f.Kind,
			&f.Reason,
			&f.StatusCode,
			&f.Depth,
			&f.Referrer,
			&f.Message,
			&timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		f.Timestamp = parseTimestamp(timestamp)
		failures = append(failures, &f)
	}
	return failures, rows.Err()
}

// Summary aggregates everything stored in the database. StartedAt and
// FinishedAt span the earliest and latest record.
func (cdb *CrawlDB) Summary(ctx context.Context) (*model.Summary, error) {
	hosts := make(map[string]*model.HostSummary)
	hostOf := func(name string) *model.HostSummary {
		h, ok := hosts[name]
		if !ok {
			h = &model.HostSummary{Host: name}
			hosts[name] = h
		}
		return h
	}

	var first, last string
	err := cdb.db.QueryRowContext(ctx, `
	SELECT COALESCE(MIN(t), ''), COALESCE(MAX(t), '') FROM (
		SELECT fetched_at AS t FROM pages
		UNION ALL
		SELECT timestamp AS t FROM failures
	)`).Scan(&first, &last)
	if err != nil {
		return nil, fmt.Errorf("failed to query crawl span: %w", err)
	}

	s := model.NewSummary(parseTimestamp(first))
	if last != "" {
		s.Finish(parseTimestamp(last))
	}

	rows, err := cdb.db.QueryContext(ctx, `
	SELECT host, COUNT(*), COALESCE(SUM(size), 0), COALESCE(MAX(depth), 0)
	FROM pages GROUP BY host`)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize pages: %w", err)
	}
	for rows.Next() {
		var host string
		var pages, maxDepth int
		var size int64
		if err := rows.Scan(&host, &pages, &size, &maxDepth); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan page summary: %w", err)
		}
		h := hostOf(host)
		h.Pages, h.Bytes, h.MaxDepth = pages, size, maxDepth
		s.Pages += pages
		s.Bytes += size
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = cdb.db.QueryContext(ctx, `SELECT status_code, COUNT(*) FROM pages GROUP BY status_code`)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize status codes: %w", err)
	}
	for rows.Next() {
		var status, count int
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan status summary: %w", err)
		}
		s.StatusClasses[(&model.Page{StatusCode: status}).StatusClass()] += count
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = cdb.db.QueryContext(ctx, `SELECT host, kind, COUNT(*) FROM failures GROUP BY host, kind`)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize failures: %w", err)
	}
	for rows.Next() {
		var host, kind string
		var count int
		if err := rows.Scan(&host, &kind, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan failure summary: %w", err)
		}
		hostOf(host).Failures += count
		s.FailuresByKind[kind] += count
		s.Failures += count
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	for _, h := range hosts {
		s.Hosts = append(s.Hosts, *h)
	}
	slices.SortFunc(s.Hosts, func(a, b model.HostSummary) int {
		return strings.Compare(a.Host, b.Host)
	})
	return s, nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPage(row rowScanner) (*model.Page, error) {
	var page model.Page
	var fetchedAt string
	if err := row.Scan(
		&page.URL,
		&page.Host,
		&page.StatusCode,
		&page.Depth,
		&page.Title,
		&page.ContentType,
		&page.Size,
		&page.LinkCount,
		&page.Followed,
		&page.Hash,
		&page.Referrer,
		&fetchedAt,
	); err != nil {
		return nil, err
	}
	page.FetchedAt = parseTimestamp(fetchedAt)
	return &page, nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("failed to read rows: %w", err)
	}
	return rows.Close()
}

// storedTimeFormat is fixed-width so stored timestamps sort as text.
const storedTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// formatTimestamp stores times as sortable UTC text.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(storedTimeFormat)
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05", // SQLite default datetime format
	"2006-01-02T15:04:05",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

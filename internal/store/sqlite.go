package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/brand-seo/internal/brand"
	"github.com/sells-group/brand-seo/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Rows are ordered by
// the implicit rowid, which follows insertion order.
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
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	// Pragmas are per connection; one connection also serialises schema changes.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS scrape_runs (
	id             TEXT PRIMARY KEY,
	brand          TEXT NOT NULL,
	target         INTEGER NOT NULL DEFAULT 0,
	status         TEXT NOT NULL DEFAULT 'running',
	scraped        INTEGER NOT NULL DEFAULT 0,
	failed         INTEGER NOT NULL DEFAULT 0,
	stop_requested INTEGER NOT NULL DEFAULT 0,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_scrape_runs_status ON scrape_runs(status);
CREATE INDEX IF NOT EXISTS idx_scrape_runs_brand ON scrape_runs(brand);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// PersistProducts appends records to the products table, adding any column
// the batch introduces. A failed row insert is logged and skipped.
func (s *SQLiteStore) PersistProducts(ctx context.Context, records []model.ProductRecord) (*PersistResult, error) {
	kept, filtered := usable(records)
	res := &PersistResult{Received: len(records), Filtered: filtered}
	if len(kept) == 0 {
		zap.L().Info("sqlite: no usable records to persist",
			zap.Int("received", len(records)),
			zap.Int("filtered", filtered),
		)
		return res, nil
	}

	cols := model.UnionFields(kept)
	if len(cols) == 0 {
		return res, nil
	}
	if err := checkFieldNames(cols); err != nil {
		return res, err
	}
	added, err := s.ensureColumns(ctx, cols)
	if err != nil {
		return res, err
	}
	res.AddedColumns = added

	for _, rec := range kept {
		if err := s.insertRecord(ctx, rec); err != nil {
			res.Failed++
			zap.L().Warn("sqlite: insert product failed", zap.String("url", rec.URL()), zap.Error(err))
			continue
		}
		res.Inserted++
	}

	zap.L().Info("sqlite: persisted products",
		zap.Int("inserted", res.Inserted),
		zap.Int("failed", res.Failed),
		zap.Int("filtered", res.Filtered),
		zap.Strings("added_columns", added),
	)
	return res, nil
}

// ensureColumns creates the products table or widens it to hold cols.
func (s *SQLiteStore) ensureColumns(ctx context.Context, cols []string) ([]string, error) {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = quoteIdent(c) + " TEXT"
	}
	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", ProductsTable, strings.Join(defs, ", "))
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return nil, eris.Wrap(err, "sqlite: create products table")
	}

	existing, err := s.ProductColumns(ctx)
	if err != nil {
		return nil, err
	}

	var added []string
	for _, c := range missingColumns(cols, existing) {
		alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TEXT", ProductsTable, quoteIdent(c))
		if _, err := s.db.ExecContext(ctx, alter); err != nil {
			// Another writer added it between our read and this ALTER.
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return added, eris.Wrapf(err, "sqlite: add column %s", c)
		}
		added = append(added, c)
	}
	return added, nil
}

func (s *SQLiteStore) insertRecord(ctx context.Context, rec model.ProductRecord) error {
	cols := rec.Fields()
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		placeholders[i] = "?"
		args[i] = rec[c]
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		ProductsTable, strings.Join(quoteIdents(cols), ", "), strings.Join(placeholders, ", "))
	_, err := s.db.ExecContext(ctx, q, args...)
	return err
}

// ProductColumns returns the products table's columns in table order. A
// missing table has no columns.
func (s *SQLiteStore) ProductColumns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", ProductsTable))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: table info")
	}
	defer rows.Close() //nolint:errcheck

	var cols []string
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan table info")
		}
		cols = append(cols, name)
	}
	return cols, eris.Wrap(rows.Err(), "sqlite: table info iterate")
}

func (s *SQLiteStore) CountProducts(ctx context.Context, brandName string) (int, error) {
	cols, err := s.ProductColumns(ctx)
	if err != nil || len(cols) == 0 {
		return 0, err
	}

	q := fmt.Sprintf("SELECT COUNT(*) FROM %s", ProductsTable)
	var args []any
	if brandName != "" {
		q += " WHERE lower(brand) = lower(?)"
		args = append(args, brandName)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count products")
	}
	return n, nil
}

// RecentProducts returns the most recently inserted records first.
func (s *SQLiteStore) RecentProducts(ctx context.Context, filter ProductFilter) ([]model.ProductRecord, error) {
	cols, err := s.ProductColumns(ctx)
	if err != nil || len(cols) == 0 {
		return nil, err
	}

	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoteIdents(cols), ", "), ProductsTable)
	var args []any
	if filter.Brand != "" {
		q += " WHERE lower(brand) = lower(?)"
		args = append(args, filter.Brand)
	}
	q += " ORDER BY rowid DESC LIMIT ?"
	args = append(args, limitOrDefault(filter.Limit))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: recent products")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ProductRecord
	vals := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range vals {
		dest[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan product")
		}
		rec := model.ProductRecord{}
		for i, c := range cols {
			if vals[i].Valid {
				rec[c] = vals[i].String
			}
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: recent products iterate")
}

// BrandDescriptions returns non-empty descriptions grouped by title-cased
// brand, each group in insertion order.
func (s *SQLiteStore) BrandDescriptions(ctx context.Context) (map[string][]string, error) {
	out := make(map[string][]string)
	cols, err := s.ProductColumns(ctx)
	if err != nil {
		return nil, err
	}
	if !contains(cols, model.FieldBrand) || !contains(cols, model.FieldDescription) {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT brand, description FROM %s
		 WHERE brand IS NOT NULL AND description IS NOT NULL AND trim(description) != ''
		 ORDER BY rowid`, ProductsTable))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: brand descriptions")
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var b, desc string
		if err := rows.Scan(&b, &desc); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan description")
		}
		key := brand.NormalizeBrand(b)
		out[key] = append(out[key], desc)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: brand descriptions iterate")
}

// ProductStats returns per-brand counts and mean prices plus the price
// distribution. Blank or non-numeric prices count toward the brand total only.
func (s *SQLiteStore) ProductStats(ctx context.Context) (*ProductStats, error) {
	b := newStatsBuilder()
	cols, err := s.ProductColumns(ctx)
	if err != nil {
		return nil, err
	}
	if !contains(cols, model.FieldBrand) {
		return b.build(), nil
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT COALESCE(brand, ''), COUNT(*) FROM %s GROUP BY COALESCE(brand, '')`, ProductsTable))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: product counts")
	}
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			rows.Close() //nolint:errcheck
			return nil, eris.Wrap(err, "sqlite: scan product count")
		}
		b.addCount(name, n)
	}
	if err := rows.Err(); err != nil {
		rows.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "sqlite: product counts iterate")
	}
	rows.Close() //nolint:errcheck

	if !contains(cols, model.FieldPrice) {
		return b.build(), nil
	}
	rows, err = s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT COALESCE(brand, ''), price FROM %s
		 WHERE price IS NOT NULL AND trim(price) != ''`, ProductsTable))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: product prices")
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var name, price string
		if err := rows.Scan(&name, &price); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan product price")
		}
		b.addPrice(name, price)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: product prices iterate")
	}
	return b.build(), nil
}

func (s *SQLiteStore) CreateRun(ctx context.Context, brandKey string, target int) (*model.ScrapeRun, error) {
	now := time.Now().UTC()
	run := &model.ScrapeRun{
		ID:        uuid.New().String(),
		Brand:     brandKey,
		Target:    target,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scrape_runs (id, brand, target, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Brand, run.Target, string(run.Status), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return run, nil
}

func (s *SQLiteStore) UpdateRun(ctx context.Context, runID string, status model.RunStatus, scraped, failed int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scrape_runs SET status = ?, scraped = ?, failed = ?, updated_at = ? WHERE id = ?`,
		string(status), scraped, failed, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.ScrapeRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, brand, target, status, scraped, failed, stop_requested, created_at, updated_at
		 FROM scrape_runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.ScrapeRun, error) {
	query := `SELECT id, brand, target, status, scraped, failed, stop_requested, created_at, updated_at
		FROM scrape_runs WHERE 1=1`
	var args []any

	if filter.Brand != "" {
		query += ` AND brand = ?`
		args = append(args, filter.Brand)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limitOrDefault(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.ScrapeRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) RequestStop(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scrape_runs SET stop_requested = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: request stop %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) StopRequested(ctx context.Context, runID string) (bool, error) {
	var stop bool
	err := s.db.QueryRowContext(ctx,
		`SELECT stop_requested FROM scrape_runs WHERE id = ?`, runID,
	).Scan(&stop)
	if err == sql.ErrNoRows {
		return false, eris.Wrap(ErrRunNotFound, runID)
	}
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: stop requested %s", runID)
	}
	return stop, nil
}

// helpers

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrap(ErrRunNotFound, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.ScrapeRun, error) {
	var r model.ScrapeRun
	err := row.Scan(&r.ID, &r.Brand, &r.Target, &r.Status, &r.Scraped, &r.Failed,
		&r.StopRequested, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	return &r, nil
}

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/brand-seo/internal/brand"
	"github.com/sells-group/brand-seo/internal/db"
	"github.com/sells-group/brand-seo/internal/model"
)

// rowIDColumn orders products by insertion. It never surfaces as a field.
const rowIDColumn = "row_id"

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

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
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
CREATE TABLE IF NOT EXISTS scrape_runs (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	brand          TEXT NOT NULL,
	target         INTEGER NOT NULL DEFAULT 0,
	status         TEXT NOT NULL DEFAULT 'running',
	scraped        INTEGER NOT NULL DEFAULT 0,
	failed         INTEGER NOT NULL DEFAULT 0,
	stop_requested BOOLEAN NOT NULL DEFAULT false,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_scrape_runs_status ON scrape_runs(status);
CREATE INDEX IF NOT EXISTS idx_scrape_runs_brand ON scrape_runs(brand);
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

// PersistProducts appends records with a single COPY. If the COPY is
// rejected the batch falls back to per-row inserts so one bad row cannot
// sink the rest.
func (s *PostgresStore) PersistProducts(ctx context.Context, records []model.ProductRecord) (*PersistResult, error) {
	kept, filtered := usable(records)
	res := &PersistResult{Received: len(records), Filtered: filtered}
	if len(kept) == 0 {
		zap.L().Info("postgres: no usable records to persist",
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

	maps := make([]map[string]string, len(kept))
	for i, r := range kept {
		maps[i] = r
	}
	n, err := db.CopyRecords(ctx, s.pool, ProductsTable, cols, maps)
	if err == nil {
		res.Inserted = int(n)
		zap.L().Info("postgres: persisted products",
			zap.Int("inserted", res.Inserted),
			zap.Int("filtered", res.Filtered),
			zap.Strings("added_columns", added),
		)
		return res, nil
	}
	zap.L().Warn("postgres: bulk copy failed, inserting row by row", zap.Error(err))

	for _, rec := range kept {
		if err := s.insertRecord(ctx, rec); err != nil {
			res.Failed++
			zap.L().Warn("postgres: insert product failed", zap.String("url", rec.URL()), zap.Error(err))
			continue
		}
		res.Inserted++
	}
	zap.L().Info("postgres: persisted products",
		zap.Int("inserted", res.Inserted),
		zap.Int("failed", res.Failed),
		zap.Int("filtered", res.Filtered),
	)
	return res, nil
}

func (s *PostgresStore) ensureColumns(ctx context.Context, cols []string) ([]string, error) {
	defs := []string{rowIDColumn + " BIGSERIAL PRIMARY KEY"}
	for _, c := range cols {
		defs = append(defs, quoteIdent(c)+" TEXT")
	}
	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", ProductsTable, strings.Join(defs, ", "))
	if _, err := s.pool.Exec(ctx, create); err != nil {
		return nil, eris.Wrap(err, "postgres: create products table")
	}

	existing, err := s.ProductColumns(ctx)
	if err != nil {
		return nil, err
	}

	var added []string
	for _, c := range missingColumns(cols, existing) {
		alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s TEXT", ProductsTable, quoteIdent(c))
		if _, err := s.pool.Exec(ctx, alter); err != nil {
			return added, eris.Wrapf(err, "postgres: add column %s", c)
		}
		added = append(added, c)
	}
	return added, nil
}

func (s *PostgresStore) insertRecord(ctx context.Context, rec model.ProductRecord) error {
	cols := rec.Fields()
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = rec[c]
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		ProductsTable, strings.Join(quoteIdents(cols), ", "), strings.Join(placeholders, ", "))
	_, err := s.pool.Exec(ctx, q, args...)
	return err
}

func (s *PostgresStore) ProductColumns(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT column_name FROM information_schema.columns
		 WHERE table_schema = current_schema() AND table_name = $1 AND column_name <> $2
		 ORDER BY ordinal_position`,
		ProductsTable, rowIDColumn,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: product columns")
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan column")
		}
		cols = append(cols, name)
	}
	return cols, eris.Wrap(rows.Err(), "postgres: product columns iterate")
}

func (s *PostgresStore) CountProducts(ctx context.Context, brandName string) (int, error) {
	cols, err := s.ProductColumns(ctx)
	if err != nil || len(cols) == 0 {
		return 0, err
	}

	q := fmt.Sprintf("SELECT COUNT(*) FROM %s", ProductsTable)
	var args []any
	if brandName != "" {
		q += " WHERE lower(brand) = lower($1)"
		args = append(args, brandName)
	}
	var n int
	if err := s.pool.QueryRow(ctx, q, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count products")
	}
	return n, nil
}

func (s *PostgresStore) RecentProducts(ctx context.Context, filter ProductFilter) ([]model.ProductRecord, error) {
	cols, err := s.ProductColumns(ctx)
	if err != nil || len(cols) == 0 {
		return nil, err
	}

	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoteIdents(cols), ", "), ProductsTable)
	args := []any{}
	if filter.Brand != "" {
		args = append(args, filter.Brand)
		q += fmt.Sprintf(" WHERE lower(brand) = lower($%d)", len(args))
	}
	args = append(args, limitOrDefault(filter.Limit))
	q += fmt.Sprintf(" ORDER BY %s DESC LIMIT $%d", rowIDColumn, len(args))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: recent products")
	}
	defer rows.Close()

	var out []model.ProductRecord
	vals := make([]pgtype.Text, len(cols))
	dest := make([]any, len(cols))
	for i := range vals {
		dest[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, eris.Wrap(err, "postgres: scan product")
		}
		rec := model.ProductRecord{}
		for i, c := range cols {
			if vals[i].Valid {
				rec[c] = vals[i].String
			}
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: recent products iterate")
}

func (s *PostgresStore) BrandDescriptions(ctx context.Context) (map[string][]string, error) {
	out := make(map[string][]string)
	cols, err := s.ProductColumns(ctx)
	if err != nil {
		return nil, err
	}
	if !contains(cols, model.FieldBrand) || !contains(cols, model.FieldDescription) {
		return out, nil
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT brand, description FROM %s
		 WHERE brand IS NOT NULL AND description IS NOT NULL AND btrim(description) <> ''
		 ORDER BY %s`, ProductsTable, rowIDColumn))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: brand descriptions")
	}
	defer rows.Close()

	for rows.Next() {
		var b, desc string
		if err := rows.Scan(&b, &desc); err != nil {
			return nil, eris.Wrap(err, "postgres: scan description")
		}
		key := brand.NormalizeBrand(b)
		out[key] = append(out[key], desc)
	}
	return out, eris.Wrap(rows.Err(), "postgres: brand descriptions iterate")
}

// ProductStats returns per-brand counts and mean prices plus the price
// distribution. Prices are parsed client side so that stray text never fails
// the query.
func (s *PostgresStore) ProductStats(ctx context.Context) (*ProductStats, error) {
	b := newStatsBuilder()
	cols, err := s.ProductColumns(ctx)
	if err != nil {
		return nil, err
	}
	if !contains(cols, model.FieldBrand) {
		return b.build(), nil
	}

	if err := s.scanPairs(ctx, "product counts", fmt.Sprintf(
		`SELECT COALESCE(brand, ''), COUNT(*) FROM %s GROUP BY 1`, ProductsTable),
		func(rows pgx.Rows) error {
			var name string
			var n int64
			if err := rows.Scan(&name, &n); err != nil {
				return err
			}
			b.addCount(name, int(n))
			return nil
		}); err != nil {
		return nil, err
	}

	if !contains(cols, model.FieldPrice) {
		return b.build(), nil
	}
	if err := s.scanPairs(ctx, "product prices", fmt.Sprintf(
		`SELECT COALESCE(brand, ''), price FROM %s
		 WHERE price IS NOT NULL AND btrim(price) <> ''`, ProductsTable),
		func(rows pgx.Rows) error {
			var name, price string
			if err := rows.Scan(&name, &price); err != nil {
				return err
			}
			b.addPrice(name, price)
			return nil
		}); err != nil {
		return nil, err
	}
	return b.build(), nil
}

func (s *PostgresStore) scanPairs(ctx context.Context, what, query string, scan func(pgx.Rows) error) error {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return eris.Wrapf(err, "postgres: %s", what)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return eris.Wrapf(err, "postgres: scan %s", what)
		}
	}
	return eris.Wrapf(rows.Err(), "postgres: %s iterate", what)
}

func (s *PostgresStore) CreateRun(ctx context.Context, brandKey string, target int) (*model.ScrapeRun, error) {
	now := time.Now().UTC()
	run := &model.ScrapeRun{
		ID:        uuid.New().String(),
		Brand:     brandKey,
		Target:    target,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO scrape_runs (id, brand, target, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.Brand, run.Target, string(run.Status), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return run, nil
}

func (s *PostgresStore) UpdateRun(ctx context.Context, runID string, status model.RunStatus, scraped, failed int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE scrape_runs SET status = $1, scraped = $2, failed = $3, updated_at = $4 WHERE id = $5`,
		string(status), scraped, failed, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrap(ErrRunNotFound, runID)
	}
	return nil
}

const pgRunColumns = `id, brand, target, status, scraped, failed, stop_requested, created_at, updated_at`

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.ScrapeRun, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgRunColumns+` FROM scrape_runs WHERE id = $1`, runID)
	r, err := scanPgRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.ScrapeRun, error) {
	query := `SELECT ` + pgRunColumns + ` FROM scrape_runs WHERE true`
	args := []any{}

	if filter.Brand != "" {
		args = append(args, filter.Brand)
		query += fmt.Sprintf(` AND brand = $%d`, len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	args = append(args, limitOrDefault(filter.Limit))
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.ScrapeRun
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) RequestStop(ctx context.Context, runID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE scrape_runs SET stop_requested = true, updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: request stop %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrap(ErrRunNotFound, runID)
	}
	return nil
}

func (s *PostgresStore) StopRequested(ctx context.Context, runID string) (bool, error) {
	var stop bool
	err := s.pool.QueryRow(ctx, `SELECT stop_requested FROM scrape_runs WHERE id = $1`, runID).Scan(&stop)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, eris.Wrap(ErrRunNotFound, runID)
	}
	if err != nil {
		return false, eris.Wrapf(err, "postgres: stop requested %s", runID)
	}
	return stop, nil
}

func scanPgRun(row pgx.Row) (*model.ScrapeRun, error) {
	var (
		r      model.ScrapeRun
		status string
	)
	if err := row.Scan(&r.ID, &r.Brand, &r.Target, &status, &r.Scraped, &r.Failed,
		&r.StopRequested, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	return &r, nil
}

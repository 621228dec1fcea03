package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/balance-review/internal/review"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock's pool
// interface satisfies it, so tests can run without a live database.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_report": `INSERT INTO review_runs (id, period_end, generated_at, totals, report, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"get_report":    `SELECT report FROM review_runs WHERE id = $1`,
	"latest_report": `SELECT report FROM review_runs ORDER BY created_at DESC, id DESC LIMIT 1`,
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS review_runs (
	id           TEXT PRIMARY KEY,
	period_end   DATE NOT NULL,
	generated_at TIMESTAMPTZ NOT NULL,
	totals       JSONB NOT NULL,
	report       JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_review_runs_period_end ON review_runs(period_end);
CREATE INDEX IF NOT EXISTS idx_review_runs_created_at ON review_runs(created_at);
`

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
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

	// Prepare frequently-used statements on each new connection.
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

// NewPostgresWithPool wraps an existing pool; used by tests with pgxmock.
func NewPostgresWithPool(pool Pool, closeFn func()) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: closeFn}
}

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

func (s *PostgresStore) SaveReport(ctx context.Context, report *review.RuleRunReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal report")
	}
	totalsJSON, err := json.Marshal(report.Totals)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal totals")
	}

	_, err = s.pool.Exec(ctx, preparedStatements["insert_report"],
		report.RunID, report.PeriodEnd.String(), report.GeneratedAt,
		totalsJSON, reportJSON, time.Now().UTC())
	return eris.Wrapf(err, "postgres: insert run %s", report.RunID)
}

func (s *PostgresStore) GetReport(ctx context.Context, runID string) (*review.RuleRunReport, error) {
	row := s.pool.QueryRow(ctx, preparedStatements["get_report"], runID)
	return scanPgReport(row)
}

func (s *PostgresStore) LatestReport(ctx context.Context) (*review.RuleRunReport, error) {
	row := s.pool.QueryRow(ctx, preparedStatements["latest_report"])
	return scanPgReport(row)
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]RunSummary, error) {
	query := `SELECT id, period_end::text, generated_at, totals, created_at FROM review_runs WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}

	if filter.PeriodEnd != "" {
		query += ` AND period_end = ` + arg(filter.PeriodEnd)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ` + arg(limit)

	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var periodEnd string
		var totalsJSON []byte
		if err := rows.Scan(&r.RunID, &periodEnd, &r.GeneratedAt, &totalsJSON, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run summary")
		}
		if err := r.PeriodEnd.UnmarshalText([]byte(periodEnd)); err != nil {
			return nil, eris.Wrap(err, "postgres: parse period end")
		}
		if err := json.Unmarshal(totalsJSON, &r.Totals); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal totals")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func scanPgReport(row pgx.Row) (*review.RuleRunReport, error) {
	var reportJSON []byte
	err := row.Scan(&reportJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan report")
	}
	var report review.RuleRunReport
	if err := json.Unmarshal(reportJSON, &report); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal report")
	}
	return &report, nil
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

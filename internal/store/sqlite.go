package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/balance-review/internal/review"
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
CREATE TABLE IF NOT EXISTS review_runs (
	id           TEXT PRIMARY KEY,
	period_end   TEXT NOT NULL,
	generated_at DATETIME NOT NULL,
	totals       TEXT NOT NULL,
	report       TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_review_runs_period_end ON review_runs(period_end);
CREATE INDEX IF NOT EXISTS idx_review_runs_created_at ON review_runs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveReport(ctx context.Context, report *review.RuleRunReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal report")
	}
	totalsJSON, err := json.Marshal(report.Totals)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal totals")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO review_runs (id, period_end, generated_at, totals, report, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		report.RunID, report.PeriodEnd.String(), report.GeneratedAt,
		string(totalsJSON), string(reportJSON), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert run %s", report.RunID)
}

func (s *SQLiteStore) GetReport(ctx context.Context, runID string) (*review.RuleRunReport, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT report FROM review_runs WHERE id = ?`, runID)
	return scanReport(row)
}

func (s *SQLiteStore) LatestReport(ctx context.Context) (*review.RuleRunReport, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT report FROM review_runs ORDER BY created_at DESC, id DESC LIMIT 1`)
	return scanReport(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]RunSummary, error) {
	query := `SELECT id, period_end, generated_at, totals, created_at FROM review_runs WHERE 1=1`
	var args []any

	if filter.PeriodEnd != "" {
		query += ` AND period_end = ?`
		args = append(args, filter.PeriodEnd)
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

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var periodEnd, totalsJSON string
		if err := rows.Scan(&r.RunID, &periodEnd, &r.GeneratedAt, &totalsJSON, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run summary")
		}
		if err := r.PeriodEnd.UnmarshalText([]byte(periodEnd)); err != nil {
			return nil, eris.Wrap(err, "sqlite: parse period end")
		}
		if err := json.Unmarshal([]byte(totalsJSON), &r.Totals); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal totals")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanReport(row scannable) (*review.RuleRunReport, error) {
	var reportJSON string
	err := row.Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan report")
	}
	var report review.RuleRunReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal report")
	}
	return &report, nil
}

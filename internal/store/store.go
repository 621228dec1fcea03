// Package store persists rule run reports. Reports are stored as JSON
// documents with indexed run metadata; SQLite and Postgres backends share
// the same interface.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/balance-review/internal/review"
)

// ErrNotFound is returned when no report matches the lookup.
var ErrNotFound = eris.New("store: report not found")

// RunSummary is the indexed metadata for one persisted run.
type RunSummary struct {
	RunID       string                    `json:"run_id"`
	PeriodEnd   review.Date               `json:"period_end"`
	GeneratedAt time.Time                 `json:"generated_at"`
	Totals      map[review.RuleStatus]int `json:"totals"`
	CreatedAt   time.Time                 `json:"created_at"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	PeriodEnd string `json:"period_end,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// Store defines the report persistence interface.
type Store interface {
	SaveReport(ctx context.Context, report *review.RuleRunReport) error
	GetReport(ctx context.Context, runID string) (*review.RuleRunReport, error)
	LatestReport(ctx context.Context) (*review.RuleRunReport, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]RunSummary, error)

	Migrate(ctx context.Context) error
	Close() error
}

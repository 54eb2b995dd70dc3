// Package store persists snapshots and provider-call records. Two
// backends exist: SQLite for single-node deployments and Postgres for
// shared ones. A snapshot and its child rows always commit in one
// transaction.
package store

import (
	"context"

	"github.com/searchlens/visibility-cli/internal/model"
)

// SnapshotFilter selects snapshots for listing.
type SnapshotFilter struct {
	Query  string `json:"query,omitempty"`
	Days   int    `json:"days,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// SnapshotRecord is the fully reconstructed record set of one run.
type SnapshotRecord struct {
	Snapshot  model.Snapshot          `json:"snapshot"`
	Citations []model.Citation        `json:"citations"`
	Positions []model.OrganicPosition `json:"organic_positions"`
	Log       *model.ExecutionLog     `json:"execution_log,omitempty"`
}

// Store defines the persistence interface for collection runs.
type Store interface {
	// SaveSnapshot persists the snapshot, its citations, organic
	// positions, and execution log in a single transaction and returns
	// the assigned snapshot ID. On failure nothing is persisted.
	SaveSnapshot(ctx context.Context, snap *model.Snapshot, citations []model.Citation,
		positions []model.OrganicPosition, log *model.ExecutionLog) (int64, error)
	GetSnapshot(ctx context.Context, id int64) (*SnapshotRecord, error)
	ListSnapshots(ctx context.Context, filter SnapshotFilter) ([]model.Snapshot, error)

	// Provider-call analytics
	LogProviderCall(ctx context.Context, call model.ProviderCall) error
	ProviderStats(ctx context.Context, provider string, days int) (*model.ProviderStats, error)
	CostAnalysis(ctx context.Context, days int) (*model.CostAnalysis, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

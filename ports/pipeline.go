package ports

import (
	"context"

	"entitlements/domain/table"
)

// TableLoader acquires a source and exposes it as a Table
type TableLoader interface {
	// Load reads the source at path. Missing files fail with SOURCE_NOT_FOUND,
	// unparsable ones with SOURCE_UNREADABLE.
	Load(ctx context.Context, source string) (*table.Table, error)
}

// Materializer is a terminal pipeline stage that serializes a normalized
// Table into one output artifact. Materializers never interact with each other.
type Materializer interface {
	Name() string
	Target() string
	Materialize(ctx context.Context, t *table.Table, meta table.Metadata) (MaterializeResult, error)
}

// MaterializeResult reports what a materializer produced
type MaterializeResult struct {
	Name     string   `json:"name"`
	Target   string   `json:"target"`
	Records  int      `json:"records"`
	Warnings []string `json:"warnings,omitempty"`
}

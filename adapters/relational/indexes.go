package relational

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// IndexSpec names a lookup index on one renamed column
type IndexSpec struct {
	Name   string
	Column string
}

// DefaultIndexes are the lookup indexes the dashboard queries rely on
var DefaultIndexes = []IndexSpec{
	{Name: "idx_brand", Column: "Brand"},
	{Name: "idx_customer", Column: "Customer_name"},
	{Name: "idx_region", Column: "CRM_region"},
	{Name: "idx_product", Column: "Current_product"},
	{Name: "idx_site", Column: "Site_number"},
}

// IndexWarning records an index that was skipped. Skipping never fails the run.
type IndexWarning struct {
	Index  string `json:"index"`
	Column string `json:"column"`
	Reason string `json:"reason"`
}

func (w IndexWarning) String() string {
	return fmt.Sprintf("index %s on %s skipped: %s", w.Index, w.Column, w.Reason)
}

// createIndexes builds every index whose column exists. Column names match
// case-insensitively, as SQL identifiers do, and the index is built on the
// table's own spelling. Each CREATE INDEX runs under its own savepoint so a
// failure leaves the surrounding transaction usable.
func createIndexes(ctx context.Context, tx *sqlx.Tx, tableName string, columns []string, indexes []IndexSpec) (created []string, warnings []IndexWarning) {
	for _, idx := range indexes {
		column, ok := findColumn(columns, idx.Column)
		if !ok {
			warnings = append(warnings, IndexWarning{Index: idx.Name, Column: idx.Column, Reason: "column not found"})
			continue
		}

		savepoint := "sp_" + idx.Name
		if _, err := tx.ExecContext(ctx, "SAVEPOINT "+savepoint); err != nil {
			warnings = append(warnings, IndexWarning{Index: idx.Name, Column: column, Reason: err.Error()})
			continue
		}

		stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			quoteIdent(idx.Name), quoteIdent(tableName), quoteIdent(column))
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+savepoint)
			tx.ExecContext(ctx, "RELEASE SAVEPOINT "+savepoint)
			warnings = append(warnings, IndexWarning{Index: idx.Name, Column: column, Reason: err.Error()})
			continue
		}

		if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+savepoint); err != nil {
			warnings = append(warnings, IndexWarning{Index: idx.Name, Column: column, Reason: err.Error()})
			continue
		}
		created = append(created, idx.Name)
	}
	return created, warnings
}

func findColumn(columns []string, name string) (string, bool) {
	for _, c := range columns {
		if strings.EqualFold(c, name) {
			return c, true
		}
	}
	return "", false
}

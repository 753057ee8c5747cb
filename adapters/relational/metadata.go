package relational

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"entitlements/domain/table"
)

// Metadata keys written alongside the data table
const (
	MetaGeneratedAt  = "generated_at"
	MetaSourceFile   = "source_file"
	MetaTotalRecords = "total_records"
	MetaColumns      = "columns"
)

const createMetadataSQL = `CREATE TABLE IF NOT EXISTS metadata (key TEXT PRIMARY KEY, value TEXT)`

type metadataRow struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

// metadataRows flattens run metadata into key/value pairs. columns are the
// renamed identifiers actually present in the data table.
func metadataRows(meta table.Metadata, columns []string) []metadataRow {
	return []metadataRow{
		{Key: MetaGeneratedAt, Value: meta.GeneratedAtISO()},
		{Key: MetaSourceFile, Value: meta.SourceFile},
		{Key: MetaTotalRecords, Value: strconv.Itoa(meta.TotalRecords)},
		{Key: MetaColumns, Value: strings.Join(columns, ",")},
	}
}

// saveMetadata upserts every key so repeated runs keep one row per key
func saveMetadata(ctx context.Context, tx *sqlx.Tx, d dialect, rows []metadataRow) error {
	if _, err := tx.ExecContext(ctx, createMetadataSQL); err != nil {
		return fmt.Errorf("failed to create metadata table: %w", err)
	}

	query := tx.Rebind(d.upsert)
	for _, row := range rows {
		if _, err := tx.ExecContext(ctx, query, row.Key, row.Value); err != nil {
			return fmt.Errorf("failed to save metadata %s: %w", row.Key, err)
		}
	}
	return nil
}

// ReadMetadata returns the key/value metadata of an existing database
func ReadMetadata(ctx context.Context, db *sqlx.DB) (map[string]string, error) {
	var rows []metadataRow
	if err := db.SelectContext(ctx, &rows, `SELECT key, value FROM metadata ORDER BY key`); err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

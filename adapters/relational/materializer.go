// Package relational materializes a normalized table into a SQL database the
// BI tool can query: one data table with column names made SQL-safe, a fixed
// set of lookup indexes and a key/value metadata table.
package relational

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"

	"entitlements/domain/table"
	"entitlements/internal"
	"entitlements/internal/errors"
	"entitlements/internal/storage"
	"entitlements/ports"
)

// DefaultTable is the name of the data table
const DefaultTable = "entitlements"

// Config selects the database and how it is replaced
type Config struct {
	// Driver is DriverSQLite or DriverPostgres
	Driver string
	// Path is the SQLite database file
	Path string
	// DSN is the Postgres connection string
	DSN string
	// Atomic builds a SQLite database in a temp file and renames it over Path.
	// When false the live file is rewritten inside a transaction.
	Atomic bool
	// Table defaults to DefaultTable
	Table string
	// Indexes defaults to DefaultIndexes
	Indexes []IndexSpec
}

// Materializer writes tables into SQLite or Postgres
type Materializer struct {
	config  Config
	dialect dialect
	logger  *internal.Logger
}

// NewMaterializer validates cfg and returns a materializer
func NewMaterializer(cfg Config, logger *internal.Logger) (*Materializer, error) {
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, errors.ConfigInvalid(err.Error())
	}
	if d.driver == DriverSQLite && cfg.Path == "" {
		return nil, errors.ConfigInvalid("sqlite output path is required")
	}
	if d.driver == DriverPostgres && cfg.DSN == "" {
		return nil, errors.ConfigInvalid("postgres DSN is required")
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if cfg.Indexes == nil {
		cfg.Indexes = DefaultIndexes
	}

	return &Materializer{
		config:  cfg,
		dialect: d,
		logger:  internal.OrDefault(logger).With("Relational"),
	}, nil
}

// Name implements ports.Materializer
func (m *Materializer) Name() string { return m.dialect.driver }

// Target implements ports.Materializer
func (m *Materializer) Target() string {
	if m.dialect.driver == DriverPostgres {
		return redactDSN(m.config.DSN)
	}
	return m.config.Path
}

// Materialize replaces the data table with t and upserts meta
func (m *Materializer) Materialize(ctx context.Context, t *table.Table, meta table.Metadata) (ports.MaterializeResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.MaterializeResult{}, err
	}

	m.logger.Info("Writing %s database to: %s", m.dialect.driver, m.Target())

	var (
		warnings []IndexWarning
		err      error
	)
	switch {
	case m.dialect.driver == DriverSQLite && m.config.Atomic:
		warnings, err = m.writeSQLiteAtomic(ctx, t, meta)
	case m.dialect.driver == DriverSQLite:
		if err = storage.EnsureDir(m.config.Path); err == nil {
			warnings, err = m.writeTo(ctx, m.config.Path, t, meta)
		}
	default:
		warnings, err = m.writeTo(ctx, m.config.DSN, t, meta)
	}
	if err != nil {
		return ports.MaterializeResult{}, errors.MaterializeFailed(m.Target(), err)
	}

	result := ports.MaterializeResult{Name: m.Name(), Target: m.Target(), Records: t.Len()}
	for _, w := range warnings {
		m.logger.Warn("%s", w.String())
		result.Warnings = append(result.Warnings, w.String())
	}
	return result, nil
}

// writeSQLiteAtomic builds the whole database next to the target and swaps it in
func (m *Materializer) writeSQLiteAtomic(ctx context.Context, t *table.Table, meta table.Metadata) ([]IndexWarning, error) {
	if err := storage.EnsureDir(m.config.Path); err != nil {
		return nil, err
	}

	tmp := storage.TempPath(m.config.Path)
	warnings, err := m.writeTo(ctx, tmp, t, meta)
	if err != nil {
		os.Remove(tmp)
		return nil, err
	}
	if err := storage.Replace(tmp, m.config.Path); err != nil {
		return nil, err
	}
	return warnings, nil
}

// writeTo opens dsn and rewrites the data and metadata tables in one transaction
func (m *Materializer) writeTo(ctx context.Context, dsn string, t *table.Table, meta table.Metadata) ([]IndexWarning, error) {
	db, err := sqlx.ConnectContext(ctx, m.dialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	if m.dialect.driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	columns := RenameColumns(t.ColumnNames())
	if err := m.replaceData(ctx, tx, t, columns); err != nil {
		return nil, err
	}

	created, warnings := createIndexes(ctx, tx, m.config.Table, columns, m.config.Indexes)
	for _, name := range created {
		m.logger.Debug("Created index %s", name)
	}

	if err := saveMetadata(ctx, tx, m.dialect, metadataRows(meta, columns)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return warnings, nil
}

// replaceData drops the data table, recreates it with inferred column types and inserts every record
func (m *Materializer) replaceData(ctx context.Context, tx *sqlx.Tx, t *table.Table, columns []string) error {
	if len(columns) == 0 {
		return fmt.Errorf("table has no columns")
	}

	affinities := make([]affinity, len(columns))
	for i := range columns {
		affinities[i] = inferAffinity(t.ColumnValues(i))
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(m.config.Table)); err != nil {
		return fmt.Errorf("failed to drop %s: %w", m.config.Table, err)
	}
	if _, err := tx.ExecContext(ctx, m.dialect.createTableSQL(m.config.Table, columns, affinities)); err != nil {
		return fmt.Errorf("failed to create %s: %w", m.config.Table, err)
	}

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(m.dialect.insertSQL(m.config.Table, columns)))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]interface{}, len(columns))
	for row, rec := range t.Records {
		for i, v := range rec {
			args[i] = bindValue(v, affinities[i])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert record %d: %w", row, err)
		}
	}

	var count int
	if err := tx.GetContext(ctx, &count, "SELECT COUNT(*) FROM "+quoteIdent(m.config.Table)); err != nil {
		return fmt.Errorf("failed to count %s: %w", m.config.Table, err)
	}
	if count != t.Len() {
		return fmt.Errorf("inserted %d of %d records", count, t.Len())
	}
	return nil
}

// Open connects to the materialized database for reading
func Open(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, errors.ConfigInvalid(err.Error())
	}
	dsn := cfg.DSN
	if d.driver == DriverSQLite {
		if ok, err := storage.Exists(cfg.Path); err != nil || !ok {
			return nil, errors.SourceNotFound(cfg.Path)
		}
		dsn = cfg.Path
	}
	db, err := sqlx.ConnectContext(ctx, d.driver, dsn)
	if err != nil {
		return nil, errors.WithCode(errors.CodeSourceUnreadable, err, "failed to open database "+redactDSN(dsn))
	}
	return db, nil
}

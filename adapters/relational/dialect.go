package relational

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know by name
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// affinity is the storage class chosen for a column from its values
type affinity int

const (
	affinityText affinity = iota
	affinityInteger
	affinityBoolean
	affinityReal
)

// dialect holds the per-database SQL that differs between SQLite and Postgres
type dialect struct {
	driver string
	types  map[affinity]string
	upsert string
}

var dialects = map[string]dialect{
	DriverSQLite: {
		driver: DriverSQLite,
		types: map[affinity]string{
			affinityText:    "TEXT",
			affinityInteger: "INTEGER",
			affinityBoolean: "INTEGER",
			affinityReal:    "REAL",
		},
		upsert: `INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)`,
	},
	DriverPostgres: {
		driver: DriverPostgres,
		types: map[affinity]string{
			affinityText:    "TEXT",
			affinityInteger: "BIGINT",
			affinityBoolean: "BOOLEAN",
			affinityReal:    "DOUBLE PRECISION",
		},
		upsert: `
			INSERT INTO metadata (key, value)
			VALUES (?, ?)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
	},
}

func dialectFor(driver string) (dialect, error) {
	d, ok := dialects[strings.ToLower(driver)]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported database driver: %q (expected %s or %s)", driver, DriverSQLite, DriverPostgres)
	}
	return d, nil
}

func (d dialect) sqlType(a affinity) string {
	return d.types[a]
}

// createTableSQL emits the DDL for the data table
func (d dialect) createTableSQL(table string, columns []string, affinities []affinity) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = fmt.Sprintf("%s %s", quoteIdent(c), d.sqlType(affinities[i]))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", quoteIdent(table), strings.Join(defs, ",\n  "))
}

// insertSQL emits a single-row INSERT with bindvar placeholders
func (d dialect) insertSQL(table string, columns []string) string {
	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(quoted, ", "), strings.Join(marks, ", "))
}

// redactDSN hides the password of a URL-form connection string
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}

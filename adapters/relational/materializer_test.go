package relational

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"entitlements/domain/table"
	"entitlements/internal"
	"entitlements/internal/errors"
	"entitlements/internal/normalize"
	"entitlements/internal/testkit"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quiet() *internal.Logger {
	return internal.NewLogger(internal.LogLevelError)
}

func sqliteMaterializer(t *testing.T, path string, atomic bool) *Materializer {
	t.Helper()
	m, err := NewMaterializer(Config{Driver: DriverSQLite, Path: path, Atomic: atomic}, quiet())
	require.NoError(t, err)
	return m
}

func openSQLite(t *testing.T, path string) *sqlx.DB {
	t.Helper()
	db, err := Open(context.Background(), Config{Driver: DriverSQLite, Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func indexNames(t *testing.T, db *sqlx.DB) []string {
	t.Helper()
	var names []string
	require.NoError(t, db.Select(&names,
		`SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = ? ORDER BY name`, DefaultTable))
	return names
}

func metaAt(t *table.Table, source string) table.Metadata {
	return table.NewMetadata(t, source, time.Date(2024, 3, 1, 10, 0, 0, 0, time.Local))
}

func TestScenarioSQLite(t *testing.T) {
	dated, _ := normalize.Dates(testkit.ScenarioTable(), quiet())
	tbl, _ := normalize.Nulls(dated)

	path := filepath.Join(t.TempDir(), "out", "entitlements.db")
	result, err := sqliteMaterializer(t, path, true).Materialize(context.Background(), tbl, metaAt(tbl, "scenario.xlsx"))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Records)
	assert.Len(t, result.Warnings, 4, "only Brand exists among the indexed columns")

	db := openSQLite(t, path)

	var count int
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM entitlements`))
	assert.Equal(t, 3, count)

	var dates []string
	require.NoError(t, db.Select(&dates, `SELECT Ship_Date FROM entitlements ORDER BY rowid`))
	assert.Equal(t, []string{"2024-01-15", "2024-02-01", "2023-12-31"}, dates)

	var nulls int
	require.NoError(t, db.Get(&nulls, `SELECT COUNT(*) FROM entitlements WHERE Qty IS NULL`))
	assert.Equal(t, 1, nulls)

	meta, err := ReadMetadata(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, "3", meta[MetaTotalRecords])
	assert.Equal(t, "scenario.xlsx", meta[MetaSourceFile])
	assert.Equal(t, "Brand,Ship_Date,Qty", meta[MetaColumns])
	assert.Equal(t, "2024-03-01T10:00:00.000000", meta[MetaGeneratedAt])

	assert.Equal(t, []string{"idx_brand"}, indexNames(t, db))
}

func TestEntitlementIndexes(t *testing.T) {
	tbl := testkit.EntitlementTable()
	path := filepath.Join(t.TempDir(), "entitlements.db")

	result, err := sqliteMaterializer(t, path, true).Materialize(context.Background(), tbl, metaAt(tbl, "ents.xlsx"))
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)

	db := openSQLite(t, path)
	assert.Equal(t, []string{"idx_brand", "idx_customer", "idx_product", "idx_region", "idx_site"}, indexNames(t, db))

	var region []string
	require.NoError(t, db.Select(&region, `SELECT DISTINCT CRM_region FROM entitlements ORDER BY CRM_region`))
	assert.Equal(t, []string{"EMEA", "North America"}, region)

	var active int
	require.NoError(t, db.Get(&active, `SELECT SUM(Active_SandS_quantity) FROM entitlements`))
	assert.Equal(t, 14, active)
}

func TestMissingIndexColumnIsWarning(t *testing.T) {
	full := testkit.EntitlementTable()
	site := full.Index("Site number")

	var cols []table.Column
	for i, c := range full.Columns {
		if i != site {
			cols = append(cols, c)
		}
	}
	var recs []table.Record
	for _, r := range full.Records {
		rec := append(table.Record{}, r[:site]...)
		recs = append(recs, append(rec, r[site+1:]...))
	}
	tbl, err := table.New(cols, recs)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "entitlements.db")
	result, err := sqliteMaterializer(t, path, true).Materialize(context.Background(), tbl, metaAt(tbl, "ents.xlsx"))
	require.NoError(t, err)

	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "idx_site")
	assert.Contains(t, result.Warnings[0], "Site_number")

	db := openSQLite(t, path)
	assert.Equal(t, []string{"idx_brand", "idx_customer", "idx_product", "idx_region"}, indexNames(t, db))
}

func TestInPlaceRunsReplaceDataAndMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entitlements.db")
	m := sqliteMaterializer(t, path, false)

	first := testkit.EntitlementTable()
	_, err := m.Materialize(context.Background(), first, metaAt(first, "first.xlsx"))
	require.NoError(t, err)

	second := testkit.ScenarioTable()
	second, _ = normalize.Nulls(second)
	second.Records = second.Records[:2]
	_, err = m.Materialize(context.Background(), second, metaAt(second, "second.xlsx"))
	require.NoError(t, err)

	db := openSQLite(t, path)

	var metaRows int
	require.NoError(t, db.Get(&metaRows, `SELECT COUNT(*) FROM metadata`))
	assert.Equal(t, 4, metaRows)

	meta, err := ReadMetadata(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, "2", meta[MetaTotalRecords])
	assert.Equal(t, "second.xlsx", meta[MetaSourceFile])

	var count int
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM entitlements`))
	assert.Equal(t, 2, count)

	var columns []string
	require.NoError(t, db.Select(&columns, `SELECT name FROM pragma_table_info('entitlements')`))
	assert.Equal(t, []string{"Brand", "Ship_Date", "Qty"}, columns)
}

func TestAtomicRunReplacesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "entitlements.db")
	require.NoError(t, os.WriteFile(path, []byte("not a database"), 0644))

	tbl := testkit.EntitlementTable()
	_, err := sqliteMaterializer(t, path, true).Materialize(context.Background(), tbl, metaAt(tbl, "ents.xlsx"))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp database must not be left behind")
	assert.Equal(t, "entitlements.db", entries[0].Name())

	db := openSQLite(t, path)
	var count int
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM entitlements`))
	assert.Equal(t, 3, count)
}

func TestInPlaceRunOnCorruptFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entitlements.db")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("not a database ", 100)), 0644))

	tbl := testkit.EntitlementTable()
	_, err := sqliteMaterializer(t, path, false).Materialize(context.Background(), tbl, metaAt(tbl, "ents.xlsx"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeMaterializeFailed))
}
func TestIndexColumnsMatchIgnoringCase(t *testing.T) {
	tbl, err := table.New(
		[]table.Column{{Name: "brand"}, {Name: "Customer Name"}, {Name: "crm REGION"}},
		[]table.Record{{table.String("Acme"), table.String("Initech"), table.String("EMEA")}},
	)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "entitlements.db")
	result, err := sqliteMaterializer(t, path, true).Materialize(context.Background(), tbl, metaAt(tbl, "ents.xlsx"))
	require.NoError(t, err)
	require.Len(t, result.Warnings, 2)
	assert.Contains(t, result.Warnings[0], "idx_product")
	assert.Contains(t, result.Warnings[1], "idx_site")

	db := openSQLite(t, path)
	assert.Equal(t, []string{"idx_brand", "idx_customer", "idx_region"}, indexNames(t, db))

	var indexed string
	require.NoError(t, db.Get(&indexed, `SELECT name FROM pragma_index_info('idx_customer')`))
	assert.Equal(t, "Customer_Name", indexed)
}

func TestOpenUnreachableDatabase(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "absent.db")})
	assert.True(t, errors.HasCode(err, errors.CodeSourceNotFound))

	_, err = Open(context.Background(), Config{
		Driver: DriverPostgres,
		DSN:    "postgres://etl@127.0.0.1:1/bi?sslmode=disable&connect_timeout=2",
	})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeSourceUnreadable))
}

func TestColumnTypes(t *testing.T) {
	tbl, err := table.New(
		[]table.Column{{Name: "Qty"}, {Name: "Ratio"}, {Name: "Flag"}, {Name: "Empty"}, {Name: "Mixed"}},
		[]table.Record{
			{table.Int(1), table.Int(2), table.Bool(true), table.Absent(), table.String("a")},
			{table.Absent(), table.Float(0.5), table.Bool(false), table.Absent(), table.Int(3)},
		},
	)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "types.db")
	_, err = sqliteMaterializer(t, path, true).Materialize(context.Background(), tbl, metaAt(tbl, "types.csv"))
	require.NoError(t, err)

	db := openSQLite(t, path)
	var types []string
	require.NoError(t, db.Select(&types, `SELECT type FROM pragma_table_info('entitlements')`))
	assert.Equal(t, []string{"INTEGER", "REAL", "INTEGER", "TEXT", "TEXT"}, types)

	var mixed []string
	require.NoError(t, db.Select(&mixed, `SELECT Mixed FROM entitlements ORDER BY rowid`))
	assert.Equal(t, []string{"a", "3"}, mixed)
}

func TestNewMaterializerValidatesConfig(t *testing.T) {
	_, err := NewMaterializer(Config{Driver: "oracle", Path: "x.db"}, quiet())
	assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid))

	_, err = NewMaterializer(Config{Driver: DriverSQLite}, quiet())
	assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid))

	_, err = NewMaterializer(Config{Driver: DriverPostgres}, quiet())
	assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid))

	m, err := NewMaterializer(Config{Driver: "Postgres", DSN: "postgres://etl:secret@db:5432/bi"}, quiet())
	require.NoError(t, err)
	assert.Equal(t, "postgres", m.Name())
	assert.NotContains(t, m.Target(), "secret")
}

func TestMaterializeHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := filepath.Join(t.TempDir(), "entitlements.db")
	tbl := testkit.EntitlementTable()
	_, err := sqliteMaterializer(t, path, true).Materialize(ctx, tbl, metaAt(tbl, "ents.xlsx"))
	require.ErrorIs(t, err, context.Canceled)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

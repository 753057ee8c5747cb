package table

import (
	"fmt"
	"time"
)

// Layouts used for canonical date output
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02T15:04:05"
)

// ColumnType is the declared (loader-inferred) type of a column
type ColumnType string

const (
	ColumnTypeDateTime ColumnType = "datetime"
	ColumnTypeInt      ColumnType = "int"
	ColumnTypeFloat    ColumnType = "float"
	ColumnTypeBool     ColumnType = "bool"
	ColumnTypeString   ColumnType = "string"
	ColumnTypeObject   ColumnType = "object" // generic/untyped, mixed or empty
)

// Column is a named, typed column of a Table
type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// Record holds one value per column, aligned with Table.Columns
type Record []Value

// Table is the in-memory representation of the source spreadsheet:
// ordered columns and ordered records.
type Table struct {
	Columns []Column
	Records []Record
}

// New builds a Table, padding short records with Absent so every record
// carries a value for every column. Records longer than the column list are rejected.
func New(columns []Column, records []Record) (*Table, error) {
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if seen[c.Name] {
			return nil, fmt.Errorf("duplicate column name: %q", c.Name)
		}
		seen[c.Name] = true
	}

	out := make([]Record, len(records))
	for i, rec := range records {
		if len(rec) > len(columns) {
			return nil, fmt.Errorf("record %d has %d values for %d columns", i, len(rec), len(columns))
		}
		padded := make(Record, len(columns))
		copy(padded, rec)
		for j := len(rec); j < len(columns); j++ {
			padded[j] = Absent()
		}
		out[i] = padded
	}

	cols := make([]Column, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols, Records: out}, nil
}

// Len returns the number of records
func (t *Table) Len() int {
	return len(t.Records)
}

// ColumnNames returns the ordered column names
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Index returns the position of the named column, or -1
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Get returns the value of the named column in record row
func (t *Table) Get(row int, name string) (Value, bool) {
	idx := t.Index(name)
	if idx < 0 || row < 0 || row >= len(t.Records) {
		return Absent(), false
	}
	return t.Records[row][idx], true
}

// ColumnValues returns a copy of all values of column idx, in record order
func (t *Table) ColumnValues(idx int) []Value {
	values := make([]Value, len(t.Records))
	for i, rec := range t.Records {
		values[i] = rec[idx]
	}
	return values
}

// Clone returns a deep copy so stages can rewrite values without touching their input
func (t *Table) Clone() *Table {
	cols := make([]Column, len(t.Columns))
	copy(cols, t.Columns)
	records := make([]Record, len(t.Records))
	for i, rec := range t.Records {
		r := make(Record, len(rec))
		copy(r, rec)
		records[i] = r
	}
	return &Table{Columns: cols, Records: records}
}

// Metadata describes one pipeline run. It is derived from the Table and the
// run clock and fully replaces any previous run's metadata.
type Metadata struct {
	GeneratedAt  time.Time `json:"-"`
	TotalRecords int       `json:"total_records"`
	SourceFile   string    `json:"source_file"`
	Columns      []string  `json:"columns"`
}

// NewMetadata derives run metadata from a table
func NewMetadata(t *Table, source string, generatedAt time.Time) Metadata {
	return Metadata{
		GeneratedAt:  generatedAt,
		TotalRecords: t.Len(),
		SourceFile:   source,
		Columns:      t.ColumnNames(),
	}
}

// GeneratedAtISO formats the generation timestamp as local ISO-8601 with microseconds
func (m Metadata) GeneratedAtISO() string {
	return m.GeneratedAt.Format("2006-01-02T15:04:05.000000")
}

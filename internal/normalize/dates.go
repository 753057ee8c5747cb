// Package normalize rewrites loaded tables into the shape both materializers
// consume: date-like columns as YYYY-MM-DD strings and every form of missing
// value as the canonical absent marker.
package normalize

import (
	"strings"
	"time"

	"entitlements/domain/table"
	"entitlements/internal"
)

// DateRule records which rule classified a column as dates
type DateRule string

const (
	DateRuleUniform  DateRule = "uniform"  // every non-absent value is a native date
	DateRuleInferred DateRule = "inferred" // generic column whose first sample is a native date
)

// DateColumn describes one converted column
type DateColumn struct {
	Name string   `json:"name"`
	Rule DateRule `json:"rule"`
	// Coerced counts values that could not be read as dates and became absent
	Coerced int `json:"coerced"`
}

// DateReport summarizes a normalization pass
type DateReport struct {
	Columns []DateColumn `json:"columns"`
	// Stray counts native dates in pass-through columns rendered as date-time text
	Stray int `json:"stray"`
}

// Coerced returns the total number of values lost to failed date reinterpretation
func (r DateReport) Coerced() int {
	n := 0
	for _, c := range r.Columns {
		n += c.Coerced
	}
	return n
}

// dateLayouts are tried in order when reinterpreting text in an inferred date column
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01/02/2006 15:04:05",
	"2006/01/02",
	"02-Jan-2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// IsUniformDateColumn reports whether every non-absent value is a native
// date. A column with no values is never a date column.
func IsUniformDateColumn(values []table.Value) bool {
	present := 0
	for _, v := range values {
		if v.IsMissing() {
			continue
		}
		if v.Kind != table.KindDate {
			return false
		}
		present++
	}
	return present > 0
}

// IsInferredDateColumn is the sampling heuristic for generic columns: the
// column is treated as dates when its declared type is object and its first
// non-absent value is a native date. A single unrepresentative leading value
// decides the whole column.
func IsInferredDateColumn(col table.Column, values []table.Value) bool {
	if col.Type != table.ColumnTypeObject {
		return false
	}
	for _, v := range values {
		if v.IsMissing() {
			continue
		}
		return v.Kind == table.KindDate
	}
	return false
}

// Dates returns a copy of t where date-like columns hold YYYY-MM-DD strings.
// Values in inferred date columns that cannot be read as dates become absent;
// that is a silent, counted loss and never an error.
func Dates(t *table.Table, logger *internal.Logger) (*table.Table, DateReport) {
	logger = internal.OrDefault(logger).With("Normalize")
	out := t.Clone()
	var report DateReport

	for idx, col := range out.Columns {
		values := out.ColumnValues(idx)

		switch {
		case IsUniformDateColumn(values):
			logger.Info("Converting datetime column: %s", col.Name)
			for i, v := range values {
				out.Records[i][idx] = formatDate(v)
			}
			out.Columns[idx].Type = table.ColumnTypeString
			report.Columns = append(report.Columns, DateColumn{Name: col.Name, Rule: DateRuleUniform})

		case IsInferredDateColumn(col, values):
			logger.Info("Converting datetime column: %s", col.Name)
			coerced := 0
			for i, v := range values {
				nv, ok := reinterpretDate(v)
				if !ok {
					coerced++
				}
				out.Records[i][idx] = nv
			}
			out.Columns[idx].Type = table.ColumnTypeString
			if coerced > 0 {
				logger.Debug("%d values in %s could not be read as dates", coerced, col.Name)
			}
			report.Columns = append(report.Columns, DateColumn{Name: col.Name, Rule: DateRuleInferred, Coerced: coerced})

		default:
			for i, v := range values {
				if v.Kind == table.KindDate {
					out.Records[i][idx] = table.String(v.DateVal.Format(table.DateTimeLayout))
					report.Stray++
				}
			}
		}
	}

	return out, report
}

func formatDate(v table.Value) table.Value {
	if v.Kind != table.KindDate {
		return table.Absent()
	}
	return table.String(v.DateVal.Format(table.DateLayout))
}

// reinterpretDate converts one value of an inferred date column. The bool is
// false when a present value had to be dropped.
func reinterpretDate(v table.Value) (table.Value, bool) {
	switch {
	case v.IsMissing():
		return table.Absent(), true
	case v.Kind == table.KindDate:
		return formatDate(v), true
	case v.Kind == table.KindString:
		if d, ok := ParseDate(v.StrVal); ok {
			return table.String(d.Format(table.DateLayout)), true
		}
	}
	return table.Absent(), false
}

// ParseDate reads text in any of the supported date layouts
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

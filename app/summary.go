package app

import (
	"fmt"
	"io"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/montanaflynn/stats"

	"entitlements/domain/table"
	"entitlements/ports"
)

// Columns the run summary reports on when they exist
var (
	UniqueColumns = []UniqueColumn{
		{Column: "Brand", Label: "Brands"},
		{Column: "Customer name", Label: "Customers"},
		{Column: "CRM region", Label: "Regions"},
	}
	QuantityColumns = []string{
		"Software license or appliance quantity",
		"Active S&S quantity",
		"Active Subscription License Quantity",
		"SaaS/Cloud software or leased appliance quantity",
	}
)

// UniqueColumn pairs a source column with its summary label
type UniqueColumn struct {
	Column string
	Label  string
}

// Count is a distinct-value count of one column
type Count struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

// Total is the sum of one quantity column
type Total struct {
	Column string  `json:"column"`
	Value  float64 `json:"value"`
}

// Summary is the human-readable account of a run
type Summary struct {
	Records  int                       `json:"records"`
	Columns  int                       `json:"columns"`
	Unique   []Count                   `json:"unique"`
	Totals   []Total                   `json:"totals"`
	Outputs  []ports.MaterializeResult `json:"outputs"`
	Warnings []string                  `json:"warnings,omitempty"`
}

// Summarize computes the summary of a normalized table. Expected columns that
// are missing are left out rather than reported as zero.
func Summarize(t *table.Table, outputs []ports.MaterializeResult) Summary {
	s := Summary{Records: t.Len(), Columns: len(t.Columns), Outputs: outputs}

	for _, u := range UniqueColumns {
		idx := t.Index(u.Column)
		if idx < 0 {
			continue
		}
		s.Unique = append(s.Unique, Count{Label: u.Label, Value: distinct(t.ColumnValues(idx))})
	}

	for _, name := range QuantityColumns {
		idx := t.Index(name)
		if idx < 0 {
			continue
		}
		s.Totals = append(s.Totals, Total{Column: name, Value: sum(t.ColumnValues(idx))})
	}

	for _, o := range outputs {
		s.Warnings = append(s.Warnings, o.Warnings...)
	}
	return s
}

// distinct counts present values; absent cells do not count
func distinct(values []table.Value) int {
	seen := make(map[string]bool)
	for _, v := range values {
		if v.IsMissing() {
			continue
		}
		seen[string(v.Kind)+":"+v.String()] = true
	}
	return len(seen)
}

// sum adds the numeric values of a column, skipping everything else
func sum(values []table.Value) float64 {
	data := make(stats.Float64Data, 0, len(values))
	for _, v := range values {
		if v.IsMissing() || !v.IsNumeric() {
			continue
		}
		data = append(data, v.AsFloat64())
	}
	total, err := stats.Sum(data)
	if err != nil {
		return 0
	}
	return total
}

// Write prints the summary block shown at the end of a successful run
func (s Summary) Write(w io.Writer) {
	for _, o := range s.Outputs {
		fmt.Fprintf(w, "✓ Successfully converted %s records to %s\n", humanize.Comma(int64(o.Records)), o.Name)
		fmt.Fprintf(w, "✓ Output: %s\n", o.Target)
	}

	fmt.Fprintln(w, "\n=== Summary Statistics ===")
	fmt.Fprintf(w, "Total Records: %s\n", humanize.Comma(int64(s.Records)))
	fmt.Fprintf(w, "Total Columns: %d\n", s.Columns)
	for _, c := range s.Unique {
		fmt.Fprintf(w, "Unique %s: %s\n", c.Label, humanize.Comma(int64(c.Value)))
	}
	for _, t := range s.Totals {
		fmt.Fprintf(w, "Total %s: %s\n", t.Column, humanize.Comma(int64(math.Round(t.Value))))
	}

	if len(s.Warnings) > 0 {
		fmt.Fprintln(w, "\nWarnings:")
		for _, warning := range s.Warnings {
			fmt.Fprintf(w, "  - %s\n", warning)
		}
	}
}

package excel

import (
	"fmt"
	"strings"

	"entitlements/domain/table"
)

// headerNames trims and stringifies header cells. Blank headers become
// "Unnamed: <index>" and repeated names get ".1", ".2"... suffixes so the
// resulting column names are unique and keep source order.
func headerNames(raw []string, width int) []string {
	names := make([]string, width)
	used := make(map[string]bool, width)
	next := make(map[string]int)

	for i := 0; i < width; i++ {
		name := ""
		if i < len(raw) {
			name = strings.TrimSpace(raw[i])
		}
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if used[name] {
			base := name
			n := next[base]
			for {
				n++
				candidate := fmt.Sprintf("%s.%d", base, n)
				if !used[candidate] {
					name = candidate
					break
				}
			}
			next[base] = n
		}
		used[name] = true
		names[i] = name
	}

	return names
}

// declaredType derives a column's declared type from its loaded values.
// Mixed or empty columns are generic ("object").
func declaredType(values []table.Value) table.ColumnType {
	counts := make(map[table.Kind]int)
	present := 0
	for _, v := range values {
		if v.IsAbsent() {
			continue
		}
		counts[v.Kind]++
		present++
	}

	switch {
	case present == 0:
		return table.ColumnTypeObject
	case counts[table.KindDate] == present:
		return table.ColumnTypeDateTime
	case counts[table.KindInt] == present:
		return table.ColumnTypeInt
	case counts[table.KindInt]+counts[table.KindFloat] == present:
		return table.ColumnTypeFloat
	case counts[table.KindBool] == present:
		return table.ColumnTypeBool
	case counts[table.KindString] == present:
		return table.ColumnTypeString
	}
	return table.ColumnTypeObject
}

// buildTable assembles the loaded grid into a table, assigning declared types
func buildTable(names []string, records []table.Record) (*table.Table, error) {
	columns := make([]table.Column, len(names))
	for i, name := range names {
		values := make([]table.Value, 0, len(records))
		for _, rec := range records {
			if i < len(rec) {
				values = append(values, rec[i])
			}
		}
		columns[i] = table.Column{Name: name, Type: declaredType(values)}
	}
	return table.New(columns, records)
}

package relational

import (
	"fmt"
	"strings"
)

var columnReplacer = strings.NewReplacer(" ", "_", "&", "and", "/", "_")

// SafeColumnName makes a source header usable as an unquoted-friendly SQL
// identifier: spaces and slashes become underscores, ampersands become "and".
func SafeColumnName(name string) string {
	return columnReplacer.Replace(name)
}

// RenameColumns applies SafeColumnName to every header. When two headers
// collapse to the same identifier the later ones get _2, _3... suffixes, so
// "A B" and "A_B" become A_B and A_B_2. Comparison is case-insensitive
// because both SQLite and unquoted Postgres identifiers are.
func RenameColumns(names []string) []string {
	out := make([]string, len(names))
	taken := make(map[string]bool, len(names))
	for i, n := range names {
		base := SafeColumnName(n)
		candidate := base
		for suffix := 2; taken[strings.ToLower(candidate)]; suffix++ {
			candidate = fmt.Sprintf("%s_%d", base, suffix)
		}
		taken[strings.ToLower(candidate)] = true
		out[i] = candidate
	}
	return out
}

// quoteIdent quotes an identifier for both supported dialects
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

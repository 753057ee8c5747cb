package normalize

import "entitlements/domain/table"

// Nulls returns a copy of t where NaN, +Inf, -Inf and every absent
// representation are replaced by the canonical absent marker, plus the
// number of cells that were replaced.
func Nulls(t *table.Table) (*table.Table, int) {
	out := t.Clone()
	replaced := 0
	for _, rec := range out.Records {
		for i, v := range rec {
			if !v.IsMissing() {
				continue
			}
			if v.Kind != table.KindAbsent {
				replaced++
			}
			rec[i] = table.Absent()
		}
	}
	return out, replaced
}

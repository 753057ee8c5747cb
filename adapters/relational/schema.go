package relational

import (
	"entitlements/domain/table"
)

// inferAffinity picks the storage class for a column from its present values.
// A column with no present values is TEXT.
func inferAffinity(values []table.Value) affinity {
	var ints, bools, floats, present int
	for _, v := range values {
		if v.IsMissing() {
			continue
		}
		present++
		switch v.Kind {
		case table.KindInt:
			ints++
		case table.KindBool:
			bools++
		case table.KindFloat:
			floats++
		default:
			return affinityText
		}
	}

	switch {
	case present == 0:
		return affinityText
	case bools == present:
		return affinityBoolean
	case floats == 0:
		return affinityInteger
	default:
		return affinityReal
	}
}

// bindValue converts a cell to the driver value stored in a column of
// affinity a. Absent and non-finite values become NULL.
func bindValue(v table.Value, a affinity) interface{} {
	if v.IsMissing() {
		return nil
	}

	switch a {
	case affinityBoolean:
		return v.BoolVal
	case affinityInteger:
		if v.Kind == table.KindBool {
			return boolToInt(v.BoolVal)
		}
		return v.IntVal
	case affinityReal:
		if v.Kind == table.KindBool {
			return float64(boolToInt(v.BoolVal))
		}
		return v.AsFloat64()
	}

	if v.Kind == table.KindString {
		return v.StrVal
	}
	return v.String()
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

package table

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Kind identifies which field of a Value is populated
type Kind string

const (
	KindAbsent Kind = "absent"
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindBool   Kind = "bool"
	KindDate   Kind = "date" // native date/time from the source; never survives normalization
)

// Value is a single typed cell. The zero Value is absent.
type Value struct {
	Kind     Kind
	StrVal   string
	IntVal   int64
	FloatVal float64
	BoolVal  bool
	DateVal  time.Time
}

// Absent returns the canonical "no value" marker
func Absent() Value {
	return Value{Kind: KindAbsent}
}

// String creates a string value
func String(s string) Value {
	return Value{Kind: KindString, StrVal: s}
}

// Int creates an integer value
func Int(i int64) Value {
	return Value{Kind: KindInt, IntVal: i}
}

// Float creates a floating-point value. NaN and infinities are kept as-is;
// the null sanitizer is responsible for turning them into Absent.
func Float(f float64) Value {
	return Value{Kind: KindFloat, FloatVal: f}
}

// Bool creates a boolean value
func Bool(b bool) Value {
	return Value{Kind: KindBool, BoolVal: b}
}

// Date creates a native date/time value
func Date(t time.Time) Value {
	return Value{Kind: KindDate, DateVal: t}
}

// IsAbsent reports whether the value is the absent marker (including the zero Value)
func (v Value) IsAbsent() bool {
	return v.Kind == KindAbsent || v.Kind == ""
}

// IsMissing reports whether the value represents any form of missing data:
// the absent marker, NaN or an infinity.
func (v Value) IsMissing() bool {
	if v.IsAbsent() {
		return true
	}
	if v.Kind == KindFloat {
		return math.IsNaN(v.FloatVal) || math.IsInf(v.FloatVal, 0)
	}
	return false
}

// IsNumeric returns true for int and float values
func (v Value) IsNumeric() bool {
	return v.Kind == KindInt || v.Kind == KindFloat
}

// AsFloat64 returns the numeric value as float64, or 0 if not numeric
func (v Value) AsFloat64() float64 {
	switch v.Kind {
	case KindInt:
		return float64(v.IntVal)
	case KindFloat:
		return v.FloatVal
	}
	return 0
}

// String returns a human readable representation of the value
func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.StrVal
	case KindInt:
		return strconv.FormatInt(v.IntVal, 10)
	case KindFloat:
		return strconv.FormatFloat(v.FloatVal, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.BoolVal)
	case KindDate:
		return v.DateVal.Format(DateTimeLayout)
	}
	return "<absent>"
}

// GoString makes %#v output readable in test failures
func (v Value) GoString() string {
	return fmt.Sprintf("table.Value{%s:%s}", v.Kind, v.String())
}

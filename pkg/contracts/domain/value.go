// Package domain contains the canonical data contracts for the ingest
// pipeline. These types are the single source of truth for every layer:
// adapters produce them, the mapper and validator transform them, the store
// and exporter persist them.
package domain

import (
	"strconv"
	"time"
)

// ValueKind identifies the concrete type held by a Value.
type ValueKind uint8

const (
	ValueNull ValueKind = iota
	ValueString
	ValueFloat
	ValueInt
	ValueTime
)

// Value is a single canonical table cell. It is a small tagged union so the
// validation engine can switch exhaustively on the held type instead of
// string-matching type names.
type Value struct {
	kind ValueKind
	s    string
	f    float64
	i    int64
	t    time.Time
}

// Null returns the null Value.
func Null() Value { return Value{kind: ValueNull} }

// String returns a string Value.
func String(s string) Value { return Value{kind: ValueString, s: s} }

// Float returns a float Value.
func Float(f float64) Value { return Value{kind: ValueFloat, f: f} }

// Int returns an integer Value.
func Int(i int64) Value { return Value{kind: ValueInt, i: i} }

// Time returns a timestamp Value.
func Time(t time.Time) Value { return Value{kind: ValueTime, t: t} }

// Kind returns the kind tag of the value.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == ValueNull }

// AsString returns the held string. Valid only when Kind() == ValueString.
func (v Value) AsString() string { return v.s }

// AsFloat returns the held float. Valid only when Kind() == ValueFloat.
func (v Value) AsFloat() float64 { return v.f }

// AsInt returns the held integer. Valid only when Kind() == ValueInt.
func (v Value) AsInt() int64 { return v.i }

// AsTime returns the held timestamp. Valid only when Kind() == ValueTime.
func (v Value) AsTime() time.Time { return v.t }

// Render formats the value for serialization. Floats use floatFormat
// (e.g. "%.10g" semantics via strconv 'g'), times use dateFormat, null
// renders as naRep. The output feeds the deterministic serializer, so the
// formats must stay fixed across runs.
func (v Value) Render(dateFormat, naRep string) string {
	switch v.kind {
	case ValueNull:
		return naRep
	case ValueString:
		return v.s
	case ValueFloat:
		return strconv.FormatFloat(v.f, 'g', 10, 64)
	case ValueInt:
		return strconv.FormatInt(v.i, 10)
	case ValueTime:
		return v.t.Format(dateFormat)
	default:
		return naRep
	}
}

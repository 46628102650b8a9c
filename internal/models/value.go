package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ValueKind identifies the variant held by a Value.
type ValueKind int

const (
	KindString ValueKind = iota
	KindInteger
	KindFloat
	KindBoolean
	KindTimestamp
	KindArray
	KindNull
)

// Value is the closed set of field types the remote store accepts. It is a
// tagged union: exactly one variant is populated, selected by kind.
//
// The wire form is JSON. Scalars encode as native JSON scalars, with two
// carve-outs that keep decoding unambiguous under the fixed probe order
// (string, integer, float, boolean, timestamp, array, null):
//
//   - floats always carry a decimal point or exponent, so a whole-valued
//     float cannot be captured by the integer probe;
//   - timestamps encode as {"__time__": <seconds-since-epoch>}, so they
//     cannot be captured by the string or number probes.
//
// Timestamps are kept at millisecond precision; finer precision does not
// survive the seconds-since-epoch wire form.
type Value struct {
	kind ValueKind
	str  string
	i64  int64
	f64  float64
	b    bool
	ts   time.Time
	arr  []Value
}

// Constructors.

func String(s string) Value { return Value{kind: KindString, str: s} }

func Integer(i int64) Value { return Value{kind: KindInteger, i64: i} }

func Float(f float64) Value { return Value{kind: KindFloat, f64: f} }

func Boolean(b bool) Value { return Value{kind: KindBoolean, b: b} }

// Timestamp truncates t to millisecond precision.
func Timestamp(t time.Time) Value {
	return Value{kind: KindTimestamp, ts: t.Truncate(time.Millisecond)}
}

func Array(elems ...Value) Value {
	return Value{kind: KindArray, arr: elems}
}

func Null() Value { return Value{kind: KindNull} }

// Kind returns the populated variant.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether the value is the null variant.
func (v Value) IsNull() bool { return v.kind == KindNull }

// ToNative projects the value into the untyped representation the remote
// store client expects: plain scalars for primitives, []any for arrays,
// nil for null.
func (v Value) ToNative() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindInteger:
		return v.i64
	case KindFloat:
		return v.f64
	case KindBoolean:
		return v.b
	case KindTimestamp:
		return v.ts
	case KindArray:
		native := make([]any, len(v.arr))
		for i, elem := range v.arr {
			native[i] = elem.ToNative()
		}
		return native
	default:
		return nil
	}
}

// FromNative builds a Value from a native Go value. Unsupported types map to
// the null variant; the second return reports whether the input was
// representable.
func FromNative(native any) (Value, bool) {
	switch n := native.(type) {
	case nil:
		return Null(), true
	case string:
		return String(n), true
	case int:
		return Integer(int64(n)), true
	case int32:
		return Integer(int64(n)), true
	case int64:
		return Integer(n), true
	case float32:
		return Float(float64(n)), true
	case float64:
		return Float(n), true
	case bool:
		return Boolean(n), true
	case time.Time:
		return Timestamp(n), true
	case []any:
		elems := make([]Value, 0, len(n))
		ok := true
		for _, item := range n {
			elem, elemOK := FromNative(item)
			ok = ok && elemOK
			elems = append(elems, elem)
		}
		return Array(elems...), ok
	default:
		return Null(), false
	}
}

// Equal reports deep equality between two values.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == other.str
	case KindInteger:
		return v.i64 == other.i64
	case KindFloat:
		return v.f64 == other.f64 || (math.IsNaN(v.f64) && math.IsNaN(other.f64))
	case KindBoolean:
		return v.b == other.b
	case KindTimestamp:
		return v.ts.Equal(other.ts)
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Render returns a compact human-readable form for logs and CLI output.
func (v Value) Render() string {
	switch v.kind {
	case KindString:
		return strconv.Quote(v.str)
	case KindInteger:
		return strconv.FormatInt(v.i64, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f64, 'g', -1, 64)
	case KindBoolean:
		return strconv.FormatBool(v.b)
	case KindTimestamp:
		return v.ts.UTC().Format(time.RFC3339)
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, elem := range v.arr {
			parts[i] = elem.Render()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return "null"
	}
}

const timestampKey = "__time__"

var nullLiteral = []byte("null")

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindInteger:
		return strconv.AppendInt(nil, v.i64, 10), nil
	case KindFloat:
		if math.IsNaN(v.f64) || math.IsInf(v.f64, 0) {
			// Not representable in JSON; degrade to null.
			return nullLiteral, nil
		}
		out := strconv.FormatFloat(v.f64, 'g', -1, 64)
		if !strings.ContainsAny(out, ".eE") {
			out += ".0"
		}
		return []byte(out), nil
	case KindBoolean:
		return strconv.AppendBool(nil, v.b), nil
	case KindTimestamp:
		seconds := float64(v.ts.UnixMilli()) / 1000
		return fmt.Appendf(nil, `{"%s":%s}`, timestampKey,
			strconv.FormatFloat(seconds, 'f', -1, 64)), nil
	case KindArray:
		if v.arr == nil {
			// A nil slice would marshal to null and round-trip to the
			// null variant.
			return []byte("[]"), nil
		}
		return json.Marshal(v.arr)
	default:
		return nullLiteral, nil
	}
}

// UnmarshalJSON implements json.Unmarshaler via DecodeValue.
func (v *Value) UnmarshalJSON(data []byte) error {
	*v = DecodeValue(data)
	return nil
}

// DecodeValue interprets a serialized value by probing candidate variants in
// a fixed priority order: string, integer, float, boolean, timestamp, array,
// and finally null. The first interpretation that parses wins. A form that
// matches none of the variants decodes to null rather than failing, so a
// queue written by a newer format remains loadable.
func DecodeValue(data []byte) Value {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, nullLiteral) {
		return Null()
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return String(s)
	}

	var i int64
	if err := json.Unmarshal(data, &i); err == nil {
		return Integer(i)
	}

	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		return Float(f)
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		return Boolean(b)
	}

	if ts, ok := decodeTimestamp(data); ok {
		return Timestamp(ts)
	}

	if data[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err == nil {
			elems := make([]Value, len(raw))
			for i, item := range raw {
				elems[i] = DecodeValue(item)
			}
			return Array(elems...)
		}
	}

	return Null()
}

// decodeTimestamp matches the single-key {"__time__": seconds} wrapper.
func decodeTimestamp(data []byte) (time.Time, bool) {
	if len(data) == 0 || data[0] != '{' {
		return time.Time{}, false
	}
	var obj map[string]float64
	if err := json.Unmarshal(data, &obj); err != nil {
		return time.Time{}, false
	}
	seconds, ok := obj[timestampKey]
	if !ok || len(obj) != 1 {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(math.Round(seconds * 1000))).UTC(), true
}

// FieldsFromJSON parses a JSON object into a field map, decoding each value
// through the ordered probe. Used by the enqueue surfaces that accept raw
// JSON field payloads.
func FieldsFromJSON(data []byte) (map[string]Value, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse fields: %w", err)
	}
	fields := make(map[string]Value, len(raw))
	for name, item := range raw {
		fields[name] = DecodeValue(item)
	}
	return fields, nil
}

// RenderFields renders a field map deterministically for logs and CLI output.
func RenderFields(fields map[string]Value) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + fields[name].Render()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

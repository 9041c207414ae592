package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// ValueKind discriminates the variant held by a Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindInt
	KindDouble
	KindString
	KindArray
	KindObject
)

// Value is a general-purpose JSON value. It is a closed variant rather than
// a reflective `any` so that equality and canonical serialization are
// well-defined. In this module it carries the data member of JSON-RPC
// errors (RPCError.Data); tool arguments, `_meta`, and permission content
// are passed as raw JSON bytes or typed structs, not as Value.
type Value struct {
	kind ValueKind
	b    bool
	i    int64
	d    float64
	s    string
	arr  []Value
	obj  map[string]Value
}

func Null() Value                { return Value{kind: KindNull} }
func Bool(b bool) Value          { return Value{kind: KindBool, b: b} }
func Int(i int64) Value          { return Value{kind: KindInt, i: i} }
func Double(d float64) Value     { return Value{kind: KindDouble, d: d} }
func String(s string) Value      { return Value{kind: KindString, s: s} }
func Array(vs []Value) Value     { return Value{kind: KindArray, arr: vs} }
func Object(m map[string]Value) Value {
	return Value{kind: KindObject, obj: m}
}

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) AsBool() (bool, bool)               { return v.b, v.kind == KindBool }
func (v Value) AsInt() (int64, bool)                { return v.i, v.kind == KindInt }
func (v Value) AsDouble() (float64, bool)           { return v.d, v.kind == KindDouble }
func (v Value) AsString() (string, bool)            { return v.s, v.kind == KindString }
func (v Value) AsArray() ([]Value, bool)            { return v.arr, v.kind == KindArray }
func (v Value) AsObject() (map[string]Value, bool)  { return v.obj, v.kind == KindObject }

// Equal compares values structurally. Object key order does not matter.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindDouble:
		return v.d == o.d
	case KindString:
		return v.s == o.s
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.obj) != len(o.obj) {
			return false
		}
		for k, vv := range v.obj {
			ov, ok := o.obj[k]
			if !ok || !vv.Equal(ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Canonical returns the canonical JSON serialization (object keys sorted, no
// insignificant whitespace), usable as a hash key. Equal does not compare
// canonical forms: it also compares kinds, so Int(1) and Double(1), which
// share the canonical form "1", are not Equal.
func (v Value) Canonical() string {
	var buf bytes.Buffer
	v.writeCanonical(&buf)
	return buf.String()
}

func (v Value) writeCanonical(buf *bytes.Buffer) {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindInt:
		fmt.Fprintf(buf, "%d", v.i)
	case KindDouble:
		fmt.Fprintf(buf, "%g", v.d)
	case KindString:
		b, _ := json.Marshal(v.s)
		buf.Write(b)
	case KindArray:
		buf.WriteByte('[')
		for i, e := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			e.writeCanonical(buf)
		}
		buf.WriteByte(']')
	case KindObject:
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			buf.Write(kb)
			buf.WriteByte(':')
			v.obj[k].writeCanonical(buf)
		}
		buf.WriteByte('}')
	}
}

// MarshalJSON emits the value through encoding/json, so &, < and > inside
// strings come out as Unicode escape sequences even under the codec's
// non-HTML-escaping encoder. Forward slashes are never escaped.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindInt:
		return json.Marshal(v.i)
	case KindDouble:
		return json.Marshal(v.d)
	case KindString:
		return json.Marshal(v.s)
	case KindArray:
		return json.Marshal(v.arr)
	case KindObject:
		return json.Marshal(v.obj)
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*v = fromAny(raw)
	return nil
}

func fromAny(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i)
		}
		d, _ := t.Float64()
		return Double(d)
	case string:
		return String(t)
	case []any:
		vs := make([]Value, len(t))
		for i, e := range t {
			vs[i] = fromAny(e)
		}
		return Array(vs)
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			m[k] = fromAny(e)
		}
		return Object(m)
	default:
		return Null()
	}
}

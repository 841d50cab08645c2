package model

import (
	"strconv"
	"time"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindTimestamp
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindTimestamp:
		return "timestamp"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is one extracted datum.
// String and Map payloads may be borrowed from an Arena and are only valid
// until that arena is reset. The zero Value is Null.
type Value struct {
	kind  Kind
	gen   uint32 // arena generation the payload was copied into, 0 if not arena-backed
	str   string
	num   float64
	ts    time.Time
	pairs []Pair
}

// Pair is one key/value entry of a Map value, kept in source order.
type Pair struct {
	Key   string
	Value Value
}

func Null() Value { return Value{} }

func String(s string) Value { return Value{kind: KindString, str: s} }

func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

func Timestamp(t time.Time) Value { return Value{kind: KindTimestamp, ts: t} }

func Map(pairs []Pair) Value { return Value{kind: KindMap, pairs: pairs} }

func (v Value) Kind() Kind { return v.kind }

// Exists reports whether v holds anything other than Null.
func (v Value) Exists() bool { return v.kind != KindNull }

// Str returns the string payload and whether v is a String.
func (v Value) Str() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// Num returns the number payload and whether v is a Number.
func (v Value) Num() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Time returns the timestamp payload and whether v is a Timestamp.
func (v Value) Time() (time.Time, bool) {
	if v.kind != KindTimestamp {
		return time.Time{}, false
	}
	return v.ts, true
}

// Pairs returns the entries of a Map value, nil for any other kind.
func (v Value) Pairs() []Pair {
	if v.kind != KindMap {
		return nil
	}
	return v.pairs
}

// Get returns the first entry of a Map value named key.
func (v Value) Get(key string) (Value, bool) {
	for _, p := range v.Pairs() {
		if p.Key == key {
			return p.Value, true
		}
	}
	return Value{}, false
}

// AppendText appends the display form of v to dst.
// Maps are not projectable and render as nothing.
func (v Value) AppendText(dst []byte) []byte {
	switch v.kind {
	case KindString:
		return append(dst, v.str...)
	case KindNumber:
		return strconv.AppendFloat(dst, v.num, 'f', -1, 64)
	case KindTimestamp:
		return v.ts.AppendFormat(dst, time.RFC3339Nano)
	default:
		return dst
	}
}

func (v Value) String() string {
	if v.kind == KindString {
		return v.str
	}
	return string(v.AppendText(nil))
}

// Equal compares kind and payload. Arena generation is ignored.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindTimestamp:
		return v.ts.Equal(o.ts)
	case KindMap:
		if len(v.pairs) != len(o.pairs) {
			return false
		}
		for i := range v.pairs {
			if v.pairs[i].Key != o.pairs[i].Key || !v.pairs[i].Value.Equal(o.pairs[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}

package engine

import (
	"math"
	"slices"
	"time"

	"github.com/valyala/fastjson"
)

// FieldFilter applies Filter to the field at Path.
type FieldFilter struct {
	Path   string
	Filter Filter
}

// Query is a decoded query request.
type Query struct {
	// Filters in request order. A path appears at most once.
	Filters []FieldFilter
	// Returning lists the projected paths without duplicates.
	Returning []string
	// Limit caps the number of rows returned; 0 means no limit.
	Limit int
}

// AddFilter sets the filter for path, replacing an earlier one in place.
func (q *Query) AddFilter(path string, f Filter) {
	for i := range q.Filters {
		if q.Filters[i].Path == path {
			q.Filters[i].Filter = f
			return
		}
	}
	q.Filters = append(q.Filters, FieldFilter{Path: path, Filter: f})
}

// AddReturning appends path unless it is already projected.
func (q *Query) AddReturning(path string) {
	if !slices.Contains(q.Returning, path) {
		q.Returning = append(q.Returning, path)
	}
}

// ParseQuery decodes a JSON query:
//
//	{"filter": {"<path>": <predicate>, ...}, "returning": ["<path>", ...], "limit": n}
//
// Predicates are {"present": bool}, {"is": [string...]}, {"not": [string...]},
// {"min": n, "max": n} with either bound optional, the same with RFC3339
// strings for timestamps, and {"since": seconds}.
func ParseQuery(data []byte) (*Query, error) {
	var p fastjson.Parser
	doc, err := p.ParseBytes(data)
	if err != nil {
		return nil, queryError(KindInvalidQuery, "", err)
	}
	root, err := doc.Object()
	if err != nil {
		return nil, invalidQuery("", "query must be an object")
	}

	q := &Query{}
	var perr error
	root.Visit(func(key []byte, v *fastjson.Value) {
		if perr != nil {
			return
		}
		switch string(key) {
		case "filter":
			perr = q.decodeFilters(v)
		case "returning":
			perr = q.decodeReturning(v)
		case "limit":
			perr = q.decodeLimit(v)
		default:
			perr = invalidQuery("", "unknown key %q", key)
		}
	})
	if perr != nil {
		return nil, perr
	}
	return q, nil
}

func (q *Query) decodeFilters(v *fastjson.Value) error {
	if v.Type() == fastjson.TypeNull {
		return nil
	}
	obj, err := v.Object()
	if err != nil {
		return invalidQuery("", "filter must be an object")
	}
	var ferr error
	obj.Visit(func(key []byte, pred *fastjson.Value) {
		if ferr != nil {
			return
		}
		path := string(key)
		if err := checkPath(path); err != nil {
			ferr = err
			return
		}
		f, err := decodePredicate(path, pred)
		if err != nil {
			ferr = err
			return
		}
		q.AddFilter(path, f)
	})
	return ferr
}

func (q *Query) decodeReturning(v *fastjson.Value) error {
	if v.Type() == fastjson.TypeNull {
		return nil
	}
	arr, err := v.Array()
	if err != nil {
		return invalidQuery("", "returning must be an array of field paths")
	}
	for _, item := range arr {
		b, err := item.StringBytes()
		if err != nil {
			return invalidQuery("", "returning must be an array of field paths")
		}
		path := string(b)
		if err := checkPath(path); err != nil {
			return err
		}
		q.AddReturning(path)
	}
	return nil
}

func (q *Query) decodeLimit(v *fastjson.Value) error {
	if v.Type() == fastjson.TypeNull {
		return nil
	}
	n, err := v.Int()
	if err != nil || n < 0 {
		return invalidQuery("", "limit must be a non-negative integer")
	}
	q.Limit = n
	return nil
}

func checkPath(path string) error {
	if path == "" {
		return invalidQuery("", "empty field path")
	}
	return nil
}

func decodePredicate(path string, v *fastjson.Value) (Filter, error) {
	obj, err := v.Object()
	if err != nil || obj.Len() == 0 {
		return nil, invalidQuery(path, "predicate must be a non-empty object")
	}

	var (
		present, is, not, since, lo, hi *fastjson.Value
		unknown                           string
	)
	obj.Visit(func(key []byte, val *fastjson.Value) {
		switch string(key) {
		case "present":
			present = val
		case "is":
			is = val
		case "not":
			not = val
		case "since":
			since = val
		case "min":
			lo = val
		case "max":
			hi = val
		default:
			if unknown == "" {
				unknown = string(key)
			}
		}
	})
	if unknown != "" {
		return nil, invalidQuery(path, "unknown predicate %q", unknown)
	}

	shapes := 0
	for _, set := range []bool{present != nil, is != nil, not != nil, since != nil, lo != nil || hi != nil} {
		if set {
			shapes++
		}
	}
	if shapes != 1 {
		return nil, invalidQuery(path, "predicate mixes present, is, not, since and min/max")
	}

	switch {
	case present != nil:
		b, err := present.Bool()
		if err != nil {
			return nil, invalidQuery(path, "present must be a boolean")
		}
		return Present{Present: b}, nil
	case is != nil:
		set, err := stringSet(path, is)
		if err != nil {
			return nil, err
		}
		return KeywordIs{Set: set}, nil
	case not != nil:
		set, err := stringSet(path, not)
		if err != nil {
			return nil, err
		}
		return KeywordNot{Set: set}, nil
	case since != nil:
		s, err := since.Float64()
		if err != nil {
			return nil, invalidQuery(path, "since must be a number of seconds")
		}
		return TimeSince{Seconds: s}, nil
	default:
		return decodeRange(path, lo, hi)
	}
}

func decodeRange(path string, lo, hi *fastjson.Value) (Filter, error) {
	isType := func(v *fastjson.Value, t fastjson.Type) bool {
		return v == nil || v.Type() == fastjson.TypeNull || v.Type() == t
	}

	switch {
	case isType(lo, fastjson.TypeNumber) && isType(hi, fastjson.TypeNumber):
		r := AnyRange()
		if lo != nil && lo.Type() == fastjson.TypeNumber {
			r.Min = lo.GetFloat64()
		}
		if hi != nil && hi.Type() == fastjson.TypeNumber {
			r.Max = hi.GetFloat64()
		}
		if math.IsNaN(r.Min) || math.IsNaN(r.Max) {
			return nil, invalidQuery(path, "range bounds must be numbers")
		}
		return r, nil
	case isType(lo, fastjson.TypeString) && isType(hi, fastjson.TypeString):
		var (
			r   TimeRange
			err error
		)
		if r.Min, err = parseBound(lo); err != nil {
			return nil, queryError(KindInvalidQuery, path, err)
		}
		if r.Max, err = parseBound(hi); err != nil {
			return nil, queryError(KindInvalidQuery, path, err)
		}
		return r, nil
	default:
		return nil, invalidQuery(path, "min and max must both be numbers or both be RFC3339 timestamps")
	}
}

func parseBound(v *fastjson.Value) (time.Time, error) {
	if v == nil || v.Type() == fastjson.TypeNull {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, string(v.GetStringBytes()))
}

func stringSet(path string, v *fastjson.Value) ([]string, error) {
	arr, err := v.Array()
	if err != nil {
		return nil, invalidQuery(path, "expected an array of strings")
	}
	set := make([]string, 0, len(arr))
	for _, item := range arr {
		b, err := item.StringBytes()
		if err != nil {
			return nil, invalidQuery(path, "expected an array of strings")
		}
		if s := string(b); !slices.Contains(set, s) {
			set = append(set, s)
		}
	}
	return set, nil
}

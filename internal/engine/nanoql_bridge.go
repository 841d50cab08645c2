package engine

import (
	"strconv"
	"time"

	"github.com/coffersTech/photon/internal/pkg/nanoql"
)

// ParseNanoQL compiles a NanoQL expression into field filters.
// An empty expression yields no filters.
func ParseNanoQL(expr string) ([]FieldFilter, error) {
	clauses, err := nanoql.Compile(expr)
	if err != nil {
		return nil, queryError(KindInvalidQuery, "", err)
	}

	filters := make([]FieldFilter, 0, len(clauses))
	for _, c := range clauses {
		f, err := clauseFilter(c)
		if err != nil {
			return nil, err
		}
		filters = append(filters, FieldFilter{Path: c.Field, Filter: f})
	}
	return filters, nil
}

// AddNanoQL adds the filters of expr to q.
func (q *Query) AddNanoQL(expr string) error {
	filters, err := ParseNanoQL(expr)
	if err != nil {
		return err
	}
	for _, f := range filters {
		q.AddFilter(f.Path, f.Filter)
	}
	return nil
}

func clauseFilter(c nanoql.Clause) (Filter, error) {
	switch c.Kind {
	case nanoql.ClauseIs:
		return KeywordIs{Set: c.Values}, nil
	case nanoql.ClauseNot:
		return KeywordNot{Set: c.Values}, nil
	case nanoql.ClausePresent:
		return Present{Present: true}, nil
	case nanoql.ClauseMissing:
		return Present{Present: false}, nil
	case nanoql.ClauseRange:
		return rangeFilter(c)
	}
	return nil, invalidQuery(c.Field, "unsupported clause %q", c.Kind)
}

// rangeFilter reads the bounds as numbers, or else as RFC3339 timestamps.
// A timestamp upper bound is exclusive.
func rangeFilter(c nanoql.Clause) (Filter, error) {
	r := AnyRange()
	numeric := true
	for _, b := range []struct {
		text string
		dst  *float64
	}{{c.Min, &r.Min}, {c.Max, &r.Max}} {
		if b.text == "" {
			continue
		}
		n, err := strconv.ParseFloat(b.text, 64)
		if err != nil {
			numeric = false
			break
		}
		*b.dst = n
	}
	if numeric {
		return r, nil
	}

	var (
		tr  TimeRange
		err error
	)
	if c.Min != "" {
		if tr.Min, err = time.Parse(time.RFC3339Nano, c.Min); err != nil {
			return nil, invalidQuery(c.Field, "range bound %q is neither a number nor an RFC3339 timestamp", c.Min)
		}
	}
	if c.Max != "" {
		if tr.Max, err = time.Parse(time.RFC3339Nano, c.Max); err != nil {
			return nil, invalidQuery(c.Field, "range bound %q is neither a number nor an RFC3339 timestamp", c.Max)
		}
	}
	return tr, nil
}

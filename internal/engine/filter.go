package engine

import (
	"math"
	"slices"
	"time"

	"github.com/coffersTech/photon/internal/model"
)

// Filter is a predicate over a single field value.
//
// The implementations are Present, Range, TimeRange, TimeSince, KeywordIs and
// KeywordNot. A predicate applied to a value of the wrong kind is false.
type Filter interface {
	filter()
}

// Present matches values whose existence equals Present.
type Present struct {
	Present bool
}

// Range matches numbers in [Min, Max]. Use math.Inf for an open bound.
type Range struct {
	Min, Max float64
}

// AnyRange returns a Range without bounds.
func AnyRange() Range {
	return Range{Min: math.Inf(-1), Max: math.Inf(1)}
}

// TimeRange matches timestamps in [Min, Max). A zero bound is open.
type TimeRange struct {
	Min, Max time.Time
}

// TimeSince matches timestamps newer than Seconds before the query started.
type TimeSince struct {
	Seconds float64
}

// KeywordIs matches strings in Set.
type KeywordIs struct {
	Set []string
}

// KeywordNot matches strings not in Set.
type KeywordNot struct {
	Set []string
}

func (Present) filter()    {}
func (Range) filter()      {}
func (TimeRange) filter()  {}
func (TimeSince) filter()  {}
func (KeywordIs) filter()  {}
func (KeywordNot) filter() {}

// Test evaluates f against v. now is the instant TimeSince is measured from.
func Test(f Filter, v model.Value, now time.Time) bool {
	switch f := f.(type) {
	case Present:
		return v.Exists() == f.Present
	case Range:
		n, ok := v.Num()
		return ok && n >= f.Min && n <= f.Max
	case TimeRange:
		t, ok := v.Time()
		if !ok {
			return false
		}
		if !f.Min.IsZero() && t.Before(f.Min) {
			return false
		}
		return f.Max.IsZero() || t.Before(f.Max)
	case TimeSince:
		t, ok := v.Time()
		if !ok {
			return false
		}
		since := now.Add(-time.Duration(f.Seconds * float64(time.Second)))
		return t.After(since)
	case KeywordIs:
		s, ok := v.Str()
		return ok && slices.Contains(f.Set, s)
	case KeywordNot:
		s, ok := v.Str()
		return ok && !slices.Contains(f.Set, s)
	}
	return false
}

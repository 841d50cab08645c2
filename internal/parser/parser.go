// Package parser extracts derived fields from field values.
//
// A Parser is compiled once from configuration and is immutable. Each query
// asks it for a fresh Instance per field path it is used on; instances hold
// the per-query state (which children were requested, scratch buffers) and
// are never shared between goroutines.
package parser

import (
	"github.com/pkg/errors"

	"github.com/coffersTech/photon/internal/config"
	"github.com/coffersTech/photon/internal/model"
)

// Parser is a compiled parser descriptor.
type Parser interface {
	// Kind is the configuration kind the parser was built from.
	Kind() string
	// Type is the display type of the field the parser is assigned to.
	Type() model.FieldType
	// Fields lists the statically known children. Parsers whose children are
	// only known at query time return nil.
	Fields() []model.FieldInfo
	// Instance returns fresh per-query state.
	Instance() Instance
}

// Instance is the per-query state of a Parser.
type Instance interface {
	// RequireField registers a child for extraction and returns its position
	// in the slice returned by Parse. Repeated calls with the same name return
	// the same position. It reports false if the parser has no such child.
	RequireField(name string) (int, bool)

	// Parse extracts the registered children from input. It may replace
	// *input with a coerced value. The returned slice always covers every
	// position handed out by RequireField; children that could not be
	// extracted from this record are Null.
	Parse(a *model.Arena, input *model.Value) []model.Value
}

// New compiles the parser described by cfg.
func New(cfg config.Parser) (Parser, error) {
	switch cfg.Kind {
	case config.ParserDissect:
		d, err := NewDissect(cfg.Pattern)
		if err != nil {
			return nil, err
		}
		return d, nil
	case config.ParserUserAgent:
		return UserAgent{}, nil
	case config.ParserTimestamp:
		ts, err := NewTimestamp(cfg.Format, cfg.AssumeUTC)
		if err != nil {
			return nil, err
		}
		return ts, nil
	case config.ParserJSON:
		return JSON{}, nil
	case config.ParserKeyword:
		return Keyword{}, nil
	case config.ParserNumber:
		return Number{}, nil
	default:
		return nil, errors.Errorf("unknown parser kind %q", cfg.Kind)
	}
}

// noChildren is embedded by parsers that only coerce their input.
type noChildren struct{}

func (noChildren) Fields() []model.FieldInfo { return nil }

func (noChildren) RequireField(string) (int, bool) { return 0, false }

func keywordFields(names []string) []model.FieldInfo {
	fields := make([]model.FieldInfo, len(names))
	for i, name := range names {
		fields[i] = model.FieldInfo{Name: name, Type: model.FieldKeyword}
	}
	return fields
}

func indexOf(names []string, name string) (int, bool) {
	for i, n := range names {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

package parser

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/coffersTech/photon/internal/config"
	"github.com/coffersTech/photon/internal/model"
)

var ErrUnterminatedField = errors.New("unterminated %{ in dissect pattern")

// Dissect splits a string on the literal text between %{name} placeholders.
type Dissect struct {
	// literals[0] is the prefix before the first placeholder. literals[i] for
	// i > 0 follows placeholder i-1. A trailing literal after the last
	// placeholder is present only if the pattern does not end in a placeholder.
	literals []string
	fields   []string
}

// NewDissect compiles pattern.
func NewDissect(pattern string) (*Dissect, error) {
	if pattern == "" {
		return nil, errors.New("dissect pattern is empty")
	}

	d := &Dissect{}
	rest := pattern
	for {
		prefix, after, found := strings.Cut(rest, "%{")
		if !found {
			break
		}
		d.literals = append(d.literals, prefix)

		name, next, ok := strings.Cut(after, "}")
		if !ok {
			return nil, errors.Wrapf(ErrUnterminatedField, "pattern %q", pattern)
		}
		d.fields = append(d.fields, name)
		rest = next
	}
	if rest != "" || len(d.literals) == 0 {
		d.literals = append(d.literals, rest)
	}
	return d, nil
}

func (d *Dissect) Kind() string { return config.ParserDissect }

func (d *Dissect) Type() model.FieldType { return model.FieldPhrase }

func (d *Dissect) Fields() []model.FieldInfo { return keywordFields(d.fields) }

// Names returns the placeholder names in pattern order.
func (d *Dissect) Names() []string { return d.fields }

func (d *Dissect) Instance() Instance {
	return &dissectInstance{d: d, spans: make([]string, 0, len(d.fields))}
}

// Match returns the captured spans in placeholder order, or false if s does
// not match. The spans are substrings of s.
func (d *Dissect) Match(s string) ([]string, bool) {
	return d.match(s, make([]string, 0, len(d.fields)))
}

func (d *Dissect) match(s string, spans []string) ([]string, bool) {
	rest, ok := strings.CutPrefix(s, d.literals[0])
	if !ok {
		return spans, false
	}

	for _, delim := range d.literals[1:] {
		span, next, found := strings.Cut(rest, delim)
		if !found {
			return spans, false
		}
		spans = append(spans, span)
		rest = next
	}

	switch {
	case len(d.literals) == len(d.fields):
		spans = append(spans, rest)
	case rest != "":
		return spans, false
	}
	return spans, true
}

type dissectInstance struct {
	d     *Dissect
	spans []string
}

// RequireField returns the placeholder position, so every record yields one
// value per placeholder whether or not it was requested.
func (i *dissectInstance) RequireField(name string) (int, bool) {
	return indexOf(i.d.fields, name)
}

func (i *dissectInstance) Parse(a *model.Arena, input *model.Value) []model.Value {
	out := a.Values(len(i.d.fields))

	s, ok := input.Str()
	if !ok {
		return out
	}

	spans, matched := i.d.match(s, i.spans[:0])
	i.spans = spans[:0]
	if !matched {
		return out
	}
	for j, span := range spans {
		out[j] = a.String(span)
	}
	return out
}

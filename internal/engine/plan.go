package engine

import (
	"strings"
	"time"

	"github.com/coffersTech/photon/internal/parser"
)

// SelfField addresses the input of a parser, after the parser had a chance to coerce it.
const SelfField = -1

// FieldRef addresses one cell of the per-record value table.
//
// Parser 0 is the source's root fields; Parser n > 0 is the output of
// Plan.Parsers[n-1]. Field is a position in that output, or SelfField.
// A FieldRef is only meaningful within the Plan that produced it.
type FieldRef struct {
	Parser int
	Field  int
}

// ParserConfig assigns a compiled parser to the field path Dest. The parser
// reads the field at Field.
type ParserConfig struct {
	Field  string
	Dest   string
	Parser parser.Parser
}

// ParserPlan is one parser invocation in a plan.
type ParserPlan struct {
	Dest     string
	Input    FieldRef
	Instance parser.Instance
}

// FilterPlan is a resolved filter.
type FilterPlan struct {
	Path   string
	Ref    FieldRef
	Filter Filter
}

// Column is a resolved returning field.
type Column struct {
	Name string
	Ref  FieldRef
}

// Plan is the execution graph of one query. Parsers are in dependency order:
// the input of a parser only refers to root fields or to earlier parsers.
type Plan struct {
	RootFields []string
	Parsers    []ParserPlan
	Filters    []FilterPlan
	Returning  []Column
	Limit      int

	// Now is the instant relative filters are evaluated against. It is
	// fixed when the plan is built so every record sees the same bound.
	Now time.Time

	// ArenaLimit is the per-record allocation ceiling.
	ArenaLimit int
}

// Columns returns the names of the returning fields.
func (p *Plan) Columns() []string {
	cols := make([]string, len(p.Returning))
	for i, c := range p.Returning {
		cols[i] = c.Name
	}
	return cols
}

type planner struct {
	configs  map[string]ParserConfig
	plan     *Plan
	roots    map[string]int
	parsers  map[string]int
	building map[string]bool
}

// NewPlan resolves every filter and returning path of q against configs,
// which maps a destination path to the parser assigned to it. Filters are
// resolved before returning fields, each in request order. The first
// failure aborts planning.
func NewPlan(configs map[string]ParserConfig, q *Query, now time.Time) (*Plan, error) {
	b := &planner{
		configs:  configs,
		plan:     &Plan{Limit: q.Limit, Now: now},
		roots:    make(map[string]int),
		parsers:  make(map[string]int),
		building: make(map[string]bool),
	}

	for _, f := range q.Filters {
		ref, err := b.resolve(f.Path)
		if err != nil {
			return nil, err
		}
		b.plan.Filters = append(b.plan.Filters, FilterPlan{Path: f.Path, Ref: ref, Filter: f.Filter})
	}
	for _, name := range q.Returning {
		ref, err := b.resolve(name)
		if err != nil {
			return nil, err
		}
		b.plan.Returning = append(b.plan.Returning, Column{Name: name, Ref: ref})
	}
	return b.plan, nil
}

// resolve returns the value a query sees at path: the output of the parser
// assigned there, or else whatever produces the path naturally.
func (b *planner) resolve(path string) (FieldRef, error) {
	if _, ok := b.configs[path]; ok {
		idx, err := b.instance(path)
		if err != nil {
			return FieldRef{}, err
		}
		return FieldRef{Parser: idx + 1, Field: SelfField}, nil
	}
	return b.natural(path)
}

// natural resolves path ignoring any parser assigned to path itself: a root
// field, or a child of the parser assigned to the parent path.
func (b *planner) natural(path string) (FieldRef, error) {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		idx, ok := b.roots[path]
		if !ok {
			idx = len(b.plan.RootFields)
			b.roots[path] = idx
			b.plan.RootFields = append(b.plan.RootFields, path)
		}
		return FieldRef{Parser: 0, Field: idx}, nil
	}

	parent, leaf := path[:i], path[i+1:]
	if _, ok := b.configs[parent]; !ok {
		return FieldRef{}, queryError(KindNoParserProvides, parent, nil)
	}
	idx, err := b.instance(parent)
	if err != nil {
		return FieldRef{}, err
	}
	field, ok := b.plan.Parsers[idx].Instance.RequireField(leaf)
	if !ok {
		return FieldRef{}, queryError(KindFieldDoesNotExist, path, nil)
	}
	return FieldRef{Parser: idx + 1, Field: field}, nil
}

// instance returns the position of the parser assigned to dest, adding it
// to the plan after its input on first use.
func (b *planner) instance(dest string) (int, error) {
	if idx, ok := b.parsers[dest]; ok {
		return idx, nil
	}
	if b.building[dest] {
		return 0, queryError(KindCyclicField, dest, nil)
	}
	b.building[dest] = true
	defer delete(b.building, dest)

	cfg := b.configs[dest]
	var (
		input FieldRef
		err   error
	)
	if cfg.Field == dest {
		input, err = b.natural(dest)
	} else {
		input, err = b.resolve(cfg.Field)
	}
	if err != nil {
		return 0, err
	}

	idx := len(b.plan.Parsers)
	b.parsers[dest] = idx
	b.plan.Parsers = append(b.plan.Parsers, ParserPlan{
		Dest:     dest,
		Input:    input,
		Instance: cfg.Parser.Instance(),
	})
	return idx, nil
}

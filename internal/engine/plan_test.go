package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coffersTech/photon/internal/config"
	"github.com/coffersTech/photon/internal/parser"
)

func mustParser(t *testing.T, cfg config.Parser) parser.Parser {
	t.Helper()
	p, err := parser.New(cfg)
	require.NoError(t, err)
	return p
}

func configs(pcs ...ParserConfig) map[string]ParserConfig {
	m := make(map[string]ParserConfig, len(pcs))
	for _, pc := range pcs {
		m[pc.Dest] = pc
	}
	return m
}

func TestPlanMemoizesParserPerPath(t *testing.T) {
	cfg := configs(ParserConfig{
		Field:  "line",
		Dest:   "p",
		Parser: mustParser(t, config.Parser{Kind: config.ParserDissect, Pattern: "%{a} %{b} %{c}"}),
	})

	plan, err := NewPlan(cfg, &Query{Returning: []string{"p/a", "p/b", "p/c", "p/a"}}, time.Now())
	require.NoError(t, err)

	require.Len(t, plan.Parsers, 1)
	require.Equal(t, []string{"line"}, plan.RootFields)
	require.Equal(t, FieldRef{Parser: 0, Field: 0}, plan.Parsers[0].Input)
	require.Equal(t, []Column{
		{Name: "p/a", Ref: FieldRef{Parser: 1, Field: 0}},
		{Name: "p/b", Ref: FieldRef{Parser: 1, Field: 1}},
		{Name: "p/c", Ref: FieldRef{Parser: 1, Field: 2}},
		{Name: "p/a", Ref: FieldRef{Parser: 1, Field: 0}},
	}, plan.Returning)
}

func TestPlanDependencyOrder(t *testing.T) {
	cfg := configs(
		ParserConfig{Field: "request/agent", Dest: "request/agent", Parser: parser.UserAgent{}},
		ParserConfig{Field: "line", Dest: "request", Parser: mustParser(t, config.Parser{Kind: config.ParserDissect, Pattern: `%{status} "%{agent}"`})},
		ParserConfig{Field: "request/status", Dest: "status", Parser: parser.Number{}},
	)

	q := &Query{
		Filters:   []FieldFilter{{Path: "status", Filter: Range{Min: 200, Max: 299}}},
		Returning: []string{"request/agent/browser", "offset", "status"},
	}
	plan, err := NewPlan(cfg, q, time.Now())
	require.NoError(t, err)

	dests := make([]string, len(plan.Parsers))
	for i, p := range plan.Parsers {
		dests[i] = p.Dest
		// inputs only refer to roots or earlier parsers
		require.Less(t, p.Input.Parser, i+1)
	}
	require.Equal(t, []string{"request", "status", "request/agent"}, dests)
	require.Equal(t, []string{"line", "offset"}, plan.RootFields)

	require.Equal(t, FieldRef{Parser: 2, Field: SelfField}, plan.Filters[0].Ref)
	require.Equal(t, FieldRef{Parser: 1, Field: 0}, plan.Parsers[1].Input)
	require.Equal(t, FieldRef{Parser: 1, Field: 1}, plan.Parsers[2].Input)
	require.Equal(t, FieldRef{Parser: 3, Field: 1}, plan.Returning[0].Ref)
	require.Equal(t, FieldRef{Parser: 0, Field: 1}, plan.Returning[1].Ref)
	require.Equal(t, FieldRef{Parser: 2, Field: SelfField}, plan.Returning[2].Ref)
}

func TestPlanErrors(t *testing.T) {
	cfg := configs(
		ParserConfig{Field: "line", Dest: "request", Parser: mustParser(t, config.Parser{Kind: config.ParserDissect, Pattern: "%{a} %{b}"})},
		ParserConfig{Field: "b", Dest: "a", Parser: parser.Keyword{}},
		ParserConfig{Field: "a", Dest: "b", Parser: parser.Keyword{}},
	)

	tests := []struct {
		name string
		q    Query
		kind ErrorKind
		path string
	}{
		{"no parser", Query{Returning: []string{"line/x"}}, KindNoParserProvides, "line"},
		{"nested no parser", Query{Returning: []string{"request/a/x"}}, KindNoParserProvides, "request/a"},
		{"missing child", Query{Returning: []string{"request/c"}}, KindFieldDoesNotExist, "request/c"},
		{"filter first", Query{
			Filters:   []FieldFilter{{Path: "request/z", Filter: Present{Present: true}}},
			Returning: []string{"nope/x"},
		}, KindFieldDoesNotExist, "request/z"},
		{"cycle", Query{Returning: []string{"a"}}, KindCyclicField, "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := NewPlan(cfg, &tt.q, time.Now())
			require.Nil(t, plan)
			require.Error(t, err)

			var qe *QueryError
			require.ErrorAs(t, err, &qe)
			require.Equal(t, tt.kind, qe.Kind)
			require.Equal(t, tt.path, qe.Path)
			require.Contains(t, err.Error(), tt.path)
		})
	}
}

func TestPlanRootFieldsAreShared(t *testing.T) {
	plan, err := NewPlan(nil, &Query{
		Filters:   []FieldFilter{{Path: "filename", Filter: Present{Present: true}}},
		Returning: []string{"line", "filename"},
	}, time.Now())
	require.NoError(t, err)
	require.Equal(t, []string{"filename", "line"}, plan.RootFields)
	require.Equal(t, FieldRef{Parser: 0, Field: 0}, plan.Returning[1].Ref)
	require.Equal(t, []string{"line", "filename"}, plan.Columns())
}

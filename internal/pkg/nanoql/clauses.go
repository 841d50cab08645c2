package nanoql

import (
	"slices"

	"github.com/pkg/errors"
)

// Clause kinds.
const (
	ClauseIs      = "is"
	ClauseNot     = "not"
	ClausePresent = "present"
	ClauseMissing = "missing"
	ClauseRange   = "range"
)

// Clause is a single-field condition. A query is the conjunction of its clauses.
type Clause struct {
	Field string
	Kind  string
	// Values for ClauseIs and ClauseNot.
	Values []string
	// Min and Max bound ClauseRange; an empty bound is open.
	Min, Max string
}

// Clauses lowers node to a conjunction of clauses, one per field, in the
// order fields first appear. OR is only accepted between equality matches
// on the same field, and NOT only on equality and existence matches.
// Lower and upper bounds on one field merge into a single range.
func Clauses(node Node) ([]Clause, error) {
	var out []Clause
	for _, n := range conjuncts(node, nil) {
		c, err := lower(n)
		if err != nil {
			return nil, err
		}
		i := slices.IndexFunc(out, func(o Clause) bool { return o.Field == c.Field })
		if i < 0 {
			out = append(out, c)
			continue
		}
		merged, ok := mergeRange(out[i], c)
		if !ok {
			return nil, errors.Errorf("field %s is constrained more than once", c.Field)
		}
		out[i] = merged
	}
	return out, nil
}

// Compile parses input and lowers it with Clauses.
func Compile(input string) ([]Clause, error) {
	node, err := Parse(input)
	if err != nil {
		return nil, err
	}
	return Clauses(node)
}

func conjuncts(node Node, acc []Node) []Node {
	if b, ok := node.(BinaryExpr); ok && b.Op == "AND" {
		return conjuncts(b.Right, conjuncts(b.Left, acc))
	}
	if node == nil {
		return acc
	}
	return append(acc, node)
}

func lower(node Node) (Clause, error) {
	switch n := node.(type) {
	case MatchExpr:
		switch n.Op {
		case OpEq:
			return Clause{Field: n.Key, Kind: ClauseIs, Values: dedup(n.Values)}, nil
		case OpNeq:
			return Clause{Field: n.Key, Kind: ClauseNot, Values: dedup(n.Values)}, nil
		case OpExists:
			return Clause{Field: n.Key, Kind: ClausePresent}, nil
		case OpGte:
			return Clause{Field: n.Key, Kind: ClauseRange, Min: n.Values[0]}, nil
		case OpLte:
			return Clause{Field: n.Key, Kind: ClauseRange, Max: n.Values[0]}, nil
		}
		return Clause{}, errors.Errorf("unknown operator %q", n.Op)

	case NotExpr:
		c, err := lower(n.Expr)
		if err != nil {
			return Clause{}, err
		}
		switch c.Kind {
		case ClauseIs:
			c.Kind = ClauseNot
		case ClauseNot:
			c.Kind = ClauseIs
		case ClausePresent:
			c.Kind = ClauseMissing
		case ClauseMissing:
			c.Kind = ClausePresent
		default:
			return Clause{}, errors.Errorf("NOT cannot be applied to the range on %s", c.Field)
		}
		return c, nil

	case BinaryExpr:
		if n.Op == "AND" {
			return Clause{}, errors.New("AND cannot appear under NOT or OR")
		}
		l, err := lower(n.Left)
		if err != nil {
			return Clause{}, err
		}
		r, err := lower(n.Right)
		if err != nil {
			return Clause{}, err
		}
		if l.Kind != ClauseIs || r.Kind != ClauseIs || l.Field != r.Field {
			return Clause{}, errors.New("OR is only supported between values of the same field")
		}
		l.Values = dedup(append(l.Values, r.Values...))
		return l, nil
	}
	return Clause{}, errors.Errorf("unsupported expression %T", node)
}

func mergeRange(a, b Clause) (Clause, bool) {
	if a.Kind != ClauseRange || b.Kind != ClauseRange {
		return a, false
	}
	if (a.Min != "" && b.Min != "") || (a.Max != "" && b.Max != "") {
		return a, false
	}
	if b.Min != "" {
		a.Min = b.Min
	}
	if b.Max != "" {
		a.Max = b.Max
	}
	return a, true
}

func dedup(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

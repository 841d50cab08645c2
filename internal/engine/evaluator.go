package engine

import (
	"github.com/coffersTech/photon/internal/model"
)

// Evaluator runs a plan over one record at a time. A source drives it:
//
//	ev.Begin()
//	ev.SetRoot(i, v) // for each requested root field
//	ok, err := ev.Eval()
//
// Values set with SetRoot must be allocated from Arena after Begin, or be
// independent of it. An Evaluator is not safe for concurrent use.
type Evaluator struct {
	plan   *Plan
	arena  *model.Arena
	roots  []model.Value
	inputs []model.Value
	cells  [][]model.Value
	result *ResultSet
}

// NewEvaluator prepares an evaluator and the result set it fills.
func NewEvaluator(plan *Plan) *Evaluator {
	return &Evaluator{
		plan:   plan,
		arena:  model.NewArena(plan.ArenaLimit),
		roots:  make([]model.Value, len(plan.RootFields)),
		inputs: make([]model.Value, len(plan.Parsers)),
		cells:  make([][]model.Value, len(plan.Parsers)),
		result: NewResultSet(plan.Columns()),
	}
}

// Plan returns the plan being executed.
func (e *Evaluator) Plan() *Plan { return e.plan }

// Arena returns the per-record arena.
func (e *Evaluator) Arena() *model.Arena { return e.arena }

// Result returns the rows collected so far.
func (e *Evaluator) Result() *ResultSet { return e.result }

// Stats returns the counters of the result set for the source to update.
func (e *Evaluator) Stats() *Stats { return &e.result.Stats }

// Begin releases the previous record and starts a new one.
func (e *Evaluator) Begin() {
	e.arena.Reset()
	clear(e.roots)
	clear(e.inputs)
	clear(e.cells)
}

// SetRoot sets the root field at position i of Plan.RootFields.
func (e *Evaluator) SetRoot(i int, v model.Value) {
	e.roots[i] = v
}

// Done reports whether the plan's row limit was reached.
func (e *Evaluator) Done() bool {
	return e.plan.Limit > 0 && e.result.Len() >= e.plan.Limit
}

// Eval runs the parsers, tests the filters and, if they all pass, copies the
// returning fields into the result set. It reports whether the record matched.
func (e *Evaluator) Eval() (bool, error) {
	e.result.Stats.RowsScanned++

	for i, p := range e.plan.Parsers {
		e.inputs[i] = e.lookup(p.Input)
		e.cells[i] = p.Instance.Parse(e.arena, &e.inputs[i])
	}
	if err := e.arena.Err(); err != nil {
		return false, queryError(KindArenaOverflow, "", err)
	}

	for _, f := range e.plan.Filters {
		if !Test(f.Filter, e.lookup(f.Ref), e.plan.Now) {
			return false, nil
		}
	}

	for _, c := range e.plan.Returning {
		if !e.arena.Live(e.lookup(c.Ref)) {
			return false, queryError(KindStaleValue, c.Name, ErrStaleValue)
		}
	}
	for _, c := range e.plan.Returning {
		e.result.Push(e.lookup(c.Ref))
	}
	e.result.EndRow()
	e.result.Stats.RowsMatched++
	return true, nil
}

func (e *Evaluator) lookup(ref FieldRef) model.Value {
	if ref.Parser == 0 {
		return e.roots[ref.Field]
	}
	if ref.Field == SelfField {
		return e.inputs[ref.Parser-1]
	}
	cells := e.cells[ref.Parser-1]
	if ref.Field >= len(cells) {
		return model.Null()
	}
	return cells[ref.Field]
}

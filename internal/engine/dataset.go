package engine

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/coffersTech/photon/internal/model"
)

// Source enumerates raw records for a plan.
type Source interface {
	// Query scans every record, feeding it to an Evaluator built from plan,
	// and returns the collected rows.
	Query(ctx context.Context, plan *Plan) (*ResultSet, error)
	// Fields lists the root fields the source produces with their default types.
	Fields() []model.FieldInfo
}

// Dataset is a source with parsers assigned to field paths.
// It is immutable and safe for concurrent queries.
type Dataset struct {
	name       string
	source     Source
	parsers    []ParserConfig
	byDest     map[string]ParserConfig
	arenaLimit int

	logger  log.Logger
	metrics *Metrics
}

// Option configures a Dataset.
type Option func(*Dataset)

// WithLogger sets the logger used for query logs.
func WithLogger(logger log.Logger) Option {
	return func(d *Dataset) { d.logger = logger }
}

// WithMetrics sets the metrics queries are recorded in.
func WithMetrics(m *Metrics) Option {
	return func(d *Dataset) { d.metrics = m }
}

// WithArenaLimit sets the per-record allocation ceiling in bytes.
func WithArenaLimit(n int) Option {
	return func(d *Dataset) { d.arenaLimit = n }
}

// NewDataset composes a dataset. parsers must have distinct destinations.
func NewDataset(name string, source Source, parsers []ParserConfig, opts ...Option) *Dataset {
	d := &Dataset{
		name:    name,
		source:  source,
		parsers: parsers,
		byDest:  make(map[string]ParserConfig, len(parsers)),
		logger:  log.NewNopLogger(),
	}
	for _, p := range parsers {
		d.byDest[p.Dest] = p
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name returns the dataset name.
func (d *Dataset) Name() string { return d.name }

// Plan builds the execution plan of q.
func (d *Dataset) Plan(q *Query) (*Plan, error) {
	plan, err := NewPlan(d.byDest, q, time.Now())
	if err != nil {
		return nil, err
	}
	plan.ArenaLimit = d.arenaLimit
	return plan, nil
}

// Query plans and runs q. On error no rows are returned.
func (d *Dataset) Query(ctx context.Context, q *Query) (*ResultSet, error) {
	start := time.Now()

	plan, err := d.Plan(q)
	if err != nil {
		d.metrics.observe(d.name, nil, err, time.Since(start))
		return nil, err
	}

	rs, err := d.source.Query(ctx, plan)
	elapsed := time.Since(start)
	if err != nil {
		d.metrics.observe(d.name, nil, err, elapsed)
		level.Warn(d.logger).Log("msg", "query failed", "dataset", d.name, "duration", elapsed, "err", err)
		return nil, err
	}
	rs.Stats.Duration = elapsed
	d.metrics.observe(d.name, &rs.Stats, nil, elapsed)

	level.Debug(d.logger).Log(
		"msg", "query finished",
		"dataset", d.name,
		"parsers", len(plan.Parsers),
		"files", rs.Stats.FilesScanned,
		"rows_scanned", rs.Stats.RowsScanned,
		"rows_matched", rs.Stats.RowsMatched,
		"bytes_read", humanize.Bytes(uint64(rs.Stats.BytesRead)),
		"duration", elapsed,
	)
	return rs, nil
}

// Fields lists every statically known field path with its display type.
//
// The type of a path is the type of the parser assigned to it, else the
// default the source or the parent parser declares for it. Paths are
// ordered source fields first, then by parser.
func (d *Dataset) Fields() []model.FieldInfo {
	var fields []model.FieldInfo
	index := make(map[string]int)

	add := func(name string, typ model.FieldType) {
		if p, ok := d.byDest[name]; ok {
			typ = p.Parser.Type()
		}
		if i, ok := index[name]; ok {
			fields[i].Type = typ
			return
		}
		index[name] = len(fields)
		fields = append(fields, model.FieldInfo{Name: name, Type: typ})
	}

	for _, f := range d.source.Fields() {
		add(f.Name, f.Type)
	}
	for _, p := range d.parsers {
		add(p.Dest, p.Parser.Type())
		for _, child := range p.Parser.Fields() {
			add(p.Dest+"/"+child.Name, child.Type)
		}
	}
	return fields
}

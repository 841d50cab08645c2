package controller

import (
	"github.com/go-kit/log"
	"github.com/pkg/errors"

	"github.com/coffersTech/photon/internal/config"
	"github.com/coffersTech/photon/internal/engine"
	"github.com/coffersTech/photon/internal/parser"
	"github.com/coffersTech/photon/internal/storage"
)

// Build compiles a dataset descriptor. Failures are *config.Error.
func Build(cfg *config.Dataset, logger log.Logger, metrics *engine.Metrics) (*engine.Dataset, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	arenaLimit, err := cfg.ArenaLimitBytes()
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = log.NewNopLogger()
	}
	logger = log.With(logger, "dataset", cfg.Name)
	src, err := storage.New(cfg.Source, logger)
	if err != nil {
		return nil, &config.Error{Dataset: cfg.Name, Err: err}
	}

	parsers := make([]engine.ParserConfig, 0, len(cfg.Parsers))
	for i, pc := range cfg.Parsers {
		p, err := parser.New(pc)
		if err != nil {
			return nil, &config.Error{Dataset: cfg.Name, Err: errors.Wrapf(err, "parser %d (%s)", i, pc.DestField())}
		}
		parsers = append(parsers, engine.ParserConfig{
			Field:  pc.InputField(),
			Dest:   pc.DestField(),
			Parser: p,
		})
	}

	return engine.NewDataset(cfg.Name, src, parsers,
		engine.WithArenaLimit(arenaLimit),
		engine.WithLogger(logger),
		engine.WithMetrics(metrics),
	), nil
}

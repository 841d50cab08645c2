// Package config decodes dataset descriptors from TOML files.
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// DefaultArenaLimit bounds how much a single record may allocate while it is evaluated.
const DefaultArenaLimit = 16 * 1024 * 1024

// Source kinds.
const (
	SourceFileLines = "file_lines"
)

// Parser kinds.
const (
	ParserDissect   = "dissect"
	ParserUserAgent = "user_agent"
	ParserTimestamp = "timestamp"
	ParserJSON      = "json"
	ParserKeyword   = "keyword"
	ParserNumber    = "number"
)

// Dataset is the descriptor of one dataset file.
type Dataset struct {
	Name string `toml:"-"`

	Source  Source   `toml:"source"`
	Parsers []Parser `toml:"parsers"`

	// ArenaLimit is a human readable size such as "16MiB".
	ArenaLimit string `toml:"arena_limit"`
}

// Source selects where raw records come from.
type Source struct {
	Kind string `toml:"kind"`
	Path string `toml:"path"`
}

// Parser assigns a parser to a field path.
type Parser struct {
	// Field is the input path. Empty means the raw record.
	Field string `toml:"field"`
	// Dest is the path the parser's outputs appear under. Defaults to Field.
	Dest string `toml:"dest"`
	Kind string `toml:"kind"`

	Pattern   string `toml:"pattern"`
	Format    string `toml:"format"`
	AssumeUTC bool   `toml:"assume_utc"`
}

// RecordField is the root field an empty parser input refers to.
const RecordField = "line"

// InputField returns the configured input path.
func (p Parser) InputField() string {
	if p.Field == "" {
		return RecordField
	}
	return p.Field
}

// DestField returns the configured output path.
func (p Parser) DestField() string {
	if p.Dest == "" {
		return p.InputField()
	}
	return p.Dest
}

// Error is a configuration failure for one dataset.
type Error struct {
	Dataset string
	Err     error
}

func (e *Error) Error() string {
	return "dataset " + e.Dataset + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Cause lets errors.Cause reach the underlying failure.
func (e *Error) Cause() error { return e.Err }

// Errorf builds a configuration error for dataset name.
func Errorf(name, format string, args ...interface{}) error {
	return &Error{Dataset: name, Err: errors.Errorf(format, args...)}
}

// Parse decodes a dataset descriptor. Unknown keys are rejected.
func Parse(name string, data []byte) (*Dataset, error) {
	var ds Dataset
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(&ds); err != nil {
		return nil, &Error{Dataset: name, Err: errors.Wrap(err, "decode toml")}
	}
	ds.Name = name
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return &ds, nil
}

// LoadFile reads the dataset descriptor at path. The dataset is named after the file stem.
func LoadFile(path string) (*Dataset, error) {
	name := DatasetName(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Dataset: name, Err: errors.Wrap(err, "read config")}
	}
	return Parse(name, data)
}

// DatasetName derives the dataset name from a config file path.
func DatasetName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// Validate checks the descriptor for missing or conflicting settings.
// Parser specific settings are checked when the parser is compiled.
func (ds *Dataset) Validate() error {
	switch ds.Source.Kind {
	case SourceFileLines:
		if ds.Source.Path == "" {
			return Errorf(ds.Name, "source %q requires a path", ds.Source.Kind)
		}
	case "":
		return Errorf(ds.Name, "source kind is required")
	default:
		return Errorf(ds.Name, "unknown source kind %q", ds.Source.Kind)
	}

	if _, err := ds.ArenaLimitBytes(); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(ds.Parsers))
	for i, p := range ds.Parsers {
		if p.Kind == "" {
			return Errorf(ds.Name, "parser %d: kind is required", i)
		}
		dest := p.DestField()
		if strings.HasPrefix(dest, "/") || strings.HasSuffix(dest, "/") || strings.Contains(dest, "//") {
			return Errorf(ds.Name, "parser %d: invalid field path %q", i, dest)
		}
		if _, ok := seen[dest]; ok {
			return Errorf(ds.Name, "parser %d: field %q already has a parser", i, dest)
		}
		seen[dest] = struct{}{}
	}
	return nil
}

// ArenaLimitBytes returns the per-record arena ceiling.
func (ds *Dataset) ArenaLimitBytes() (int, error) {
	if ds.ArenaLimit == "" {
		return DefaultArenaLimit, nil
	}
	n, err := humanize.ParseBytes(ds.ArenaLimit)
	if err != nil {
		return 0, &Error{Dataset: ds.Name, Err: errors.Wrapf(err, "invalid arena_limit %q", ds.ArenaLimit)}
	}
	return int(n), nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

const accessLog = `
arena_limit = "1MiB"

[source]
kind = "file_lines"
path = "/var/log/nginx/access.log*"

[[parsers]]
dest = "request"
kind = "dissect"
pattern = "%{clientip} %{rest}"

[[parsers]]
dest = "request/rest"
kind = "number"
`

func TestParse(t *testing.T) {
	ds, err := Parse("nginx", []byte(accessLog))
	require.NoError(t, err)

	require.Equal(t, "nginx", ds.Name)
	require.Equal(t, SourceFileLines, ds.Source.Kind)
	require.Len(t, ds.Parsers, 2)

	require.Equal(t, RecordField, ds.Parsers[0].InputField())
	require.Equal(t, "request", ds.Parsers[0].DestField())
	require.Equal(t, "request/rest", ds.Parsers[1].InputField())
	require.Equal(t, "request/rest", ds.Parsers[1].DestField())

	limit, err := ds.ArenaLimitBytes()
	require.NoError(t, err)
	require.Equal(t, 1<<20, limit)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"unknown key", "[source]\nkind = \"file_lines\"\npath = \"x\"\ncolour = 1\n"},
		{"no source", "arena_limit = \"1MiB\"\n"},
		{"unknown source", "[source]\nkind = \"kafka\"\n"},
		{"no path", "[source]\nkind = \"file_lines\"\n"},
		{"bad limit", "arena_limit = \"lots\"\n[source]\nkind = \"file_lines\"\npath = \"x\"\n"},
		{"no parser kind", "[source]\nkind = \"file_lines\"\npath = \"x\"\n[[parsers]]\ndest = \"a\"\n"},
		{"duplicate dest", "[source]\nkind = \"file_lines\"\npath = \"x\"\n[[parsers]]\ndest = \"a\"\nkind = \"json\"\n[[parsers]]\ndest = \"a\"\nkind = \"json\"\n"},
		{"bad path", "[source]\nkind = \"file_lines\"\npath = \"x\"\n[[parsers]]\ndest = \"a/\"\nkind = \"json\"\n"},
		{"bad toml", "[source\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("broken", []byte(tt.in))
			require.Error(t, err)

			var cerr *Error
			require.True(t, errors.As(err, &cerr))
			require.Equal(t, "broken", cerr.Dataset)
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "access.toml")
	require.NoError(t, os.WriteFile(path, []byte(accessLog), 0o644))

	ds, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, "access", ds.Name)

	_, err = LoadFile(filepath.Join(dir, "missing.toml"))
	require.Error(t, err)
	require.True(t, errors.Is(err, os.ErrNotExist))
}

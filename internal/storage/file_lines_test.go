package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"

	"github.com/coffersTech/photon/internal/config"
	"github.com/coffersTech/photon/internal/engine"
	"github.com/coffersTech/photon/internal/model"
)

const sample = "first line\nsecond line\n\nfourth line\n"

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func gzipped(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func zstded(t *testing.T, s string) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()
	return enc.EncodeAll([]byte(s), nil)
}

func scanAll(t *testing.T, src *FileLines, returning ...string) *engine.ResultSet {
	t.Helper()
	plan, err := engine.NewPlan(nil, &engine.Query{Returning: returning}, time.Now())
	require.NoError(t, err)
	rs, err := src.Query(context.Background(), plan)
	require.NoError(t, err)
	return rs
}

func rows(rs *engine.ResultSet) [][]string {
	out := make([][]string, rs.Len())
	for i := range out {
		out[i] = rs.Row(i).Strings()
	}
	return out
}

func TestFileLinesOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"access.log", "access.log.1", "access.log.2.gz", "access.log.10.gz", "other.txt"} {
		writeFile(t, filepath.Join(dir, name), []byte("x\n"))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "access.log.d"), 0o755))

	src, err := NewFileLines(filepath.Join(dir, "access.log*"), nil)
	require.NoError(t, err)

	files, err := src.Files()
	require.NoError(t, err)
	for i, f := range files {
		files[i] = filepath.Base(f)
	}
	require.Equal(t, []string{"access.log.10.gz", "access.log.2.gz", "access.log.1", "access.log"}, files)
}

func TestFileLinesRootFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	writeFile(t, path, []byte(sample))

	src, err := NewFileLines(path, nil)
	require.NoError(t, err)

	rs := scanAll(t, src, "line", "offset", "filename", "host")
	require.Equal(t, [][]string{
		{"first line", "0", path, ""},
		{"second line", "11", path, ""},
		{"", "23", path, ""},
		{"fourth line", "24", path, ""},
	}, rows(rs))
	require.EqualValues(t, 1, rs.Stats.FilesScanned)
	require.EqualValues(t, 4, rs.Stats.RowsScanned)
	require.EqualValues(t, len(sample), rs.Stats.BytesRead)
}

func TestFileLinesCompressed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "plain.log"), []byte(sample))
	writeFile(t, filepath.Join(dir, "gzip.log"), gzipped(t, sample))
	writeFile(t, filepath.Join(dir, "zstd.log"), zstded(t, sample))

	var want [][]string
	for _, name := range []string{"plain.log", "gzip.log", "zstd.log"} {
		t.Run(name, func(t *testing.T) {
			src, err := NewFileLines(filepath.Join(dir, name), nil)
			require.NoError(t, err)
			got := rows(scanAll(t, src, "line", "offset"))
			if want == nil {
				want = got
			}
			require.Equal(t, want, got)
		})
	}
	require.Len(t, want, 4)
}

func TestFileLinesEdgeCases(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.log"), []byte("no newline at end"))
	writeFile(t, filepath.Join(dir, "b.log"), []byte("bad \xff\xfe byte\n"))
	writeFile(t, filepath.Join(dir, "c.log"), nil)

	src, err := NewFileLines(filepath.Join(dir, "*.log"), nil)
	require.NoError(t, err)

	rs := scanAll(t, src, "line")
	require.ElementsMatch(t, [][]string{{"no newline at end"}, {"bad \uFFFD\uFFFD byte"}}, rows(rs))
	require.EqualValues(t, 3, rs.Stats.FilesScanned)
}

func TestFileLinesLongLines(t *testing.T) {
	dir := t.TempDir()
	long := strings.Repeat("x", 3*readBufferSize)
	writeFile(t, filepath.Join(dir, "long.log"), []byte(long+"\nshort\n"))

	src, err := NewFileLines(filepath.Join(dir, "long.log"), nil)
	require.NoError(t, err)
	require.Equal(t, [][]string{{long}, {"short"}}, rows(scanAll(t, src, "line")))

	plan, err := engine.NewPlan(nil, &engine.Query{Returning: []string{"line"}}, time.Now())
	require.NoError(t, err)
	plan.ArenaLimit = readBufferSize

	rs, err := src.Query(context.Background(), plan)
	require.Nil(t, rs)
	require.ErrorIs(t, err, model.ErrArenaOverflow)
}

func TestFileLinesLimitAndCancel(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.log"), []byte(sample))
	writeFile(t, filepath.Join(dir, "a.log.1"), []byte(sample))

	src, err := NewFileLines(filepath.Join(dir, "a.log*"), nil)
	require.NoError(t, err)

	plan, err := engine.NewPlan(nil, &engine.Query{Returning: []string{"line"}, Limit: 5}, time.Now())
	require.NoError(t, err)
	rs, err := src.Query(context.Background(), plan)
	require.NoError(t, err)
	require.Equal(t, 5, rs.Len())
	require.Equal(t, []string{"first line"}, rs.Row(4).Strings())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Query(ctx, plan)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFileLinesNoMatches(t *testing.T) {
	src, err := NewFileLines(filepath.Join(t.TempDir(), "*.log"), nil)
	require.NoError(t, err)
	rs := scanAll(t, src, "line")
	require.Equal(t, 0, rs.Len())
}

func TestNew(t *testing.T) {
	src, err := New(config.Source{Kind: config.SourceFileLines, Path: "/var/log/*.log"}, nil)
	require.NoError(t, err)
	require.Len(t, src.Fields(), 3)

	_, err = New(config.Source{Kind: "s3", Path: "bucket"}, nil)
	require.Error(t, err)

	_, err = NewFileLines("/var/log/[", nil)
	require.Error(t, err)
}

package storage

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"sort"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dustin/go-humanize"
	"github.com/facette/natsort"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/coffersTech/photon/internal/config"
	"github.com/coffersTech/photon/internal/engine"
	"github.com/coffersTech/photon/internal/model"
)

// Root fields produced by FileLines.
const (
	FieldFilename = "filename"
	FieldLine     = "line"
	FieldOffset   = "offset"
)

const (
	readBufferSize = 64 * 1024
	// cancellation is checked once per this many records
	ctxCheckInterval = 1024
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// New opens the source described by cfg.
func New(cfg config.Source, logger log.Logger) (engine.Source, error) {
	switch cfg.Kind {
	case config.SourceFileLines:
		return NewFileLines(cfg.Path, logger)
	default:
		return nil, errors.Errorf("unknown source kind %q", cfg.Kind)
	}
}

// FileLines reads newline-delimited records from every file matching a glob.
// Files compressed with gzip or zstd are decompressed transparently.
type FileLines struct {
	pattern string
	logger  log.Logger
}

// NewFileLines creates a source over the files matching pattern. The pattern
// supports doublestar ("**") matching.
func NewFileLines(pattern string, logger log.Logger) (*FileLines, error) {
	if !doublestar.ValidatePathPattern(pattern) {
		return nil, errors.Errorf("invalid glob pattern %q", pattern)
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &FileLines{pattern: pattern, logger: logger}, nil
}

// Fields lists the root fields with their default types.
func (s *FileLines) Fields() []model.FieldInfo {
	return []model.FieldInfo{
		{Name: FieldFilename, Type: model.FieldKeyword},
		{Name: FieldLine, Type: model.FieldKeyword},
		{Name: FieldOffset, Type: model.FieldNumber},
	}
}

// Files expands the glob. Matches are in reverse natural order, so rotated
// files come before the file they were rotated from: access.log.2.gz,
// access.log.1, access.log.
func (s *FileLines) Files() ([]string, error) {
	files, err := doublestar.FilepathGlob(s.pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	sort.SliceStable(files, func(i, j int) bool {
		return natsort.Compare(files[j], files[i])
	})
	return files, nil
}

type rootKind int

const (
	rootUnknown rootKind = iota
	rootFilename
	rootLine
	rootOffset
)

// Query scans every file in order and evaluates plan on each line.
func (s *FileLines) Query(ctx context.Context, plan *engine.Plan) (*engine.ResultSet, error) {
	files, err := s.Files()
	if err != nil {
		return nil, engine.IOError(s.pattern, err)
	}

	roots := make([]rootKind, len(plan.RootFields))
	for i, name := range plan.RootFields {
		switch name {
		case FieldFilename:
			roots[i] = rootFilename
		case FieldLine:
			roots[i] = rootLine
		case FieldOffset:
			roots[i] = rootOffset
		}
	}

	ev := engine.NewEvaluator(plan)
	sc := &scan{ev: ev, roots: roots}
	for _, path := range files {
		if ev.Done() {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		before := ev.Stats().BytesRead
		if err := sc.file(ctx, path); err != nil {
			return nil, err
		}
		level.Debug(s.logger).Log("msg", "scanned file", "path", path, "bytes", humanize.Bytes(uint64(ev.Stats().BytesRead-before)))
	}
	return ev.Result(), nil
}

type scan struct {
	ev    *engine.Evaluator
	roots []rootKind
	buf   []byte
	fixed []byte
}

func (sc *scan) file(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return engine.IOError(path, err)
	}
	defer f.Close()

	r, closeFn, err := decompress(bufio.NewReaderSize(f, readBufferSize))
	if err != nil {
		return engine.IOError(path, err)
	}
	defer closeFn()

	sc.ev.Stats().FilesScanned++
	filename := model.String(path)
	offset := 0

	for n := 0; ; n++ {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		line, rerr := sc.readLine(r)
		if len(line) == 0 && rerr == io.EOF {
			return nil
		}
		if rerr != nil && rerr != io.EOF {
			return engine.IOError(path, rerr)
		}
		consumed := len(line)
		line = bytes.TrimSuffix(line, []byte{'\n'})

		sc.ev.Begin()
		a := sc.ev.Arena()
		for i, kind := range sc.roots {
			switch kind {
			case rootFilename:
				sc.ev.SetRoot(i, filename)
			case rootLine:
				if !utf8.Valid(line) {
					sc.fixed = appendValidUTF8(sc.fixed[:0], line)
					line = sc.fixed
				}
				sc.ev.SetRoot(i, a.String(a.CopyBytes(line)))
			case rootOffset:
				sc.ev.SetRoot(i, model.Number(float64(offset)))
			}
		}
		offset += consumed
		sc.ev.Stats().BytesRead += int64(consumed)

		if _, err := sc.ev.Eval(); err != nil {
			return err
		}
		if sc.ev.Done() || rerr == io.EOF {
			return nil
		}
	}
}

// readLine returns the next line including its delimiter. The slice is reused
// by the next call.
func (sc *scan) readLine(r *bufio.Reader) ([]byte, error) {
	sc.buf = sc.buf[:0]
	for {
		chunk, err := r.ReadSlice('\n')
		sc.buf = append(sc.buf, chunk...)
		if err != bufio.ErrBufferFull {
			return sc.buf, err
		}
	}
}

// decompress sniffs the magic number of r and wraps it in a decompressor when
// it recognises one.
func decompress(r *bufio.Reader) (*bufio.Reader, func(), error) {
	magic, _ := r.Peek(len(zstdMagic))
	switch {
	case bytes.HasPrefix(magic, gzipMagic):
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, errors.Wrap(err, "gzip")
		}
		return bufio.NewReaderSize(zr, readBufferSize), func() { zr.Close() }, nil
	case bytes.HasPrefix(magic, zstdMagic):
		zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, nil, errors.Wrap(err, "zstd")
		}
		return bufio.NewReaderSize(zr, readBufferSize), zr.Close, nil
	default:
		return r, func() {}, nil
	}
}

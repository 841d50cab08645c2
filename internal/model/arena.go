package model

import (
	"strconv"
	"unsafe"

	"github.com/pkg/errors"
)

// ErrArenaOverflow is reported when one record grows its arena past the configured ceiling.
var ErrArenaOverflow = errors.New("record arena limit exceeded")

const (
	minBytesChunk  = 4 * 1024
	minValuesChunk = 64
	valueSize      = int(unsafe.Sizeof(Value{}))
	pairSize       = int(unsafe.Sizeof(Pair{}))
)

// Arena is a bump allocator scoped to one record.
//
// Strings and slices handed out by an Arena stay valid until the next Reset.
// Every Reset advances the generation, so values copied in before the reset
// can be detected with Live.
//
// An Arena is not safe for concurrent use.
type Arena struct {
	buf   []byte
	vals  []Value
	pairs []Pair

	gen   uint32
	used  int
	limit int
	err   error
}

// NewArena returns an arena that fails once a single record allocates more
// than limit bytes. A limit <= 0 disables the ceiling.
func NewArena(limit int) *Arena {
	return &Arena{
		buf:   make([]byte, 0, minBytesChunk),
		vals:  make([]Value, 0, minValuesChunk),
		gen:   1,
		limit: limit,
	}
}

// Reset releases everything allocated for the previous record.
func (a *Arena) Reset() {
	a.buf = a.buf[:0]
	clear(a.vals)
	a.vals = a.vals[:0]
	clear(a.pairs)
	a.pairs = a.pairs[:0]
	a.gen++
	if a.gen == 0 {
		a.gen = 1
	}
	a.used = 0
	a.err = nil
}

// Generation identifies the current record.
func (a *Arena) Generation() uint32 { return a.gen }

// Used returns the bytes allocated since the last Reset.
func (a *Arena) Used() int { return a.used }

// Err returns ErrArenaOverflow once the ceiling was crossed for the current record.
func (a *Arena) Err() error { return a.err }

// Live reports whether v may still be read: it is either not arena-backed
// or was allocated in the current generation.
func (a *Arena) Live(v Value) bool {
	return v.gen == 0 || v.gen == a.gen
}

func (a *Arena) grow(n int) {
	a.used += n
	if a.limit > 0 && a.used > a.limit && a.err == nil {
		a.err = errors.Wrapf(ErrArenaOverflow, "%d bytes allocated, limit %d", a.used, a.limit)
	}
}

func (a *Arena) reserve(n int) []byte {
	if len(a.buf)+n > cap(a.buf) {
		// Earlier strings keep pointing into the old chunk.
		a.buf = make([]byte, 0, max(2*cap(a.buf), n, minBytesChunk))
	}
	start := len(a.buf)
	a.buf = a.buf[:start+n]
	a.grow(n)
	return a.buf[start : start+n : start+n]
}

func bytesToString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

// CopyBytes copies b into the arena and returns it as a string.
func (a *Arena) CopyBytes(b []byte) string {
	dst := a.reserve(len(b))
	copy(dst, b)
	return bytesToString(dst)
}

// CopyString copies s into the arena.
func (a *Arena) CopyString(s string) string {
	dst := a.reserve(len(s))
	copy(dst, s)
	return bytesToString(dst)
}

// FormatFloat renders n into the arena using the display form of numbers.
func (a *Arena) FormatFloat(n float64) string {
	var tmp [32]byte
	return a.CopyBytes(strconv.AppendFloat(tmp[:0], n, 'f', -1, 64))
}

// String returns a String value whose payload is s, stamped with the current generation.
// s must already live in the arena or outlive it.
func (a *Arena) String(s string) Value {
	return Value{kind: KindString, gen: a.gen, str: s}
}

// Map returns a Map value over pairs allocated from this arena.
func (a *Arena) Map(pairs []Pair) Value {
	return Value{kind: KindMap, gen: a.gen, pairs: pairs}
}

// Values returns n Null values.
func (a *Arena) Values(n int) []Value {
	if n == 0 {
		return nil
	}
	if len(a.vals)+n > cap(a.vals) {
		a.vals = make([]Value, 0, max(2*cap(a.vals), n, minValuesChunk))
	}
	start := len(a.vals)
	a.vals = a.vals[:start+n]
	a.grow(n * valueSize)
	return a.vals[start : start+n : start+n]
}

// Pairs returns an empty pair list with room for n entries.
// Appending beyond n allocates outside the arena.
func (a *Arena) Pairs(n int) []Pair {
	if n <= 0 {
		n = 1
	}
	if len(a.pairs)+n > cap(a.pairs) {
		a.pairs = make([]Pair, 0, max(2*cap(a.pairs), n, minValuesChunk))
	}
	start := len(a.pairs)
	a.pairs = a.pairs[:start+n]
	a.grow(n * pairSize)
	return a.pairs[start:start:start+n]
}

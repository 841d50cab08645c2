package engine

import (
	"fmt"
	"time"
	"unsafe"

	jsoniter "github.com/json-iterator/go"

	"github.com/coffersTech/photon/internal/model"
)

// Stats describes the work done by one query.
type Stats struct {
	FilesScanned int64
	RowsScanned  int64
	RowsMatched  int64
	BytesRead    int64
	Duration     time.Duration
}

// ResultSet stores rows of text cells using a flat buffer and offsets.
// Columns are fixed when the set is created.
type ResultSet struct {
	cols    []string
	data    []byte // the flat buffer storing every cell
	offsets []int  // cumulative end offset of each cell
	rows    int

	Stats Stats
}

// NewResultSet creates an empty result set with the given columns.
func NewResultSet(cols []string) *ResultSet {
	return &ResultSet{
		cols:    cols,
		data:    make([]byte, 0, 4096),
		offsets: make([]int, 0, 64),
	}
}

// Push appends the display form of v as the next cell of the open row.
func (rs *ResultSet) Push(v model.Value) {
	rs.data = v.AppendText(rs.data)
	rs.offsets = append(rs.offsets, len(rs.data))
}

// PushString appends s as the next cell of the open row.
func (rs *ResultSet) PushString(s string) {
	rs.data = append(rs.data, s...)
	rs.offsets = append(rs.offsets, len(rs.data))
}

// EndRow closes the open row. It panics unless exactly one cell was pushed
// per column since the previous row.
func (rs *ResultSet) EndRow() {
	if want := (rs.rows + 1) * len(rs.cols); len(rs.offsets) != want {
		panic(fmt.Sprintf("resultset: row %d has %d cells, want %d", rs.rows, len(rs.offsets)-rs.rows*len(rs.cols), len(rs.cols)))
	}
	rs.rows++
}

// Len returns the number of completed rows.
func (rs *ResultSet) Len() int { return rs.rows }

// Columns returns the column names.
func (rs *ResultSet) Columns() []string { return rs.cols }

// Size returns the bytes held by the set.
func (rs *ResultSet) Size() int {
	return len(rs.data) + len(rs.offsets)*8
}

// Row returns row i. It panics if i is out of range.
func (rs *ResultSet) Row(i int) Row {
	if i < 0 || i >= rs.rows {
		panic(fmt.Sprintf("resultset: row %d out of range [0, %d)", i, rs.rows))
	}
	return Row{rs: rs, first: i * len(rs.cols)}
}

// Row is a view of one row. Cells point into the result set's buffer.
type Row struct {
	rs    *ResultSet
	first int
}

// Len returns the number of cells.
func (r Row) Len() int { return len(r.rs.cols) }

// Bytes returns cell j without copying. The slice must not be modified.
func (r Row) Bytes(j int) []byte {
	k := r.first + j
	start := 0
	if k > 0 {
		start = r.rs.offsets[k-1]
	}
	return r.rs.data[start:r.rs.offsets[k]:r.rs.offsets[k]]
}

// Value returns cell j without copying.
func (r Row) Value(j int) string {
	b := r.Bytes(j)
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

// Strings copies the row's cells.
func (r Row) Strings() []string {
	out := make([]string, r.Len())
	for j := range out {
		out[j] = string(r.Bytes(j))
	}
	return out
}

// WriteTo writes the rows as a JSON array of objects keyed by column name.
func (rs *ResultSet) WriteTo(stream *jsoniter.Stream) {
	stream.WriteArrayStart()
	for i := 0; i < rs.rows; i++ {
		if i > 0 {
			stream.WriteMore()
		}
		row := rs.Row(i)
		stream.WriteObjectStart()
		for j, col := range rs.cols {
			if j > 0 {
				stream.WriteMore()
			}
			stream.WriteObjectField(col)
			stream.WriteString(row.Value(j))
		}
		stream.WriteObjectEnd()
	}
	stream.WriteArrayEnd()
}

// WriteTo writes the stats as a JSON object.
func (s Stats) WriteTo(stream *jsoniter.Stream) {
	stream.WriteObjectStart()
	stream.WriteObjectField("files_scanned")
	stream.WriteInt64(s.FilesScanned)
	stream.WriteMore()
	stream.WriteObjectField("rows_scanned")
	stream.WriteInt64(s.RowsScanned)
	stream.WriteMore()
	stream.WriteObjectField("rows_matched")
	stream.WriteInt64(s.RowsMatched)
	stream.WriteMore()
	stream.WriteObjectField("bytes_read")
	stream.WriteInt64(s.BytesRead)
	stream.WriteMore()
	stream.WriteObjectField("duration_ms")
	stream.WriteFloat64(float64(s.Duration.Microseconds()) / 1000)
	stream.WriteObjectEnd()
}

// MarshalJSON encodes the rows like WriteTo.
func (rs *ResultSet) MarshalJSON() ([]byte, error) {
	stream := jsoniter.ConfigFastest.BorrowStream(nil)
	defer jsoniter.ConfigFastest.ReturnStream(stream)
	rs.WriteTo(stream)
	if stream.Error != nil {
		return nil, stream.Error
	}
	return append([]byte(nil), stream.Buffer()...), nil
}

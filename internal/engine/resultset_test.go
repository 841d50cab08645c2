package engine

import (
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"

	"github.com/coffersTech/photon/internal/model"
)

func TestResultSet(t *testing.T) {
	rs := NewResultSet([]string{"foo", "bar"})
	require.Equal(t, 0, rs.Len())

	rs.PushString("abcdefg")
	rs.PushString("qw")
	rs.EndRow()
	require.Equal(t, 1, rs.Len())

	rs.Push(model.Number(1.5))
	rs.Push(model.Null())
	rs.EndRow()
	require.Equal(t, 2, rs.Len())

	require.Equal(t, []string{"abcdefg", "qw"}, rs.Row(0).Strings())
	require.Equal(t, []string{"1.5", ""}, rs.Row(1).Strings())
	require.Equal(t, "qw", rs.Row(0).Value(1))

	out, err := rs.MarshalJSON()
	require.NoError(t, err)
	require.JSONEq(t, `[{"foo":"abcdefg","bar":"qw"},{"foo":"1.5","bar":""}]`, string(out))
}

func TestResultSetEndRowChecksCells(t *testing.T) {
	rs := NewResultSet([]string{"a", "b"})
	rs.PushString("x")
	require.Panics(t, rs.EndRow)

	rs.PushString("y")
	require.NotPanics(t, rs.EndRow)

	rs.PushString("1")
	rs.PushString("2")
	rs.PushString("3")
	require.Panics(t, rs.EndRow)
}

func TestResultSetWithoutColumns(t *testing.T) {
	rs := NewResultSet(nil)
	rs.EndRow()
	rs.EndRow()
	require.Equal(t, 2, rs.Len())

	out, err := rs.MarshalJSON()
	require.NoError(t, err)
	require.JSONEq(t, `[{},{}]`, string(out))
}

func TestResultSetEscapes(t *testing.T) {
	rs := NewResultSet([]string{`a"b`})
	rs.PushString("line\nwith \"quotes\" and <tags>")
	rs.EndRow()

	stream := jsoniter.ConfigDefault.BorrowStream(nil)
	defer jsoniter.ConfigDefault.ReturnStream(stream)
	rs.WriteTo(stream)
	require.NoError(t, stream.Error)

	var decoded []map[string]string
	require.NoError(t, jsoniter.Unmarshal(stream.Buffer(), &decoded))
	require.Equal(t, []map[string]string{{`a"b`: "line\nwith \"quotes\" and <tags>"}}, decoded)
}

package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coffersTech/photon/internal/model"
)

func TestJSONPaths(t *testing.T) {
	inst := JSON{}.Instance()

	paths := []string{"foo", "bar.baz", "x", "n", "arr", "bool", "dotted.name", "bar", "foo.deeper"}
	idx := make(map[string]int)
	for i, p := range paths {
		got, ok := inst.RequireField(p)
		require.True(t, ok)
		require.Equal(t, i, got, "paths are numbered in first-request order")
		idx[p] = got
	}
	again, _ := inst.RequireField("bar.baz")
	require.Equal(t, idx["bar.baz"], again)
	_, ok := inst.RequireField("")
	require.False(t, ok)

	a := model.NewArena(0)
	input := model.String(`{"ignored": {}, "foo": 5, "bar": {"baz": "test"}, "dotted.name": 6, "obj": {}, "arr": [5], "bool": false, "n": null}`)
	out := inst.Parse(a, &input)
	require.Len(t, out, len(paths))

	require.True(t, out[idx["foo"]].Equal(model.Number(5)))
	require.True(t, out[idx["bar.baz"]].Equal(model.String("test")))
	require.False(t, out[idx["x"]].Exists())
	require.False(t, out[idx["n"]].Exists())
	require.False(t, out[idx["arr"]].Exists())
	require.True(t, out[idx["bool"]].Equal(model.String("false")))
	require.False(t, out[idx["dotted.name"]].Exists(), "keys are split on dots")
	require.Equal(t, model.KindMap, out[idx["bar"]].Kind())
	require.False(t, out[idx["foo.deeper"]].Exists(), "non-object mid path")

	// the input is left untouched
	_, ok = input.Str()
	require.True(t, ok)
}

func TestJSONInvalidInput(t *testing.T) {
	inst := JSON{}.Instance()
	_, _ = inst.RequireField("a")
	_, _ = inst.RequireField("b")

	a := model.NewArena(0)
	for _, in := range []model.Value{model.String("{not json"), model.String(""), model.Null(), model.Number(1)} {
		a.Reset()
		v := in
		out := inst.Parse(a, &v)
		require.Len(t, out, 2)
		require.False(t, out[0].Exists())
		require.False(t, out[1].Exists())
	}
}

func TestJSONValuesSurviveReparse(t *testing.T) {
	inst := JSON{}.Instance()
	_, _ = inst.RequireField("msg")

	a := model.NewArena(0)
	first := model.String(`{"msg": "first"}`)
	out1 := inst.Parse(a, &first)

	second := model.String(`{"msg": "second"}`)
	out2 := inst.Parse(a, &second)

	require.Equal(t, "first", out1[0].String())
	require.Equal(t, "second", out2[0].String())
}

package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coffersTech/photon/internal/config"
	"github.com/coffersTech/photon/internal/model"
)

func TestNew(t *testing.T) {
	tests := []struct {
		cfg      config.Parser
		typ      model.FieldType
		children int
	}{
		{config.Parser{Kind: config.ParserDissect, Pattern: "%{a} %{b}"}, model.FieldPhrase, 2},
		{config.Parser{Kind: config.ParserUserAgent}, model.FieldPhrase, len(userAgentFields)},
		{config.Parser{Kind: config.ParserTimestamp, Format: "rfc3339"}, model.FieldTimestamp, 0},
		{config.Parser{Kind: config.ParserJSON}, model.FieldPhrase, 0},
		{config.Parser{Kind: config.ParserKeyword}, model.FieldKeyword, 0},
		{config.Parser{Kind: config.ParserNumber}, model.FieldNumber, 0},
	}

	for _, tt := range tests {
		t.Run(tt.cfg.Kind, func(t *testing.T) {
			p, err := New(tt.cfg)
			require.NoError(t, err)
			require.Equal(t, tt.cfg.Kind, p.Kind())
			require.Equal(t, tt.typ, p.Type())
			require.Len(t, p.Fields(), tt.children)
			require.NotNil(t, p.Instance())
		})
	}
}

func TestNewErrors(t *testing.T) {
	for _, cfg := range []config.Parser{
		{Kind: "grok"},
		{Kind: config.ParserDissect, Pattern: "%{open"},
		{Kind: config.ParserTimestamp, Format: "15:04"},
	} {
		_, err := New(cfg)
		require.Error(t, err, cfg.Kind)
	}
}

func TestCasts(t *testing.T) {
	a := model.NewArena(0)

	v := model.Number(200)
	require.Empty(t, Keyword{}.Instance().Parse(a, &v))
	require.True(t, v.Equal(model.String("200")))

	v = model.String("3171")
	Number{}.Instance().Parse(a, &v)
	require.True(t, v.Equal(model.Number(3171)))

	v = model.String("-")
	Number{}.Instance().Parse(a, &v)
	require.True(t, v.Equal(model.String("-")), "non-numeric strings are left alone")

	v = model.String(" 200")
	Number{}.Instance().Parse(a, &v)
	require.True(t, v.Equal(model.String(" 200")), "numbers are parsed strictly")

	v = model.String("abc")
	Keyword{}.Instance().Parse(a, &v)
	require.True(t, v.Equal(model.String("abc")))
}

package parser

import (
	"strconv"

	"github.com/coffersTech/photon/internal/config"
	"github.com/coffersTech/photon/internal/model"
)

// Keyword renders numbers as text.
type Keyword struct{ noChildren }

func (Keyword) Kind() string { return config.ParserKeyword }

func (Keyword) Type() model.FieldType { return model.FieldKeyword }

func (k Keyword) Instance() Instance { return k }

func (Keyword) Parse(a *model.Arena, input *model.Value) []model.Value {
	if n, ok := input.Num(); ok {
		*input = a.String(a.FormatFloat(n))
	}
	return nil
}

// Number reads strings as floats. Strings that are not numbers are left alone.
type Number struct{ noChildren }

func (Number) Kind() string { return config.ParserNumber }

func (Number) Type() model.FieldType { return model.FieldNumber }

func (n Number) Instance() Instance { return n }

func (Number) Parse(_ *model.Arena, input *model.Value) []model.Value {
	if s, ok := input.Str(); ok {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			*input = model.Number(f)
		}
	}
	return nil
}

package parser

import (
	"strings"

	"github.com/valyala/fastjson"

	"github.com/coffersTech/photon/internal/config"
	"github.com/coffersTech/photon/internal/model"
)

// JSON extracts dotted paths from a JSON object. Its children are whatever
// paths a query asks for.
type JSON struct{}

func (JSON) Kind() string { return config.ParserJSON }

func (JSON) Type() model.FieldType { return model.FieldPhrase }

func (JSON) Fields() []model.FieldInfo { return nil }

func (JSON) Instance() Instance {
	return &jsonInstance{index: make(map[string]int)}
}

type jsonInstance struct {
	p     fastjson.Parser
	paths [][]string
	index map[string]int
}

func (i *jsonInstance) RequireField(name string) (int, bool) {
	if name == "" {
		return 0, false
	}
	if idx, ok := i.index[name]; ok {
		return idx, true
	}
	idx := len(i.paths)
	i.index[name] = idx
	i.paths = append(i.paths, strings.Split(name, "."))
	return idx, true
}

func (i *jsonInstance) Parse(a *model.Arena, input *model.Value) []model.Value {
	out := a.Values(len(i.paths))
	if len(out) == 0 {
		return out
	}

	root := *input
	if s, ok := input.Str(); ok {
		v, err := i.p.Parse(s)
		if err != nil {
			return out
		}
		root = toValue(a, v)
	}

	for j, path := range i.paths {
		out[j] = lookup(root, path)
	}
	return out
}

// toValue copies a parsed document into the arena. The fastjson tree is
// only valid until the parser's next Parse call.
func toValue(a *model.Arena, v *fastjson.Value) model.Value {
	switch v.Type() {
	case fastjson.TypeObject:
		o, _ := v.Object()
		pairs := a.Pairs(o.Len())
		o.Visit(func(key []byte, child *fastjson.Value) {
			pairs = append(pairs, model.Pair{Key: a.CopyBytes(key), Value: toValue(a, child)})
		})
		return a.Map(pairs)
	case fastjson.TypeString:
		b, _ := v.StringBytes()
		return a.String(a.CopyBytes(b))
	case fastjson.TypeNumber:
		n, _ := v.Float64()
		return model.Number(n)
	case fastjson.TypeTrue:
		return model.String("true")
	case fastjson.TypeFalse:
		return model.String("false")
	default:
		// null and arrays
		return model.Null()
	}
}

func lookup(v model.Value, path []string) model.Value {
	for _, key := range path {
		child, ok := v.Get(key)
		if !ok {
			return model.Null()
		}
		v = child
	}
	return v
}

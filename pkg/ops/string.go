package ops

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/dd0wney/cluso-nodegraph/pkg/registry"
	"github.com/dd0wney/cluso-nodegraph/pkg/value"
)

func unaryString(name string, fn func(string) string) op {
	return op{
		sig: elementwise(registry.Signature{
			Name:    name,
			Params:  []registry.Param{required("value", value.TypeString)},
			Returns: value.TypeString,
		}, "value"),
		fn: func(_ context.Context, args []value.Value) (value.Value, error) {
			r := read(args)
			return r.result(value.String(fn(r.String(0))))
		},
	}
}

// splitString splits s on sep; an empty separator splits into characters
// and an empty string gives no items
func splitString(s, sep string) []string {
	if s == "" {
		return nil
	}
	if sep == "" {
		out := make([]string, 0, utf8.RuneCountInString(s))
		for _, c := range s {
			out = append(out, string(c))
		}
		return out
	}
	return strings.Split(s, sep)
}

func registerString(reg *registry.Registry) error {
	return registerOps(reg, []op{
		{
			sig: registry.Signature{
				Name:    "string.string",
				Params:  []registry.Param{optional("value", value.TypeString, value.String(""))},
				Returns: value.TypeString,
			},
			fn: func(_ context.Context, args []value.Value) (value.Value, error) {
				r := read(args)
				return r.result(value.String(r.String(0)))
			},
		},
		{
			sig: registry.Signature{
				Name:    "string.concatenate",
				Params:  []registry.Param{list("strings", value.TypeString)},
				Returns: value.TypeString,
			},
			fn: func(_ context.Context, args []value.Value) (value.Value, error) {
				var b strings.Builder
				for _, it := range read(args).Items(0) {
					b.WriteString(it.String())
				}
				return value.String(b.String()), nil
			},
		},
		unaryString("string.uppercase", strings.ToUpper),
		unaryString("string.lowercase", strings.ToLower),
		{
			sig: registry.Signature{
				Name:    "string.length",
				Params:  []registry.Param{optional("value", value.TypeString, value.String(""))},
				Returns: value.TypeInt,
			},
			fn: func(_ context.Context, args []value.Value) (value.Value, error) {
				r := read(args)
				return r.result(value.Int(int64(utf8.RuneCountInString(r.String(0)))))
			},
		},
		{
			sig: registry.Signature{
				Name: "string.make_strings",
				Params: []registry.Param{
					optional("value", value.TypeString, value.String("")),
					optional("separator", value.TypeString, value.String("")),
				},
				Returns: value.TypeList,
			},
			fn: func(_ context.Context, args []value.Value) (value.Value, error) {
				r := read(args)
				parts := splitString(r.String(0), r.String(1))
				out := make([]value.Value, len(parts))
				for i, p := range parts {
					out[i] = value.String(p)
				}
				return r.result(value.List(out...))
			},
		},
	})
}

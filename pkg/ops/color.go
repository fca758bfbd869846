package ops

import (
	"context"

	"github.com/dd0wney/cluso-nodegraph/pkg/geometry"
	"github.com/dd0wney/cluso-nodegraph/pkg/registry"
	"github.com/dd0wney/cluso-nodegraph/pkg/value"
)

func registerColor(reg *registry.Registry) error {
	return registerOps(reg, []op{
		{
			// Components are divided by range, so range 255 takes byte values
			sig: registry.Signature{
				Name: "color.rgb",
				Params: []registry.Param{
					optional("red", value.TypeFloat, value.Float(0)),
					optional("green", value.TypeFloat, value.Float(0)),
					optional("blue", value.TypeFloat, value.Float(0)),
					optional("alpha", value.TypeFloat, value.Float(1)),
					optional("range", value.TypeFloat, value.Float(1)),
				},
				Returns: value.TypeColor,
			},
			fn: func(_ context.Context, args []value.Value) (value.Value, error) {
				r := read(args)
				scale := r.Float(4)
				if scale <= 0 {
					scale = 1
				}
				c := geometry.RGBA(r.Float(0)/scale, r.Float(1)/scale, r.Float(2)/scale, r.Float(3)/scale)
				return r.result(value.Color(c))
			},
		},
	})
}

package ops

import (
	"context"
	"fmt"
	"sort"

	"github.com/dd0wney/cluso-nodegraph/pkg/registry"
	"github.com/dd0wney/cluso-nodegraph/pkg/value"
)

func listOp(name string, returns value.TypeClass, extra []registry.Param, fn func(items []value.Value, r *reader) value.Value) op {
	params := append([]registry.Param{list("list", value.TypeAny)}, extra...)
	return op{
		sig: registry.Signature{Name: name, Params: params, Returns: returns},
		fn: func(_ context.Context, args []value.Value) (value.Value, error) {
			r := read(args)
			out := fn(r.Items(0), r)
			return r.result(out)
		},
	}
}

func sliceItems(items []value.Value, start, size int64, invert bool) []value.Value {
	n := int64(len(items))
	if start < 0 {
		start = 0
	}
	if size < 0 {
		size = 0
	}
	from := min(start, n)
	to := min(start+size, n)
	if invert {
		out := append([]value.Value(nil), items[:from]...)
		return append(out, items[to:]...)
	}
	return append([]value.Value(nil), items[from:to]...)
}

func repeatItems(items []value.Value, amount int64, perItem bool) ([]value.Value, error) {
	if len(items) == 0 || amount <= 0 {
		return nil, nil
	}
	if amount > MaxItems/int64(len(items)) {
		return nil, fmt.Errorf("%w: %d items repeated %d times exceeds %d", ErrTooManyItems, len(items), amount, MaxItems)
	}
	out := make([]value.Value, 0, len(items)*int(amount))
	if perItem {
		for _, it := range items {
			for i := int64(0); i < amount; i++ {
				out = append(out, it)
			}
		}
		return out, nil
	}
	for i := int64(0); i < amount; i++ {
		out = append(out, items...)
	}
	return out, nil
}

// sortItems orders numbers numerically when every item is a number and by
// string form otherwise. The sort is stable.
func sortItems(items []value.Value) []value.Value {
	out := append([]value.Value(nil), items...)
	numeric := true
	for _, it := range out {
		if k := it.Kind(); k != value.KindInt && k != value.KindFloat {
			numeric = false
			break
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if numeric {
			a, _ := out[i].AsFloat()
			b, _ := out[j].AsFloat()
			return a < b
		}
		return out[i].String() < out[j].String()
	})
	return out
}

func registerList(reg *registry.Registry) error {
	return registerOps(reg, []op{
		listOp("list.count", value.TypeInt, nil, func(items []value.Value, _ *reader) value.Value {
			return value.Int(int64(len(items)))
		}),
		listOp("list.first", value.TypeAny, nil, func(items []value.Value, _ *reader) value.Value {
			if len(items) == 0 {
				return value.Null
			}
			return items[0]
		}),
		listOp("list.last", value.TypeAny, nil, func(items []value.Value, _ *reader) value.Value {
			if len(items) == 0 {
				return value.Null
			}
			return items[len(items)-1]
		}),
		listOp("list.reverse", value.TypeList, nil, func(items []value.Value, _ *reader) value.Value {
			out := make([]value.Value, len(items))
			for i, it := range items {
				out[len(items)-1-i] = it
			}
			return value.List(out...)
		}),
		listOp("list.sort", value.TypeList, nil, func(items []value.Value, _ *reader) value.Value {
			return value.List(sortItems(items)...)
		}),
		listOp("list.slice", value.TypeList,
			[]registry.Param{
				optional("start", value.TypeInt, value.Int(0)),
				optional("size", value.TypeInt, value.Int(10)),
				optional("invert", value.TypeBool, value.Bool(false)),
			},
			func(items []value.Value, r *reader) value.Value {
				return value.List(sliceItems(items, r.Int(1), r.Int(2), r.Bool(3))...)
			}),
		listOp("list.repeat", value.TypeList,
			[]registry.Param{
				optional("amount", value.TypeInt, value.Int(1)),
				optional("per_item", value.TypeBool, value.Bool(false)),
			},
			func(items []value.Value, r *reader) value.Value {
				out, err := repeatItems(items, r.Int(1), r.Bool(2))
				if err != nil {
					r.fail(1, err)
				}
				return value.List(out...)
			}),
		{
			sig: registry.Signature{
				Name: "list.combine",
				Params: []registry.Param{
					list("list1", value.TypeAny),
					list("list2", value.TypeAny),
					list("list3", value.TypeAny),
				},
				Returns: value.TypeList,
			},
			fn: func(_ context.Context, args []value.Value) (value.Value, error) {
				return value.List(args...), nil
			},
		},
	})
}

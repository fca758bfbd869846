package eval

import (
	"errors"
	"testing"

	"github.com/dd0wney/cluso-nodegraph/pkg/geometry"
	"github.com/dd0wney/cluso-nodegraph/pkg/nodeerr"
	"github.com/dd0wney/cluso-nodegraph/pkg/value"
)

func TestCoerce(t *testing.T) {
	tests := []struct {
		name     string
		in       value.Value
		to       value.TypeClass
		listMode bool
		want     value.Value
		wantErr  bool
	}{
		{"int to float", value.Int(3), value.TypeFloat, false, value.Float(3), false},
		{"bool to float", value.Bool(true), value.TypeFloat, false, value.Float(1), false},
		{"float to int truncates", value.Float(2.7), value.TypeInt, false, value.Int(2), false},
		{"float to point", value.Float(2), value.TypePoint, false, value.Point(geometry.Pt(2, 2)), false},
		{"number to string", value.Float(1.5), value.TypeString, false, value.String("1.5"), false},
		{"same type", value.String("x"), value.TypeString, false, value.String("x"), false},
		{"any passes through", value.Ints(1, 2), value.TypeAny, false, value.Ints(1, 2), false},
		{"scalar to list type", value.Int(1), value.TypeList, false, value.Ints(1), false},
		{"null to geometry", value.Null, value.TypeGeometry, false, value.Geometry(geometry.Geometry{}), false},
		{"string to float", value.String("abc"), value.TypeFloat, false, value.Null, true},
		{"list to scalar", value.Floats(1, 2), value.TypeFloat, false, value.Null, true},
		{"color to point", value.Color(geometry.Black), value.TypePoint, false, value.Null, true},

		{"list mode wraps scalar", value.Int(4), value.TypeFloat, true, value.Floats(4), false},
		{"list mode null", value.Null, value.TypeFloat, true, value.List(), false},
		{"list mode coerces items", value.Ints(1, 2), value.TypeFloat, true, value.Floats(1, 2), false},
		{"list mode bad item", value.List(value.Int(1), value.String("x")), value.TypeFloat, true, value.Null, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.in, tt.to, tt.listMode)
			if tt.wantErr {
				if !errors.Is(err, nodeerr.ErrTypeMismatch) {
					t.Fatalf("expected type mismatch, got %v", err)
				}
				ne, _ := nodeerr.As(err)
				if ne.Expected != tt.to.String() {
					t.Errorf("expected type = %q, want %q", ne.Expected, tt.to.String())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFingerprintInputs(t *testing.T) {
	names := []string{"a", "b"}
	vals := []value.Value{value.Float(1), value.Path(geometry.RectPath(geometry.Origin, 10, 10))}

	base := fingerprintInputs("op", names, vals)
	if base != fingerprintInputs("op", names, []value.Value{value.Float(1), value.Path(geometry.RectPath(geometry.Origin, 10, 10))}) {
		t.Error("equal inputs gave different fingerprints")
	}

	variants := map[string]Fingerprint{
		"label":      fingerprintInputs("other", names, vals),
		"port name":  fingerprintInputs("op", []string{"a", "c"}, vals),
		"value":      fingerprintInputs("op", names, []value.Value{value.Float(2), vals[1]}),
		"int kind":   fingerprintInputs("op", names, []value.Value{value.Int(1), vals[1]}),
		"geometry":   fingerprintInputs("op", names, []value.Value{vals[0], value.Path(geometry.RectPath(geometry.Origin, 10, 11))}),
		"value list": fingerprintInputs("op", names, []value.Value{value.Floats(1), vals[1]}),
	}
	for name, fp := range variants {
		if fp == base {
			t.Errorf("changing the %s did not change the fingerprint", name)
		}
	}

	if fingerprintInputs("scope", nil, nil) == fingerprintInputs("scope", nil, []value.Value{value.Null}) {
		t.Error("empty and single-null bindings share a fingerprint")
	}
}

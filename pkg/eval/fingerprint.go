package eval

import (
	"golang.org/x/crypto/blake2b"

	"github.com/dd0wney/cluso-nodegraph/pkg/geometry"
	"github.com/dd0wney/cluso-nodegraph/pkg/pools"
	"github.com/dd0wney/cluso-nodegraph/pkg/value"
)

// Fingerprint is a BLAKE2b-256 digest of a node's resolved inputs
type Fingerprint [blake2b.Size256]byte

// fingerprintInputs hashes a label (operation name) followed by the named
// values in order. Equal inputs give equal fingerprints regardless of how
// the values were produced.
func fingerprintInputs(label string, names []string, values []value.Value) Fingerprint {
	b := pools.NewBufferBuilder(256)
	defer b.Release()

	b.WriteLenString(label)
	b.WriteUint32(uint32(len(values)))
	for i, v := range values {
		if i < len(names) {
			b.WriteLenString(names[i])
		}
		writeValue(b, v)
	}
	return blake2b.Sum256(b.Bytes())
}

func writeValue(b *pools.BufferBuilder, v value.Value) {
	_ = b.WriteByte(byte(v.Kind()))

	switch v.Kind() {
	case value.KindInt:
		i, _ := v.AsInt()
		b.WriteInt64(i)
	case value.KindFloat:
		f, _ := v.AsFloat()
		b.WriteFloat64(f)
	case value.KindBool:
		flag, _ := v.AsBool()
		b.WriteBool(flag)
	case value.KindString:
		s, _ := v.AsString()
		b.WriteLenString(s)
	case value.KindColor:
		c, _ := v.AsColor()
		writeColor(b, c)
	case value.KindPoint:
		p, _ := v.AsPoint()
		writePoint(b, p)
	case value.KindGeometry:
		g, _ := v.AsGeometry()
		writeGeometry(b, g)
	case value.KindList:
		items := v.Items()
		b.WriteUint32(uint32(len(items)))
		for _, item := range items {
			writeValue(b, item)
		}
	}
}

func writePoint(b *pools.BufferBuilder, p geometry.Point) {
	b.WriteFloat64(p.X)
	b.WriteFloat64(p.Y)
}

func writeColor(b *pools.BufferBuilder, c geometry.Color) {
	b.WriteFloat64(c.R)
	b.WriteFloat64(c.G)
	b.WriteFloat64(c.B)
	b.WriteFloat64(c.A)
}

func writeOptionalColor(b *pools.BufferBuilder, c *geometry.Color) {
	b.WriteBool(c != nil)
	if c != nil {
		writeColor(b, *c)
	}
}

func writeGeometry(b *pools.BufferBuilder, g geometry.Geometry) {
	b.WriteUint32(uint32(len(g.Paths)))
	for _, p := range g.Paths {
		b.WriteUint32(uint32(len(p.Contours)))
		for _, c := range p.Contours {
			b.WriteBool(c.Closed)
			b.WriteUint32(uint32(len(c.Points)))
			for _, pt := range c.Points {
				writePoint(b, pt)
			}
		}
		writeOptionalColor(b, p.Fill)
		writeOptionalColor(b, p.Stroke)
		b.WriteFloat64(p.StrokeWidth)
	}
}

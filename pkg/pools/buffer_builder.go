package pools

import (
	"encoding/binary"
	"math"
)

// BufferBuilder appends fixed-width big-endian values to a pooled slice.
// It is the serializer behind input fingerprints, so every encoding must be
// canonical: equal values produce equal bytes.
type BufferBuilder struct {
	buf  []byte
	pool *BytePool
}

// NewBufferBuilder takes a slice of at least initialCap bytes from the
// shared pool
func NewBufferBuilder(initialCap int) *BufferBuilder {
	return &BufferBuilder{
		buf:  defaultBytePool.Get(initialCap),
		pool: defaultBytePool,
	}
}

func (b *BufferBuilder) WriteByte(c byte) error {
	b.buf = append(b.buf, c)
	return nil
}

func (b *BufferBuilder) WriteUint32(v uint32) {
	b.buf = binary.BigEndian.AppendUint32(b.buf, v)
}

func (b *BufferBuilder) WriteUint64(v uint64) {
	b.buf = binary.BigEndian.AppendUint64(b.buf, v)
}

// WriteInt64 writes the two's complement bits
func (b *BufferBuilder) WriteInt64(v int64) {
	b.WriteUint64(uint64(v))
}

// WriteFloat64 writes the IEEE 754 bits. Negative zero is folded into zero.
func (b *BufferBuilder) WriteFloat64(v float64) {
	if v == 0 {
		v = 0
	}
	b.WriteUint64(math.Float64bits(v))
}

func (b *BufferBuilder) WriteBool(v bool) {
	var c byte
	if v {
		c = 1
	}
	b.buf = append(b.buf, c)
}

// WriteLenString writes a uint32 length prefix and then s, so adjacent
// strings cannot run together
func (b *BufferBuilder) WriteLenString(s string) {
	b.WriteUint32(uint32(len(s)))
	b.buf = append(b.buf, s...)
}

// Bytes returns the encoded bytes. They alias the pooled slice and are only
// valid until Release.
func (b *BufferBuilder) Bytes() []byte {
	return b.buf
}

func (b *BufferBuilder) Len() int {
	return len(b.buf)
}

// Reset truncates the buffer, keeping its capacity
func (b *BufferBuilder) Reset() {
	b.buf = b.buf[:0]
}

// Release returns the slice to the pool. The builder must not be used
// afterwards.
func (b *BufferBuilder) Release() {
	if b.pool != nil && b.buf != nil {
		b.pool.Put(b.buf)
	}
	b.buf = nil
}

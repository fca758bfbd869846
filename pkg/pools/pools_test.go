package pools

import (
	"bytes"
	"math"
	"sync"
	"testing"
)

func TestBytePool_Get(t *testing.T) {
	pool := NewBytePool()

	for _, size := range []int{0, 1, 64, 65, 300, 1024, 4000, 16384, 20000} {
		b := pool.Get(size)
		if len(b) != 0 {
			t.Errorf("Get(%d) length = %d, want 0", size, len(b))
		}
		if cap(b) < size {
			t.Errorf("Get(%d) capacity = %d", size, cap(b))
		}
	}
}

func TestClassFor(t *testing.T) {
	tests := []struct {
		size int
		want int
	}{
		{0, 0},
		{64, 0},
		{65, 1},
		{256, 1},
		{1000, 2},
		{4096, 3},
		{16384, 4},
		{16385, -1},
	}
	for _, tt := range tests {
		if got := classFor(tt.size); got != tt.want {
			t.Errorf("classFor(%d) = %d, want %d", tt.size, got, tt.want)
		}
	}
}

func TestBytePool_PutFilesByCapacity(t *testing.T) {
	pool := NewBytePool()

	// A 300-byte buffer is filed under the 256 class and must never be
	// returned for a 1024-byte request
	for i := 0; i < 10; i++ {
		pool.Put(make([]byte, 10, 300))
	}
	if b := pool.Get(1024); cap(b) < 1024 {
		t.Errorf("Get(1024) capacity = %d", cap(b))
	}
	if b := pool.Get(200); len(b) != 0 || cap(b) < 200 {
		t.Errorf("Get(200) = len %d cap %d", len(b), cap(b))
	}

	// Outside the class range is ignored
	pool.Put(make([]byte, 0, 8))
	pool.Put(make([]byte, 0, MaxPooled+1))
}

func TestDefaultBytePool(t *testing.T) {
	b := GetBytes(100)
	if cap(b) < 100 {
		t.Errorf("GetBytes(100) capacity = %d", cap(b))
	}
	PutBytes(append(b, "scratch"...))

	if b := GetBytes(100); len(b) != 0 {
		t.Errorf("reused buffer has length %d", len(b))
	}
}

func TestBytePool_Concurrent(t *testing.T) {
	pool := NewBytePool()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(size int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b := pool.Get(size)
				b = append(b, "fingerprint input"...)
				pool.Put(b)
			}
		}(64 << (i % 4))
	}

	wg.Wait()
}

func TestBufferBuilder_Encoding(t *testing.T) {
	tests := []struct {
		name  string
		write func(b *BufferBuilder)
		want  []byte
	}{
		{"byte", func(b *BufferBuilder) { _ = b.WriteByte(0x01) }, []byte{0x01}},
		{"uint32", func(b *BufferBuilder) { b.WriteUint32(0x12345678) }, []byte{0x12, 0x34, 0x56, 0x78}},
		{"uint64", func(b *BufferBuilder) { b.WriteUint64(0xABCDEF0123456789) },
			[]byte{0xAB, 0xCD, 0xEF, 0x01, 0x23, 0x45, 0x67, 0x89}},
		{"int64 -1", func(b *BufferBuilder) { b.WriteInt64(-1) }, bytes.Repeat([]byte{0xFF}, 8)},
		{"negative zero", func(b *BufferBuilder) { b.WriteFloat64(math.Copysign(0, -1)) }, make([]byte, 8)},
		{"float", func(b *BufferBuilder) { b.WriteFloat64(1) }, []byte{0x3F, 0xF0, 0, 0, 0, 0, 0, 0}},
		{"true", func(b *BufferBuilder) { b.WriteBool(true) }, []byte{1}},
		{"false", func(b *BufferBuilder) { b.WriteBool(false) }, []byte{0}},
		{"length prefixed", func(b *BufferBuilder) { b.WriteLenString("ab") }, []byte{0, 0, 0, 2, 'a', 'b'}},
		{"empty string", func(b *BufferBuilder) { b.WriteLenString("") }, []byte{0, 0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBufferBuilder(16)
			defer b.Release()

			tt.write(b)
			if !bytes.Equal(b.Bytes(), tt.want) {
				t.Errorf("got % x, want % x", b.Bytes(), tt.want)
			}
			if b.Len() != len(tt.want) {
				t.Errorf("Len() = %d, want %d", b.Len(), len(tt.want))
			}
		})
	}
}

func TestBufferBuilder_LenStringsDoNotRunTogether(t *testing.T) {
	a := NewBufferBuilder(16)
	defer a.Release()
	a.WriteLenString("ab")
	a.WriteLenString("c")

	b := NewBufferBuilder(16)
	defer b.Release()
	b.WriteLenString("a")
	b.WriteLenString("bc")

	if bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Error("length-prefixed strings collided")
	}
}

func TestBufferBuilder_Reset(t *testing.T) {
	b := NewBufferBuilder(32)
	defer b.Release()

	b.WriteLenString("test data")
	b.Reset()
	if b.Len() != 0 {
		t.Errorf("After Reset() Len() = %d, want 0", b.Len())
	}

	b.WriteBool(true)
	if !bytes.Equal(b.Bytes(), []byte{1}) {
		t.Errorf("After Reset and write, got % x", b.Bytes())
	}
}

func BenchmarkBytePool_Get(b *testing.B) {
	pool := NewBytePool()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		buf := pool.Get(128)
		pool.Put(buf)
	}
}

func BenchmarkBufferBuilder(b *testing.B) {
	for i := 0; i < b.N; i++ {
		bb := NewBufferBuilder(64)
		bb.WriteLenString("math.add")
		bb.WriteFloat64(12345)
		_ = bb.Bytes()
		bb.Release()
	}
}

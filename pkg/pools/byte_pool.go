package pools

import (
	"sync"
)

// Size classes. Scalar fingerprints fit the smallest class; geometry with
// many contours lands in the larger ones.
var sizeClasses = [...]int{64, 256, 1024, 4096, 16384}

// MaxPooled is the largest capacity a pool keeps. Larger buffers are left
// to the garbage collector.
const MaxPooled = 16384

// BytePool pools byte slices by size class
type BytePool struct {
	classes [len(sizeClasses)]sync.Pool
}

// NewBytePool creates an empty pool
func NewBytePool() *BytePool {
	p := &BytePool{}
	for i, size := range sizeClasses {
		size := size
		p.classes[i].New = func() any {
			b := make([]byte, 0, size)
			return &b
		}
	}
	return p
}

// classFor returns the index of the smallest class holding size bytes, or
// -1 when size exceeds every class
func classFor(size int) int {
	for i, c := range sizeClasses {
		if size <= c {
			return i
		}
	}
	return -1
}

// Get returns an empty slice with capacity of at least size
func (p *BytePool) Get(size int) []byte {
	i := classFor(size)
	if i < 0 {
		return make([]byte, 0, size)
	}
	bp, ok := p.classes[i].Get().(*[]byte)
	if !ok || cap(*bp) < size {
		return make([]byte, 0, size)
	}
	return (*bp)[:0]
}

// Put returns b to the pool. A slice is filed under the largest class its
// capacity satisfies, so Get never hands out a buffer that is too small.
func (p *BytePool) Put(b []byte) {
	c := cap(b)
	if c < sizeClasses[0] || c > MaxPooled {
		return
	}
	i := len(sizeClasses) - 1
	for sizeClasses[i] > c {
		i--
	}
	b = b[:0]
	p.classes[i].Put(&b)
}

var defaultBytePool = NewBytePool()

// GetBytes takes a slice from the shared pool
func GetBytes(size int) []byte {
	return defaultBytePool.Get(size)
}

// PutBytes returns a slice to the shared pool
func PutBytes(b []byte) {
	defaultBytePool.Put(b)
}

// Package pools keeps fingerprinting off the allocator. The evaluator
// serializes every node's inputs on each pass; BufferBuilder writes that
// encoding into slices borrowed from a size-classed BytePool.
package pools

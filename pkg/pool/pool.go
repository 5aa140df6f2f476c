// Object pools for the layer codec
//
// Layer packing allocates a scratch buffer and a zlib writer per layer;
// on large files that is thousands of allocations per job.
//
// Usage:
//
//	buf := pool.GetBuffer()
//	defer pool.PutBuffer(buf)
//	zw := pool.GetZlibWriter(buf)
//	defer pool.PutZlibWriter(zw)
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package pool

import (
	"bytes"
	"compress/zlib"
	"io"
	"sync"
)

// MaxPooledBuffer is the largest buffer capacity kept for reuse.
const MaxPooledBuffer = 1 << 20

var bufferPool = sync.Pool{
	New: func() any {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// GetBuffer gets an empty buffer from the pool
func GetBuffer() *bytes.Buffer {
	b := bufferPool.Get().(*bytes.Buffer)
	b.Reset()
	return b
}

// PutBuffer returns a buffer to the pool. Oversized buffers are dropped
// so that one huge layer does not pin memory.
func PutBuffer(b *bytes.Buffer) {
	if b == nil || b.Cap() > MaxPooledBuffer {
		return
	}
	bufferPool.Put(b)
}

var zlibPool = sync.Pool{
	New: func() any {
		return zlib.NewWriter(io.Discard)
	},
}

// GetZlibWriter returns a zlib writer reset to write into w.
func GetZlibWriter(w io.Writer) *zlib.Writer {
	zw := zlibPool.Get().(*zlib.Writer)
	zw.Reset(w)
	return zw
}

// PutZlibWriter returns a writer to the pool. The caller must have
// closed it.
func PutZlibWriter(zw *zlib.Writer) {
	if zw == nil {
		return
	}
	zlibPool.Put(zw)
}

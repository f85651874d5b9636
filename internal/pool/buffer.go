// Package pool recycles the copy buffers used when streaming file content
// through hashes and readers.
package pool

import (
	"io"
	"sync"
)

// CopyBufferSize is the size of pooled copy buffers (64KB).
const CopyBufferSize = 64 * 1024

var buffers = sync.Pool{
	New: func() any {
		b := make([]byte, CopyBufferSize)
		return &b
	},
}

// Get returns a buffer of CopyBufferSize bytes. Return it with Put.
func Get() *[]byte {
	return buffers.Get().(*[]byte)
}

// Put returns buf to the pool. Buffers of any other size are dropped.
func Put(buf *[]byte) {
	if buf == nil || cap(*buf) != CopyBufferSize {
		return
	}
	*buf = (*buf)[:CopyBufferSize]
	buffers.Put(buf)
}

// Copy is io.CopyBuffer with a pooled buffer.
func Copy(dst io.Writer, src io.Reader) (int64, error) {
	buf := Get()
	defer Put(buf)
	return io.CopyBuffer(dst, src, *buf)
}

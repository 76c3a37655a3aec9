package transfer

import (
	"io"
	"sync"
)

// Progress receives transfer updates. transferred is the cumulative number of
// bytes moved so far; total is the expected content length, or -1 when the
// remote side did not declare one.
type Progress func(transferred, total int64)

// CountingWriter wraps an io.Writer, counts bytes written and reports them to
// a Progress sink. It is used for sequential (HTTP) transfers.
type CountingWriter struct {
	w     io.Writer
	total int64
	sink  Progress

	mu sync.Mutex
	n  int64
}

// NewCountingWriter creates a CountingWriter. sink may be nil.
func NewCountingWriter(w io.Writer, total int64, sink Progress) *CountingWriter {
	return &CountingWriter{w: w, total: total, sink: sink}
}

// Write implements io.Writer.
func (cw *CountingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	if n > 0 {
		cw.mu.Lock()
		cw.n += int64(n)
		if cw.sink != nil {
			cw.sink(cw.n, cw.total)
		}
		cw.mu.Unlock()
	}
	return n, err
}

// Count returns the total number of bytes written so far.
func (cw *CountingWriter) Count() int64 {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.n
}

// CountingWriterAt wraps an io.WriterAt for transfers that write byte ranges
// from multiple worker goroutines (the S3 download manager). The shared byte
// counter is the only mutable state and is guarded by a mutex; the sink is
// invoked under the same lock so updates arrive in order.
type CountingWriterAt struct {
	w     io.WriterAt
	total int64
	sink  Progress

	mu sync.Mutex
	n  int64
}

// NewCountingWriterAt creates a CountingWriterAt. sink may be nil.
func NewCountingWriterAt(w io.WriterAt, total int64, sink Progress) *CountingWriterAt {
	return &CountingWriterAt{w: w, total: total, sink: sink}
}

// WriteAt implements io.WriterAt.
func (cw *CountingWriterAt) WriteAt(p []byte, off int64) (int, error) {
	n, err := cw.w.WriteAt(p, off)
	if n > 0 {
		cw.mu.Lock()
		cw.n += int64(n)
		if cw.sink != nil {
			cw.sink(cw.n, cw.total)
		}
		cw.mu.Unlock()
	}
	return n, err
}

// Count returns the total number of bytes written so far.
func (cw *CountingWriterAt) Count() int64 {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.n
}

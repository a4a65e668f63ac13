// Package ratelimit throttles data-connection transfers to a fixed number
// of bytes per second.
//
// A single Limiter may be shared by several readers and writers; the
// budget is then split between them.
package ratelimit

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// maxChunk bounds a single reservation so a slow limit never has to wait
// for more than one chunk's worth of tokens.
const maxChunk = 16 * 1024

// Limiter is a token bucket measured in bytes.
type Limiter struct {
	lim   *rate.Limiter
	burst int
}

// New returns a limiter allowing bytesPerSecond bytes per second, with a
// burst of one second's worth of data (capped to maxChunk). A
// non-positive rate means unlimited and yields a nil *Limiter, which every
// function in this package accepts.
func New(bytesPerSecond int64) *Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	burst := maxChunk
	if bytesPerSecond < int64(burst) {
		burst = int(bytesPerSecond)
	}
	return &Limiter{
		lim:   rate.NewLimiter(rate.Limit(bytesPerSecond), burst),
		burst: burst,
	}
}

// Limit reports the configured rate in bytes per second, or 0 when l is nil.
func (l *Limiter) Limit() int64 {
	if l == nil {
		return 0
	}
	return int64(l.lim.Limit())
}

func (l *Limiter) wait(ctx context.Context, n int) error {
	if l == nil || n <= 0 {
		return nil
	}
	return l.lim.WaitN(ctx, n)
}

func (l *Limiter) chunk(n int) int {
	if n > l.burst {
		return l.burst
	}
	return n
}

type reader struct {
	ctx     context.Context
	r       io.Reader
	limiter *Limiter
}

// NewReader wraps r so that reads are throttled by limiter.
// If limiter is nil, r is returned unchanged.
func NewReader(r io.Reader, limiter *Limiter) io.Reader {
	return NewReaderContext(context.Background(), r, limiter)
}

// NewReaderContext is like NewReader but stops waiting when ctx is done.
func NewReaderContext(ctx context.Context, r io.Reader, limiter *Limiter) io.Reader {
	if limiter == nil {
		return r
	}
	return &reader{ctx: ctx, r: r, limiter: limiter}
}

func (r *reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	p = p[:r.limiter.chunk(len(p))]
	if err := r.limiter.wait(r.ctx, len(p)); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

type writer struct {
	ctx     context.Context
	w       io.Writer
	limiter *Limiter
}

// NewWriter wraps w so that writes are throttled by limiter.
// If limiter is nil, w is returned unchanged.
func NewWriter(w io.Writer, limiter *Limiter) io.Writer {
	return NewWriterContext(context.Background(), w, limiter)
}

// NewWriterContext is like NewWriter but stops waiting when ctx is done.
func NewWriterContext(ctx context.Context, w io.Writer, limiter *Limiter) io.Writer {
	if limiter == nil {
		return w
	}
	return &writer{ctx: ctx, w: w, limiter: limiter}
}

func (w *writer) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		n := w.limiter.chunk(len(p) - written)
		if err := w.limiter.wait(w.ctx, n); err != nil {
			return written, err
		}
		m, err := w.w.Write(p[written : written+n])
		written += m
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

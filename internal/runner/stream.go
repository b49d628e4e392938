package runner

import (
	"context"
	"strings"
)

// Chunk is one item of a completion stream. A chunk with a non-nil Err is a
// diagnostic: Text holds the display message, it is the last chunk and at
// most one is ever sent. Empty model output therefore looks different from a
// runtime failure.
type Chunk struct {
	Text string
	Err  error
}

// Stream is a lazily produced, cancellable sequence of chunks.
//
// The producer goroutine owns whatever backs the stream (a process, an HTTP
// body). Close cancels it and waits until that resource is released.
type Stream struct {
	ch     chan Chunk
	cancel context.CancelFunc
	done   chan struct{}
}

// Emit sends a chunk downstream. It returns false once the consumer has gone
// away, after which the producer must stop and release its resources.
type Emit func(Chunk) bool

// NewStream runs produce in a goroutine. The stream channel closes when
// produce returns.
func NewStream(parent context.Context, produce func(ctx context.Context, emit Emit)) *Stream {
	ctx, cancel := context.WithCancel(parent)
	s := &Stream{ch: make(chan Chunk), cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		defer close(s.ch)
		defer cancel()
		produce(ctx, func(c Chunk) bool {
			if ctx.Err() != nil {
				return false
			}
			select {
			case s.ch <- c:
				return true
			case <-ctx.Done():
				return false
			}
		})
	}()
	return s
}

// Message returns a stream holding a single chunk.
func Message(ctx context.Context, c Chunk) *Stream {
	return NewStream(ctx, func(_ context.Context, emit Emit) { emit(c) })
}

// Failure returns a stream holding a single diagnostic chunk for err.
func Failure(ctx context.Context, err error) *Stream {
	return Message(ctx, ErrorChunk(err))
}

// ErrorChunk wraps err as a diagnostic chunk.
func ErrorChunk(err error) Chunk {
	return Chunk{Text: err.Error(), Err: err}
}

// C returns the receive side of the stream.
func (s *Stream) C() <-chan Chunk { return s.ch }

// Done is closed once the producer has returned.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Close cancels the producer and blocks until it has released its resources.
// It is safe to call more than once and after the stream has drained.
func (s *Stream) Close() {
	s.cancel()
	for range s.ch {
	}
	<-s.done
}

// Collect drains the stream into one string. A diagnostic chunk ends
// collection and is returned as the error together with the text so far.
func (s *Stream) Collect() (string, error) {
	defer s.Close()
	var b strings.Builder
	for c := range s.ch {
		if c.Err != nil {
			return b.String(), c.Err
		}
		b.WriteString(c.Text)
	}
	return b.String(), nil
}

// relay forwards every chunk of src to emit and closes src.
func relay(src *Stream, emit Emit) {
	defer src.Close()
	for c := range src.C() {
		if !emit(c) {
			return
		}
	}
}

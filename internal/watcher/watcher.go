package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Reader strategy names accepted by NewReader.
const (
	ReaderExec   = "exec"
	ReaderNotify = "notify"
	ReaderTail   = "tail"
	ReaderPoll   = "poll"
)

// Chunk is one unit of reader output. At most one of Err or Diag is set;
// otherwise Data holds raw bytes in file order.
type Chunk struct {
	Data []byte
	Diag string
	Err  error
}

// Stream is an attached follow of one file.
type Stream interface {
	// Chunks is closed once the stream has ended, whatever the cause.
	Chunks() <-chan Chunk
	// Close requests termination of the underlying resource. It is safe to
	// call more than once and does not wait for the resource to exit.
	Close() error
}

// Reader is a follow mechanism. Open returns an error only when the target
// cannot be attached; later failures arrive as Chunk.Err.
type Reader interface {
	Open(ctx context.Context, cfg Config) (Stream, error)
}

// ReaderFunc adapts a function to the Reader interface.
type ReaderFunc func(ctx context.Context, cfg Config) (Stream, error)

func (f ReaderFunc) Open(ctx context.Context, cfg Config) (Stream, error) {
	return f(ctx, cfg)
}

// NewReader returns the follow mechanism registered under name.
func NewReader(name string, logger *slog.Logger) (Reader, error) {
	switch name {
	case ReaderExec, "":
		return &ExecReader{Logger: logger}, nil
	case ReaderNotify:
		return &NotifyReader{Logger: logger}, nil
	case ReaderTail:
		return &TailReader{Logger: logger}, nil
	case ReaderPoll:
		return &TailReader{Poll: true, Logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown reader %q", name)
	}
}

// chunkSink is the send side shared by the reader implementations. Sends
// give up once the stream is closed so producer goroutines never leak.
type chunkSink struct {
	ch       chan Chunk
	done     chan struct{}
	once     sync.Once
	closeFn  func() error
	closeErr error
}

func newChunkSink(size int, closeFn func() error) *chunkSink {
	return &chunkSink{
		ch:      make(chan Chunk, size),
		done:    make(chan struct{}),
		closeFn: closeFn,
	}
}

func (s *chunkSink) Chunks() <-chan Chunk {
	return s.ch
}

func (s *chunkSink) Close() error {
	s.once.Do(func() {
		close(s.done)
		if s.closeFn != nil {
			s.closeErr = s.closeFn()
		}
	})
	return s.closeErr
}

func (s *chunkSink) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *chunkSink) send(c Chunk) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.ch <- c:
		return true
	case <-s.done:
		return false
	}
}

// finish closes the chunk channel. Only the producer calls it, exactly once.
func (s *chunkSink) finish() {
	close(s.ch)
}

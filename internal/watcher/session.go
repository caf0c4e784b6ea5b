package watcher

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// State is the lifecycle position of a session.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateFailed
	StateStopped
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

func (s State) terminal() bool {
	return s == StateFailed || s == StateStopped || s == StateClosed
}

// LineFunc receives each qualifying line, in file order.
type LineFunc func(line string)

// ErrorFunc receives the terminal error of a session; it is called at most once.
type ErrorFunc func(err error)

// Option configures a session.
type Option func(*Session)

// WithLogger sets the logger used for lifecycle and diagnostic messages.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// Session owns one attached stream and delivers its lines.
type Session struct {
	cfg     Config
	onLine  LineFunc
	onError ErrorFunc
	logger  *slog.Logger

	framer *Framer
	dedup  *Deduper

	mu      sync.Mutex
	state   State
	stream  Stream
	release sync.Once

	// emitMu serializes delivery against Stop. inCallback marks the window
	// in which the delivery goroutine, identified by deliverer, holds it.
	emitMu     sync.Mutex
	inCallback atomic.Bool
	deliverer  atomic.Uint64

	done chan struct{}
}

// Start validates cfg, attaches reader and begins delivering lines on a
// background goroutine. It never fails: a config or attach problem is
// reported through onError before Start returns, and the returned session
// is already terminal. Cancelling ctx stops the session.
func Start(ctx context.Context, cfg Config, reader Reader, onLine LineFunc, onError ErrorFunc, opts ...Option) *Session {
	s := &Session{
		cfg:     cfg.withDefaults(),
		onLine:  onLine,
		onError: onError,
		logger:  slog.Default(),
		framer:  &Framer{},
		dedup:   NewDeduper(cfg.Deduplicate),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.onLine == nil {
		s.onLine = func(string) {}
	}
	if s.onError == nil {
		s.onError = func(error) {}
	}
	s.logger = s.logger.With("path", s.cfg.Path())

	if err := s.cfg.Validate(); err != nil {
		s.abort(newError(KindConfigInvalid, err.Error()))
		return s
	}

	stream, err := reader.Open(ctx, s.cfg)
	if err != nil {
		s.abort(newError(KindAttach, err.Error()))
		return s
	}

	s.mu.Lock()
	s.state = StateRunning
	s.stream = stream
	s.mu.Unlock()
	s.logger.Info("tail session started", "seed_lines", s.cfg.SeedLines, "deduplicate", s.cfg.Deduplicate)

	go s.run()
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				s.Stop()
			case <-s.done:
			}
		}()
	}
	return s
}

// Stop terminates the session and its resource. It is safe to call any
// number of times, from any goroutine, including from inside the line
// callback. Called from outside a callback it waits for one in flight to
// return. Once it returns no callback will be started.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	s.state = StateStopped
	s.mu.Unlock()

	s.releaseStream()
	s.logger.Info("tail session stopped")

	// Re-entered from a callback: the caller holds emitMu already.
	if s.inCallback.Load() && goroutineID() == s.deliverer.Load() {
		return
	}
	s.emitMu.Lock()
	s.emitMu.Unlock()
}

// Done is closed once the session is terminal and its resource released.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	return s.currentState()
}

func (s *Session) currentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) run() {
	defer close(s.done)
	defer s.releaseStream()
	s.deliverer.Store(goroutineID())

	for chunk := range s.stream.Chunks() {
		switch {
		case chunk.Err != nil:
			s.fail(newError(KindStream, chunk.Err.Error()))
		case chunk.Diag != "":
			if s.cfg.Diagnostics == DiagnosticsFatal {
				s.fail(newError(KindStream, chunk.Diag))
			} else if s.currentState() == StateRunning {
				s.logger.Warn("tail diagnostic", "message", chunk.Diag)
			}
		default:
			for _, line := range s.framer.Write(chunk.Data) {
				if s.dedup.Allow(line) {
					s.emit(line)
				}
			}
		}
	}

	// The range only ends without a recorded outcome on a normal close.
	for _, line := range s.framer.Flush() {
		if s.dedup.Allow(line) {
			s.emit(line)
		}
	}
	if s.transition(StateClosed) {
		s.logger.Info("tail session closed")
	}
}

func (s *Session) emit(line string) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if s.currentState() != StateRunning {
		return
	}
	s.inCallback.Store(true)
	defer s.inCallback.Store(false)
	s.onLine(line)
}

// fail records a stream failure, tears the resource down and only then
// reports the error.
func (s *Session) fail(err *Error) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if !s.transition(StateFailed) {
		return
	}
	s.releaseStream()
	s.framer.Reset()
	s.logger.Error("tail session failed", "kind", err.Kind.String(), "error", err.Msg)
	s.inCallback.Store(true)
	defer s.inCallback.Store(false)
	s.onError(err)
}

// abort ends a session that never reached Running.
func (s *Session) abort(err *Error) {
	s.mu.Lock()
	s.state = StateFailed
	s.mu.Unlock()
	close(s.done)
	s.logger.Error("tail session not started", "kind", err.Kind.String(), "error", err.Msg)
	s.onError(err)
}

func (s *Session) transition(to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.terminal() {
		return false
	}
	s.state = to
	return true
}

func (s *Session) releaseStream() {
	s.release.Do(func() {
		s.mu.Lock()
		stream := s.stream
		s.mu.Unlock()
		if stream == nil {
			return
		}
		if err := stream.Close(); err != nil {
			s.logger.Warn("failed to release tail stream", "error", err)
		}
	})
}

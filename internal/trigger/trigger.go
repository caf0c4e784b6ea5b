// Package trigger hosts one watch session and fans the lines it delivers
// out to sinks and, optionally, the event store.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/tailtrigger/tailtrigger/internal/store"
	"github.com/tailtrigger/tailtrigger/internal/watcher"
	"github.com/tailtrigger/tailtrigger/pkg/models"
)

const defaultQueueSize = 10000

// Config holds trigger configuration
type Config struct {
	Watch watcher.Config
	// Reader is the name recorded with the session.
	Reader string
	// MaxLines stops the session after that many events. Zero means no limit.
	MaxLines int64
	// QueueSize bounds events waiting for the sinks; a full queue drops lines.
	QueueSize int
}

// Option configures a Trigger
type Option func(*Trigger)

// WithStore records the session and its events in s.
func WithStore(s *store.Store) Option {
	return func(t *Trigger) {
		t.store = s
	}
}

// WithSink adds an event sink.
func WithSink(s Sink) Option {
	return func(t *Trigger) {
		t.sinks = append(t.sinks, s)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Trigger) {
		t.logger = logger
	}
}

// Trigger runs one watcher session
type Trigger struct {
	cfg    Config
	reader watcher.Reader
	store  *store.Store
	sinks  []Sink
	logger *slog.Logger

	queue   chan models.LineEvent
	wg      sync.WaitGroup
	seq     atomic.Int64
	dropped atomic.Int64
}

// New creates a trigger for reader
func New(cfg Config, reader watcher.Reader, opts ...Option) *Trigger {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	t := &Trigger{
		cfg:    cfg,
		reader: reader,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.store != nil {
		t.sinks = append(t.sinks, NewStoreSink(t.store))
	}
	return t
}

// Run attaches the session and blocks until it ends: the stream closes or
// fails, MaxLines is reached, or ctx is cancelled. It returns the session
// record and the session's terminal error, if any. Run may be called once.
func (t *Trigger) Run(ctx context.Context) (*models.Session, error) {
	rec := &models.Session{
		ID:        ulid.Make().String(),
		Source:    t.cfg.Watch.Path(),
		Reader:    t.cfg.Reader,
		SeedLines: t.cfg.Watch.SeedLines,
		Dedup:     t.cfg.Watch.Deduplicate,
		StartedAt: time.Now().UTC(),
		Outcome:   models.OutcomeRunning,
	}
	logger := t.logger.With("session", rec.ID)

	if t.store != nil {
		if err := t.store.CreateSession(rec); err != nil {
			return nil, fmt.Errorf("failed to record session: %w", err)
		}
	}

	t.queue = make(chan models.LineEvent, t.cfg.QueueSize)
	t.wg.Add(1)
	go t.processEvents(logger)

	limit := make(chan struct{})
	var limitOnce sync.Once
	var (
		errMu      sync.Mutex
		sessionErr error
	)

	onLine := func(line string) {
		seq := t.seq.Add(1)
		if t.cfg.MaxLines > 0 && seq > t.cfg.MaxLines {
			return
		}
		event := models.LineEvent{
			ID:        ulid.Make().String(),
			SessionID: rec.ID,
			Seq:       seq,
			Source:    rec.Source,
			Line:      line,
			Timestamp: time.Now().UTC(),
		}
		select {
		case t.queue <- event:
		default:
			t.dropped.Add(1)
			logger.Warn("event queue full, dropping line", "seq", seq)
		}
		if t.cfg.MaxLines > 0 && seq == t.cfg.MaxLines {
			limitOnce.Do(func() { close(limit) })
		}
	}
	onError := func(err error) {
		errMu.Lock()
		sessionErr = err
		errMu.Unlock()
	}

	sess := watcher.Start(ctx, t.cfg.Watch, t.reader, onLine, onError, watcher.WithLogger(t.logger))
	select {
	case <-sess.Done():
	case <-limit:
		logger.Info("line limit reached", "max", t.cfg.MaxLines)
		sess.Stop()
		<-sess.Done()
	}

	// No callback runs after Done, so the queue has no more writers.
	close(t.queue)
	t.wg.Wait()

	errMu.Lock()
	err := sessionErr
	errMu.Unlock()

	emitted := t.seq.Load()
	if t.cfg.MaxLines > 0 && emitted > t.cfg.MaxLines {
		emitted = t.cfg.MaxLines
	}
	ended := time.Now().UTC()
	rec.EndedAt = &ended
	rec.Outcome = outcomeOf(sess.State())
	rec.Lines = emitted

	var msg string
	if err != nil {
		msg = err.Error()
		rec.Error = &msg
	}
	if t.store != nil {
		if ferr := t.store.FinishSession(rec.ID, rec.Outcome, msg, ended); ferr != nil {
			logger.Error("failed to record session outcome", "error", ferr)
		}
	}

	logger.Info("trigger finished", "outcome", rec.Outcome, "lines", rec.Lines, "dropped", t.dropped.Load())
	return rec, err
}

// processEvents hands queued events to every sink
func (t *Trigger) processEvents(logger *slog.Logger) {
	defer t.wg.Done()

	for event := range t.queue {
		for _, sink := range t.sinks {
			if err := sink.Write(&event); err != nil {
				logger.Warn("failed to write event", "seq", event.Seq, "error", err)
			}
		}
	}
}

func outcomeOf(state watcher.State) models.Outcome {
	switch state {
	case watcher.StateStopped:
		return models.OutcomeStopped
	case watcher.StateFailed:
		return models.OutcomeFailed
	case watcher.StateClosed:
		return models.OutcomeClosed
	default:
		return models.OutcomeRunning
	}
}

// IsConfigError reports whether err came from an invalid watch configuration.
func IsConfigError(err error) bool {
	return errors.Is(err, watcher.ErrConfigInvalid)
}

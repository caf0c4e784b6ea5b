package watcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// NotifyReader follows the target natively: fsnotify events on the parent
// directory trigger reads of the appended bytes, and a ticker covers events
// the platform drops. Like "tail -F" it reopens the path after a rename or
// remove and rewinds after a truncation.
type NotifyReader struct {
	Logger *slog.Logger
}

func (r *NotifyReader) Open(ctx context.Context, cfg Config) (Stream, error) {
	cfg = cfg.withDefaults()

	path, err := Resolve(cfg)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, fmt.Errorf("%s: is a directory", path)
	}
	seed, err := seedChunk(file, info.Size(), cfg.SeedLines)
	if err != nil {
		file.Close()
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		file.Close()
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	s := &notifyStream{
		path:     filepath.Clean(path),
		file:     file,
		offset:   info.Size(),
		watcher:  fsw,
		interval: cfg.PollInterval,
		logger:   r.Logger,
	}
	s.chunkSink = newChunkSink(64, fsw.Close)

	go s.run(seed)
	return s, nil
}

type notifyStream struct {
	*chunkSink
	path     string
	file     *os.File
	offset   int64
	watcher  *fsnotify.Watcher
	interval time.Duration
	logger   *slog.Logger
}

func (s *notifyStream) run(seed []byte) {
	defer s.finish()
	defer s.detach()

	if len(seed) > 0 && !s.send(Chunk{Data: seed}) {
		return
	}
	if err := s.readAppended(); err != nil {
		s.send(Chunk{Err: err})
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		var err error
		select {
		case <-s.done:
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			err = s.handle(event)

		case werr, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			err = werr

		case <-ticker.C:
			err = s.poll()
		}

		if err != nil {
			s.send(Chunk{Err: err})
			return
		}
	}
}

func (s *notifyStream) handle(event fsnotify.Event) error {
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// Drain what was written before the file went away.
		if err := s.readAppended(); err != nil {
			return err
		}
		// A poll may already have attached the replacement.
		if s.attachedToPath() {
			return nil
		}
		s.detach()
		s.debug("target moved away", "op", event.Op.String())
		return s.reopen()
	case event.Has(fsnotify.Create):
		return s.reopen()
	default:
		return s.readAppended()
	}
}

// poll catches appends and replacements that produced no event.
func (s *notifyStream) poll() error {
	if s.file == nil {
		return s.reopen()
	}
	if _, err := os.Stat(s.path); err == nil && !s.attachedToPath() {
		if err := s.readAppended(); err != nil {
			return err
		}
		return s.reopen()
	}
	return s.readAppended()
}

// attachedToPath reports whether the open file is the one the path names now.
func (s *notifyStream) attachedToPath() bool {
	if s.file == nil {
		return false
	}
	current, err := os.Stat(s.path)
	if err != nil {
		return false
	}
	attached, err := s.file.Stat()
	if err != nil {
		return false
	}
	return os.SameFile(current, attached)
}

// reopen attaches to the file the path names, reading it from the start.
// It is a no-op beyond reading appends when that file is already attached.
func (s *notifyStream) reopen() error {
	if s.attachedToPath() {
		return s.readAppended()
	}
	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	s.detach()
	s.file = file
	s.offset = 0
	s.debug("target reopened")
	return s.readAppended()
}

func (s *notifyStream) detach() {
	if s.file != nil {
		s.file.Close()
		s.file = nil
	}
}

func (s *notifyStream) readAppended() error {
	if s.file == nil {
		return nil
	}
	info, err := s.file.Stat()
	if err != nil {
		return err
	}
	size := info.Size()
	if size < s.offset {
		s.debug("target truncated", "offset", s.offset, "size", size)
		s.offset = 0
	}
	if size == s.offset {
		return nil
	}

	section := io.NewSectionReader(s.file, s.offset, size-s.offset)
	buf := make([]byte, readBufferSize)
	for {
		n, err := section.Read(buf)
		if n > 0 {
			if !s.send(Chunk{Data: append([]byte(nil), buf[:n]...)}) {
				return nil
			}
			s.offset += int64(n)
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (s *notifyStream) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, append([]any{"path", s.path}, args...)...)
	}
}

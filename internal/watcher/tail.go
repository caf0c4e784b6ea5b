package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/nxadm/tail"
)

// TailReader follows the target with github.com/nxadm/tail. Set Poll where
// inotify is unreliable, e.g. on network or container mounts.
type TailReader struct {
	Poll   bool
	Logger *slog.Logger
}

func (r *TailReader) Open(ctx context.Context, cfg Config) (Stream, error) {
	cfg = cfg.withDefaults()

	path, err := Resolve(cfg)
	if err != nil {
		return nil, err
	}
	seed, size, err := readSeed(path, cfg.SeedLines)
	if err != nil {
		return nil, err
	}

	t, err := tail.TailFile(path, tail.Config{
		Location:      &tail.SeekInfo{Offset: size, Whence: io.SeekStart},
		Follow:        true,
		ReOpen:        true,
		MustExist:     true,
		Poll:          r.Poll,
		CompleteLines: true,
		Logger:        tail.DiscardingLogger,
	})
	if err != nil {
		return nil, err
	}
	if r.Logger != nil {
		r.Logger.Debug("tailing file", "path", path, "offset", size, "poll", r.Poll)
	}

	s := &tailStream{tail: t}
	s.chunkSink = newChunkSink(64, func() error {
		t.Kill(nil)
		return nil
	})
	go s.run(seed)
	return s, nil
}

func readSeed(path string, n int) ([]byte, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, err
	}
	seed, err := seedChunk(file, info.Size(), n)
	if err != nil {
		return nil, 0, err
	}
	return seed, info.Size(), nil
}

type tailStream struct {
	*chunkSink
	tail *tail.Tail
}

// run keeps draining Lines until the tail goroutine exits: it sends on an
// unbuffered channel and would otherwise never observe the kill.
func (s *tailStream) run(seed []byte) {
	defer s.finish()
	defer s.tail.Cleanup()

	failed := len(seed) > 0 && !s.send(Chunk{Data: seed})
	for line := range s.tail.Lines {
		if failed || s.closed() {
			continue
		}
		if line.Err != nil {
			s.send(Chunk{Err: line.Err})
			failed = true
			s.tail.Kill(nil)
			continue
		}
		s.send(Chunk{Data: []byte(line.Text + "\n")})
	}

	<-s.tail.Dead()
	if failed || s.closed() {
		return
	}
	if err := s.tail.Err(); err != nil {
		s.send(Chunk{Err: err})
	}
}

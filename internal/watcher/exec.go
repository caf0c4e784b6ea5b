package watcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/kballard/go-shellquote"
)

const readBufferSize = 32 * 1024

// ExecReader follows the target with an external "tail -F" run through
// the shell, so globs and expressions in Target are expanded by sh.
type ExecReader struct {
	Shell  string // defaults to "sh"
	Logger *slog.Logger
}

// Command returns the shell command line run for cfg. The directory is
// quoted; the target is passed through for the shell to expand.
func (r *ExecReader) Command(cfg Config) string {
	cfg = cfg.withDefaults()
	return fmt.Sprintf("exec %s -F -n %d %s%s",
		shellquote.Join(cfg.TailBinary), cfg.SeedLines, shellquote.Join(cfg.dirPrefix()), cfg.target())
}

func (r *ExecReader) Open(ctx context.Context, cfg Config) (Stream, error) {
	shell := r.Shell
	if shell == "" {
		shell = "sh"
	}

	cmd := exec.Command(shell, "-c", r.Command(cfg))
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	s := &execStream{cmd: cmd, logger: r.Logger}
	s.chunkSink = newChunkSink(64, s.terminate)
	if s.logger != nil {
		s.logger.Debug("tail process started", "pid", cmd.Process.Pid, "path", cfg.Path())
	}

	go s.run(stdout, stderr)
	return s, nil
}

type execStream struct {
	*chunkSink
	cmd    *exec.Cmd
	logger *slog.Logger

	mu       sync.Mutex
	lastDiag string
}

func (s *execStream) run(stdout, stderr io.Reader) {
	defer s.finish()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.pump(stdout, func(p []byte) Chunk {
			return Chunk{Data: append([]byte(nil), p...)}
		})
	}()
	go func() {
		defer wg.Done()
		s.pump(stderr, func(p []byte) Chunk {
			diag := string(p)
			s.mu.Lock()
			s.lastDiag = diag
			s.mu.Unlock()
			return Chunk{Diag: diag}
		})
	}()
	wg.Wait()

	err := s.cmd.Wait()
	if s.logger != nil {
		s.logger.Debug("tail process exited", "pid", s.cmd.Process.Pid, "error", err)
	}
	if err == nil || s.closed() {
		return
	}
	s.mu.Lock()
	diag := strings.TrimSpace(s.lastDiag)
	s.mu.Unlock()
	if diag != "" {
		err = errors.New(diag)
	}
	s.send(Chunk{Err: err})
}

// pump forwards pipe reads until EOF. Reads continue after the stream is
// closed so the child never blocks on a full pipe.
func (s *execStream) pump(r io.Reader, wrap func([]byte) Chunk) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 && !s.closed() {
			s.send(wrap(buf[:n]))
		}
		if err != nil {
			return
		}
	}
}

func (s *execStream) terminate() error {
	if s.cmd.Process == nil {
		return nil
	}
	err := s.cmd.Process.Signal(syscall.SIGHUP)
	if err == nil || errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill tail process: %w", err)
	}
	return nil
}

package watcher

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ReadLast returns at most n lines from r, the last ones, in file order.
// Only "\n" ends a line and lines have no length limit, matching the framer.
func ReadLast(r io.Reader, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	ring := make([]string, n)
	br := bufio.NewReaderSize(r, 64*1024)
	count := 0
	idx := 0
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			ring[idx] = strings.TrimSuffix(line, "\n")
			idx = (idx + 1) % n
			if count < n {
				count++
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read seed lines: %w", err)
		}
	}

	lines := make([]string, count)
	if count == n {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%n]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// seedChunk reads the last n lines of the first size bytes of file and
// returns them as one terminated chunk, ready for the framer.
func seedChunk(file *os.File, size int64, n int) ([]byte, error) {
	if n <= 0 || size == 0 {
		return nil, nil
	}
	lines, err := ReadLast(io.NewSectionReader(file, 0, size), n)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, nil
	}
	return []byte(strings.Join(lines, "\n") + "\n"), nil
}

// Resolve expands the glob in cfg.Path() to a single file. A path without
// glob characters is returned as is, so the open call reports what is wrong
// with it. When several files match, the most recently modified one wins.
func Resolve(cfg Config) (string, error) {
	path := cfg.Path()
	if !hasMeta(path) {
		return path, nil
	}
	matches, err := filepath.Glob(path)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	var (
		best    string
		bestMod int64
	)
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		mod := info.ModTime().UnixNano()
		if best == "" || mod > bestMod || (mod == bestMod && m > best) {
			best, bestMod = m, mod
		}
	}
	if best == "" {
		return "", fmt.Errorf("%s: %w", path, ErrNoMatch)
	}
	return best, nil
}

func hasMeta(path string) bool {
	return strings.ContainsAny(path, `*?[`)
}

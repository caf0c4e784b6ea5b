package watcher

import (
	"bytes"
	"strings"
)

// Framer reassembles raw chunks into lines. A line is only returned once
// its '\n' terminator has been seen; the trailing fragment is kept for the
// next Write.
type Framer struct {
	pending []byte
}

// Write consumes a chunk and returns the complete, non-blank lines it closed.
func (f *Framer) Write(chunk []byte) []string {
	var lines []string
	for len(chunk) > 0 {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			f.pending = append(f.pending, chunk...)
			break
		}
		var line string
		if len(f.pending) > 0 {
			f.pending = append(f.pending, chunk[:i]...)
			line = string(f.pending)
			f.pending = f.pending[:0]
		} else {
			line = string(chunk[:i])
		}
		if !isBlank(line) {
			lines = append(lines, line)
		}
		chunk = chunk[i+1:]
	}
	return lines
}

// Flush returns the unterminated remainder, if it is not blank, and resets the framer.
func (f *Framer) Flush() []string {
	if len(f.pending) == 0 {
		return nil
	}
	line := string(f.pending)
	f.pending = nil
	if isBlank(line) {
		return nil
	}
	return []string{line}
}

// Reset drops any buffered fragment.
func (f *Framer) Reset() {
	f.pending = nil
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

// Deduper suppresses a line equal to the one observed just before it.
// The marker moves on every observed line, emitted or not.
type Deduper struct {
	enabled  bool
	previous string
	seen     bool
}

func NewDeduper(enabled bool) *Deduper {
	return &Deduper{enabled: enabled}
}

// Allow reports whether line should be emitted.
func (d *Deduper) Allow(line string) bool {
	if !d.enabled {
		return true
	}
	dup := d.seen && line == d.previous
	d.previous = line
	d.seen = true
	return !dup
}

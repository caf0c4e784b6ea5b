package trigger

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/tailtrigger/tailtrigger/internal/store"
	"github.com/tailtrigger/tailtrigger/pkg/models"
)

// Sink receives every event a trigger emits, on a single goroutine.
type Sink interface {
	Write(e *models.LineEvent) error
}

// JSONSink writes one JSON object per line
type JSONSink struct {
	enc *json.Encoder
}

func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{enc: json.NewEncoder(w)}
}

func (s *JSONSink) Write(e *models.LineEvent) error {
	return s.enc.Encode(e)
}

// TextSink writes "<time> <line>" with the time dimmed on a terminal
type TextSink struct {
	w     io.Writer
	stamp *color.Color
}

func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: w, stamp: color.New(color.FgHiBlack)}
}

func (s *TextSink) Write(e *models.LineEvent) error {
	_, err := fmt.Fprintf(s.w, "%s %s\n", s.stamp.Sprint(e.Timestamp.Local().Format(time.TimeOnly)), e.Line)
	return err
}

// StoreSink persists events to the sqlite store
type StoreSink struct {
	store *store.Store
}

func NewStoreSink(s *store.Store) *StoreSink {
	return &StoreSink{store: s}
}

func (s *StoreSink) Write(e *models.LineEvent) error {
	if err := s.store.CreateEvent(e); err != nil {
		return fmt.Errorf("failed to store event: %w", err)
	}
	return nil
}

// NewFormatSink returns the stdout sink for an output format name.
func NewFormatSink(format string, w io.Writer) (Sink, error) {
	switch format {
	case "json", "":
		return NewJSONSink(w), nil
	case "text":
		return NewTextSink(w), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

package models

import (
	"time"
)

// Outcome records how a watch session ended
type Outcome string

const (
	OutcomeRunning Outcome = "running"
	OutcomeStopped Outcome = "stopped"
	OutcomeFailed  Outcome = "failed"
	OutcomeClosed  Outcome = "closed"
)

// LineEvent is one qualifying line delivered by a watch session
type LineEvent struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Seq       int64     `json:"seq"`
	Source    string    `json:"source"`
	Line      string    `json:"line"`
	Timestamp time.Time `json:"timestamp"`
}

// Session describes a watch session as recorded by the trigger host
type Session struct {
	ID        string     `json:"id"`
	Source    string     `json:"source"`
	Reader    string     `json:"reader"`
	SeedLines int        `json:"seedLines"`
	Dedup     bool       `json:"deduplicate"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	Outcome   Outcome    `json:"outcome"`
	Error     *string    `json:"error,omitempty"`
	Lines     int64      `json:"lines"`
}

// EventQuery filters stored line events
type EventQuery struct {
	SessionID string `json:"sessionId,omitempty"`
	Contains  string `json:"contains,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

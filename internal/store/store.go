package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/tailtrigger/tailtrigger/pkg/models"
)

// ErrSessionNotFound is returned when a session id is unknown
var ErrSessionNotFound = errors.New("session not found")

const defaultListLimit = 50

// Store persists watch sessions and the line events they emitted
type Store struct {
	db *sql.DB
}

// Stats represents store statistics
type Stats struct {
	TotalEvents   int            `json:"totalEvents"`
	TotalSessions int            `json:"totalSessions"`
	ByOutcome     map[string]int `json:"byOutcome"`
	LastEventAt   *time.Time     `json:"lastEventAt,omitempty"`
}

// New creates a new store instance
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate runs database migrations
func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			reader TEXT NOT NULL,
			seed_lines INTEGER NOT NULL DEFAULT 0,
			deduplicate INTEGER NOT NULL DEFAULT 0,
			started_at DATETIME NOT NULL,
			ended_at DATETIME,
			outcome TEXT NOT NULL DEFAULT 'running' CHECK (outcome IN ('running','stopped','failed','closed')),
			error TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id),
			seq INTEGER NOT NULL,
			source TEXT NOT NULL,
			line TEXT NOT NULL,
			timestamp DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp DESC)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// CreateSession records the start of a watch session
func (s *Store) CreateSession(sess *models.Session) error {
	_, err := s.db.Exec(`
		INSERT INTO sessions (id, source, reader, seed_lines, deduplicate, started_at, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, sess.ID, sess.Source, sess.Reader, sess.SeedLines, sess.Dedup, sess.StartedAt, models.OutcomeRunning)
	return err
}

// FinishSession records how a session ended. errMsg is empty unless it failed.
func (s *Store) FinishSession(id string, outcome models.Outcome, errMsg string, endedAt time.Time) error {
	var errValue sql.NullString
	if errMsg != "" {
		errValue = sql.NullString{String: errMsg, Valid: true}
	}
	res, err := s.db.Exec(`
		UPDATE sessions SET outcome = ?, error = ?, ended_at = ? WHERE id = ?
	`, outcome, errValue, endedAt, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// GetSession retrieves a session with its emitted line count
func (s *Store) GetSession(id string) (*models.Session, error) {
	row := s.db.QueryRow(`
		SELECT id, source, reader, seed_lines, deduplicate, started_at, ended_at, outcome, error,
		       (SELECT COUNT(*) FROM events WHERE session_id = sessions.id)
		FROM sessions WHERE id = ?
	`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	return sess, err
}

// ListSessions returns the most recent sessions first
func (s *Store) ListSessions(limit int) ([]models.Session, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.Query(`
		SELECT id, source, reader, seed_lines, deduplicate, started_at, ended_at, outcome, error,
		       (SELECT COUNT(*) FROM events WHERE session_id = sessions.id)
		FROM sessions
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*models.Session, error) {
	var sess models.Session
	var endedAt sql.NullTime
	var errMsg sql.NullString
	err := row.Scan(&sess.ID, &sess.Source, &sess.Reader, &sess.SeedLines, &sess.Dedup,
		&sess.StartedAt, &endedAt, &sess.Outcome, &errMsg, &sess.Lines)
	if err != nil {
		return nil, err
	}
	if endedAt.Valid {
		sess.EndedAt = &endedAt.Time
	}
	if errMsg.Valid {
		sess.Error = &errMsg.String
	}
	return &sess, nil
}

// CreateEvent stores a new line event
func (s *Store) CreateEvent(e *models.LineEvent) error {
	_, err := s.db.Exec(`
		INSERT INTO events (id, session_id, seq, source, line, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, e.SessionID, e.Seq, e.Source, e.Line, e.Timestamp)
	return err
}

// ListEvents returns the newest matching events, in emission order
func (s *Store) ListEvents(q models.EventQuery) ([]models.LineEvent, error) {
	query := `
		SELECT id, session_id, seq, source, line, timestamp
		FROM events
		WHERE 1=1
	`
	args := []any{}

	if q.SessionID != "" {
		query += " AND session_id = ?"
		args = append(args, q.SessionID)
	}
	if q.Contains != "" {
		query += " AND line LIKE ?"
		args = append(args, "%"+q.Contains+"%")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += " ORDER BY timestamp DESC, seq DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.LineEvent
	for rows.Next() {
		var e models.LineEvent
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Seq, &e.Source, &e.Line, &e.Timestamp); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

// CountEvents returns the number of stored events, optionally for one session
func (s *Store) CountEvents(sessionID string) (int, error) {
	query := "SELECT COUNT(*) FROM events"
	args := []any{}
	if sessionID != "" {
		query += " WHERE session_id = ?"
		args = append(args, sessionID)
	}
	var n int
	if err := s.db.QueryRow(query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// GetStats returns store statistics
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{
		ByOutcome: make(map[string]int),
	}

	row := s.db.QueryRow("SELECT COUNT(*) FROM events")
	if err := row.Scan(&stats.TotalEvents); err != nil {
		return nil, err
	}

	row = s.db.QueryRow("SELECT COUNT(*) FROM sessions")
	if err := row.Scan(&stats.TotalSessions); err != nil {
		return nil, err
	}

	rows, err := s.db.Query("SELECT outcome, COUNT(*) FROM sessions GROUP BY outcome")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, err
		}
		stats.ByOutcome[outcome] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if stats.TotalEvents > 0 {
		var last sql.NullString
		if err := s.db.QueryRow("SELECT MAX(timestamp) FROM events").Scan(&last); err != nil {
			return nil, err
		}
		if last.Valid {
			if ts, err := parseTimestamp(last.String); err == nil {
				stats.LastEventAt = &ts
			}
		}
	}

	return stats, nil
}

func parseTimestamp(v string) (time.Time, error) {
	for _, layout := range []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		time.RFC3339Nano,
	} {
		if ts, err := time.Parse(layout, v); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", v)
}

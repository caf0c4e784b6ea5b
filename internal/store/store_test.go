package store

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tailtrigger/tailtrigger/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func addSession(t *testing.T, s *Store, id string, started time.Time) {
	t.Helper()
	require.NoError(t, s.CreateSession(&models.Session{
		ID:        id,
		Source:    "/var/log/app.log",
		Reader:    "exec",
		SeedLines: 2,
		Dedup:     true,
		StartedAt: started,
	}))
}

func TestStore_SessionLifecycle(t *testing.T) {
	s := newTestStore(t)
	started := time.Now().UTC().Truncate(time.Millisecond)
	addSession(t, s, "s1", started)

	sess, err := s.GetSession("s1")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeRunning, sess.Outcome)
	assert.Equal(t, "exec", sess.Reader)
	assert.Equal(t, 2, sess.SeedLines)
	assert.True(t, sess.Dedup)
	assert.Nil(t, sess.EndedAt)
	assert.Nil(t, sess.Error)

	require.NoError(t, s.FinishSession("s1", models.OutcomeFailed, "tail: cannot open", started.Add(time.Second)))

	sess, err = s.GetSession("s1")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeFailed, sess.Outcome)
	require.NotNil(t, sess.Error)
	assert.Equal(t, "tail: cannot open", *sess.Error)
	require.NotNil(t, sess.EndedAt)

	assert.ErrorIs(t, s.FinishSession("nope", models.OutcomeStopped, "", time.Now()), ErrSessionNotFound)
	_, err = s.GetSession("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStore_EventsRoundTripInOrder(t *testing.T) {
	s := newTestStore(t)
	base := time.Now().UTC()
	addSession(t, s, "s1", base)
	addSession(t, s, "s2", base.Add(time.Minute))

	for i := 1; i <= 5; i++ {
		require.NoError(t, s.CreateEvent(&models.LineEvent{
			ID:        fmt.Sprintf("e%d", i),
			SessionID: "s1",
			Seq:       int64(i),
			Source:    "/var/log/app.log",
			Line:      fmt.Sprintf("line %d", i),
			Timestamp: base.Add(time.Duration(i) * time.Millisecond),
		}))
	}
	require.NoError(t, s.CreateEvent(&models.LineEvent{
		ID: "other", SessionID: "s2", Seq: 1, Source: "x", Line: "other session", Timestamp: base.Add(time.Second),
	}))

	events, err := s.ListEvents(models.EventQuery{SessionID: "s1", Limit: 3})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, []string{"line 3", "line 4", "line 5"}, []string{events[0].Line, events[1].Line, events[2].Line})

	events, err = s.ListEvents(models.EventQuery{Contains: "other"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "s2", events[0].SessionID)

	n, err := s.CountEvents("s1")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	n, err = s.CountEvents("")
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	sessions, err := s.ListSessions(0)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "s2", sessions[0].ID)
	assert.Equal(t, int64(5), sessions[1].Lines)
}

func TestStore_GetStats(t *testing.T) {
	s := newTestStore(t)

	stats, err := s.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalEvents)
	assert.Nil(t, stats.LastEventAt)

	now := time.Now().UTC()
	addSession(t, s, "s1", now)
	addSession(t, s, "s2", now)
	require.NoError(t, s.FinishSession("s2", models.OutcomeStopped, "", now))
	require.NoError(t, s.CreateEvent(&models.LineEvent{ID: "e1", SessionID: "s1", Seq: 1, Source: "x", Line: "a", Timestamp: now}))

	stats, err = s.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalEvents)
	assert.Equal(t, 2, stats.TotalSessions)
	assert.Equal(t, 1, stats.ByOutcome["running"])
	assert.Equal(t, 1, stats.ByOutcome["stopped"])
	assert.NotNil(t, stats.LastEventAt)
}

package db

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/spraypaint/internal/events"
	"github.com/banshee-data/spraypaint/internal/imu"
	"github.com/banshee-data/spraypaint/internal/monitoring"
	"github.com/banshee-data/spraypaint/internal/timeutil"
)

var epoch = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestJournal(t *testing.T) (*Journal, *DB, *timeutil.MockClock) {
	t.Helper()
	monitoring.SetLogger(t.Logf)
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	db := setupTestDB(t)
	clock := timeutil.NewMockClock(epoch)
	return NewJournal(db, clock), db, clock
}

func rigCreate(id uuid.UUID, dev imu.DeviceID, slot int) events.Event {
	return events.Event{
		Kind:    events.RigCreate,
		Device:  dev,
		Session: id,
		Time:    1.5,
		Slot:    slot,
		Color:   imu.RGBA{R: 0xff, A: 0xff},
	}
}

func spawn(id uuid.UUID, dev imu.DeviceID, at float64) events.Event {
	return events.Event{
		Kind:    events.Spawn,
		Device:  dev,
		Session: id,
		Time:    at,
		Spawn: events.SpawnRequest{
			Origin:   r3.Vec{X: -2, Y: 0.9},
			Velocity: r3.Vec{Y: -6},
		},
	}
}

func TestJournal_Lifecycle(t *testing.T) {
	j, db, clock := newTestJournal(t)
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, j.Record(ctx, rigCreate(id, 7, 2)))
	require.NoError(t, j.Record(ctx, events.Event{Kind: events.RigReposition, Session: id, Slot: 2}))
	require.NoError(t, j.Record(ctx, events.Event{Kind: events.RigReposition, Session: id, Slot: 1}))
	require.NoError(t, j.Record(ctx, events.Event{Kind: events.RigRecolor, Session: id, Color: imu.RGBA{B: 0xff, A: 0xff}}))
	require.NoError(t, j.Record(ctx, spawn(id, 7, 2.0)))
	require.NoError(t, j.Record(ctx, spawn(id, 7, 2.5)))

	s, err := db.Session(ctx, id)
	require.NoError(t, err)
	assert.True(t, s.Open())
	assert.Equal(t, imu.DeviceID(7), s.Device)
	assert.Equal(t, 1, s.Slot)
	assert.Equal(t, "#0000ffff", s.Color)
	assert.Equal(t, 2, s.Spawns)
	assert.Equal(t, 1, s.Recolors)
	assert.InDelta(t, float64(epoch.Unix()), s.StartedUnix, 1e-6)

	n, err := db.SpawnCount(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	clock.Advance(20 * time.Second)
	require.NoError(t, j.Record(ctx, events.Event{Kind: events.RigDestroy, Session: id, Time: 21.5, Reason: "timeout"}))

	s, err = db.Session(ctx, id)
	require.NoError(t, err)
	require.False(t, s.Open())
	assert.InDelta(t, float64(epoch.Unix()+20), *s.EndedUnix, 1e-6)
	assert.Equal(t, "timeout", s.EndReason)

	assert.Equal(t, JournalStats{Sessions: 1, Spawns: 2}, j.Stats())
}

func TestJournal_SpawnWithoutSession(t *testing.T) {
	j, db, _ := newTestJournal(t)
	ctx := context.Background()
	id := uuid.New()

	err := j.Record(ctx, spawn(id, 3, 1))
	assert.ErrorIs(t, err, ErrSessionNotFound)

	n, err := db.SpawnCount(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, n, "failed spawn rolled back")
}

func TestDB_SessionNotFound(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.Session(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDB_RecentSessionsNewestFirst(t *testing.T) {
	j, db, clock := newTestJournal(t)
	ctx := context.Background()

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for i, id := range ids {
		require.NoError(t, j.Record(ctx, rigCreate(id, imu.DeviceID(i+1), i)))
		clock.Advance(time.Second)
	}

	got, err := db.RecentSessions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ids[2], got[0].ID)
	assert.Equal(t, ids[1], got[1].ID)
}

func TestJournal_Consume(t *testing.T) {
	j, db, _ := newTestJournal(t)
	ch := make(chan events.Event, 8)
	id := uuid.New()

	ch <- rigCreate(id, 4, 0)
	ch <- spawn(id, 4, 2)
	ch <- spawn(uuid.New(), 5, 2) // unknown session
	close(ch)

	require.NoError(t, j.Consume(context.Background(), ch))
	assert.Equal(t, JournalStats{Sessions: 1, Spawns: 1, Errors: 1}, j.Stats())

	s, err := db.Session(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Spawns)
}

func TestJournal_ConsumeStopsOnCancel(t *testing.T) {
	j, _, _ := newTestJournal(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- j.Consume(ctx, make(chan events.Event)) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Consume did not return after cancel")
	}
}

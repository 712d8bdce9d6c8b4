package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/spraypaint/internal/events"
	"github.com/banshee-data/spraypaint/internal/imu"
	"github.com/banshee-data/spraypaint/internal/timeutil"
)

// ErrSessionNotFound is returned when a session id has no row.
var ErrSessionNotFound = errors.New("rig session not found")

// JournalStats counts journal writes.
type JournalStats struct {
	Sessions int64 `json:"sessions"`
	Spawns   int64 `json:"spawns"`
	Errors   int64 `json:"errors"`
}

// Journal records rig lifecycle events. Record and Consume must be called
// from a single goroutine.
type Journal struct {
	db    *DB
	clock timeutil.Clock

	// last journaled slot per open session; per-tick repositions that do
	// not move the rig are skipped
	slots map[uuid.UUID]int

	sessions atomic.Int64
	spawns   atomic.Int64
	errs     atomic.Int64

	logf func(format string, v ...interface{})
}

// NewJournal creates a journal over db. A nil clock uses the wall clock.
func NewJournal(db *DB, clock timeutil.Clock) *Journal {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Journal{
		db:    db,
		clock: clock,
		slots: make(map[uuid.UUID]int),
		logf:  logf,
	}
}

// Consume records events from ch until ctx is done or ch is closed. Write
// failures are logged and counted; they do not stop the journal.
func (j *Journal) Consume(ctx context.Context, ch <-chan events.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			if err := j.Record(ctx, e); err != nil {
				j.errs.Add(1)
				j.logf("record %v: %v", e.Kind, err)
			}
		}
	}
}

// Record writes a single event.
func (j *Journal) Record(ctx context.Context, e events.Event) error {
	switch e.Kind {
	case events.RigCreate:
		return j.recordCreate(ctx, e)
	case events.RigRecolor:
		_, err := j.db.ExecContext(ctx,
			`UPDATE rig_sessions SET color = ?, recolor_count = recolor_count + 1 WHERE session_id = ?`,
			e.Color.String(), e.Session.String())
		return err
	case events.RigReposition:
		if last, ok := j.slots[e.Session]; ok && last == e.Slot {
			return nil
		}
		if _, err := j.db.ExecContext(ctx,
			`UPDATE rig_sessions SET slot = ? WHERE session_id = ?`, e.Slot, e.Session.String()); err != nil {
			return err
		}
		j.slots[e.Session] = e.Slot
		return nil
	case events.RigDestroy:
		delete(j.slots, e.Session)
		_, err := j.db.ExecContext(ctx,
			`UPDATE rig_sessions SET ended_mono = ?, ended_unix = ?, end_reason = ? WHERE session_id = ?`,
			e.Time, unixSeconds(j.clock.Now()), e.Reason, e.Session.String())
		return err
	case events.Spawn:
		return j.recordSpawn(ctx, e)
	default:
		return nil
	}
}

func (j *Journal) recordCreate(ctx context.Context, e events.Event) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO rig_sessions (session_id, device_id, slot, color, started_mono, started_unix)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.Session.String(), int(e.Device), e.Slot, e.Color.String(), e.Time, unixSeconds(j.clock.Now()))
	if err != nil {
		return err
	}
	j.slots[e.Session] = e.Slot
	j.sessions.Add(1)
	return nil
}

func (j *Journal) recordSpawn(ctx context.Context, e events.Event) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE rig_sessions SET spawn_count = spawn_count + 1 WHERE session_id = ?`, e.Session.String())
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("spawn for %v: %w", e.Session, ErrSessionNotFound)
	}

	s := e.Spawn
	_, err = tx.ExecContext(ctx,
		`INSERT INTO spawns (session_id, device_id, player, at_mono,
			origin_x, origin_y, origin_z, velocity_x, velocity_y, velocity_z)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Session.String(), int(e.Device), s.Player, e.Time,
		s.Origin.X, s.Origin.Y, s.Origin.Z, s.Velocity.X, s.Velocity.Y, s.Velocity.Z)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	j.spawns.Add(1)
	return nil
}

// Stats returns the journal write counters.
func (j *Journal) Stats() JournalStats {
	return JournalStats{
		Sessions: j.sessions.Load(),
		Spawns:   j.spawns.Load(),
		Errors:   j.errs.Load(),
	}
}

// RigSession is one journaled seat occupancy.
type RigSession struct {
	ID          uuid.UUID    `json:"id"`
	Device      imu.DeviceID `json:"device"`
	Slot        int          `json:"slot"`
	Color       string       `json:"color"`
	StartedUnix float64      `json:"started_unix"`
	EndedUnix   *float64     `json:"ended_unix,omitempty"`
	EndReason   string       `json:"end_reason,omitempty"`
	Spawns      int          `json:"spawns"`
	Recolors    int          `json:"recolors"`
}

// Open reports whether the session has not ended yet.
func (s RigSession) Open() bool { return s.EndedUnix == nil }

const sessionColumns = `session_id, device_id, slot, color, started_unix, ended_unix,
	COALESCE(end_reason, ''), spawn_count, recolor_count`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (RigSession, error) {
	var (
		s      RigSession
		id     string
		device int
		ended  sql.NullFloat64
	)
	if err := row.Scan(&id, &device, &s.Slot, &s.Color, &s.StartedUnix, &ended,
		&s.EndReason, &s.Spawns, &s.Recolors); err != nil {
		return RigSession{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return RigSession{}, fmt.Errorf("session id %q: %w", id, err)
	}
	s.ID = parsed
	s.Device = imu.DeviceID(device)
	if ended.Valid {
		v := ended.Float64
		s.EndedUnix = &v
	}
	return s, nil
}

// Session returns a single session by id.
func (db *DB) Session(ctx context.Context, id uuid.UUID) (RigSession, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM rig_sessions WHERE session_id = ?`, id.String())
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RigSession{}, fmt.Errorf("%v: %w", id, ErrSessionNotFound)
	}
	return s, err
}

// RecentSessions returns up to limit sessions, newest first.
func (db *DB) RecentSessions(ctx context.Context, limit int) ([]RigSession, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM rig_sessions ORDER BY started_unix DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RigSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SpawnCount returns the number of journaled spawns for a session.
func (db *DB) SpawnCount(ctx context.Context, id uuid.UUID) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM spawns WHERE session_id = ?`, id.String()).Scan(&n)
	return n, err
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

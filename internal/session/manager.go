// Package session runs the per-tick device lifecycle: seating newly seen
// devices, posing seated rigs, turning gestures into spawn requests and
// tearing down devices that fall silent.
//
// The Manager is driven from a single tick goroutine. It reads the shared
// registry only through short locked copies and does all of its own work on
// those copies, so the network receive path never waits on it.
package session

import (
	"sync/atomic"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/spraypaint/internal/config"
	"github.com/banshee-data/spraypaint/internal/events"
	"github.com/banshee-data/spraypaint/internal/fusion"
	"github.com/banshee-data/spraypaint/internal/gesture"
	"github.com/banshee-data/spraypaint/internal/imu"
	"github.com/banshee-data/spraypaint/internal/monitoring"
	"github.com/banshee-data/spraypaint/internal/seats"
)

// Registry is the registry surface used at tick time.
type Registry interface {
	Snapshot() []imu.DeviceState
	SampleRates(now, interval float64) []imu.RateReport
	RemoveIfIdle(id imu.DeviceID, cutoff float64) bool
}

// SignalObserver receives the gesture signal of every seated device each
// tick.
type SignalObserver interface {
	ObserveSignal(id imu.DeviceID, now, value float64)
}

// Frame is one tick's input.
type Frame struct {
	Now        float64 // monotonic seconds
	Dt         float64 // seconds since the previous tick
	ManualFire bool    // operator fire request for every seated rig
}

// Report summarises one tick.
type Report struct {
	Created      int
	Recolored    int
	Repositioned int
	Spawned      int
	Destroyed    int
	Unseated     []imu.DeviceID // tracked devices still waiting for a seat or colour
	Removed      []imu.DeviceID // devices dropped from the registry this tick
	Rates        []imu.RateReport
}

// rig is the tick-side record of a seated device.
type rig struct {
	session   uuid.UUID
	slot      int
	color     imu.RGBA
	position  r3.Vec
	rotation  quat.Number
	signal    float64
	fires     uint64
	createdAt float64
}

// Option configures a Manager.
type Option func(*Manager)

// WithSignalObserver forwards every seated device's gesture signal to o.
func WithSignalObserver(o SignalObserver) Option {
	return func(m *Manager) { m.observer = o }
}

// WithSessionIDs replaces the rig session id generator.
func WithSessionIDs(next func() uuid.UUID) Option {
	return func(m *Manager) { m.newSession = next }
}

// Manager owns the seat allocator, gesture state and rig table.
type Manager struct {
	cfg      Config
	reg      Registry
	seats    *seats.Allocator
	detector *gesture.Detector
	velocity *gesture.VelocityTracker
	sink     events.Sink
	observer SignalObserver

	rigs       map[imu.DeviceID]*rig
	newSession func() uuid.UUID
	status     atomic.Pointer[Status]

	logf func(format string, v ...interface{})
}

// New creates a Manager. A nil sink discards events.
func New(cfg Config, reg Registry, alloc *seats.Allocator, sink events.Sink, opts ...Option) *Manager {
	if sink == nil {
		sink = events.Discard
	}
	m := &Manager{
		cfg:        cfg,
		reg:        reg,
		seats:      alloc,
		detector:   gesture.NewDetector(cfg.SignalThreshold(), cfg.FireCooldown),
		velocity:   gesture.NewVelocityTracker(),
		sink:       sink,
		rigs:       make(map[imu.DeviceID]*rig),
		newSession: uuid.New,
		logf:       monitoring.Component("session"),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.status.Store(&Status{Capacity: alloc.Capacity()})
	return m
}

// Tick runs one pass of the lifecycle against a fresh registry snapshot.
func (m *Manager) Tick(f Frame) Report {
	var rep Report
	now := f.Now

	snap := m.reg.Snapshot()

	if m.cfg.RateLogInterval > 0 {
		rep.Rates = m.reg.SampleRates(now, m.cfg.RateLogInterval)
		for _, r := range rep.Rates {
			monitoring.Logf("[imu %v] seq=%d rate=%.1f Hz q=(%.2f,%.2f,%.2f,%.2f)",
				r.ID, r.Sequence, r.RateHz, r.Orientation.X, r.Orientation.Y, r.Orientation.Z, r.Orientation.W)
		}
	}

	manual := f.ManualFire && m.cfg.AllowManualFire
	var toDespawn []imu.DeviceID

	for i := range snap {
		st := &snap[i]

		r, seated := m.rigs[st.ID]
		created := false
		if !seated {
			r = m.seat(st, now)
			if r != nil {
				seated, created = true, true
				rep.Created++
			} else {
				rep.Unseated = append(rep.Unseated, st.ID)
			}
		}

		if seated {
			m.pose(st, r, created, f, manual, &rep)
		}

		if m.cfg.IdleTimeout > 0 && now-st.LastSeen >= m.cfg.IdleTimeout {
			toDespawn = append(toDespawn, st.ID)
		}
	}

	if len(toDespawn) > 0 {
		m.despawn(toDespawn, now, &rep)
	}

	m.publishStatus(snap, now, rep)
	return rep
}

// seat assigns a slot and creates the rig, or returns nil when the device
// must wait (no colour yet, or no free slot).
func (m *Manager) seat(st *imu.DeviceState, now float64) *rig {
	if m.cfg.RequireColor && !st.HasColor {
		return nil
	}
	slot, ok := m.seats.Assign(st.ID)
	if !ok {
		return nil
	}

	color := m.cfg.paletteColor(slot)
	if st.HasColor {
		color = st.Color
	}
	r := &rig{
		session:   m.newSession(),
		slot:      slot,
		color:     color,
		position:  m.seats.PositionForSlot(slot),
		rotation:  m.cfg.Correction.Apply(st.Orientation),
		createdAt: now,
	}
	m.rigs[st.ID] = r

	m.sink.Emit(events.Event{
		Kind:        events.RigCreate,
		Device:      st.ID,
		Session:     r.session,
		Time:        now,
		Slot:        slot,
		Position:    r.position,
		Orientation: imu.QuatFromNumber(r.rotation),
		Color:       color,
	})
	m.logf("spawned rig for device %d slot %d", st.ID, slot)
	return r
}

// pose updates a seated rig from the device state, emits its reposition
// and colour changes, and evaluates the gesture.
func (m *Manager) pose(st *imu.DeviceState, r *rig, created bool, f Frame, manual bool, rep *Report) {
	if slot, ok := m.seats.Slot(st.ID); ok {
		r.slot = slot
	}
	r.position = m.seats.PositionForSlot(r.slot)
	r.rotation = m.cfg.Correction.Apply(st.Orientation)

	if !created {
		m.sink.Emit(events.Event{
			Kind:        events.RigReposition,
			Device:      st.ID,
			Session:     r.session,
			Time:        f.Now,
			Slot:        r.slot,
			Position:    r.position,
			Orientation: imu.QuatFromNumber(r.rotation),
		})
		rep.Repositioned++
	}

	if st.HasColor && st.Color != r.color {
		r.color = st.Color
		m.sink.Emit(events.Event{
			Kind:    events.RigRecolor,
			Device:  st.ID,
			Session: r.session,
			Time:    f.Now,
			Slot:    r.slot,
			Color:   r.color,
		})
		rep.Recolored++
	}

	tip := fusion.TipPosition(r.position, r.rotation, m.cfg.TipOffset)

	var signal float64
	var heading r3.Vec
	switch m.cfg.GestureMode {
	case config.GestureVelocity:
		vel, ok := m.velocity.Observe(st.ID, tip, f.Dt)
		if !ok {
			// No baseline yet: only a manual fire can trigger, along the
			// rig's forward axis.
			r.signal = 0
			if !manual {
				return
			}
		}
		heading = vel
		signal = r3.Norm(vel)
	default:
		heading = fusion.WorldAcceleration(r.rotation, st.Acceleration)
		signal = r3.Norm(heading)
	}
	r.signal = signal

	if m.observer != nil {
		m.observer.ObserveSignal(st.ID, f.Now, signal)
	}

	if !m.detector.Evaluate(st.ID, signal, manual, f.Now) {
		return
	}

	dir := fusion.Direction(heading, r.rotation)
	r.fires++
	m.sink.Emit(events.Event{
		Kind:    events.Spawn,
		Device:  st.ID,
		Session: r.session,
		Time:    f.Now,
		Slot:    r.slot,
		Color:   r.color,
		Spawn: events.SpawnRequest{
			Player:    r.slot,
			Origin:    tip,
			Direction: dir,
			Velocity:  r3.Scale(m.cfg.LaunchSpeed, dir),
			Color:     r.color,
		},
	})
	rep.Spawned++
}

// despawn tears down idle devices after the main pass, then repositions
// every rig whose slot moved as a result.
func (m *Manager) despawn(ids []imu.DeviceID, now float64, rep *Report) {
	cutoff := now - m.cfg.IdleTimeout
	layoutChanged := false

	for _, id := range ids {
		// A packet may have landed since the snapshot; the registry has
		// the final say.
		if !m.reg.RemoveIfIdle(id, cutoff) {
			continue
		}
		rep.Removed = append(rep.Removed, id)

		if r, ok := m.rigs[id]; ok {
			m.sink.Emit(events.Event{
				Kind:    events.RigDestroy,
				Device:  id,
				Session: r.session,
				Time:    now,
				Slot:    r.slot,
				Reason:  "timeout",
			})
			delete(m.rigs, id)
			rep.Destroyed++
			m.logf("despawned rig for device %d (timeout)", id)
		}
		if m.seats.Release(id) {
			layoutChanged = true
		}
		m.detector.Forget(id)
		m.velocity.Forget(id)
	}

	if layoutChanged {
		m.relayout(now, rep)
	}
}

// relayout moves rigs whose slot changed after compaction.
func (m *Manager) relayout(now float64, rep *Report) {
	for slot, id := range m.seats.Order() {
		r, ok := m.rigs[id]
		if !ok || r.slot == slot {
			continue
		}
		r.slot = slot
		r.position = m.seats.PositionForSlot(slot)
		// The tip jumps with the slot; that displacement is not a gesture.
		m.velocity.Forget(id)
		m.sink.Emit(events.Event{
			Kind:        events.RigReposition,
			Device:      id,
			Session:     r.session,
			Time:        now,
			Slot:        slot,
			Position:    r.position,
			Orientation: imu.QuatFromNumber(r.rotation),
		})
		rep.Repositioned++
	}
}

// Seated returns the seated devices in slot order.
func (m *Manager) Seated() []imu.DeviceID {
	return m.seats.Order()
}

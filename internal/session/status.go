package session

import (
	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/spraypaint/internal/imu"
)

// DeviceStatus describes one tracked device as of the last tick.
type DeviceStatus struct {
	ID           imu.DeviceID
	Seated       bool
	Slot         int
	Session      uuid.UUID
	RateHz       float64
	Sequence     uint16
	TotalPackets uint64
	Orientation  imu.Quat // raw device orientation
	IdleSeconds  float64
	Color        imu.RGBA
	HasColor     bool
	Position     r3.Vec
	Signal       float64
	Fires        uint64
}

// Status is an immutable view of the last tick. It is safe to read from
// any goroutine.
type Status struct {
	Time     float64
	Capacity int
	Devices  []DeviceStatus // ordered by device id
	Report   Report
}

// SeatedCount returns the number of seated devices.
func (s *Status) SeatedCount() int {
	n := 0
	for _, d := range s.Devices {
		if d.Seated {
			n++
		}
	}
	return n
}

// Status returns the status published by the most recent Tick.
func (m *Manager) Status() *Status {
	return m.status.Load()
}

func (m *Manager) publishStatus(snap []imu.DeviceState, now float64, rep Report) {
	st := &Status{
		Time:     now,
		Capacity: m.seats.Capacity(),
		Devices:  make([]DeviceStatus, 0, len(snap)),
		Report:   rep,
	}
	removed := make(map[imu.DeviceID]bool, len(rep.Removed))
	for _, id := range rep.Removed {
		removed[id] = true
	}
	// Rates sampled this tick are newer than the snapshot taken before them.
	rates := make(map[imu.DeviceID]float64, len(rep.Rates))
	for _, r := range rep.Rates {
		rates[r.ID] = r.RateHz
	}
	for _, d := range snap {
		if removed[d.ID] {
			continue
		}
		ds := DeviceStatus{
			ID:           d.ID,
			RateHz:       d.SmoothedRateHz,
			Sequence:     d.LastSequence,
			TotalPackets: d.TotalPackets,
			Orientation:  d.Orientation,
			IdleSeconds:  now - d.LastSeen,
			Color:        d.Color,
			HasColor:     d.HasColor,
		}
		if hz, ok := rates[d.ID]; ok {
			ds.RateHz = hz
		}
		if r, ok := m.rigs[d.ID]; ok {
			ds.Seated = true
			ds.Slot = r.slot
			ds.Session = r.session
			ds.Color = r.color
			ds.Position = r.position
			ds.Signal = r.signal
			ds.Fires = r.fires
		}
		st.Devices = append(st.Devices, ds)
	}
	m.status.Store(st)
}

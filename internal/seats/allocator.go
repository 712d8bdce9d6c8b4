// Package seats assigns devices to a bounded, ordered row of player slots.
//
// Slots are the indices of a first-seen order list. Releasing a device
// compacts the list, so every device after it moves one slot to the left.
// Positions are interpolated between two anchors that may move, so callers
// recompute them every tick rather than caching.
package seats

import (
	"slices"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/spraypaint/internal/imu"
)

// Default anchors used when no anchor source is configured.
var (
	DefaultLeftAnchor  = r3.Vec{X: -2, Y: 1, Z: 0}
	DefaultRightAnchor = r3.Vec{X: 2, Y: 1, Z: 0}
)

// AnchorSource supplies the current left and right world anchors.
type AnchorSource interface {
	Anchors() (left, right r3.Vec)
}

// StaticAnchors is an AnchorSource with fixed positions.
type StaticAnchors struct {
	Left, Right r3.Vec
}

// Anchors implements AnchorSource.
func (s StaticAnchors) Anchors() (left, right r3.Vec) {
	return s.Left, s.Right
}

// Allocator is owned by the tick context and is not safe for concurrent use.
type Allocator struct {
	capacity int
	order    []imu.DeviceID
	anchors  AnchorSource
}

// NewAllocator creates an allocator with room for capacity devices. A nil
// anchor source uses DefaultLeftAnchor and DefaultRightAnchor.
func NewAllocator(capacity int, anchors AnchorSource) *Allocator {
	if capacity < 0 {
		capacity = 0
	}
	if anchors == nil {
		anchors = StaticAnchors{Left: DefaultLeftAnchor, Right: DefaultRightAnchor}
	}
	return &Allocator{
		capacity: capacity,
		order:    make([]imu.DeviceID, 0, capacity),
		anchors:  anchors,
	}
}

// Capacity returns the maximum number of seated devices.
func (a *Allocator) Capacity() int { return a.capacity }

// Len returns the number of seated devices.
func (a *Allocator) Len() int { return len(a.order) }

// Assign seats id and returns its slot. It is idempotent for an already
// seated device. When every slot is taken it returns false and records
// nothing; the caller may retry later.
func (a *Allocator) Assign(id imu.DeviceID) (int, bool) {
	if slot, ok := a.Slot(id); ok {
		return slot, true
	}
	if len(a.order) >= a.capacity {
		return 0, false
	}
	a.order = append(a.order, id)
	return len(a.order) - 1, true
}

// Release unseats id, shifting later devices down one slot. It reports
// whether id was seated.
func (a *Allocator) Release(id imu.DeviceID) bool {
	i := slices.Index(a.order, id)
	if i < 0 {
		return false
	}
	a.order = slices.Delete(a.order, i, i+1)
	return true
}

// Slot returns id's current slot.
func (a *Allocator) Slot(id imu.DeviceID) (int, bool) {
	i := slices.Index(a.order, id)
	return i, i >= 0
}

// Order returns a copy of the seated devices in slot order.
func (a *Allocator) Order() []imu.DeviceID {
	return slices.Clone(a.order)
}

// PositionForSlot returns the world position of slot against the current
// anchors.
func (a *Allocator) PositionForSlot(slot int) r3.Vec {
	left, right := a.anchors.Anchors()
	return SlotPosition(slot, a.capacity, left, right)
}

// SlotPosition interpolates from left to right with t = slot/(capacity-1),
// clamped to [0,1]. With capacity of one or less every slot sits on the
// left anchor.
func SlotPosition(slot, capacity int, left, right r3.Vec) r3.Vec {
	if capacity <= 1 {
		return left
	}
	t := float64(slot) / float64(capacity-1)
	t = max(0, min(1, t))
	return r3.Add(left, r3.Scale(t, r3.Sub(right, left)))
}

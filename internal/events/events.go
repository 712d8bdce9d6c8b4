// Package events defines the messages the session manager emits to the
// render and simulation layer, and the sinks that carry them. Every Emit is
// non-blocking: a full consumer loses the event, the tick never waits.
package events

import (
	"fmt"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/spraypaint/internal/imu"
)

// Kind identifies an event.
type Kind uint8

const (
	RigCreate Kind = iota + 1
	RigRecolor
	RigReposition
	RigDestroy
	Spawn
)

func (k Kind) String() string {
	switch k {
	case RigCreate:
		return "rig_create"
	case RigRecolor:
		return "rig_recolor"
	case RigReposition:
		return "rig_reposition"
	case RigDestroy:
		return "rig_destroy"
	case Spawn:
		return "spawn"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	for k := RigCreate; k <= Spawn; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// SpawnRequest asks the particle simulation to emit paint.
type SpawnRequest struct {
	Player    int // seat slot of the firing device
	Origin    r3.Vec
	Direction r3.Vec // unit length
	Velocity  r3.Vec // Direction scaled by launch speed
	Color     imu.RGBA
}

// Event is one outbound notification. Fields that do not apply to Kind are
// zero.
type Event struct {
	Kind    Kind
	Device  imu.DeviceID
	Session uuid.UUID // rig session, set for every rig event
	Time    float64   // monotonic seconds of the tick that produced it

	Slot        int
	Position    r3.Vec
	Orientation imu.Quat // corrected world orientation, RigCreate and RigReposition
	Color       imu.RGBA
	Reason      string // RigDestroy only

	Spawn SpawnRequest // Spawn only
}

func (e Event) String() string {
	switch e.Kind {
	case RigCreate:
		return fmt.Sprintf("%s %v slot=%d pos=(%.2f,%.2f,%.2f) color=%v", e.Kind, e.Device, e.Slot, e.Position.X, e.Position.Y, e.Position.Z, e.Color)
	case RigRecolor:
		return fmt.Sprintf("%s %v color=%v", e.Kind, e.Device, e.Color)
	case RigReposition:
		return fmt.Sprintf("%s %v slot=%d pos=(%.2f,%.2f,%.2f)", e.Kind, e.Device, e.Slot, e.Position.X, e.Position.Y, e.Position.Z)
	case RigDestroy:
		return fmt.Sprintf("%s %v reason=%s", e.Kind, e.Device, e.Reason)
	case Spawn:
		s := e.Spawn
		return fmt.Sprintf("%s %v player=%d origin=(%.2f,%.2f,%.2f) dir=(%.2f,%.2f,%.2f)", e.Kind, e.Device, s.Player,
			s.Origin.X, s.Origin.Y, s.Origin.Z, s.Direction.X, s.Direction.Y, s.Direction.Z)
	default:
		return e.Kind.String()
	}
}

// Sink receives events. Implementations must not block.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Emit implements Sink.
func (f SinkFunc) Emit(e Event) { f(e) }

// Tee delivers every event to each sink in order.
func Tee(sinks ...Sink) Sink {
	return SinkFunc(func(e Event) {
		for _, s := range sinks {
			s.Emit(e)
		}
	})
}

// Filter passes only events of the given kinds to s.
func Filter(s Sink, kinds ...Kind) Sink {
	var mask uint32
	for _, k := range kinds {
		mask |= 1 << k
	}
	return SinkFunc(func(e Event) {
		if mask&(1<<e.Kind) != 0 {
			s.Emit(e)
		}
	})
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

package visualiser

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/spraypaint/internal/events"
	"github.com/banshee-data/spraypaint/internal/imu"
)

// EventToStruct encodes an event for the wire. Only the fields that apply
// to the event's kind are set. Vectors are [x, y, z] lists, quaternions
// [x, y, z, w] and colours "#rrggbbaa".
func EventToStruct(e events.Event) (*structpb.Struct, error) {
	m := map[string]interface{}{
		"kind":    e.Kind.String(),
		"device":  float64(e.Device),
		"session": e.Session.String(),
		"time":    e.Time,
	}

	switch e.Kind {
	case events.RigCreate:
		m["slot"] = float64(e.Slot)
		m["position"] = vec(e.Position)
		m["orientation"] = quat(e.Orientation)
		m["color"] = e.Color.String()
	case events.RigRecolor:
		m["slot"] = float64(e.Slot)
		m["color"] = e.Color.String()
	case events.RigReposition:
		m["slot"] = float64(e.Slot)
		m["position"] = vec(e.Position)
		m["orientation"] = quat(e.Orientation)
	case events.RigDestroy:
		m["slot"] = float64(e.Slot)
		m["reason"] = e.Reason
	case events.Spawn:
		s := e.Spawn
		m["spawn"] = map[string]interface{}{
			"player":    float64(s.Player),
			"origin":    vec(s.Origin),
			"direction": vec(s.Direction),
			"velocity":  vec(s.Velocity),
			"color":     s.Color.String(),
		}
	default:
		return nil, fmt.Errorf("unknown event kind %v", e.Kind)
	}
	return structpb.NewStruct(m)
}

func vec(v r3.Vec) []interface{} {
	return []interface{}{v.X, v.Y, v.Z}
}

func quat(q imu.Quat) []interface{} {
	return []interface{}{float64(q.X), float64(q.Y), float64(q.Z), float64(q.W)}
}

// kindsFromRequest parses the optional "kinds" filter. A nil result means
// no filtering.
func kindsFromRequest(req *structpb.Struct) (map[events.Kind]bool, error) {
	v, ok := req.GetFields()["kinds"]
	if !ok {
		return nil, nil
	}
	list := v.GetListValue().GetValues()
	if len(list) == 0 {
		return nil, nil
	}
	want := make(map[events.Kind]bool, len(list))
	for _, item := range list {
		k, ok := events.ParseKind(item.GetStringValue())
		if !ok {
			return nil, fmt.Errorf("unknown event kind %q", item.GetStringValue())
		}
		want[k] = true
	}
	return want, nil
}

package monitor

import (
	"net/http"

	"github.com/banshee-data/spraypaint/internal/httputil"
	"github.com/banshee-data/spraypaint/internal/session"
)

type deviceJSON struct {
	ID          uint8      `json:"id"`
	Seated      bool       `json:"seated"`
	Slot        *int       `json:"slot,omitempty"`
	Session     string     `json:"session,omitempty"`
	RateHz      float64    `json:"rate_hz"`
	Sequence    uint16     `json:"seq"`
	Packets     uint64     `json:"packets"`
	Quaternion  [4]float32 `json:"q"`
	IdleSeconds float64    `json:"idle_s"`
	Color       string     `json:"color,omitempty"`
	Signal      float64    `json:"signal"`
	Fires       uint64     `json:"fires"`
}

type devicesJSON struct {
	Time     float64      `json:"time"`
	Capacity int          `json:"capacity"`
	Seated   int          `json:"seated"`
	Devices  []deviceJSON `json:"devices"`
}

func devicesFromStatus(st *session.Status) devicesJSON {
	out := devicesJSON{
		Time:     st.Time,
		Capacity: st.Capacity,
		Seated:   st.SeatedCount(),
		Devices:  make([]deviceJSON, 0, len(st.Devices)),
	}
	for _, d := range st.Devices {
		dj := deviceJSON{
			ID:          uint8(d.ID),
			Seated:      d.Seated,
			RateHz:      d.RateHz,
			Sequence:    d.Sequence,
			Packets:     d.TotalPackets,
			Quaternion:  [4]float32{d.Orientation.X, d.Orientation.Y, d.Orientation.Z, d.Orientation.W},
			IdleSeconds: d.IdleSeconds,
			Signal:      d.Signal,
			Fires:       d.Fires,
		}
		if d.Seated {
			slot := d.Slot
			dj.Slot = &slot
			dj.Session = d.Session.String()
		}
		if d.Seated || d.HasColor {
			dj.Color = d.Color.String()
		}
		out.Devices = append(out.Devices, dj)
	}
	return out
}

func (ws *WebServer) handleDevices(w http.ResponseWriter, r *http.Request) {
	st := ws.status()
	if st == nil {
		httputil.WriteJSONError(w, http.StatusNotFound, "no session status available")
		return
	}
	httputil.WriteJSONOK(w, devicesFromStatus(st))
}

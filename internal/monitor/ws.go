package monitor

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/banshee-data/spraypaint/internal/events"
	"github.com/banshee-data/spraypaint/internal/httputil"
	"github.com/banshee-data/spraypaint/internal/visualiser"
)

const wsWriteTimeout = 5 * time.Second

// handleEventsWS streams hub events as JSON text messages. The optional
// kinds query parameter is a comma-separated list of event kind names.
func (ws *WebServer) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	if ws.cfg.Hub == nil {
		httputil.WriteJSONError(w, http.StatusNotFound, "event stream disabled")
		return
	}

	var want map[events.Kind]bool
	if q := r.URL.Query().Get("kinds"); q != "" {
		want = make(map[events.Kind]bool)
		for _, name := range strings.Split(q, ",") {
			k, ok := events.ParseKind(strings.TrimSpace(name))
			if !ok {
				httputil.WriteJSONError(w, http.StatusBadRequest, fmt.Sprintf("unknown event kind %q", name))
				return
			}
			want[k] = true
		}
	}

	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	name := fmt.Sprintf("ws-%d", ws.nextClient.Add(1))
	ch, cancel := ws.cfg.Hub.Subscribe(name, 0)
	defer cancel()

	// Drain client frames so close and ping control messages are handled.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case e, ok := <-ch:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "event stream closed"),
					time.Now().Add(wsWriteTimeout))
				return
			}
			if want != nil && !want[e.Kind] {
				continue
			}
			msg, err := visualiser.EventToStruct(e)
			if err != nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(msg.AsMap()); err != nil {
				return
			}
		}
	}
}

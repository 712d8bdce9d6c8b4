// Package monitor serves the operator debug pages: tracked devices, packet
// rates, the recent gesture signal and a live event tail.
package monitor

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"tailscale.com/tsweb"

	"github.com/banshee-data/spraypaint/internal/events"
	"github.com/banshee-data/spraypaint/internal/httputil"
	"github.com/banshee-data/spraypaint/internal/imu/network"
	"github.com/banshee-data/spraypaint/internal/monitoring"
	"github.com/banshee-data/spraypaint/internal/session"
	"github.com/banshee-data/spraypaint/internal/version"
)

// StatusSource supplies the latest tick status.
type StatusSource interface {
	Status() *session.Status
}

// CountsSource supplies the cumulative receive counters.
type CountsSource interface {
	Counts() network.PacketCounts
}

// WebServerConfig wires the pages to their data. Nil sources disable the
// pages that need them.
type WebServerConfig struct {
	Address         string
	Status          StatusSource
	Packets         CountsSource
	Hub             *events.Hub
	Signals         *SignalHistory
	SignalThreshold float64
}

// WebServer renders the debug pages.
type WebServer struct {
	cfg      WebServerConfig
	server   *http.Server
	upgrader websocket.Upgrader

	nextClient atomic.Uint64
	logf       func(format string, v ...interface{})
}

// NewWebServer creates a WebServer. Call AttachRoutes to mount it on an
// existing mux, or Start to serve it on cfg.Address.
func NewWebServer(cfg WebServerConfig) *WebServer {
	return &WebServer{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logf: monitoring.Component("monitor"),
	}
}

// AttachRoutes mounts /health and the /debug/ pages on mux.
func (ws *WebServer) AttachRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", ws.handleHealth)

	debug := tsweb.Debugger(mux)
	debug.KVFunc("Seated rigs", func() any {
		if st := ws.status(); st != nil {
			return st.SeatedCount()
		}
		return 0
	})
	debug.HandleFunc("devices", "Tracked devices (JSON)", ws.handleDevices)
	debug.HandleFunc("packets", "Receive counters (JSON)", ws.handlePackets)
	debug.HandleFunc("rates", "Per-device packet rate chart", ws.handleRateChart)
	debug.HandleFunc("signal.png", "Recent gesture signal per seated device", ws.handleSignalPlot)
	debug.HandleSilentFunc("events/ws", ws.handleEventsWS)
}

// Start attaches the routes to mux and serves mux on cfg.Address until ctx
// is done. A nil mux gets a fresh one. Other packages' debug routes can be
// attached to mux before the call.
func (ws *WebServer) Start(ctx context.Context, mux *http.ServeMux) error {
	if mux == nil {
		mux = http.NewServeMux()
	}
	ws.AttachRoutes(mux)
	ws.server = &http.Server{
		Addr:    ws.cfg.Address,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		ws.logf("listening on %s", ws.cfg.Address)
		errCh <- ws.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		ws.logf("shutdown error: %v", err)
		ws.server.Close()
	}
	return nil
}

func (ws *WebServer) status() *session.Status {
	if ws.cfg.Status == nil {
		return nil
	}
	return ws.cfg.Status.Status()
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, struct {
		Status string `json:"status"`
		version.Info
	}{"ok", version.Current()})
}

func (ws *WebServer) handlePackets(w http.ResponseWriter, r *http.Request) {
	if ws.cfg.Packets == nil {
		httputil.WriteJSONError(w, http.StatusNotFound, "no packet stats available")
		return
	}
	httputil.WriteJSONOK(w, ws.cfg.Packets.Counts())
}

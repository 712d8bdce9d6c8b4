// Package serialmux reads telemetry from a USB receiver dongle. The dongle
// relays the same datagram payloads the devices send over UDP, each framed
// with COBS and terminated by 0x00, and the bridge feeds them into the same
// decode and upsert path as the network listener.
package serialmux

import (
	"bufio"
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"tailscale.com/tsweb"

	"github.com/banshee-data/spraypaint/internal/imu/network"
	"github.com/banshee-data/spraypaint/internal/imu/parse"
	"github.com/banshee-data/spraypaint/internal/monitoring"
)

// maxFrame bounds one COBS frame; anything longer is a framing loss.
const maxFrame = 4096

var logf = monitoring.Component("serialmux")

// BridgeStats counts frames seen on the port.
type BridgeStats struct {
	Frames    uint64 `json:"frames"`
	BadFrames uint64 `json:"bad_frames"`
	Rejected  uint64 `json:"rejected"`
}

// Bridge demultiplexes COBS frames from a serial port. Subscribers receive a
// one-line summary per frame for live tailing.
type Bridge[T SerialPorter] struct {
	port    T
	handler network.PacketHandler

	subscribers  map[string]chan string
	subscriberMu sync.Mutex

	frames    atomic.Uint64
	badFrames atomic.Uint64
	rejected  atomic.Uint64

	closing   bool
	closingMu sync.Mutex
}

// NewBridge wraps port. handler receives each decoded payload.
func NewBridge[T SerialPorter](port T, handler network.PacketHandler) *Bridge[T] {
	return &Bridge[T]{
		port:        port,
		handler:     handler,
		subscribers: make(map[string]chan string),
	}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe returns a channel of frame summaries. Slow subscribers miss
// lines rather than stalling the port.
func (b *Bridge[T]) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string, 16)
	b.subscriberMu.Lock()
	defer b.subscriberMu.Unlock()
	b.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bridge[T]) Unsubscribe(id string) {
	b.subscriberMu.Lock()
	defer b.subscriberMu.Unlock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
}

// Stats returns the frame counters.
func (b *Bridge[T]) Stats() BridgeStats {
	return BridgeStats{
		Frames:    b.frames.Load(),
		BadFrames: b.badFrames.Load(),
		Rejected:  b.rejected.Load(),
	}
}

// splitFrames returns a bufio.SplitFunc yielding 0x00-delimited frames.
// Empty frames from back-to-back delimiters are skipped. A run of maxFrame
// bytes with no delimiter is discarded and reported to overflow, so the
// scanner resynchronises on the next delimiter instead of failing with
// bufio.ErrTooLong.
func splitFrames(overflow func(n int)) bufio.SplitFunc {
	return func(data []byte, atEOF bool) (advance int, token []byte, err error) {
		start := 0
		for start < len(data) && data[start] == 0 {
			start++
		}
		if i := bytes.IndexByte(data[start:], 0); i >= 0 {
			return start + i + 1, data[start : start+i], nil
		}
		if atEOF {
			// A partial frame at EOF is discarded.
			return len(data), nil, nil
		}
		if len(data)-start >= maxFrame {
			if overflow != nil {
				overflow(len(data) - start)
			}
			return len(data), nil, nil
		}
		return start, nil, nil
	}
}

// Monitor reads frames until ctx is cancelled, the port reaches EOF or the
// bridge is closed. Malformed frames are counted and skipped.
func (b *Bridge[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(b.port)
	scan.Buffer(make([]byte, 0, 512), maxFrame)
	scan.Split(splitFrames(func(n int) {
		b.frames.Add(1)
		b.badFrames.Add(1)
		b.publish(fmt.Sprintf("discarded %d bytes without a frame delimiter", n))
	}))

	frameChan := make(chan []byte)
	scanErrChan := make(chan error, 1)

	// The blocking Scan runs apart from the select loop so cancellation is
	// observed without waiting for the next byte.
	go func() {
		defer close(frameChan)
		for scan.Scan() {
			frame := append([]byte(nil), scan.Bytes()...)
			select {
			case frameChan <- frame:
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			if b.isClosing() {
				return nil
			}
			return fmt.Errorf("serial read: %w", err)

		case frame, ok := <-frameChan:
			if !ok {
				select {
				case err := <-scanErrChan:
					if !b.isClosing() {
						return fmt.Errorf("serial read: %w", err)
					}
				default:
				}
				return nil
			}
			if b.isClosing() {
				return nil
			}
			b.publish(b.handleFrame(frame))
		}
	}
}

// handleFrame decodes one frame and returns its summary line.
func (b *Bridge[T]) handleFrame(frame []byte) string {
	b.frames.Add(1)

	payload, err := parse.CobsDecode(frame)
	if err != nil {
		b.badFrames.Add(1)
		return fmt.Sprintf("bad frame (%d bytes): %v", len(frame), err)
	}
	if err := b.handler.HandlePacket(payload); err != nil {
		b.rejected.Add(1)
		return fmt.Sprintf("rejected payload (%d bytes): %v", len(payload), err)
	}
	if len(payload) < 4 {
		return fmt.Sprintf("payload (%d bytes)", len(payload))
	}
	return fmt.Sprintf("d%d seq=%d len=%d", payload[1], uint16(payload[2])|uint16(payload[3])<<8, len(payload))
}

func (b *Bridge[T]) publish(line string) {
	b.subscriberMu.Lock()
	defer b.subscriberMu.Unlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- line:
		default:
		}
	}
}

func (b *Bridge[T]) isClosing() bool {
	b.closingMu.Lock()
	defer b.closingMu.Unlock()
	return b.closing
}

// Close closes all subscribed channels and the serial port.
func (b *Bridge[T]) Close() error {
	b.closingMu.Lock()
	b.closing = true
	b.closingMu.Unlock()

	b.subscriberMu.Lock()
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
	b.subscriberMu.Unlock()
	return b.port.Close()
}

// AttachAdminRoutes registers the serial debug pages on mux under /debug/.
func (b *Bridge[T]) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("serial", "receiver dongle frame counters", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(b.Stats()); err != nil {
			logf("failed to encode serial stats: %v", err)
		}
	})

	// Server-Sent Events stream of frame summaries.
	debug.HandleSilentFunc("serial-tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		id, c := b.Subscribe()
		defer b.Unsubscribe(id)

		w.Write([]byte(": ping\n\n"))
		flusher.Flush()

		for {
			select {
			case line, ok := <-c:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", line); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
}

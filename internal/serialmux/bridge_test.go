package serialmux

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"github.com/banshee-data/spraypaint/internal/imu"
	"github.com/banshee-data/spraypaint/internal/imu/network"
	"github.com/banshee-data/spraypaint/internal/imu/parse"
)

type recordingSink struct {
	mu  sync.Mutex
	ids []imu.DeviceID
}

func (r *recordingSink) Upsert(s imu.Sample, now float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, s.DeviceID)
}

func (r *recordingSink) snapshot() []imu.DeviceID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]imu.DeviceID(nil), r.ids...)
}

func frame(id imu.DeviceID, seq uint16) []byte {
	return parse.CobsEncode(parse.Encode(imu.Sample{
		Version:     1,
		DeviceID:    id,
		Sequence:    seq,
		Orientation: imu.IdentityQuat,
	}))
}

func newTestBridge() (*Bridge[*PipePort], *PipePort, *recordingSink) {
	port := NewPipePort()
	sink := &recordingSink{}
	b := NewBridge(port, network.NewIngestor(sink, func() float64 { return 1 }, nil))
	return b, port, sink
}

func TestSplitFrames(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		atEOF   bool
		advance int
		token   []byte
	}{
		{"complete", []byte{1, 2, 0, 3}, false, 3, []byte{1, 2}},
		{"leading delimiters", []byte{0, 0, 5, 0}, false, 4, []byte{5}},
		{"partial", []byte{1, 2}, false, 0, nil},
		{"partial at EOF", []byte{1, 2}, true, 2, nil},
		{"only delimiters", []byte{0, 0}, false, 2, nil},
		{"leading delimiters then partial", []byte{0, 0, 7, 8}, false, 2, nil},
	}
	split := splitFrames(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adv, tok, err := split(tt.data, tt.atEOF)
			require.NoError(t, err)
			assert.Equal(t, tt.advance, adv)
			assert.Equal(t, tt.token, tok)
		})
	}
}

func TestBridge_MonitorDecodesFrames(t *testing.T) {
	b, port, sink := newTestBridge()

	id, lines := b.Subscribe()
	defer b.Unsubscribe(id)

	done := make(chan error, 1)
	go func() { done <- b.Monitor(context.Background()) }()

	var stream []byte
	stream = append(stream, frame(7, 1)...)
	stream = append(stream, 0x02, 0xff, 0x00) // decodes but fails the wire codec
	stream = append(stream, 0x05, 0x01, 0x00) // truncated COBS block
	stream = append(stream, frame(9, 2)...)
	require.NoError(t, port.Feed(stream))
	require.NoError(t, port.EndOfStream())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return at EOF")
	}

	assert.Equal(t, []imu.DeviceID{7, 9}, sink.snapshot())
	assert.Equal(t, BridgeStats{Frames: 4, BadFrames: 1, Rejected: 1}, b.Stats())

	first := <-lines
	assert.Equal(t, "d7 seq=1 len=64", first)
}

func TestSplitFrames_DiscardsOverlongRun(t *testing.T) {
	var dropped []int
	split := splitFrames(func(n int) { dropped = append(dropped, n) })

	noise := bytes.Repeat([]byte{0x11}, maxFrame)
	adv, tok, err := split(noise, false)
	require.NoError(t, err)
	assert.Equal(t, maxFrame, adv)
	assert.Nil(t, tok)
	assert.Equal(t, []int{maxFrame}, dropped)

	adv, _, err = split(noise[:maxFrame-1], false)
	require.NoError(t, err)
	assert.Zero(t, adv, "short partial frame waits for more data")
	assert.Len(t, dropped, 1)
}

func TestBridge_MonitorSurvivesMissingDelimiter(t *testing.T) {
	b, port, sink := newTestBridge()

	done := make(chan error, 1)
	go func() { done <- b.Monitor(context.Background()) }()

	var stream []byte
	stream = append(stream, frame(7, 1)...)
	stream = append(stream, bytes.Repeat([]byte{0x11}, 5000)...)
	stream = append(stream, 0x00)
	stream = append(stream, frame(9, 2)...)
	require.NoError(t, port.Feed(stream))
	require.NoError(t, port.EndOfStream())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return at EOF")
	}

	assert.Equal(t, []imu.DeviceID{7, 9}, sink.snapshot())
	st := b.Stats()
	assert.GreaterOrEqual(t, st.BadFrames, uint64(1))
	assert.Equal(t, st.Frames, 2+st.BadFrames+st.Rejected)
}

func TestBridge_MonitorStopsOnCancel(t *testing.T) {
	b, _, _ := newTestBridge()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- b.Monitor(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not observe cancellation")
	}
	require.NoError(t, b.Close())
}

func TestBridge_CloseEndsMonitorCleanly(t *testing.T) {
	b, _, _ := newTestBridge()

	done := make(chan error, 1)
	go func() { done <- b.Monitor(context.Background()) }()

	_, ch := b.Subscribe()
	require.NoError(t, b.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after Close")
	}
	_, open := <-ch
	assert.False(t, open, "subscriber channel closed")
}

func TestBridge_AdminStats(t *testing.T) {
	b, _, _ := newTestBridge()
	b.handleFrame(frame(1, 1))
	b.handleFrame([]byte{0x05, 0x01})

	mux := http.NewServeMux()
	b.AttachAdminRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/debug/serial", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"frames":2,"bad_frames":1,"rejected":0}`, rec.Body.String())
}

func TestPortOptions_Normalise(t *testing.T) {
	got, err := PortOptions{}.Normalise()
	require.NoError(t, err)
	assert.Equal(t, PortOptions{BaudRate: DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "N"}, got)

	got, err = PortOptions{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: "even"}.Normalise()
	require.NoError(t, err)
	assert.Equal(t, "E", got.Parity)

	_, err = PortOptions{DataBits: 9}.Normalise()
	assert.Error(t, err)
	_, err = PortOptions{StopBits: 3}.Normalise()
	assert.Error(t, err)
	_, err = PortOptions{Parity: "mark"}.Normalise()
	assert.Error(t, err)
}

func TestPortOptions_SerialMode(t *testing.T) {
	mode, err := PortOptions{StopBits: 2, Parity: "O"}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, DefaultBaudRate, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)
	assert.Equal(t, serial.TwoStopBits, mode.StopBits)
	assert.Equal(t, serial.OddParity, mode.Parity)
}

func TestPortOptions_ParseFraming(t *testing.T) {
	tests := []struct {
		in      string
		want    PortOptions
		wantErr bool
	}{
		{in: "8N1", want: PortOptions{BaudRate: 9600, DataBits: 8, Parity: "N", StopBits: 1}},
		{in: "7e2", want: PortOptions{BaudRate: 9600, DataBits: 7, Parity: "E", StopBits: 2}},
		{in: " 5O1 ", want: PortOptions{BaudRate: 9600, DataBits: 5, Parity: "O", StopBits: 1}},
		{in: "9N1", wantErr: true},
		{in: "8X1", wantErr: true},
		{in: "8N3", wantErr: true},
		{in: "8N", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := PortOptions{BaudRate: 9600}.ParseFraming(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

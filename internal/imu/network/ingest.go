package network

import (
	"github.com/banshee-data/spraypaint/internal/imu"
	"github.com/banshee-data/spraypaint/internal/imu/parse"
)

// Upserter is the registry surface the receive path writes to.
type Upserter interface {
	Upsert(s imu.Sample, now float64)
}

// PacketHandler consumes one raw telemetry payload.
type PacketHandler interface {
	HandlePacket(payload []byte) error
}

// Ingestor decodes telemetry payloads and folds them into a registry. It is
// shared by the live listener, PCAP replay and the serial bridge.
type Ingestor struct {
	sink  Upserter
	now   func() float64
	stats PacketStatsInterface
}

// NewIngestor creates an Ingestor. now supplies the monotonic receive time in
// seconds. stats may be nil.
func NewIngestor(sink Upserter, now func() float64, stats PacketStatsInterface) *Ingestor {
	if stats == nil {
		stats = &noopStats{}
	}
	return &Ingestor{sink: sink, now: now, stats: stats}
}

// HandlePacket decodes payload and upserts it. A malformed payload is counted
// as dropped and its decode error returned; shared state is never touched.
func (in *Ingestor) HandlePacket(payload []byte) error {
	in.stats.AddPacket(len(payload))
	s, err := parse.Decode(payload)
	if err != nil {
		in.stats.AddDropped()
		return err
	}
	in.sink.Upsert(s, in.now())
	return nil
}

package network

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// ReplayPCAP feeds UDP payloads addressed to port from a capture file
// through handler, exactly as the live listener would. Both classic pcap and
// pcapng files are accepted. port 0 replays every UDP datagram. Replay runs
// as fast as the handler accepts packets; decode failures are counted by the
// handler and do not stop the replay.
func ReplayPCAP(ctx context.Context, path string, port int, handler PacketHandler, stats PacketStatsInterface) error {
	if stats == nil {
		stats = &noopStats{}
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open PCAP file %s: %w", path, err)
	}
	defer f.Close()

	source, err := openCapture(f)
	if err != nil {
		return fmt.Errorf("failed to read PCAP file %s: %w", path, err)
	}

	packetCount := 0
	replayed := 0
	startTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			logf("PCAP replay stopping due to context cancellation (processed %d packets)", packetCount)
			return ctx.Err()
		case packet, ok := <-source.Packets():
			if !ok || packet == nil {
				logf("PCAP replay complete: %d packets read, %d replayed in %v", packetCount, replayed, time.Since(startTime))
				stats.LogStats()
				return nil
			}
			packetCount++

			udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
			if !ok {
				continue
			}
			if port != 0 && udp.DstPort != layers.UDPPort(port) {
				continue
			}
			if len(udp.Payload) == 0 {
				continue
			}

			replayed++
			_ = handler.HandlePacket(udp.Payload)
		}
	}
}

func openCapture(f *os.File) (*gopacket.PacketSource, error) {
	br := bufio.NewReader(f)
	if r, err := pcapgo.NewReader(br); err == nil {
		return gopacket.NewPacketSource(r, r.LinkType()), nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	ng, err := pcapgo.NewNgReader(bufio.NewReader(f), pcapgo.DefaultNgReaderOptions)
	if err != nil {
		return nil, err
	}
	return gopacket.NewPacketSource(ng, ng.LinkType()), nil
}

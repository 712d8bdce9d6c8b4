package network

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// PCAPWriter records telemetry payloads as Ethernet/IPv4/UDP frames in a
// classic pcap stream, suitable for ReplayPCAP and for Wireshark.
type PCAPWriter struct {
	w       *pcapgo.Writer
	srcIP   net.IP
	dstIP   net.IP
	srcPort layers.UDPPort
	buf     gopacket.SerializeBuffer
}

// NewPCAPWriter writes the file header and returns a writer.
func NewPCAPWriter(out io.Writer) (*PCAPWriter, error) {
	w := pcapgo.NewWriter(out)
	if err := w.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("write pcap header: %w", err)
	}
	return &PCAPWriter{
		w:       w,
		srcIP:   net.IPv4(192, 168, 4, 2).To4(),
		dstIP:   net.IPv4(192, 168, 4, 1).To4(),
		srcPort: 49152,
		buf:     gopacket.NewSerializeBuffer(),
	}, nil
}

// WriteDatagram appends one UDP datagram carrying payload to dstPort.
func (p *PCAPWriter) WriteDatagram(ts time.Time, dstPort int, payload []byte) error {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 0x02},
		DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 0x01},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    p.srcIP,
		DstIP:    p.dstIP,
	}
	udp := &layers.UDP{
		SrcPort: p.srcPort,
		DstPort: layers.UDPPort(dstPort),
	}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		return err
	}

	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(p.buf, opts, eth, ip, udp, gopacket.Payload(payload)); err != nil {
		return fmt.Errorf("serialize datagram: %w", err)
	}
	data := p.buf.Bytes()
	ci := gopacket.CaptureInfo{Timestamp: ts, CaptureLength: len(data), Length: len(data)}
	return p.w.WritePacket(ci, data)
}

// Command imu-sim emits synthetic controller telemetry over UDP, or writes
// it to a pcap file for replay with spraypaint -pcap.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/spraypaint/internal/config"
	"github.com/banshee-data/spraypaint/internal/imu"
	"github.com/banshee-data/spraypaint/internal/imu/network"
	"github.com/banshee-data/spraypaint/internal/imu/parse"
)

var (
	target    = flag.String("target", "127.0.0.1:26761", "UDP destination (empty with -pcap-out writes the file only)")
	devices   = flag.Int("devices", 2, "Number of simulated controllers")
	rate      = flag.Float64("rate", 60, "Packets per second per controller")
	duration  = flag.Duration("duration", 0, "Stop after this long (0 runs until interrupted)")
	fireEvery = flag.Duration("fire-every", 2*time.Second, "Interval between flick gestures (0 disables)")
	colorFlag = flag.String("color", "", "Tip colour as #RRGGBB or #RRGGBBAA (empty sends no colour)")
	pcapOut   = flag.String("pcap-out", "", "Also record the datagrams to this pcap file")
)

func main() {
	flag.Parse()

	if *devices < 1 || *devices > 255 {
		log.Fatalf("-devices must be between 1 and 255")
	}
	if *rate <= 0 {
		log.Fatalf("-rate must be positive")
	}

	var color *imu.RGBA
	if *colorFlag != "" {
		c, err := config.ParseColor(*colorFlag)
		if err != nil {
			log.Fatalf("invalid -color: %v", err)
		}
		color = &c
	}

	devs := make([]*simDevice, *devices)
	for i := range devs {
		devs[i] = newSimDevice(imu.DeviceID(i+1), fireEvery.Seconds(), color)
	}

	var recorder *network.PCAPWriter
	if *pcapOut != "" {
		f, err := os.Create(*pcapOut)
		if err != nil {
			log.Fatalf("failed to create %s: %v", *pcapOut, err)
		}
		defer f.Close()
		recorder, err = network.NewPCAPWriter(f)
		if err != nil {
			log.Fatalf("%v", err)
		}
	}

	port := config.Empty().GetListenPort()

	if *target == "" {
		if recorder == nil {
			log.Fatalf("nothing to do: set -target or -pcap-out")
		}
		if *duration <= 0 {
			log.Fatalf("-duration is required when writing a file only")
		}
		frames := int(duration.Seconds() * *rate)
		n, err := writeFrames(recorder, devs, port, time.Now(), 0, *rate, frames)
		if err != nil {
			log.Fatalf("write pcap: %v", err)
		}
		log.Printf("wrote %d datagrams to %s", n, *pcapOut)
		return
	}

	addr, err := net.ResolveUDPAddr("udp", *target)
	if err != nil {
		log.Fatalf("invalid -target: %v", err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		log.Fatalf("failed to dial %s: %v", *target, err)
	}
	defer conn.Close()
	port = addr.Port

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	log.Printf("sending %d controllers at %.0fHz to %s", len(devs), *rate, addr)
	sent, err := run(ctx, conn, recorder, devs, port, *rate)
	log.Printf("sent %d datagrams", sent)
	if err != nil {
		log.Fatalf("%v", err)
	}
}

// run sends one packet per device per tick until ctx ends.
func run(ctx context.Context, conn net.Conn, recorder *network.PCAPWriter, devs []*simDevice, port int, rate float64) (int, error) {
	interval := time.Duration(float64(time.Second) / rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	buf := make([]byte, 0, parse.ColorLength)
	sent := 0
	for {
		select {
		case <-ctx.Done():
			return sent, nil
		case now := <-ticker.C:
			t := now.Sub(start).Seconds()
			for _, d := range devs {
				buf = parse.AppendEncode(buf[:0], d.next(t))
				if _, err := conn.Write(buf); err != nil {
					log.Printf("send failed: %v", err)
					continue
				}
				sent++
				if recorder != nil {
					if err := recorder.WriteDatagram(now, port, buf); err != nil {
						return sent, fmt.Errorf("write pcap: %w", err)
					}
				}
			}
		}
	}
}

// writeFrames records frames ticks of every device with synthetic
// timestamps starting at start, and returns the datagram count.
func writeFrames(w *network.PCAPWriter, devs []*simDevice, port int, start time.Time, first int, rate float64, frames int) (int, error) {
	n := 0
	for i := first; i < first+frames; i++ {
		t := float64(i) / rate
		ts := start.Add(time.Duration(t * float64(time.Second)))
		for _, d := range devs {
			if err := w.WriteDatagram(ts, port, parse.Encode(d.next(t))); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/banshee-data/spraypaint/internal/config"
	"github.com/banshee-data/spraypaint/internal/db"
	"github.com/banshee-data/spraypaint/internal/events"
	"github.com/banshee-data/spraypaint/internal/hud"
	"github.com/banshee-data/spraypaint/internal/imu/network"
	"github.com/banshee-data/spraypaint/internal/imu/registry"
	"github.com/banshee-data/spraypaint/internal/monitor"
	"github.com/banshee-data/spraypaint/internal/seats"
	"github.com/banshee-data/spraypaint/internal/serialmux"
	"github.com/banshee-data/spraypaint/internal/session"
	"github.com/banshee-data/spraypaint/internal/timeutil"
	"github.com/banshee-data/spraypaint/internal/version"
	"github.com/banshee-data/spraypaint/internal/visualiser"
)

var (
	configPath = flag.String("config", config.DefaultConfigPath, "Path to the JSON config")
	envFile    = flag.String("env", ".env", "Optional KEY=VALUE file loaded into the environment")
	debugAddr  = flag.String("debug-listen", "localhost:8081", "Debug HTTP listen address (empty disables)")
	dbPath     = flag.String("db", "", "Session journal SQLite path (empty disables unless SPRAYPAINT_DB is set)")
	serialPath = flag.String("serial", "", "Receiver dongle serial device (empty disables)")
	baudRate   = flag.Int("baud", serialmux.DefaultBaudRate, "Receiver dongle baud rate")
	serialMode = flag.String("serial-mode", "8N1", "Receiver dongle framing: data bits, parity, stop bits")
	pcapFile   = flag.String("pcap", "", "Replay telemetry from a PCAP file instead of listening on UDP")
	visAddr    = flag.String("visualiser", "localhost:50061", "gRPC event stream listen address (empty disables)")
	showHUD    = flag.Bool("hud", false, "Show the terminal HUD")
	logFile    = flag.String("log-file", "", "Write logs to this file (recommended with -hud)")
	showVer    = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()
	if *showVer {
		fmt.Println(version.String())
		return
	}

	explicitFlags := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { explicitFlags[f.Name] = true })

	if err := loadEnvFile(*envFile, explicitFlags["env"]); err != nil {
		log.Fatalf("failed to load env file: %v", err)
	}

	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("failed to open log file: %v", err)
		}
		defer f.Close()
		log.SetOutput(f)
	} else if *showHUD {
		log.SetOutput(io.Discard)
	}

	path, explicit := resolveConfigPath(*configPath, explicitFlags["config"], os.LookupEnv)
	cfg, err := loadConfig(path, explicit, os.LookupEnv)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessCfg, err := session.FromFile(cfg)
	if err != nil {
		log.Fatalf("invalid session config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := timeutil.RealClock{}
	mono := timeutil.NewMonotonic(clock)
	reg := registry.New()
	stats := network.NewPacketStats()
	ingest := network.NewIngestor(reg, mono.Seconds, stats)

	hub := events.NewHub()
	spawns := events.NewQueue(cfg.GetSpawnQueueSize())
	signals := monitor.NewSignalHistory(10)
	alloc := seats.NewAllocator(cfg.GetMaxPlayers(), seats.StaticAnchors{
		Left:  cfg.GetLeftAnchor(),
		Right: cfg.GetRightAnchor(),
	})
	mgr := session.New(sessCfg, reg, alloc,
		events.Tee(hub, events.Filter(spawns, events.Spawn)),
		session.WithSignalObserver(signals),
	)

	mux := http.NewServeMux()
	var wg sync.WaitGroup

	// telemetry source
	if *pcapFile != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := network.ReplayPCAP(ctx, *pcapFile, cfg.GetListenPort(), ingest, stats); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("pcap replay failed: %v", err)
			}
			log.Print("pcap replay finished")
		}()
	} else {
		listener := network.NewUDPListener(network.UDPListenerConfig{
			Address:     fmt.Sprintf(":%d", cfg.GetListenPort()),
			RcvBuf:      cfg.GetReceiveBufferBytes(),
			LogInterval: cfg.GetRateLogInterval(),
			Stats:       stats,
			Handler:     ingest,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := listener.Start(ctx)
			switch {
			case errors.Is(err, network.ErrBind):
				log.Printf("telemetry disabled: %v", err)
			case err != nil && !errors.Is(err, context.Canceled):
				log.Printf("UDP listener error: %v", err)
			}
			log.Print("UDP listener routine terminated")
		}()
	}

	// receiver dongle
	if *serialPath != "" {
		opts, err := serialmux.PortOptions{BaudRate: *baudRate}.ParseFraming(*serialMode)
		if err != nil {
			log.Fatalf("invalid -serial-mode: %v", err)
		}
		bridge, err := serialmux.NewRealBridge(*serialPath, opts, ingest)
		if err != nil {
			log.Printf("serial bridge disabled: %v", err)
		} else {
			defer bridge.Close()
			bridge.AttachAdminRoutes(mux)
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := bridge.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Printf("serial monitor error: %v", err)
				}
				log.Print("serial monitor routine terminated")
			}()
		}
	}

	// session journal
	if p := resolveDBPath(*dbPath, os.LookupEnv); p != "" {
		database, err := db.NewDB(p)
		if err != nil {
			log.Fatalf("failed to open journal: %v", err)
		}
		defer database.Close()
		journal := db.NewJournal(database, clock)
		if err := database.AttachAdminRoutes(mux, journal); err != nil {
			log.Printf("journal admin routes disabled: %v", err)
		}
		ch, cancel := hub.Subscribe("journal", 4096)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer cancel()
			if err := journal.Consume(ctx, ch); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("journal stopped: %v", err)
			}
		}()
	}

	// render clients
	if *visAddr != "" {
		vis := visualiser.NewServer(visualiser.Config{ListenAddr: *visAddr}, hub)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := vis.Run(ctx); err != nil {
				log.Printf("visualiser disabled: %v", err)
			}
		}()
	}

	// spawn requests without an embedded particle system are logged
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case e := <-spawns.C():
				s := e.Spawn
				log.Printf("[spawn] player=%d origin=(%.2f,%.2f,%.2f) velocity=(%.2f,%.2f,%.2f) color=%v",
					s.Player, s.Origin.X, s.Origin.Y, s.Origin.Z, s.Velocity.X, s.Velocity.Y, s.Velocity.Z, s.Color)
			}
		}
	}()

	// debug web (shares mux with the admin routes above)
	if *debugAddr != "" {
		web := monitor.NewWebServer(monitor.WebServerConfig{
			Address:         *debugAddr,
			Status:          mgr,
			Packets:         stats,
			Hub:             hub,
			Signals:         signals,
			SignalThreshold: sessCfg.SignalThreshold(),
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := web.Start(ctx, mux); err != nil {
				log.Printf("debug HTTP server error: %v", err)
			}
		}()
	}

	// tick loop
	var manualFire atomic.Bool
	wg.Add(1)
	go func() {
		defer wg.Done()
		mgr.Run(ctx, clock.NewTicker(cfg.GetTickInterval()), mono.Seconds, func() bool { return manualFire.Swap(false) })
		log.Print("tick loop terminated")
	}()

	log.Printf("%s running: udp=%d players=%d tick=%.0fHz", version.String(), cfg.GetListenPort(), cfg.GetMaxPlayers(), cfg.GetTickRateHz())

	if *showHUD {
		if err := hud.Run(ctx, mgr, func() { manualFire.Store(true) }, 100*time.Millisecond); err != nil {
			log.Printf("hud error: %v", err)
		}
		stop()
	}

	<-ctx.Done()
	wg.Wait()
	hub.Close()
	log.Print("graceful shutdown complete")
}

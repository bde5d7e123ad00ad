// Command remedy runs the controller core on a host machine: USB MIDI via
// rtmidi, the DIN link via a serial adapter, and a terminal panel in place of
// the device's TFT and LEDs.
package main

import (
	"bufio"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/remedyfw/remedy/app"
	"github.com/remedyfw/remedy/config"
	"github.com/remedyfw/remedy/display"
	"github.com/remedyfw/remedy/event"
	"github.com/remedyfw/remedy/midi"
	"github.com/remedyfw/remedy/tuner"
)

// -------------------- Logger --------------------

// logger is the package-wide structured logger. Safe to use before initLogger
// is called; defaults to slog.Default().
var logger = slog.Default()

// initLogger configures the shared slog logger and calls slog.SetDefault so
// the stdlib log package also routes through the same handler.
func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug, // include file:line in debug mode
	})
	logger = slog.New(h)
	slog.SetDefault(logger) // stdlib log.* now routes through slog
}

// -------------------- Tunables --------------------

const (
	TICK_MS       = 1
	DISPLAY_MS    = 33 // ~30 fps
	GC_INTERVAL_S = 5
)

// Ports matching any of these patterns are never auto-connected
// (virtual/system ports).
var EXCLUDED_PORT_PATTERNS = []string{"Midi Through", "Through Port", "Dummy"}

// -------------------- Host input stub --------------------

// readLines feeds console input to the control loop. On the device the
// footswitch matrix produces these events; on a host, typed lines stand in.
func readLines(lines chan<- string) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		if s := strings.TrimSpace(sc.Text()); s != "" {
			lines <- s
		}
	}
}

// emitLine translates one console line into hardware events:
//
//	<button id>     press + release of that footswitch ("A", "up", ...)
//	+N / -N         encoder delta
//	<pedal id>=N    expression pedal position, 0-127
func emitLine(events *event.Dispatcher, line string) {
	switch {
	case strings.HasPrefix(line, "+") || strings.HasPrefix(line, "-"):
		n, err := strconv.Atoi(line)
		if err != nil {
			logger.Warn("bad encoder input", "line", line)
			return
		}
		events.Emit(event.NewEncoder(n))
	case strings.Contains(line, "="):
		pedal, raw, _ := strings.Cut(line, "=")
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > 127 {
			logger.Warn("bad pedal input", "line", line)
			return
		}
		events.Emit(event.NewExpression(pedal, uint8(n)))
	default:
		events.Emit(event.NewButton(line, event.ButtonPress))
		events.Emit(event.NewButton(line, event.ButtonRelease))
	}
}

// -------------------- Main --------------------

func main() {
	debug := flag.Bool("debug", false, "enable debug logging (adds source location)")
	configDir := flag.String("config", "config", "configuration directory")
	serialDev := flag.String("serial", "", "DIN serial port device (empty disables DIN)")
	baud := flag.Int("baud", midi.DINBaudRate, "DIN serial baud rate")
	profile := flag.String("profile", "", "override startup profile")
	page := flag.String("page", "", "override startup page")
	preferred := flag.String("port", "", "preferred USB MIDI port name pattern")
	flag.Parse()

	initLogger(*debug)
	logger.Info("remedy starting",
		"config", *configDir,
		"serial", *serialDev,
		"baud", *baud,
		"debug", *debug,
	)

	// Configuration. A missing directory still yields a usable default
	// setup; missing startup pieces are logged and tolerated.
	cfg, err := config.Load(*configDir)
	if err != nil {
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}
	startupProfile := cfg.Global.Startup.Profile
	if *profile != "" {
		startupProfile = *profile
	}
	if err := cfg.LoadProfile(startupProfile); err != nil {
		logger.Warn("profile not loaded", "profile", startupProfile, "err", err)
	}
	startupPage := cfg.Global.Startup.Page
	if *page != "" {
		startupPage = *page
	}
	if err := cfg.LoadPage(startupPage); err != nil {
		logger.Warn("page not loaded", "page", startupPage, "err", err)
	}
	if name := cfg.Global.Startup.Setlist; name != "" {
		if err := cfg.LoadSetlist(name); err != nil {
			logger.Warn("setlist not loaded", "setlist", name, "err", err)
		}
	}

	// MIDI transport.
	var preferredPorts []string
	if *preferred != "" {
		preferredPorts = []string{*preferred}
	}
	ids := midi.DefaultIDs()
	if p := cfg.Profile; p != nil && (p.Manufacturer != 0 || p.Device != 0 || p.Model != 0) {
		ids = midi.ProtocolIDs{Manufacturer: p.Manufacturer, Device: p.Device, Model: p.Model}
	}
	m := midi.New(midi.Config{
		USBEnabled:     cfg.Global.MIDI.USBEnabled,
		DINEnabled:     cfg.Global.MIDI.DINEnabled && *serialDev != "",
		DINDevice:      *serialDev,
		DINBaud:        *baud,
		PreferredPorts: preferredPorts,
		ExcludedPorts:  EXCLUDED_PORT_PATTERNS,
		IDs:            ids,
	})
	if err := m.Open(); err != nil {
		logger.Error("midi init failed", "err", err)
		os.Exit(1)
	}
	defer m.Close()

	// Display, tuner, dispatcher, coordinator.
	term := display.NewTerminal(os.Stdout)
	tun := tuner.New(term, cfg.Global.Tuner.FlatNames)
	events := event.NewDispatcher()
	coord := app.NewCoordinator(cfg, m, tun, term, term)
	coord.Bind(events)

	// Incoming MIDI is queued and drained by the loop, never dispatched
	// from the receive callback.
	m.SetMessageCallback(func(msg midi.Message) {
		events.Queue(event.NewMIDI(msg))
	})

	coord.Start()
	logger.Info("running")

	lines := make(chan string, 8)
	go readLines(lines)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(TICK_MS * time.Millisecond)
	defer ticker.Stop()

	lastDisplay := time.Now()
	lastGC := time.Now()

	for {
		select {
		case <-sig:
			logger.Info("shutdown requested")
			return
		case <-ticker.C:
		}

		// One cooperative iteration: poll, dispatch, render.
	input:
		for {
			select {
			case line := <-lines:
				emitLine(events, line)
			default:
				break input
			}
		}
		m.Tick()
		m.Receive()
		events.ProcessQueue()

		now := time.Now()
		if now.Sub(lastDisplay) > DISPLAY_MS*time.Millisecond {
			tun.Update()
			term.Render()
			lastDisplay = now
		}
		if now.Sub(lastGC) > GC_INTERVAL_S*time.Second {
			runtime.GC()
			lastGC = now
		}
	}
}

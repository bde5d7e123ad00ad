package midi

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

const usbRescanInterval = 1000 * time.Millisecond

// usbChannel maintains the USB MIDI connection. It handles hot-plug (host
// appears) and hot-unplug (host disappears) transparently: Tick scans for
// ports, auto-connects to a preferred one, and detects disappearances.
//
// Decoded messages are handed to deliver, which must be safe to call from the
// listener goroutine.
type usbChannel struct {
	mu           sync.Mutex
	drv          *rtmididrv.Driver
	inPort       drivers.In
	outPort      drivers.Out
	send         func(gomidi.Message) error
	stopFn       func()
	connected    bool
	selectedName string
	lastRescanAt time.Time

	preferred []string
	excluded  []string
	deliver   func(Message)
}

func newUSBChannel(preferred, excluded []string, deliver func(Message)) (*usbChannel, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}
	return &usbChannel{
		drv:       drv,
		preferred: preferred,
		excluded:  excluded,
		deliver:   deliver,
	}, nil
}

// Close shuts down the active connection and the rtmidi driver.
func (u *usbChannel) Close() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.closeConn()
	u.drv.Close()
}

// Send transmits an encoded message if a port is connected. Write errors are
// logged, not propagated: USB MIDI here is fire-and-forget.
func (u *usbChannel) Send(msg gomidi.Message) {
	u.mu.Lock()
	send := u.send
	u.mu.Unlock()
	if send == nil {
		return
	}
	if err := send(msg); err != nil {
		slog.Error("midi: usb send failed", "err", err)
	}
}

// Tick should be called on a regular interval from the main loop. Rescans are
// internally throttled.
func (u *usbChannel) Tick() {
	u.mu.Lock()
	defer u.mu.Unlock()

	now := time.Now()
	if !u.lastRescanAt.IsZero() && now.Sub(u.lastRescanAt) < usbRescanInterval {
		return
	}
	u.lastRescanAt = now

	inputs := u.listInputs()

	if u.connected {
		// Verify the selected port is still present.
		for _, n := range inputs {
			if n == u.selectedName {
				return
			}
		}
		slog.Warn("midi: usb port disappeared", "port", u.selectedName)
		u.closeConn()
		u.lastRescanAt = time.Time{} // rescan immediately next tick
		return
	}

	if len(inputs) == 0 {
		return
	}
	cand, ok := u.pickPreferred(inputs)
	if !ok {
		return
	}
	if err := u.openByName(cand); err != nil {
		slog.Error("midi: usb connect failed", "port", cand, "err", err)
	}
}

// -------------------- internal --------------------

func (u *usbChannel) listInputs() []string {
	ins, err := u.drv.Ins()
	if err != nil {
		slog.Error("midi: list inputs failed", "err", err)
		return nil
	}
	var names []string
	for _, in := range ins {
		name := in.String()
		excluded := false
		for _, pat := range u.excluded {
			if containsCI(name, pat) {
				excluded = true
				break
			}
		}
		if excluded {
			slog.Debug("midi: usb input excluded", "port", name)
		} else {
			names = append(names, name)
		}
	}
	slog.Debug("midi: usb inputs found", "count", len(names), "ports", strings.Join(names, ", "))
	return names
}

func (u *usbChannel) pickPreferred(inputs []string) (string, bool) {
	for _, pat := range u.preferred {
		for _, name := range inputs {
			if containsCI(name, pat) {
				return name, true
			}
		}
	}
	if len(inputs) == 1 {
		return inputs[0], true
	}
	return "", false
}

func (u *usbChannel) closeConn() {
	if u.stopFn != nil {
		u.stopFn()
		u.stopFn = nil
	}
	if u.inPort != nil {
		_ = u.inPort.Close()
		u.inPort = nil
	}
	if u.outPort != nil {
		_ = u.outPort.Close()
		u.outPort = nil
	}
	u.send = nil
	u.connected = false
	u.selectedName = ""
}

func (u *usbChannel) openByName(name string) error {
	ins, err := u.drv.Ins()
	if err != nil {
		return err
	}
	var foundIn drivers.In
	for _, in := range ins {
		if in.String() == name {
			foundIn = in
			break
		}
	}
	if foundIn == nil {
		return fmt.Errorf("input %q not found", name)
	}
	if err := foundIn.Open(); err != nil {
		return fmt.Errorf("open %q: %w", name, err)
	}

	stop, err := gomidi.ListenTo(foundIn, func(msg gomidi.Message, _ int32) {
		if m, ok := Decode(msg); ok {
			u.deliver(m)
		} else {
			slog.Debug("midi: usb unhandled message", "msg", msg.String())
		}
	}, gomidi.UseSysEx(), gomidi.HandleError(func(listenErr error) {
		slog.Warn("midi: usb listener error", "port", name, "err", listenErr)
		// Must not call closeConn from within the listener goroutine, so
		// dispatch to a new goroutine and re-acquire the mutex.
		go func() {
			u.mu.Lock()
			defer u.mu.Unlock()
			if u.connected && u.selectedName == name {
				u.closeConn()
				u.lastRescanAt = time.Time{} // trigger immediate rescan
			}
		}()
	}))
	if err != nil {
		_ = foundIn.Close()
		return fmt.Errorf("listen %q: %w", name, err)
	}

	u.inPort = foundIn
	u.stopFn = stop
	u.connected = true
	u.selectedName = name

	// Pair the output port of the same device; input-only hosts still work.
	u.openOut(name)

	slog.Info("midi: usb connected", "port", name)
	return nil
}

func (u *usbChannel) openOut(name string) {
	outs, err := u.drv.Outs()
	if err != nil {
		slog.Error("midi: list outputs failed", "err", err)
		return
	}
	for _, out := range outs {
		if out.String() != name {
			continue
		}
		if err := out.Open(); err != nil {
			slog.Warn("midi: usb output open failed", "port", name, "err", err)
			return
		}
		send, err := gomidi.SendTo(out)
		if err != nil {
			slog.Warn("midi: usb output unusable", "port", name, "err", err)
			_ = out.Close()
			return
		}
		u.outPort = out
		u.send = send
		return
	}
	slog.Debug("midi: no matching usb output", "port", name)
}

// -------------------- utility --------------------

func containsCI(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

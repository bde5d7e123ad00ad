package midi

import (
	"fmt"
	"log/slog"

	"go.bug.st/serial"
)

// DINBaudRate is the MIDI 1.0 DIN wire speed.
const DINBaudRate = 31250

// dinChannel moves raw MIDI bytes over the 5-pin DIN serial link. Incoming
// bytes run through the stream parser; decoded messages are handed to
// deliver from the reader goroutine.
type dinChannel struct {
	port    serial.Port
	deliver func(Message)
	done    chan struct{}
}

func openDIN(device string, baud int, deliver func(Message)) (*dinChannel, error) {
	mode := &serial.Mode{BaudRate: baud}
	p, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("serial open %q: %w", device, err)
	}
	slog.Info("midi: din port opened", "device", device, "baud", baud)

	d := &dinChannel{
		port:    p,
		deliver: deliver,
		done:    make(chan struct{}),
	}
	go d.readLoop()
	return d, nil
}

// Send writes an encoded message to the DIN link. Write errors are logged,
// not propagated.
func (d *dinChannel) Send(data []byte) {
	if _, err := d.port.Write(data); err != nil {
		slog.Error("midi: din write failed", "err", err)
	}
}

// Close stops the reader and closes the port.
func (d *dinChannel) Close() {
	close(d.done)
	_ = d.port.Close()
}

func (d *dinChannel) readLoop() {
	var p parser
	buf := make([]byte, 64)
	for {
		select {
		case <-d.done:
			return
		default:
		}
		n, err := d.port.Read(buf)
		if err != nil {
			select {
			case <-d.done: // closed by us, not an error
			default:
				slog.Warn("midi: din read failed", "err", err)
			}
			return
		}
		for _, b := range buf[:n] {
			if m, ok := p.Feed(b); ok {
				d.deliver(m)
			}
		}
	}
}

package midi

import (
	"log/slog"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// rxQueueLen bounds the receive queue. When the control loop falls behind,
// newest messages are dropped rather than growing the buffer.
const rxQueueLen = 128

// Config selects which channels are active and how the USB port is chosen.
type Config struct {
	USBEnabled bool
	DINEnabled bool

	DINDevice string
	DINBaud   int

	// Port name patterns for USB auto-connect.
	PreferredPorts []string
	ExcludedPorts  []string

	IDs ProtocolIDs
}

// Interface is the uniform transport over both channels. Receive drains the
// queue of decoded messages and hands each to the registered callback; it
// never blocks waiting for data. Send primitives encode once and transmit on
// every enabled, connected channel.
type Interface struct {
	cfg Config
	usb *usbChannel
	din *dinChannel

	queue     chan Message
	onMessage func(Message)
}

func New(cfg Config) *Interface {
	if cfg.DINBaud == 0 {
		cfg.DINBaud = DINBaudRate
	}
	if cfg.IDs == (ProtocolIDs{}) {
		cfg.IDs = DefaultIDs()
	}
	return &Interface{
		cfg:   cfg,
		queue: make(chan Message, rxQueueLen),
	}
}

// Open brings up the enabled channels. The USB channel connects lazily on
// Tick; a missing DIN device disables that channel rather than failing the
// whole interface.
func (m *Interface) Open() error {
	if m.cfg.USBEnabled {
		usb, err := newUSBChannel(m.cfg.PreferredPorts, m.cfg.ExcludedPorts, m.enqueue)
		if err != nil {
			return err
		}
		m.usb = usb
	}
	if m.cfg.DINEnabled && m.cfg.DINDevice != "" {
		din, err := openDIN(m.cfg.DINDevice, m.cfg.DINBaud, m.enqueue)
		if err != nil {
			slog.Warn("midi: din unavailable", "device", m.cfg.DINDevice, "err", err)
		} else {
			m.din = din
		}
	}
	return nil
}

func (m *Interface) Close() {
	if m.usb != nil {
		m.usb.Close()
	}
	if m.din != nil {
		m.din.Close()
	}
}

// SetMessageCallback registers the single receive callback.
func (m *Interface) SetMessageCallback(fn func(Message)) {
	m.onMessage = fn
}

// SetProtocolIDs swaps the SysEx protocol ids, typically after a profile
// load.
func (m *Interface) SetProtocolIDs(ids ProtocolIDs) {
	m.cfg.IDs = ids
}

// ProtocolIDs returns the active SysEx protocol ids.
func (m *Interface) ProtocolIDs() ProtocolIDs {
	return m.cfg.IDs
}

// Tick drives USB hot-plug scanning. Call once per loop iteration.
func (m *Interface) Tick() {
	if m.usb != nil {
		m.usb.Tick()
	}
}

// Receive drains whatever is buffered and dispatches each message to the
// callback. It returns immediately when the queue is empty.
func (m *Interface) Receive() {
	for {
		select {
		case msg := <-m.queue:
			if m.onMessage != nil {
				m.onMessage(msg)
			}
		default:
			return
		}
	}
}

// enqueue is called from channel goroutines. A full queue drops the message.
func (m *Interface) enqueue(msg Message) {
	select {
	case m.queue <- msg:
	default:
		slog.Debug("midi: rx queue full, message dropped", "msg", msg.String())
	}
}

// -------------------- send primitives --------------------

func (m *Interface) SendCC(channel, cc, value uint8) {
	m.sendBoth(gomidi.ControlChange(channel, cc, value))
}

func (m *Interface) SendPC(channel, program uint8) {
	m.sendBoth(gomidi.ProgramChange(channel, program))
}

func (m *Interface) SendNote(channel, note, velocity uint8, on bool) {
	if on {
		m.sendBoth(gomidi.NoteOn(channel, note, velocity))
	} else {
		m.sendBoth(gomidi.NoteOff(channel, note))
	}
}

// SendSysExParam pushes data to a device register with a DT1 set.
func (m *Interface) SendSysExParam(addr Address, data []byte) {
	m.sendBoth(EncodeDataSet(m.cfg.IDs, addr, data))
}

// QuerySysExParam asks for size bytes at addr with an RQ1. The answer comes
// back asynchronously as a DT1 through the receive path.
func (m *Interface) QuerySysExParam(addr Address, size int) {
	m.sendBoth(EncodeDataRequest(m.cfg.IDs, addr, size))
}

func (m *Interface) sendBoth(msg gomidi.Message) {
	if m.usb != nil {
		m.usb.Send(msg)
	}
	if m.din != nil {
		m.din.Send(msg)
	}
}

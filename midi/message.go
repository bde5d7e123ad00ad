// Package midi is the transport codec for the controller: it moves MIDI
// messages over a USB port and a 5-pin DIN serial link, and speaks the
// DT1/RQ1 SysEx parameter sub-protocol of the target device.
package midi

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// Kind discriminates the closed set of MIDI message variants the controller
// cares about. Anything else is dropped at decode time.
type Kind int

const (
	KindUnknown Kind = iota
	KindControlChange
	KindProgramChange
	KindNoteOn
	KindNoteOff
	KindPitchBend
	KindSysEx
)

func (k Kind) String() string {
	switch k {
	case KindControlChange:
		return "cc"
	case KindProgramChange:
		return "pc"
	case KindNoteOn:
		return "note_on"
	case KindNoteOff:
		return "note_off"
	case KindPitchBend:
		return "pitch_bend"
	case KindSysEx:
		return "sysex"
	}
	return "unknown"
}

// Message is the decoded form shared by both channels. Only the fields for
// the active Kind are meaningful.
type Message struct {
	Kind    Kind
	Channel uint8

	Controller uint8 // cc
	Value      uint8 // cc

	Program uint8 // pc

	Note     uint8 // note_on / note_off
	Velocity uint8 // note_on

	Bend uint16 // pitch_bend, 14-bit absolute, 8192 = center

	SysEx []byte // sysex payload without the F0/F7 delimiters
}

func (m Message) String() string {
	switch m.Kind {
	case KindControlChange:
		return fmt.Sprintf("cc ch=%d cc=%d val=%d", m.Channel, m.Controller, m.Value)
	case KindProgramChange:
		return fmt.Sprintf("pc ch=%d prog=%d", m.Channel, m.Program)
	case KindNoteOn:
		return fmt.Sprintf("note_on ch=%d note=%d vel=%d", m.Channel, m.Note, m.Velocity)
	case KindNoteOff:
		return fmt.Sprintf("note_off ch=%d note=%d", m.Channel, m.Note)
	case KindPitchBend:
		return fmt.Sprintf("pitch_bend ch=%d bend=%d", m.Channel, m.Bend)
	case KindSysEx:
		return fmt.Sprintf("sysex len=%d", len(m.SysEx))
	}
	return "unknown"
}

// Decode converts a gomidi message into the local union. It reports false for
// message types outside the controller's vocabulary.
func Decode(msg gomidi.Message) (Message, bool) {
	var (
		ch, a, b uint8
		rel      int16
		abs      uint16
		bt       []byte
	)
	switch {
	case msg.GetNoteStart(&ch, &a, &b):
		return Message{Kind: KindNoteOn, Channel: ch, Note: a, Velocity: b}, true
	case msg.GetNoteEnd(&ch, &a):
		return Message{Kind: KindNoteOff, Channel: ch, Note: a}, true
	case msg.GetControlChange(&ch, &a, &b):
		return Message{Kind: KindControlChange, Channel: ch, Controller: a, Value: b}, true
	case msg.GetProgramChange(&ch, &a):
		return Message{Kind: KindProgramChange, Channel: ch, Program: a}, true
	case msg.GetPitchBend(&ch, &rel, &abs):
		return Message{Kind: KindPitchBend, Channel: ch, Bend: abs}, true
	case msg.GetSysEx(&bt):
		return Message{Kind: KindSysEx, SysEx: bt}, true
	}
	return Message{}, false
}

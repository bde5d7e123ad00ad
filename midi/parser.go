package midi

// maxSysExLen bounds SysEx accumulation so a stuck sender cannot grow the
// buffer without limit. Longer messages are discarded wholesale.
const maxSysExLen = 512

// parser is a byte-stream decoder for the DIN link. It understands running
// status, skips realtime bytes mid-message, and silently abandons truncated
// or oversized SysEx frames.
type parser struct {
	status byte
	data   [2]byte
	have   int
	need   int

	inSysEx   bool
	sysexDrop bool
	sysex     []byte
}

// Feed consumes one wire byte and reports a decoded message when one
// completes.
func (p *parser) Feed(b byte) (Message, bool) {
	if b >= 0xF8 {
		// Realtime bytes may appear anywhere, including inside SysEx.
		return Message{}, false
	}

	if b == sysExStart {
		p.inSysEx = true
		p.sysexDrop = false
		p.sysex = p.sysex[:0]
		p.status = 0
		return Message{}, false
	}

	if p.inSysEx {
		if b == sysExEnd {
			p.inSysEx = false
			if p.sysexDrop {
				return Message{}, false
			}
			payload := make([]byte, len(p.sysex))
			copy(payload, p.sysex)
			return Message{Kind: KindSysEx, SysEx: payload}, true
		}
		if b >= 0x80 {
			// New status without EOX: the frame was truncated. Drop it and
			// reprocess the byte as a fresh status.
			p.inSysEx = false
		} else {
			if len(p.sysex) >= maxSysExLen {
				p.sysexDrop = true
				return Message{}, false
			}
			p.sysex = append(p.sysex, b)
			return Message{}, false
		}
	}

	if b >= 0x80 {
		p.status = b
		p.have = 0
		p.need = dataLen(b)
		if p.need == 0 {
			p.status = 0 // type outside the controller's vocabulary
		}
		return Message{}, false
	}

	if p.status == 0 {
		return Message{}, false // stray data byte
	}

	p.data[p.have] = b
	p.have++
	if p.have < p.need {
		return Message{}, false
	}
	p.have = 0 // running status: keep p.status armed
	return p.assemble(), true
}

// dataLen returns the data-byte count for a status byte, or 0 for types the
// controller does not decode.
func dataLen(status byte) int {
	switch status & 0xF0 {
	case 0x80, 0x90, 0xB0, 0xE0:
		return 2
	case 0xC0:
		return 1
	}
	return 0
}

func (p *parser) assemble() Message {
	ch := p.status & 0x0F
	switch p.status & 0xF0 {
	case 0x80:
		return Message{Kind: KindNoteOff, Channel: ch, Note: p.data[0]}
	case 0x90:
		if p.data[1] == 0 {
			return Message{Kind: KindNoteOff, Channel: ch, Note: p.data[0]}
		}
		return Message{Kind: KindNoteOn, Channel: ch, Note: p.data[0], Velocity: p.data[1]}
	case 0xB0:
		return Message{Kind: KindControlChange, Channel: ch, Controller: p.data[0], Value: p.data[1]}
	case 0xC0:
		return Message{Kind: KindProgramChange, Channel: ch, Program: p.data[0]}
	case 0xE0:
		return Message{Kind: KindPitchBend, Channel: ch, Bend: uint16(p.data[0]) | uint16(p.data[1])<<7}
	}
	return Message{}
}

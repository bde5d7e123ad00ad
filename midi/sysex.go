package midi

const (
	sysExStart = 0xF0
	sysExEnd   = 0xF7

	cmdRQ1 = 0x11 // data request
	cmdDT1 = 0x12 // data set
)

// Defaults used when the active profile does not override the protocol ids.
const (
	DefaultManufacturerID = 0x41
	DefaultDeviceID       = 0x10
	DefaultModelID        = 0x00
)

// Address is a device register address as it appears on the wire.
type Address [4]byte

// ProtocolIDs identifies the device the SysEx sub-protocol talks to.
type ProtocolIDs struct {
	Manufacturer byte
	Device       byte
	Model        byte
}

// DefaultIDs returns the protocol ids used when no profile is loaded.
func DefaultIDs() ProtocolIDs {
	return ProtocolIDs{
		Manufacturer: DefaultManufacturerID,
		Device:       DefaultDeviceID,
		Model:        DefaultModelID,
	}
}

// checksum is the Roland sum-to-zero checksum over address + data. The 7-bit
// mask keeps an aligned payload sum from emitting 0x80, which is not a valid
// SysEx data byte.
func checksum(body []byte) byte {
	sum := 0
	for _, b := range body {
		sum += int(b)
	}
	return byte(128-(sum%128)) & 0x7F
}

// EncodeDataSet builds a complete DT1 message, F0 through F7 inclusive.
func EncodeDataSet(ids ProtocolIDs, addr Address, data []byte) []byte {
	body := make([]byte, 0, len(addr)+len(data))
	body = append(body, addr[:]...)
	body = append(body, data...)

	msg := make([]byte, 0, len(body)+7)
	msg = append(msg, sysExStart, ids.Manufacturer, ids.Device, ids.Model, cmdDT1)
	msg = append(msg, body...)
	msg = append(msg, checksum(body), sysExEnd)
	return msg
}

// EncodeDataRequest builds a complete RQ1 message asking for size bytes at
// addr. The device answers asynchronously with a DT1.
func EncodeDataRequest(ids ProtocolIDs, addr Address, size int) []byte {
	body := make([]byte, 0, len(addr)+1)
	body = append(body, addr[:]...)
	body = append(body, byte(size&0x7F))

	msg := make([]byte, 0, len(body)+7)
	msg = append(msg, sysExStart, ids.Manufacturer, ids.Device, ids.Model, cmdRQ1)
	msg = append(msg, body...)
	msg = append(msg, checksum(body), sysExEnd)
	return msg
}

// ParseDataSet decodes an incoming DT1 payload. raw is the SysEx body without
// the F0/F7 delimiters, as delivered by the receive path. Anything that does
// not validate (wrong ids, wrong op, bad checksum, truncation) reports
// ok=false; the caller drops it without raising.
func ParseDataSet(ids ProtocolIDs, raw []byte) (addr Address, data []byte, ok bool) {
	// [mfr][dev][model][cmd][addr0..3][data...][cks]
	if len(raw) < 4+len(addr)+1+1 {
		return addr, nil, false
	}
	if raw[0] != ids.Manufacturer || raw[1] != ids.Device || raw[2] != ids.Model {
		return addr, nil, false
	}
	if raw[3] != cmdDT1 {
		return addr, nil, false
	}
	body := raw[4 : len(raw)-1]
	if checksum(body) != raw[len(raw)-1] {
		return addr, nil, false
	}
	copy(addr[:], body[:len(addr)])
	return addr, body[len(addr):], true
}

package app

import (
	"math"
	"strconv"
	"strings"

	"github.com/remedyfw/remedy/config"
	"github.com/remedyfw/remedy/midi"
)

// Fallback CC numbers when a midi_cc bind carries no explicit number.
const (
	EncoderFallbackCC    = 7 // volume
	ExpressionFallbackCC = 1 // modulation
)

// SendOp is the single send operation a binding resolves to.
type SendOp struct {
	SysEx bool

	// CC form
	Channel uint8
	CC      uint8
	Value   uint8

	// SysEx form
	Address midi.Address
	Data    []byte
}

// resolveBinding interprets a bind string against an absolute control value
// in [0,127]. Two forms:
//
//	midi_cc / midi_cc:<number>  direct linear passthrough
//	sysex:<param_name>          rescale into the named parameter's range
//
// A missing parameter or unknown form resolves to nothing; the resolver is a
// pure function of configuration and input.
func resolveBinding(cfg *config.Config, bind string, value uint8, fallbackCC uint8) (SendOp, bool) {
	switch {
	case strings.HasPrefix(bind, "sysex:"):
		param, ok := cfg.SysexParam(strings.TrimPrefix(bind, "sysex:"))
		if !ok {
			return SendOp{}, false
		}
		addr, ok := param.Addr()
		if !ok {
			return SendOp{}, false
		}
		scaled := param.Min + int(math.Round(float64(value)/127*float64(param.Max-param.Min)))
		return SendOp{SysEx: true, Address: addr, Data: []byte{byte(scaled & 0x7F)}}, true

	case bind == "midi_cc" || strings.HasPrefix(bind, "midi_cc:"):
		cc := fallbackCC
		if rest, ok := strings.CutPrefix(bind, "midi_cc:"); ok {
			n, err := strconv.Atoi(rest)
			if err != nil || n < 0 || n > 127 {
				return SendOp{}, false
			}
			cc = uint8(n)
		}
		return SendOp{Channel: cfg.Channel(), CC: cc, Value: value}, true
	}
	return SendOp{}, false
}

// clamp7 keeps an accumulated encoder value inside the CC range. Monotonic
// clamping, never wrap-around.
func clamp7(v int) int {
	if v < 0 {
		return 0
	}
	if v > 127 {
		return 127
	}
	return v
}

package app

import (
	"log/slog"

	"github.com/remedyfw/remedy/config"
)

// ActionKind is the closed set of things a control can do. Behavior is
// configuration data interpreted by these fixed kinds, not code.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionCC
	ActionPC
	ActionNote
	ActionSysExParam
	ActionPageChange
	ActionTunerToggle
	ActionSequence
)

// ToggleToken is the value literal that ties a CC action to toggle state.
const ToggleToken = "toggle"

// Action is one parsed descriptor. Only the fields for the active Kind are
// meaningful.
type Action struct {
	Kind ActionKind

	Channel *uint8 // nil means the global default channel

	CC     uint8
	Value  int
	Toggle bool // value was the "toggle" literal

	Program uint8

	Note     uint8
	Velocity uint8

	Param string // sysex_param name

	Page      string
	Direction string // "next" / "prev"

	Sub []Action // sequence
}

// ParseAction maps a raw configuration fragment onto an Action. Unknown or
// malformed descriptors become the no-op variant; configuration can never
// crash the control loop.
func ParseAction(frag config.ActionFragment) Action {
	if frag == nil {
		return Action{}
	}
	kind, _ := frag["type"].(string)
	switch kind {
	case "midi_cc":
		a := Action{Kind: ActionCC, CC: fragU7(frag, "cc", 0), Channel: fragChannel(frag)}
		if s, ok := frag["value"].(string); ok && s == ToggleToken {
			a.Toggle = true
		} else {
			a.Value = fragInt(frag, "value", 127)
		}
		return a
	case "midi_pc":
		return Action{Kind: ActionPC, Program: fragU7(frag, "program", 0), Channel: fragChannel(frag)}
	case "note":
		return Action{
			Kind:     ActionNote,
			Note:     fragU7(frag, "note", 60),
			Velocity: fragU7(frag, "velocity", 127),
			Channel:  fragChannel(frag),
		}
	case "sysex_param":
		name, _ := frag["param"].(string)
		if name == "" {
			return Action{}
		}
		return Action{Kind: ActionSysExParam, Param: name, Value: fragInt(frag, "value", 0)}
	case "page_change":
		page, _ := frag["page"].(string)
		dir, _ := frag["direction"].(string)
		return Action{Kind: ActionPageChange, Page: page, Direction: dir}
	case "tuner_toggle":
		return Action{Kind: ActionTunerToggle}
	case "sequence":
		raw, _ := frag["actions"].([]any)
		sub := make([]Action, 0, len(raw))
		for _, item := range raw {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			sub = append(sub, ParseAction(config.ActionFragment(m)))
		}
		return Action{Kind: ActionSequence, Sub: sub}
	}
	if kind != "" {
		slog.Debug("action: unknown kind", "kind", kind)
	}
	return Action{}
}

// -------------------- fragment helpers --------------------

// fragInt reads a numeric field. JSON numbers arrive as float64; hand-built
// fragments may carry int.
func fragInt(frag config.ActionFragment, key string, def int) int {
	switch v := frag[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

func fragU7(frag config.ActionFragment, key string, def uint8) uint8 {
	n := fragInt(frag, key, int(def))
	if n < 0 {
		return 0
	}
	if n > 127 {
		return 127
	}
	return uint8(n)
}

func fragChannel(frag config.ActionFragment) *uint8 {
	if _, ok := frag["channel"]; !ok {
		return nil
	}
	ch := fragU7(frag, "channel", 0)
	if ch > 15 {
		ch = 15
	}
	return &ch
}

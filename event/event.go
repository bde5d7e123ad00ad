// Package event carries hardware and MIDI signals to their handlers. Events
// form a closed union over the controller's input sources; the dispatcher
// supports both immediate and deferred delivery.
package event

import "github.com/remedyfw/remedy/midi"

// Kind discriminates the event variants.
type Kind int

const (
	KindButton Kind = iota
	KindEncoder
	KindExpression
	KindMIDI
)

func (k Kind) String() string {
	switch k {
	case KindButton:
		return "button"
	case KindEncoder:
		return "encoder"
	case KindExpression:
		return "expression"
	case KindMIDI:
		return "midi"
	}
	return "unknown"
}

// ButtonAction is the gesture reported by the hardware front end.
type ButtonAction string

const (
	ButtonPress     ButtonAction = "press"
	ButtonRelease   ButtonAction = "release"
	ButtonLongPress ButtonAction = "long_press"
)

// Event is the tagged union delivered to handlers. Handled is set once a
// handler consumes it; unhandled events are dropped at the end of the cycle.
type Event struct {
	Kind    Kind
	Handled bool

	// KindButton
	ButtonID     string
	ButtonAction ButtonAction

	// KindEncoder
	Delta int

	// KindExpression
	PedalID    string
	PedalValue uint8

	// KindMIDI
	Midi midi.Message
}

func NewButton(id string, action ButtonAction) *Event {
	return &Event{Kind: KindButton, ButtonID: id, ButtonAction: action}
}

func NewEncoder(delta int) *Event {
	return &Event{Kind: KindEncoder, Delta: delta}
}

func NewExpression(pedal string, value uint8) *Event {
	return &Event{Kind: KindExpression, PedalID: pedal, PedalValue: value}
}

func NewMIDI(msg midi.Message) *Event {
	return &Event{Kind: KindMIDI, Midi: msg}
}

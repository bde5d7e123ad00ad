// Package tuner tracks the pitch/note display state driven by incoming Note
// and PitchBend messages while tuner mode is active.
package tuner

import (
	"log/slog"
	"math"
	"strconv"

	"github.com/remedyfw/remedy/midi"
)

// Placeholder is shown when no note is sounding.
const Placeholder = "----"

// Cents bounds match the width of the on-screen needle.
const (
	MinCents = -29
	MaxCents = 29
)

// Note spellings. The default mixes sharps and flats the way the device
// labels them; FlatNames in the global config selects the all-flat table.
var (
	defaultNames = [12]string{"C", "C#", "D", "Eb", "E", "F", "F#", "G", "G#", "A", "Bb", "B"}
	flatNames    = [12]string{"C", "Db", "D", "Eb", "E", "F", "Gb", "G", "Ab", "A", "Bb", "B"}
)

// Screen is the display collaborator. AcquireTuner loads the tuner's display
// resources (large font, needle) and may fail under memory pressure.
type Screen interface {
	AcquireTuner() error
	ShowTuner(note string, cents int)
}

// State is the externally visible tuner state. NoteName and Cents freeze the
// moment Active goes false.
type State struct {
	Active   bool
	NoteName string
	Cents    int
}

// Controller is the tuner state machine. All methods run on the control-loop
// goroutine.
type Controller struct {
	state    State
	screen   Screen
	acquired bool
	names    [12]string
}

func New(screen Screen, flats bool) *Controller {
	names := defaultNames
	if flats {
		names = flatNames
	}
	return &Controller{
		state:  State{NoteName: Placeholder},
		screen: screen,
		names:  names,
	}
}

// State returns a copy of the current state.
func (c *Controller) State() State { return c.state }

// Active reports whether tuner mode is on.
func (c *Controller) Active() bool { return c.state.Active }

// Toggle flips tuner mode. The first activation acquires display resources;
// if that fails the toggle reverts to inactive and the capacity failure is
// returned so the caller can react. Deactivation freezes NoteName and Cents.
func (c *Controller) Toggle() error {
	if c.state.Active {
		c.state.Active = false
		return nil
	}
	if !c.acquired {
		if err := c.screen.AcquireTuner(); err != nil {
			return err
		}
		c.acquired = true
	}
	c.state.Active = true
	slog.Debug("tuner: activated")
	return nil
}

// ProcessMessage reports whether it consumed the message. While inactive it
// consumes nothing. While active, Note and PitchBend messages update the
// state; everything else passes through so normal handling (CC feedback in
// particular) keeps flowing.
func (c *Controller) ProcessMessage(msg midi.Message) bool {
	if !c.state.Active {
		return false
	}
	switch msg.Kind {
	case midi.KindNoteOn:
		name := c.names[msg.Note%12] + strconv.Itoa(int(msg.Note)/12-1)
		if c.state.NoteName != name {
			c.state.NoteName = name
		}
		return true
	case midi.KindNoteOff:
		c.state.NoteName = Placeholder
		c.state.Cents = 0
		return true
	case midi.KindPitchBend:
		cents := centsFromBend(msg.Bend)
		if c.state.Cents != cents {
			c.state.Cents = cents
		}
		return true
	}
	return false
}

// Update reflects the current state to the display. It is a pure render
// trigger, throttled by the caller, and mutates nothing.
func (c *Controller) Update() {
	if !c.state.Active {
		return
	}
	c.screen.ShowTuner(c.state.NoteName, c.state.Cents)
}

// centsFromBend maps the 14-bit wheel value to cents deviation: 8192 is
// dead center, full deflection is 200 cents, clamped to the needle range.
func centsFromBend(raw uint16) int {
	cents := int(math.Round(float64(int(raw)-8192) / 8192 * 200))
	if cents < MinCents {
		return MinCents
	}
	if cents > MaxCents {
		return MaxCents
	}
	return cents
}

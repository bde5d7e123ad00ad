package tuner

import (
	"errors"
	"testing"

	"github.com/remedyfw/remedy/midi"
)

type fakeScreen struct {
	acquireErr error
	acquires   int
	note       string
	cents      int
	shows      int
}

func (f *fakeScreen) AcquireTuner() error {
	f.acquires++
	return f.acquireErr
}

func (f *fakeScreen) ShowTuner(note string, cents int) {
	f.note = note
	f.cents = cents
	f.shows++
}

func active(t *testing.T) (*Controller, *fakeScreen) {
	t.Helper()
	scr := &fakeScreen{}
	c := New(scr, false)
	if err := c.Toggle(); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	return c, scr
}

func noteOn(n uint8) midi.Message {
	return midi.Message{Kind: midi.KindNoteOn, Note: n, Velocity: 100}
}

func bend(raw uint16) midi.Message {
	return midi.Message{Kind: midi.KindPitchBend, Bend: raw}
}

func TestInactiveConsumesNothing(t *testing.T) {
	c := New(&fakeScreen{}, false)
	if c.ProcessMessage(noteOn(60)) {
		t.Error("inactive tuner consumed a note")
	}
	if got := c.State().NoteName; got != Placeholder {
		t.Errorf("note name = %q, want placeholder", got)
	}
}

func TestNoteNames(t *testing.T) {
	tests := []struct {
		note uint8
		want string
	}{
		{60, "C4"},
		{69, "A4"},
		{61, "C#4"},
		{63, "Eb4"},
		{0, "C-1"},
		{127, "G9"},
	}
	c, _ := active(t)
	for _, tt := range tests {
		if !c.ProcessMessage(noteOn(tt.note)) {
			t.Fatalf("note %d not consumed", tt.note)
		}
		if got := c.State().NoteName; got != tt.want {
			t.Errorf("note %d name = %q, want %q", tt.note, got, tt.want)
		}
	}
}

func TestFlatNames(t *testing.T) {
	scr := &fakeScreen{}
	c := New(scr, true)
	if err := c.Toggle(); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	c.ProcessMessage(noteOn(61))
	if got := c.State().NoteName; got != "Db4" {
		t.Errorf("note name = %q, want Db4", got)
	}
}

func TestNoteOffResets(t *testing.T) {
	c, _ := active(t)
	c.ProcessMessage(noteOn(69))
	c.ProcessMessage(bend(9000))
	if c.State().Cents == 0 {
		t.Fatal("setup: cents still zero")
	}

	if !c.ProcessMessage(midi.Message{Kind: midi.KindNoteOff, Note: 69}) {
		t.Fatal("note off not consumed")
	}
	st := c.State()
	if st.NoteName != Placeholder {
		t.Errorf("note name = %q, want placeholder", st.NoteName)
	}
	if st.Cents != 0 {
		t.Errorf("cents = %d, want 0", st.Cents)
	}
}

func TestCentsFromBend(t *testing.T) {
	tests := []struct {
		raw  uint16
		want int
	}{
		{8192, 0},
		{0, MinCents},     // full down, clamped
		{16383, MaxCents}, // full up, clamped
		{8192 + 410, 10},
		{8192 - 410, -10},
	}
	c, _ := active(t)
	for _, tt := range tests {
		c.ProcessMessage(bend(tt.raw))
		if got := c.State().Cents; got != tt.want {
			t.Errorf("bend %d cents = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestCentsMonotonicAndBounded(t *testing.T) {
	c, _ := active(t)
	prev := MinCents - 1
	for raw := 0; raw <= 16383; raw += 37 {
		c.ProcessMessage(bend(uint16(raw)))
		got := c.State().Cents
		if got < MinCents || got > MaxCents {
			t.Fatalf("bend %d cents = %d, outside [%d,%d]", raw, got, MinCents, MaxCents)
		}
		if got < prev {
			t.Fatalf("bend %d cents = %d, decreased from %d", raw, got, prev)
		}
		prev = got
	}
}

func TestOtherKindsPassThrough(t *testing.T) {
	c, _ := active(t)
	cc := midi.Message{Kind: midi.KindControlChange, Controller: 20, Value: 127}
	if c.ProcessMessage(cc) {
		t.Error("tuner consumed a cc message")
	}
}

func TestDeactivationFreezesState(t *testing.T) {
	c, scr := active(t)
	c.ProcessMessage(noteOn(69))
	c.ProcessMessage(bend(9000))
	frozen := c.State()

	if err := c.Toggle(); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if c.Active() {
		t.Fatal("still active after toggle")
	}
	st := c.State()
	if st.NoteName != frozen.NoteName || st.Cents != frozen.Cents {
		t.Errorf("state changed on deactivation: %+v != %+v", st, frozen)
	}

	shows := scr.shows
	c.Update() // inactive: must not render
	if scr.shows != shows {
		t.Error("Update rendered while inactive")
	}
}

func TestAcquireFailureReverts(t *testing.T) {
	scr := &fakeScreen{acquireErr: errors.New("out of memory")}
	c := New(scr, false)

	if err := c.Toggle(); err == nil {
		t.Fatal("Toggle succeeded despite acquire failure")
	}
	if c.Active() {
		t.Fatal("tuner active after failed acquire")
	}

	// A later attempt retries the acquisition.
	scr.acquireErr = nil
	if err := c.Toggle(); err != nil {
		t.Fatalf("Toggle after recovery: %v", err)
	}
	if !c.Active() || scr.acquires != 2 {
		t.Fatalf("active=%v acquires=%d, want true/2", c.Active(), scr.acquires)
	}
}

func TestAcquireOnlyOnce(t *testing.T) {
	c, scr := active(t)
	c.Toggle() // off
	c.Toggle() // on again
	if scr.acquires != 1 {
		t.Fatalf("acquires = %d, want 1", scr.acquires)
	}
}

func TestUpdateRendersCurrentState(t *testing.T) {
	c, scr := active(t)
	c.ProcessMessage(noteOn(60))
	c.Update()
	if scr.note != "C4" || scr.cents != 0 {
		t.Errorf("rendered %q/%d, want C4/0", scr.note, scr.cents)
	}
}

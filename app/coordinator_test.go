package app

import (
	"fmt"
	"testing"

	"github.com/remedyfw/remedy/config"
	"github.com/remedyfw/remedy/display"
	"github.com/remedyfw/remedy/event"
	"github.com/remedyfw/remedy/midi"
	"github.com/remedyfw/remedy/tuner"
)

// fakeSender records every send as one line.
type fakeSender struct {
	sent []string
}

func (f *fakeSender) SendCC(ch, cc, val uint8) {
	f.sent = append(f.sent, fmt.Sprintf("cc %d %d %d", ch, cc, val))
}

func (f *fakeSender) SendPC(ch, prog uint8) {
	f.sent = append(f.sent, fmt.Sprintf("pc %d %d", ch, prog))
}

func (f *fakeSender) SendNote(ch, note, vel uint8, on bool) {
	f.sent = append(f.sent, fmt.Sprintf("note %d %d %d %v", ch, note, vel, on))
}

func (f *fakeSender) SendSysExParam(addr midi.Address, data []byte) {
	f.sent = append(f.sent, fmt.Sprintf("dt1 %v %v", addr, data))
}

func (f *fakeSender) QuerySysExParam(addr midi.Address, size int) {
	f.sent = append(f.sent, fmt.Sprintf("rq1 %v %d", addr, size))
}

func (f *fakeSender) last(t *testing.T) string {
	t.Helper()
	if len(f.sent) == 0 {
		t.Fatal("nothing sent")
	}
	return f.sent[len(f.sent)-1]
}

type fakeLEDs struct {
	colors map[string]float64 // id -> last brightness
	shows  int
}

func (f *fakeLEDs) SetButtonColor(id string, _ [3]uint8, brightness float64) {
	if f.colors == nil {
		f.colors = make(map[string]float64)
	}
	f.colors[id] = brightness
}

func (f *fakeLEDs) Show() { f.shows++ }

type fakeScreen struct {
	title string
	song  string
}

func (f *fakeScreen) ShowTitle(title string) { f.title = title }
func (f *fakeScreen) ShowSong(name string, index, total int) {
	f.song = fmt.Sprintf("%d/%d %s", index+1, total, name)
}

func u7(n uint8) *uint8 { return &n }

func testConfig() *config.Config {
	cfg := config.New()
	cfg.Profile = &config.Profile{
		Name: "amp",
		Params: map[string]config.SysexParam{
			"volume": {Name: "volume", Address: []int{0, 0, 0, 1}, Type: "int", Min: 0, Max: 100},
			"drive":  {Name: "drive", Address: []int{0, 0, 1, 0}, Type: "bool", Min: 0, Max: 1, CCAlias: u7(20)},
		},
		EditorEnter: []config.ActionFragment{
			{"type": "midi_cc", "cc": 99, "value": 127},
			{"type": "midi_pc", "program": 126},
		},
	}
	home := &config.Page{
		Name: "home",
		Buttons: map[string]config.ButtonConfig{
			"A":  {Color: "red", OnPress: config.ActionFragment{"type": "midi_cc", "cc": 21, "value": "toggle"}},
			"B":  {Color: "blue", OnPress: config.ActionFragment{"type": "sysex_param", "param": "drive", "value": 1}},
			"C":  {Color: "green", OnPress: config.ActionFragment{"type": "tuner_toggle"}},
			"up": {OnPress: config.ActionFragment{"type": "page_change", "direction": "next"}},
		},
		Encoder: &config.EncoderConfig{Bind: "sysex:volume"},
		Expression: map[string]config.ExpressionConfig{
			"exp1": {Bind: "midi_cc", CC: u7(11)},
			"exp2": {Bind: "midi_cc"},
		},
	}
	other := &config.Page{Name: "other", Buttons: map[string]config.ButtonConfig{}}
	cfg.AddPage("home", home)
	cfg.AddPage("other", other)
	cfg.Page = home
	return cfg
}

type fixture struct {
	cfg    *config.Config
	sender *fakeSender
	leds   *fakeLEDs
	screen *fakeScreen
	coord  *Coordinator
	events *event.Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		cfg:    testConfig(),
		sender: &fakeSender{},
		leds:   &fakeLEDs{},
		screen: &fakeScreen{},
		events: event.NewDispatcher(),
	}
	tun := tuner.New(display.Null{}, false)
	f.coord = NewCoordinator(f.cfg, f.sender, tun, f.leds, f.screen)
	f.coord.Bind(f.events)
	f.coord.Start()
	return f
}

func (f *fixture) press(id string) {
	f.events.Emit(event.NewButton(id, event.ButtonPress))
}

// -------------------- toggle semantics --------------------

func TestTogglePressPair(t *testing.T) {
	f := newFixture(t)

	f.press("A")
	if got := f.sender.last(t); got != "cc 0 21 127" {
		t.Fatalf("first press sent %q, want cc 0 21 127", got)
	}
	if !f.coord.Toggle("A") {
		t.Fatal("toggle not set after first press")
	}

	f.press("A")
	if got := f.sender.last(t); got != "cc 0 21 0" {
		t.Fatalf("second press sent %q, want cc 0 21 0", got)
	}
	if f.coord.Toggle("A") {
		t.Fatal("toggle still set after second press; pair must be idempotent")
	}
}

func TestUnconfiguredButtonNoop(t *testing.T) {
	f := newFixture(t)
	ev := event.NewButton("Z", event.ButtonPress)
	f.events.Emit(ev)
	if len(f.sender.sent) != 0 {
		t.Errorf("unconfigured button sent %v", f.sender.sent)
	}
	if ev.Handled {
		t.Error("unconfigured button marked handled")
	}
}

// -------------------- encoder integration --------------------

func TestEncoderAccumulatorClamps(t *testing.T) {
	f := newFixture(t)

	// From the 64 default, +200 pins to 127 (scaled: 100), -200 to 0.
	f.events.Emit(event.NewEncoder(200))
	if got := f.sender.last(t); got != "dt1 [0 0 0 1] [100]" {
		t.Fatalf("after +200 sent %q", got)
	}
	f.events.Emit(event.NewEncoder(-200))
	if got := f.sender.last(t); got != "dt1 [0 0 0 1] [0]" {
		t.Fatalf("after -200 sent %q", got)
	}
}

func TestEncoderCCFallback(t *testing.T) {
	f := newFixture(t)
	f.cfg.Page.Encoder = &config.EncoderConfig{Bind: "midi_cc"}

	f.events.Emit(event.NewEncoder(1))
	if got := f.sender.last(t); got != fmt.Sprintf("cc 0 %d 65", EncoderFallbackCC) {
		t.Fatalf("sent %q, want fallback cc 7 value 65", got)
	}
}

func TestExplicitCCZeroIsNotDefault(t *testing.T) {
	f := newFixture(t)

	// CC 0 (bank select) configured explicitly must not fall back to the
	// defaults; absence (nil) still does.
	f.cfg.Page.Encoder = &config.EncoderConfig{Bind: "midi_cc", FallbackCC: u7(0)}
	f.events.Emit(event.NewEncoder(1))
	if got := f.sender.last(t); got != "cc 0 0 65" {
		t.Fatalf("encoder sent %q, want cc 0 0 65", got)
	}

	f.cfg.Page.Expression["exp0"] = config.ExpressionConfig{Bind: "midi_cc", CC: u7(0)}
	f.events.Emit(event.NewExpression("exp0", 40))
	if got := f.sender.last(t); got != "cc 0 0 40" {
		t.Fatalf("expression sent %q, want cc 0 0 40", got)
	}
}

// -------------------- expression pedals --------------------

func TestExpressionPassthrough(t *testing.T) {
	f := newFixture(t)

	f.events.Emit(event.NewExpression("exp1", 99))
	if got := f.sender.last(t); got != "cc 0 11 99" {
		t.Fatalf("exp1 sent %q", got)
	}

	// exp2 has no explicit CC: modulation fallback.
	f.events.Emit(event.NewExpression("exp2", 5))
	if got := f.sender.last(t); got != fmt.Sprintf("cc 0 %d 5", ExpressionFallbackCC) {
		t.Fatalf("exp2 sent %q", got)
	}

	f.events.Emit(event.NewExpression("exp9", 5))
	if len(f.sender.sent) != 2 {
		t.Errorf("unconfigured pedal sent %v", f.sender.sent[2:])
	}
}

// -------------------- page changes --------------------

func TestPageChangeClearsToggles(t *testing.T) {
	f := newFixture(t)
	f.press("A")
	if f.coord.ToggleCount() == 0 {
		t.Fatal("setup: no toggle entry")
	}

	f.coord.ChangePage("other", "")
	if f.coord.ToggleCount() != 0 {
		t.Errorf("%d toggle entries survived the page change", f.coord.ToggleCount())
	}
	if f.cfg.Page.Name != "other" {
		t.Errorf("page = %q, want other", f.cfg.Page.Name)
	}
}

func TestPageDirectionWraps(t *testing.T) {
	f := newFixture(t)

	f.coord.ChangePage("", "next")
	if f.cfg.Page.Name != "other" {
		t.Fatalf("page = %q, want other", f.cfg.Page.Name)
	}
	f.coord.ChangePage("", "next") // wraps back
	if f.cfg.Page.Name != "home" {
		t.Fatalf("page = %q, want home after wrap", f.cfg.Page.Name)
	}
	f.coord.ChangePage("", "prev")
	if f.cfg.Page.Name != "other" {
		t.Fatalf("page = %q, want other after prev", f.cfg.Page.Name)
	}
}

func TestPageChangeFailureKeepsState(t *testing.T) {
	f := newFixture(t)
	f.press("A")

	f.coord.ChangePage("missing", "")
	if f.cfg.Page.Name != "home" {
		t.Errorf("page = %q, want home", f.cfg.Page.Name)
	}
	if f.coord.ToggleCount() == 0 {
		t.Error("toggles cleared by a failed page change")
	}
}

// -------------------- device-originated sync --------------------

func TestCCFeedbackSyncsToggle(t *testing.T) {
	f := newFixture(t)

	msg := midi.Message{Kind: midi.KindControlChange, Controller: 21, Value: 127}
	f.events.Emit(event.NewMIDI(msg))
	if !f.coord.Toggle("A") {
		t.Fatal("cc 127 did not set toggle")
	}

	msg.Value = 63 // boundary: not > 63
	f.events.Emit(event.NewMIDI(msg))
	if f.coord.Toggle("A") {
		t.Fatal("cc 63 should clear toggle")
	}
}

func TestSysExResponseSyncsToggle(t *testing.T) {
	f := newFixture(t)

	// Synthesized DT1 response for the bool param at [0,0,1,0] with data 1.
	framed := midi.EncodeDataSet(midi.DefaultIDs(), midi.Address{0, 0, 1, 0}, []byte{1})
	msg := midi.Message{Kind: midi.KindSysEx, SysEx: framed[1 : len(framed)-1]}
	f.events.Emit(event.NewMIDI(msg))

	// drive has cc_alias 20; no button binds CC 20 via toggle, but B binds
	// the parameter itself, so the reverse map routes through the alias.
	if !f.coord.Toggle("B") {
		t.Fatal("DT1 response did not set the aliased toggle")
	}
}

func TestMalformedSysExDiscarded(t *testing.T) {
	f := newFixture(t)
	before := f.coord.ToggleCount()
	f.events.Emit(event.NewMIDI(midi.Message{Kind: midi.KindSysEx, SysEx: []byte{0x41, 0x10}}))
	if f.coord.ToggleCount() != before {
		t.Error("malformed sysex mutated toggle state")
	}
}

func TestProgramChangeTracked(t *testing.T) {
	f := newFixture(t)
	if f.coord.Program() != -1 {
		t.Fatalf("initial program = %d, want -1", f.coord.Program())
	}
	f.events.Emit(event.NewMIDI(midi.Message{Kind: midi.KindProgramChange, Program: 42}))
	if f.coord.Program() != 42 {
		t.Errorf("program = %d, want 42", f.coord.Program())
	}
}

// -------------------- setlist --------------------

func withSetlist(f *fixture) {
	f.cfg.Setlist = &config.Setlist{
		Name: "gig",
		Songs: []config.Song{
			{Name: "Opener", Actions: []config.ActionFragment{
				{"type": "midi_pc", "program": float64(1)},
				{"type": "midi_cc", "cc": float64(21), "value": float64(127)},
			}},
			{Name: "Closer", Actions: []config.ActionFragment{
				{"type": "midi_pc", "program": float64(2)},
			}},
		},
	}
}

func TestSetlistNavigation(t *testing.T) {
	f := newFixture(t)
	withSetlist(f)

	f.coord.NavigateSong("next")
	if f.coord.SongIndex() != 0 {
		t.Fatalf("index = %d, want 0", f.coord.SongIndex())
	}
	// Enter-actions run in order.
	n := len(f.sender.sent)
	if n < 2 || f.sender.sent[n-2] != "pc 0 1" || f.sender.sent[n-1] != "cc 0 21 127" {
		t.Fatalf("enter actions sent %v", f.sender.sent)
	}
	if f.screen.song != "1/2 Opener" {
		t.Errorf("song display = %q", f.screen.song)
	}

	f.coord.NavigateSong("prev") // bounded at the first song
	if f.coord.SongIndex() != 0 {
		t.Fatalf("index = %d after prev at edge, want 0", f.coord.SongIndex())
	}

	f.coord.NavigateSong("next")
	f.coord.NavigateSong("next") // bounded at the last song
	if f.coord.SongIndex() != 1 {
		t.Fatalf("index = %d, want 1", f.coord.SongIndex())
	}
}

func TestSetlistOwnsDirectionRequests(t *testing.T) {
	f := newFixture(t)
	withSetlist(f)

	// Up is bound to page_change next; with a setlist active the request
	// drives song navigation and the page stays put.
	f.press("up")
	if f.cfg.Page.Name != "home" {
		t.Errorf("page = %q, want home", f.cfg.Page.Name)
	}
	if f.coord.SongIndex() != 0 {
		t.Errorf("song index = %d, want 0", f.coord.SongIndex())
	}
}

// -------------------- sequences and editor --------------------

func TestSequenceSurvivesFailingMember(t *testing.T) {
	f := newFixture(t)
	f.coord.runAction(ParseAction(config.ActionFragment{
		"type": "sequence",
		"actions": []any{
			map[string]any{"type": "sysex_param", "param": "missing", "value": float64(1)},
			map[string]any{"type": "midi_cc", "cc": float64(30), "value": float64(64)},
		},
	}), "")

	if got := f.sender.last(t); got != "cc 0 30 64" {
		t.Fatalf("sent %q; failing member aborted the sequence", got)
	}
}

func TestEnterEditorRunsSequence(t *testing.T) {
	f := newFixture(t)
	f.coord.EnterEditor()
	if len(f.sender.sent) != 2 || f.sender.sent[0] != "cc 0 99 127" || f.sender.sent[1] != "pc 0 126" {
		t.Fatalf("editor sequence sent %v", f.sender.sent)
	}
}

// -------------------- tuner interplay --------------------

func TestTunerConsumesNotesButNotCC(t *testing.T) {
	f := newFixture(t)
	f.press("C") // tuner_toggle

	// Note messages are consumed by the tuner and must not reach the
	// CC sync path; CC feedback still flows.
	f.events.Emit(event.NewMIDI(midi.Message{Kind: midi.KindNoteOn, Note: 60, Velocity: 1}))
	f.events.Emit(event.NewMIDI(midi.Message{Kind: midi.KindControlChange, Controller: 21, Value: 127}))
	if !f.coord.Toggle("A") {
		t.Fatal("cc feedback blocked while tuner active")
	}
}

// -------------------- LED duties --------------------

func TestPressFlashesAndReleaseDims(t *testing.T) {
	f := newFixture(t)

	f.press("A")
	if got := f.leds.colors["A"]; got != 1.0 {
		t.Fatalf("press brightness = %v, want 1.0", got)
	}

	// A is now toggled on, so release keeps full brightness; a second
	// press/release pair drops it back to idle.
	f.events.Emit(event.NewButton("A", event.ButtonRelease))
	if got := f.leds.colors["A"]; got != 1.0 {
		t.Fatalf("release brightness with toggle on = %v, want 1.0", got)
	}
	f.press("A")
	f.events.Emit(event.NewButton("A", event.ButtonRelease))
	want := float64(f.cfg.Global.LEDs.IdleBrightness) / 100
	if got := f.leds.colors["A"]; got != want {
		t.Fatalf("idle brightness = %v, want %v", got, want)
	}
}

// Package app is the runtime control layer: it resolves configuration into
// concrete MIDI operations, owns toggle and page state, and keeps both in
// sync with the external device over CC feedback and DT1 responses.
package app

import (
	"log/slog"

	"github.com/remedyfw/remedy/config"
	"github.com/remedyfw/remedy/event"
	"github.com/remedyfw/remedy/midi"
	"github.com/remedyfw/remedy/tuner"
)

// Sender is the transmit side of the MIDI transport.
type Sender interface {
	SendCC(channel, cc, value uint8)
	SendPC(channel, program uint8)
	SendNote(channel, note, velocity uint8, on bool)
	SendSysExParam(addr midi.Address, data []byte)
	QuerySysExParam(addr midi.Address, size int)
}

// LEDs is the LED collaborator: plain color/brightness requests, batched by
// Show.
type LEDs interface {
	SetButtonColor(id string, rgb [3]uint8, brightness float64)
	Show()
}

// Screen is the part of the display the coordinator drives directly.
type Screen interface {
	ShowTitle(title string)
	ShowSong(name string, index, total int)
}

// buttonOrder is the fixed set of footswitch ids, in panel order.
var buttonOrder = []string{"1", "2", "3", "4", "A", "B", "C", "D", "up", "down"}

// encoderDefault is the accumulator start value for a fresh binding.
const encoderDefault = 64

// Coordinator owns ToggleState and PageContext. Everything runs on the
// single control-loop goroutine; mutation points are the event handlers and
// the page/setlist operations.
type Coordinator struct {
	cfg    *config.Config
	sender Sender
	tuner  *tuner.Controller
	leds   LEDs
	screen Screen

	toggles    map[string]bool
	accum      map[string]int
	ccToButton map[uint8]string

	songIndex int
	program   int // last received program change, -1 = none
}

func NewCoordinator(cfg *config.Config, sender Sender, tun *tuner.Controller, leds LEDs, screen Screen) *Coordinator {
	return &Coordinator{
		cfg:        cfg,
		sender:     sender,
		tuner:      tun,
		leds:       leds,
		screen:     screen,
		toggles:    make(map[string]bool),
		accum:      make(map[string]int),
		ccToButton: make(map[uint8]string),
		songIndex:  -1,
		program:    -1,
	}
}

// Bind registers the coordinator's handlers on the dispatcher.
func (c *Coordinator) Bind(d *event.Dispatcher) {
	d.Register(event.KindButton, c.handleButton)
	d.Register(event.KindEncoder, c.handleEncoder)
	d.Register(event.KindExpression, c.handleExpression)
	d.Register(event.KindMIDI, c.handleMIDI)
}

// Start settles the initial state after configuration load: reverse map,
// idle LEDs, home title.
func (c *Coordinator) Start() {
	c.rebuildReverseMap()
	c.RefreshLEDs()
	c.showHome()
}

// Toggle reports the toggle state for a control id.
func (c *Coordinator) Toggle(id string) bool { return c.toggles[id] }

// ToggleCount reports how many toggle entries exist.
func (c *Coordinator) ToggleCount() int { return len(c.toggles) }

// Program returns the last received program number, or -1.
func (c *Coordinator) Program() int { return c.program }

// SongIndex returns the current setlist position, or -1.
func (c *Coordinator) SongIndex() int { return c.songIndex }

// -------------------- event handlers --------------------

func (c *Coordinator) handleButton(ev *event.Event) {
	bc, ok := c.cfg.Button(ev.ButtonID)
	if !ok {
		return
	}

	if frag := bc.Fragment(string(ev.ButtonAction)); frag != nil {
		c.runAction(ParseAction(frag), ev.ButtonID)
	}

	switch ev.ButtonAction {
	case event.ButtonPress:
		// Flash at full brightness while held.
		c.leds.SetButtonColor(ev.ButtonID, c.cfg.Color(bc.Color), 1.0)
		c.leds.Show()
	case event.ButtonRelease:
		c.updateButtonLED(ev.ButtonID)
		c.leds.Show()
	}
	ev.Handled = true
}

func (c *Coordinator) handleEncoder(ev *event.Event) {
	if ev.Delta == 0 {
		return
	}
	ec := c.cfg.Encoder()
	if ec == nil || ec.Bind == "" {
		return
	}

	key := "encoder." + ec.Bind
	cur, ok := c.accum[key]
	if !ok {
		cur = encoderDefault
	}
	val := clamp7(cur + ev.Delta)
	c.accum[key] = val

	fallback := uint8(EncoderFallbackCC)
	if ec.FallbackCC != nil {
		fallback = *ec.FallbackCC
	}
	if op, ok := resolveBinding(c.cfg, ec.Bind, uint8(val), fallback); ok {
		c.execute(op)
	}
	ev.Handled = true
}

func (c *Coordinator) handleExpression(ev *event.Event) {
	xc, ok := c.cfg.Expression(ev.PedalID)
	if !ok || xc.Bind == "" {
		return
	}
	fallback := uint8(ExpressionFallbackCC)
	if xc.CC != nil {
		fallback = *xc.CC
	}
	if op, ok := resolveBinding(c.cfg, xc.Bind, ev.PedalValue, fallback); ok {
		c.execute(op)
	}
	ev.Handled = true
}

func (c *Coordinator) handleMIDI(ev *event.Event) {
	// Tuner gets first refusal on Note/PitchBend while active.
	if c.tuner.ProcessMessage(ev.Midi) {
		ev.Handled = true
		return
	}

	switch ev.Midi.Kind {
	case midi.KindControlChange:
		c.syncCCToToggle(ev.Midi.Controller, ev.Midi.Value)
	case midi.KindProgramChange:
		c.program = int(ev.Midi.Program)
	case midi.KindSysEx:
		c.handleSysExResponse(ev.Midi.SysEx)
	}
	ev.Handled = true
}

// -------------------- action execution --------------------

// runAction executes one parsed action for the originating control. Every
// failure mode here is local: missing config is a no-op, sequence members
// fail independently.
func (c *Coordinator) runAction(a Action, buttonID string) {
	switch a.Kind {
	case ActionNone:

	case ActionCC:
		value := uint8(clamp7(a.Value))
		if a.Toggle && buttonID != "" {
			on := !c.toggles[buttonID]
			c.toggles[buttonID] = on
			if on {
				value = 127
			} else {
				value = 0
			}
		} else if a.Toggle {
			value = 127
		}
		c.sender.SendCC(c.channelFor(a), a.CC, value)

	case ActionPC:
		c.sender.SendPC(c.channelFor(a), a.Program)

	case ActionNote:
		// Momentary tap: strike and release.
		ch := c.channelFor(a)
		c.sender.SendNote(ch, a.Note, a.Velocity, true)
		c.sender.SendNote(ch, a.Note, 0, false)

	case ActionSysExParam:
		param, ok := c.cfg.SysexParam(a.Param)
		if !ok {
			slog.Debug("app: unknown sysex param", "param", a.Param)
			return
		}
		addr, ok := param.Addr()
		if !ok {
			return
		}
		v := a.Value
		if v < param.Min {
			v = param.Min
		}
		if v > param.Max {
			v = param.Max
		}
		c.sender.SendSysExParam(addr, []byte{byte(v & 0x7F)})

	case ActionPageChange:
		c.ChangePage(a.Page, a.Direction)

	case ActionTunerToggle:
		if err := c.tuner.Toggle(); err != nil {
			slog.Warn("app: tuner display unavailable", "err", err)
			return
		}
		if !c.tuner.Active() {
			// Leaving tuner mode repaints the idle surface.
			c.RefreshLEDs()
			c.showHome()
		}

	case ActionSequence:
		for _, sub := range a.Sub {
			c.runAction(sub, buttonID)
		}
	}
}

func (c *Coordinator) execute(op SendOp) {
	if op.SysEx {
		c.sender.SendSysExParam(op.Address, op.Data)
		return
	}
	c.sender.SendCC(op.Channel, op.CC, op.Value)
}

func (c *Coordinator) channelFor(a Action) uint8 {
	if a.Channel != nil {
		return *a.Channel
	}
	return c.cfg.Channel()
}

// EnterEditor runs the profile's editor-mode enter sequence.
func (c *Coordinator) EnterEditor() {
	if c.cfg.Profile == nil {
		return
	}
	for _, frag := range c.cfg.Profile.EditorEnter {
		c.runAction(ParseAction(frag), "")
	}
}

// -------------------- device-originated sync --------------------

// syncCCToToggle applies device-originated CC feedback. This is the only
// path by which toggle state changes without a local press.
func (c *Coordinator) syncCCToToggle(cc, value uint8) {
	id, ok := c.ccToButton[cc]
	if !ok {
		return
	}
	c.toggles[id] = value > 63
	c.updateButtonLED(id)
	c.leds.Show()
}

// handleSysExResponse matches an incoming DT1 against the profile's
// bool-typed parameters by address and, via cc_alias, feeds the same CC sync
// path. Anything that does not validate is discarded without raising.
func (c *Coordinator) handleSysExResponse(raw []byte) {
	addr, data, ok := midi.ParseDataSet(c.protocolIDs(), raw)
	if !ok {
		slog.Debug("app: sysex discarded", "len", len(raw))
		return
	}
	param, ok := c.cfg.ParamByAddress(addr)
	if !ok || !param.Bool() || param.CCAlias == nil || len(data) == 0 {
		return
	}
	var value uint8
	if data[0] != 0 {
		value = 127
	}
	c.syncCCToToggle(*param.CCAlias, value)
}

func (c *Coordinator) protocolIDs() midi.ProtocolIDs {
	if p := c.cfg.Profile; p != nil && (p.Manufacturer != 0 || p.Device != 0 || p.Model != 0) {
		return midi.ProtocolIDs{Manufacturer: p.Manufacturer, Device: p.Device, Model: p.Model}
	}
	return midi.DefaultIDs()
}

// -------------------- page and setlist --------------------

// ChangePage switches the active page by explicit id or by direction token
// over the discovered page list (wrapping). While a setlist is active,
// direction requests drive song navigation instead. A direction request that
// would reselect the current page with no explicit id is a complete no-op,
// refresh included. A page change never partially applies: on load failure
// the previous page, toggles and reverse map stay untouched.
func (c *Coordinator) ChangePage(id, direction string) {
	if id == "" {
		if direction == "" {
			return
		}
		if c.cfg.Setlist != nil {
			c.NavigateSong(direction)
			return
		}
		id = c.pageByDirection(direction)
		if id == "" || (c.cfg.Page != nil && id == c.cfg.Page.Name) {
			return
		}
	}

	if err := c.cfg.LoadPage(id); err != nil {
		slog.Warn("app: page load failed", "page", id, "err", err)
		return
	}

	// Toggle state belongs to the page that created it.
	clear(c.toggles)
	c.rebuildReverseMap()
	c.RefreshLEDs()
	c.showHome()
	slog.Info("app: page changed", "page", id)
}

func (c *Coordinator) pageByDirection(direction string) string {
	ids := c.cfg.PageIDs
	if len(ids) == 0 {
		return ""
	}
	cur := -1
	if c.cfg.Page != nil {
		for i, id := range ids {
			if id == c.cfg.Page.Name {
				cur = i
				break
			}
		}
	}
	switch direction {
	case "next":
		return ids[(cur+1)%len(ids)]
	case "prev":
		return ids[(cur-1+len(ids))%len(ids)]
	}
	return ""
}

// NavigateSong moves through the active setlist, bounded at the edges, and
// runs the target song's enter-actions in order.
func (c *Coordinator) NavigateSong(direction string) {
	sl := c.cfg.Setlist
	if sl == nil || len(sl.Songs) == 0 {
		return
	}
	next := c.songIndex
	switch direction {
	case "next":
		if next+1 >= len(sl.Songs) {
			return
		}
		next++
	case "prev":
		if next-1 < 0 {
			return
		}
		next--
	default:
		return
	}
	c.songIndex = next
	song := sl.Songs[next]
	for _, frag := range song.Actions {
		c.runAction(ParseAction(frag), "")
	}
	c.screen.ShowSong(song.Name, next, len(sl.Songs))
	slog.Info("app: song selected", "song", song.Name, "index", next)
}

// rebuildReverseMap recomputes the CC -> button map used for device-
// originated sync: toggle CC actions map directly, sysex_param actions map
// through the parameter's cc_alias.
func (c *Coordinator) rebuildReverseMap() {
	clear(c.ccToButton)
	if c.cfg.Page == nil {
		return
	}
	for id, bc := range c.cfg.Page.Buttons {
		a := ParseAction(bc.OnPress)
		switch a.Kind {
		case ActionCC:
			if a.Toggle {
				c.ccToButton[a.CC] = id
			}
		case ActionSysExParam:
			if param, ok := c.cfg.SysexParam(a.Param); ok && param.CCAlias != nil {
				c.ccToButton[*param.CCAlias] = id
			}
		}
	}
}

// -------------------- LED and display duties --------------------

// RefreshLEDs repaints every footswitch LED from the current page at idle
// brightness; toggled-on buttons stay at full brightness.
func (c *Coordinator) RefreshLEDs() {
	for _, id := range buttonOrder {
		c.updateButtonLED(id)
	}
	c.leds.Show()
}

func (c *Coordinator) updateButtonLED(id string) {
	bc, ok := c.cfg.Button(id)
	if !ok {
		c.leds.SetButtonColor(id, [3]uint8{}, 0)
		return
	}
	brightness := float64(c.cfg.Global.LEDs.IdleBrightness) / 100
	if c.toggles[id] {
		brightness = 1.0
	}
	c.leds.SetButtonColor(id, c.cfg.Color(bc.Color), brightness)
}

func (c *Coordinator) showHome() {
	if sl := c.cfg.Setlist; sl != nil && c.songIndex >= 0 && c.songIndex < len(sl.Songs) {
		c.screen.ShowSong(sl.Songs[c.songIndex].Name, c.songIndex, len(sl.Songs))
		return
	}
	title := ""
	if c.cfg.Page != nil {
		title = c.cfg.Page.Title
		if title == "" {
			title = c.cfg.Page.Name
		}
	}
	c.screen.ShowTitle(title)
}

// Package config holds the structured configuration the control layer reads:
// global settings, the device profile with its SysEx parameter table, the
// active page of bindings, and an optional setlist. All lookups are safe on a
// partially loaded configuration; absence resolves to zero values, never to a
// fault.
package config

// ActionFragment is a raw action descriptor as it appears in a page, song or
// profile document. The action parser owns its interpretation; unknown
// shapes become no-ops there.
type ActionFragment map[string]any

// Global carries device-wide settings.
type Global struct {
	MIDI struct {
		Channel    uint8 `json:"channel"`
		USBEnabled bool  `json:"usb_enabled"`
		DINEnabled bool  `json:"din_enabled"`
	} `json:"midi"`
	LEDs struct {
		IdleBrightness int `json:"idle_brightness"` // percent
	} `json:"leds"`
	Tuner struct {
		FlatNames bool `json:"flat_names"`
	} `json:"tuner"`
	Startup struct {
		Profile string `json:"profile"`
		Page    string `json:"page"`
		Setlist string `json:"setlist"`
	} `json:"startup"`
	Colors map[string][3]uint8 `json:"colors"`
}

// DefaultGlobal returns the settings used when global.json is absent or
// partial; Unmarshal overlays the file on top of these.
func DefaultGlobal() Global {
	var g Global
	g.MIDI.Channel = 0
	g.MIDI.USBEnabled = true
	g.MIDI.DINEnabled = true
	g.LEDs.IdleBrightness = 20
	g.Startup.Profile = "generic_cc"
	g.Startup.Page = "default"
	g.Colors = map[string][3]uint8{
		"red":     {255, 0, 0},
		"orange":  {255, 128, 0},
		"yellow":  {255, 255, 0},
		"green":   {0, 255, 0},
		"cyan":    {0, 255, 255},
		"blue":    {0, 0, 255},
		"purple":  {128, 0, 255},
		"magenta": {255, 0, 255},
		"white":   {255, 255, 255},
		"grey":    {128, 128, 128},
	}
	return g
}

// SysexParam is one entry of the profile's parameter table. Address is the
// 4-byte device register; CCAlias, when present, ties the parameter to a CC
// number for bidirectional toggle sync.
type SysexParam struct {
	Name    string `json:"name"`
	Address []int  `json:"address"`
	Type    string `json:"type"` // "bool" or "int"
	Min     int    `json:"min"`
	Max     int    `json:"max"`
	CCAlias *uint8 `json:"cc_alias"`
}

// Bool reports whether the parameter is bool-typed.
func (p SysexParam) Bool() bool { return p.Type == "bool" }

// Profile describes the target device: its SysEx protocol ids, parameter
// table, and the action sequence that enters editor mode.
type Profile struct {
	Name         string                `json:"name"`
	Manufacturer byte                  `json:"manufacturer_id"`
	Device       byte                  `json:"device_id"`
	Model        byte                  `json:"model_id"`
	Params       map[string]SysexParam `json:"params"`
	EditorEnter  []ActionFragment      `json:"editor_enter"`
}

// ButtonConfig holds one footswitch's bindings on a page.
type ButtonConfig struct {
	Color       string         `json:"color"`
	OnPress     ActionFragment `json:"on_press"`
	OnRelease   ActionFragment `json:"on_release"`
	OnLongPress ActionFragment `json:"on_long_press"`
}

// Fragment returns the descriptor for one gesture, or nil.
func (b ButtonConfig) Fragment(gesture string) ActionFragment {
	switch gesture {
	case "press":
		return b.OnPress
	case "release":
		return b.OnRelease
	case "long_press":
		return b.OnLongPress
	}
	return nil
}

// EncoderConfig binds the rotary encoder. A nil FallbackCC means "use the
// default"; CC 0 (bank select) is an explicit choice.
type EncoderConfig struct {
	Bind       string `json:"bind"`
	FallbackCC *uint8 `json:"fallback_cc"`
}

// ExpressionConfig binds one expression pedal. CC follows the same nil
// convention as EncoderConfig.FallbackCC.
type ExpressionConfig struct {
	Bind string `json:"bind"`
	CC   *uint8 `json:"cc"`
}

// Page is a named set of bindings, swappable at runtime.
type Page struct {
	Name       string                      `json:"name"`
	Title      string                      `json:"title"`
	Buttons    map[string]ButtonConfig     `json:"buttons"`
	Encoder    *EncoderConfig              `json:"encoder"`
	Expression map[string]ExpressionConfig `json:"expression"`
}

// Song is one setlist entry with its enter-actions.
type Song struct {
	Name    string           `json:"name"`
	Actions []ActionFragment `json:"actions"`
}

// Setlist is an ordered list of songs layered on top of page navigation.
type Setlist struct {
	Name  string `json:"name"`
	Songs []Song `json:"songs"`
}

// Config is the read-only view the core consults. The loader (or a test)
// fills it; the core never mutates it except through LoadPage.
type Config struct {
	Global  Global
	Profile *Profile
	Page    *Page
	Setlist *Setlist

	// PageIDs is the ordered list of discovered page ids, for cyclic
	// next/prev navigation.
	PageIDs []string

	// pages caches loaded pages by id.
	pages map[string]*Page
	dir   string
}

func New() *Config {
	return &Config{
		Global: DefaultGlobal(),
		pages:  make(map[string]*Page),
	}
}

// Channel returns the global default MIDI channel.
func (c *Config) Channel() uint8 { return c.Global.MIDI.Channel }

// Color resolves a color name, falling back to grey.
func (c *Config) Color(name string) [3]uint8 {
	if rgb, ok := c.Global.Colors[name]; ok {
		return rgb
	}
	return [3]uint8{128, 128, 128}
}

// Button returns the current page's config for a button id.
func (c *Config) Button(id string) (ButtonConfig, bool) {
	if c.Page == nil {
		return ButtonConfig{}, false
	}
	bc, ok := c.Page.Buttons[id]
	return bc, ok
}

// Encoder returns the current page's encoder binding, or nil.
func (c *Config) Encoder() *EncoderConfig {
	if c.Page == nil {
		return nil
	}
	return c.Page.Encoder
}

// Expression returns the current page's binding for a pedal id.
func (c *Config) Expression(id string) (ExpressionConfig, bool) {
	if c.Page == nil {
		return ExpressionConfig{}, false
	}
	xc, ok := c.Page.Expression[id]
	return xc, ok
}

// SysexParam looks up a profile parameter by name.
func (c *Config) SysexParam(name string) (SysexParam, bool) {
	if c.Profile == nil {
		return SysexParam{}, false
	}
	p, ok := c.Profile.Params[name]
	return p, ok
}

// ParamByAddress looks up a profile parameter by its 4-byte address.
// Addresses are unique within a profile.
func (c *Config) ParamByAddress(addr [4]byte) (SysexParam, bool) {
	if c.Profile == nil {
		return SysexParam{}, false
	}
	for _, p := range c.Profile.Params {
		if a, ok := p.Addr(); ok && a == addr {
			return p, true
		}
	}
	return SysexParam{}, false
}

// Addr converts the parameter's address list to wire form. Malformed
// addresses report ok=false and the parameter is unusable.
func (p SysexParam) Addr() ([4]byte, bool) {
	var a [4]byte
	if len(p.Address) != len(a) {
		return a, false
	}
	for i, v := range p.Address {
		if v < 0 || v > 0x7F {
			return a, false
		}
		a[i] = byte(v)
	}
	return a, true
}

// AddPage registers an in-memory page, keeping PageIDs ordered by insertion.
// The loader uses it for discovered pages; tests use it directly.
func (c *Config) AddPage(id string, p *Page) {
	if _, ok := c.pages[id]; !ok {
		c.PageIDs = append(c.PageIDs, id)
	}
	c.pages[id] = p
}

// LoadPage swaps the current page. The swap is atomic: on any error the
// previous page stays active.
func (c *Config) LoadPage(id string) error {
	p, err := c.page(id)
	if err != nil {
		return err
	}
	c.Page = p
	return nil
}

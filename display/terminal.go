package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// needleWidth spans the cents range -29..29, one cell per cent.
const needleWidth = 59

// ledState is the last requested color for one button.
type ledState struct {
	rgb        [3]uint8
	brightness float64
}

// Terminal draws the controller state as a small text panel. Requests only
// mark state dirty; Render writes a frame when something changed, throttled
// by the caller the same way the device throttles its TFT updates.
type Terminal struct {
	w io.Writer

	titleStyle lipgloss.Style
	songStyle  lipgloss.Style
	labelStyle lipgloss.Style

	// Acquired lazily with the tuner view.
	noteStyle   lipgloss.Style
	flatStyle   lipgloss.Style
	sharpStyle  lipgloss.Style
	inTuneStyle lipgloss.Style
	tunerReady  bool

	leds  map[string]ledState
	order []string

	title       string
	tunerActive bool
	tunerNote   string
	tunerCents  int

	dirty bool
}

func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{
		w:          w,
		titleStyle: lipgloss.NewStyle().Bold(true).Padding(0, 1),
		songStyle:  lipgloss.NewStyle().Bold(true).Reverse(true).Padding(0, 1),
		labelStyle: lipgloss.NewStyle().Faint(true),
		leds:       make(map[string]ledState),
	}
}

// -------------------- LEDs --------------------

func (t *Terminal) SetButtonColor(id string, rgb [3]uint8, brightness float64) {
	if _, ok := t.leds[id]; !ok {
		t.order = append(t.order, id)
	}
	t.leds[id] = ledState{rgb: rgb, brightness: brightness}
}

func (t *Terminal) Show() {
	t.dirty = true
}

// -------------------- titles --------------------

func (t *Terminal) ShowTitle(title string) {
	t.title = t.titleStyle.Render(title)
	t.tunerActive = false
	t.dirty = true
}

func (t *Terminal) ShowSong(name string, index, total int) {
	t.title = t.songStyle.Render(fmt.Sprintf("%d/%d %s", index+1, total, name))
	t.tunerActive = false
	t.dirty = true
}

// -------------------- tuner --------------------

// AcquireTuner builds the tuner styles once, the terminal stand-in for the
// device's large-font load.
func (t *Terminal) AcquireTuner() error {
	if t.tunerReady {
		return nil
	}
	t.noteStyle = lipgloss.NewStyle().Bold(true).Width(6).Align(lipgloss.Center)
	t.flatStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))  // blue, below pitch
	t.sharpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")) // red, above pitch
	t.inTuneStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	t.tunerReady = true
	return nil
}

func (t *Terminal) ShowTuner(note string, cents int) {
	if !t.tunerReady {
		return
	}
	if t.tunerActive && t.tunerNote == note && t.tunerCents == cents {
		return
	}
	t.tunerActive = true
	t.tunerNote = note
	t.tunerCents = cents
	t.dirty = true
}

// -------------------- frame --------------------

// Render writes the current frame if anything changed since the last call.
func (t *Terminal) Render() {
	if !t.dirty {
		return
	}
	t.dirty = false

	var b strings.Builder
	if t.tunerActive {
		b.WriteString(t.tunerLine())
	} else {
		b.WriteString(t.title)
	}
	b.WriteString("\n")
	b.WriteString(t.ledLine())
	b.WriteString("\n")
	fmt.Fprint(t.w, b.String())
}

func (t *Terminal) tunerLine() string {
	needle := make([]rune, needleWidth)
	for i := range needle {
		needle[i] = '-'
	}
	pos := t.tunerCents + needleWidth/2
	needle[pos] = '|'

	style := t.inTuneStyle
	switch {
	case t.tunerCents > 1:
		style = t.sharpStyle
	case t.tunerCents < -1:
		style = t.flatStyle
	}
	return t.noteStyle.Render(t.tunerNote) + " " + style.Render(string(needle))
}

func (t *Terminal) ledLine() string {
	parts := make([]string, 0, len(t.order))
	for _, id := range t.order {
		led := t.leds[id]
		r := uint8(float64(led.rgb[0]) * led.brightness)
		g := uint8(float64(led.rgb[1]) * led.brightness)
		bl := uint8(float64(led.rgb[2]) * led.brightness)
		sw := lipgloss.NewStyle().
			Foreground(lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", r, g, bl))).
			Render("●")
		parts = append(parts, t.labelStyle.Render(id)+sw)
	}
	return strings.Join(parts, " ")
}

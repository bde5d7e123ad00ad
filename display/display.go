// Package display renders controller state for a human: LED colors, the
// page/song title, and the tuner view. The hardware front end has its own
// panel; the implementations here back the host binary and tests.
package display

// Null discards everything. It backs tests and headless runs.
type Null struct{}

func (Null) SetButtonColor(string, [3]uint8, float64) {}
func (Null) Show()                                    {}
func (Null) ShowTitle(string)                         {}
func (Null) ShowSong(string, int, int)                {}
func (Null) AcquireTuner() error                      { return nil }
func (Null) ShowTuner(string, int)                    {}
func (Null) Render()                                  {}

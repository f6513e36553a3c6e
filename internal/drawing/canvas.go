// Package drawing captures freehand strokes over the video surface and
// redraws the strokes whose time window contains the playback position.
package drawing

// Vec is a point in canvas pixel space.
type Vec struct {
	X float64
	Y float64
}

// Canvas is a drawing surface the engine repaints on every change.
// A single-point stroke must be painted as a dot.
type Canvas interface {
	Clear()
	DrawStroke(points []Vec, color string, width float64)
}

// PointerKind distinguishes mouse from touch input.
type PointerKind int

const (
	PointerMouse PointerKind = iota
	PointerTouch
)

// Pointer is an input position in canvas pixels.
type Pointer struct {
	X    float64
	Y    float64
	Kind PointerKind
}

// nopCanvas is used when the engine runs headless (replay diagnostics, tests).
type nopCanvas struct{}

func (nopCanvas) Clear()                           {}
func (nopCanvas) DrawStroke([]Vec, string, float64) {}

package drawing

import (
	"iter"
	"sync"

	"github.com/Shofol/CritVid-sub002/internal/critique"
)

// Defaults applied to strokes when the config leaves them unset.
const (
	DefaultColor    = "#ff3b30"
	DefaultWidth    = 4.0
	DefaultDuration = 5.0
)

// Config controls how new strokes are styled.
type Config struct {
	Color    string
	Width    float64
	Duration float64 // seconds a finished stroke stays visible
}

func (c Config) withDefaults() Config {
	if c.Color == "" {
		c.Color = DefaultColor
	}
	if c.Width <= 0 {
		c.Width = DefaultWidth
	}
	if c.Duration <= 0 {
		c.Duration = DefaultDuration
	}
	return c
}

// Engine owns the stroke collection of one critique and the overlay canvas.
type Engine struct {
	mu       sync.Mutex
	canvas   Canvas
	cfg      Config
	width    float64
	height   float64
	drawMode bool
	strokes  []critique.Stroke
	current  *critique.Stroke
	now      float64 // last known playback time
}

// NewEngine creates an engine painting onto canvas. A nil canvas renders
// nowhere.
func NewEngine(canvas Canvas, cfg Config) *Engine {
	if canvas == nil {
		canvas = nopCanvas{}
	}
	return &Engine{canvas: canvas, cfg: cfg.withDefaults()}
}

// SetCanvas swaps the surface, e.g. when the studio view is rebuilt.
func (e *Engine) SetCanvas(canvas Canvas) {
	if canvas == nil {
		canvas = nopCanvas{}
	}
	e.mu.Lock()
	e.canvas = canvas
	e.mu.Unlock()
}

// Config returns the stroke style in use.
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// SetColor changes the colour of strokes started from now on.
func (e *Engine) SetColor(color string) {
	e.mu.Lock()
	if color != "" {
		e.cfg.Color = color
	}
	e.mu.Unlock()
}

// Resize records the container dimensions in pixels and repaints.
func (e *Engine) Resize(width, height float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.width, e.height = width, height
	e.renderLocked()
}

// Size returns the tracked container dimensions.
func (e *Engine) Size() (width, height float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.width, e.height
}

// EnterDrawMode makes pointer gestures draw instead of reaching the video.
func (e *Engine) EnterDrawMode() {
	e.mu.Lock()
	e.drawMode = true
	e.mu.Unlock()
}

// ExitDrawMode returns pointer gestures to the video controls. A gesture in
// progress is abandoned.
func (e *Engine) ExitDrawMode() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.drawMode = false
	if e.current != nil {
		e.current = nil
		e.renderLocked()
	}
}

// DrawMode reports whether pointer input is being captured.
func (e *Engine) DrawMode() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.drawMode
}

// PointerDown starts a stroke tagged with videoTime. It returns whether the
// input was consumed; hosts suppress default touch scrolling when it was.
func (e *Engine) PointerDown(p Pointer, videoTime float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.drawMode || e.width <= 0 || e.height <= 0 {
		return false
	}
	e.now = videoTime
	e.current = &critique.Stroke{
		Points:    []critique.Point{e.normalize(p)},
		Color:     e.cfg.Color,
		Width:     e.cfg.Width,
		Timestamp: videoTime,
	}
	e.renderLocked()
	return true
}

// PointerMove extends the stroke in progress and repaints.
func (e *Engine) PointerMove(p Pointer) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.drawMode || e.current == nil {
		return false
	}
	e.current.Points = append(e.current.Points, e.normalize(p))
	e.renderLocked()
	return true
}

// PointerUp finishes the stroke in progress and adds it to the collection.
func (e *Engine) PointerUp() (critique.Stroke, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return critique.Stroke{}, false
	}
	s := *e.current
	s.Duration = e.cfg.Duration
	e.strokes = append(e.strokes, s)
	e.current = nil
	e.renderLocked()
	return s, true
}

// Drawing reports whether a gesture is in progress.
func (e *Engine) Drawing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current != nil
}

// Strokes returns a copy of the finished strokes in creation order.
func (e *Engine) Strokes() []critique.Stroke {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]critique.Stroke, len(e.strokes))
	for i, s := range e.strokes {
		s.Points = append([]critique.Point(nil), s.Points...)
		out[i] = s
	}
	return out
}

// Load replaces the collection with persisted strokes and repaints.
func (e *Engine) Load(strokes []critique.Stroke) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.strokes = append([]critique.Stroke(nil), strokes...)
	e.current = nil
	e.renderLocked()
}

// ClearAll empties the collection and the canvas.
func (e *Engine) ClearAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.strokes = nil
	e.current = nil
	e.canvas.Clear()
}

// VisibleStrokes yields the finished strokes visible at t.
func (e *Engine) VisibleStrokes(t float64) iter.Seq[critique.Stroke] {
	return VisibleStrokes(e.Strokes(), t)
}

// Render repaints the overlay for playback time t.
func (e *Engine) Render(t float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = t
	e.renderLocked()
}

// renderLocked clears the canvas and rebuilds every visible polyline from
// scratch, followed by the gesture in progress.
func (e *Engine) renderLocked() {
	e.canvas.Clear()
	for s := range VisibleStrokes(e.strokes, e.now) {
		e.canvas.DrawStroke(e.denormalize(s.Points), s.Color, s.Width)
	}
	if e.current != nil {
		e.canvas.DrawStroke(e.denormalize(e.current.Points), e.current.Color, e.current.Width)
	}
}

func (e *Engine) normalize(p Pointer) critique.Point {
	return critique.Point{X: clamp01(p.X / e.width), Y: clamp01(p.Y / e.height)}
}

func (e *Engine) denormalize(points []critique.Point) []Vec {
	out := make([]Vec, len(points))
	for i, p := range points {
		out[i] = Vec{X: p.X * e.width, Y: p.Y * e.height}
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// VisibleStrokes yields the strokes whose window [Timestamp, Timestamp+Duration]
// contains t, in collection order. It has no side effects and the returned
// sequence can be ranged over any number of times.
func VisibleStrokes(strokes []critique.Stroke, t float64) iter.Seq[critique.Stroke] {
	return func(yield func(critique.Stroke) bool) {
		for _, s := range strokes {
			if !s.VisibleAt(t) {
				continue
			}
			if !yield(s) {
				return
			}
		}
	}
}

package ui

import (
	"math"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/Shofol/CritVid-sub002/internal/drawing"
)

// CellPixels is the stroke width, in drawing units, that one terminal cell
// stands for. Narrower strokes still cover a full cell.
const CellPixels = 8.0

const ink = "█"

// CellCanvas is a drawing.Canvas over a grid of terminal cells. One drawing
// unit is one cell, so mouse coordinates map straight onto the grid.
type CellCanvas struct {
	mu     sync.Mutex
	cols   int
	rows   int
	cells  []string // stroke colour per cell, "" when empty
	styles map[string]lipgloss.Style
}

// NewCellCanvas creates an empty grid.
func NewCellCanvas(cols, rows int) *CellCanvas {
	c := &CellCanvas{styles: make(map[string]lipgloss.Style)}
	c.Resize(cols, rows)
	return c
}

// Resize reallocates the grid. Contents are dropped; the engine repaints
// after it is resized.
func (c *CellCanvas) Resize(cols, rows int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cols, c.rows = max(cols, 0), max(rows, 0)
	c.cells = make([]string, c.cols*c.rows)
}

// Size returns the grid dimensions.
func (c *CellCanvas) Size() (cols, rows int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cols, c.rows
}

// Clear implements drawing.Canvas.
func (c *CellCanvas) Clear() {
	c.mu.Lock()
	clear(c.cells)
	c.mu.Unlock()
}

// DrawStroke implements drawing.Canvas.
func (c *CellCanvas) DrawStroke(points []drawing.Vec, color string, width float64) {
	if len(points) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	r := int(width / CellPixels / 2)
	c.stamp(points[0], color, r)
	for i := 1; i < len(points); i++ {
		a, b := points[i-1], points[i]
		steps := int(math.Ceil(math.Max(math.Abs(b.X-a.X), math.Abs(b.Y-a.Y))))
		for s := 1; s <= steps; s++ {
			f := float64(s) / float64(steps)
			c.stamp(drawing.Vec{X: a.X + (b.X-a.X)*f, Y: a.Y + (b.Y-a.Y)*f}, color, r)
		}
	}
}

func (c *CellCanvas) stamp(p drawing.Vec, color string, r int) {
	cx, cy := int(math.Floor(p.X)), int(math.Floor(p.Y))
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			if x < 0 || y < 0 || x >= c.cols || y >= c.rows {
				continue
			}
			c.cells[y*c.cols+x] = color
		}
	}
}

// At returns the colour painted at a cell, or "".
func (c *CellCanvas) At(x, y int) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if x < 0 || y < 0 || x >= c.cols || y >= c.rows {
		return ""
	}
	return c.cells[y*c.cols+x]
}

// Painted counts non-empty cells.
func (c *CellCanvas) Painted() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, cell := range c.cells {
		if cell != "" {
			n++
		}
	}
	return n
}

// Lines renders the grid, one string per row.
func (c *CellCanvas) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	lines := make([]string, c.rows)
	var b strings.Builder
	for y := 0; y < c.rows; y++ {
		b.Reset()
		row := c.cells[y*c.cols : (y+1)*c.cols]
		for x := 0; x < len(row); {
			// one styled run per colour keeps the escape codes short
			end := x + 1
			for end < len(row) && row[end] == row[x] {
				end++
			}
			if row[x] == "" {
				b.WriteString(strings.Repeat(" ", end-x))
			} else {
				b.WriteString(c.style(row[x]).Render(strings.Repeat(ink, end-x)))
			}
			x = end
		}
		lines[y] = b.String()
	}
	return lines
}

func (c *CellCanvas) style(hex string) lipgloss.Style {
	st, ok := c.styles[hex]
	if !ok {
		st = lipgloss.NewStyle().Foreground(lipgloss.Color(hex))
		c.styles[hex] = st
	}
	return st
}

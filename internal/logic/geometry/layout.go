package geometry

import (
	"fmt"
	"image"
)

// Fixed output sizes.
const (
	CaptureWidth  = 1280 // encoded snapshot width
	CaptureHeight = 720  // encoded snapshot height

	StripWidth  = 533  // strip canvas width
	StripHeight = 1600 // strip canvas height

	CellWidth   = 440 // photo cell width, for every row count
	BorderWidth = 5   // white stroke around each cell
)

// Layout describes where photos go on the strip for a given row count.
type Layout struct {
	Rows          int
	CellHeight    int
	PaddingTop    int
	PaddingBottom int
	Spacing       int // vertical gap between two cells
}

// LayoutFor returns the strip layout for 3 or 4 rows.
func LayoutFor(rows int) (Layout, error) {
	switch rows {
	case 3:
		return Layout{Rows: 3, CellHeight: 330, PaddingTop: 120, PaddingBottom: 50, Spacing: 80}, nil
	case 4:
		return Layout{Rows: 4, CellHeight: 270, PaddingTop: 70, PaddingBottom: 50, Spacing: 40}, nil
	default:
		return Layout{}, fmt.Errorf("unsupported row count %d (want 3 or 4)", rows)
	}
}

// Canvas returns the strip canvas bounds.
func (l Layout) Canvas() image.Rectangle {
	return image.Rect(0, 0, StripWidth, StripHeight)
}

// CellX returns the horizontal offset that centers a cell on the canvas.
func (l Layout) CellX() int {
	return (StripWidth - CellWidth) / 2
}

// CellY returns the vertical offset of the i-th cell (0-based).
func (l Layout) CellY(i int) int {
	return l.PaddingTop + (l.CellHeight+l.Spacing)*i
}

// Cell returns the rectangle of the i-th cell (0-based).
func (l Layout) Cell(i int) image.Rectangle {
	x, y := l.CellX(), l.CellY(i)
	return image.Rect(x, y, x+CellWidth, y+l.CellHeight)
}

// TitleBaseline is the y coordinate of the title text baseline.
func (l Layout) TitleBaseline() int {
	return StripHeight - l.PaddingBottom*2
}

// TimestampBaseline is the y coordinate of the timestamp text baseline.
func (l Layout) TimestampBaseline() int {
	return StripHeight - l.PaddingBottom
}

package geometry

import (
	"image"
	"testing"
)

func TestLayoutFor_ThreeRows(t *testing.T) {
	l, err := LayoutFor(3)
	if err != nil {
		t.Fatalf("LayoutFor(3): %v", err)
	}

	wantY := []int{120, 530, 940}
	for i, y := range wantY {
		cell := l.Cell(i)
		want := image.Rect(46, y, 46+440, y+330)
		if cell != want {
			t.Errorf("cell %d = %v, want %v", i, cell, want)
		}
	}
}

func TestLayoutFor_FourRows(t *testing.T) {
	l, err := LayoutFor(4)
	if err != nil {
		t.Fatalf("LayoutFor(4): %v", err)
	}

	wantY := []int{70, 380, 690, 1000}
	for i, y := range wantY {
		if got := l.CellY(i); got != y {
			t.Errorf("cell %d y = %d, want %d", i, got, y)
		}
		if got := l.Cell(i).Dy(); got != 270 {
			t.Errorf("cell %d height = %d, want 270", i, got)
		}
	}
}

func TestLayoutFor_Unsupported(t *testing.T) {
	for _, rows := range []int{0, 1, 2, 5, -3} {
		if _, err := LayoutFor(rows); err == nil {
			t.Errorf("LayoutFor(%d): expected error", rows)
		}
	}
}

func TestLayout_CanvasIndependentOfRows(t *testing.T) {
	for _, rows := range []int{3, 4} {
		l, _ := LayoutFor(rows)
		if c := l.Canvas(); c.Dx() != 533 || c.Dy() != 1600 {
			t.Errorf("rows=%d canvas = %v, want 533x1600", rows, c)
		}
	}
}

func TestLayout_CellsFitAboveTitle(t *testing.T) {
	for _, rows := range []int{3, 4} {
		l, _ := LayoutFor(rows)
		last := l.Cell(rows - 1)
		if last.Max.Y >= l.TitleBaseline()-40 {
			t.Errorf("rows=%d: last cell bottom %d collides with title baseline %d",
				rows, last.Max.Y, l.TitleBaseline())
		}
		if !last.In(l.Canvas()) {
			t.Errorf("rows=%d: last cell %v outside canvas", rows, last)
		}
	}
}

func TestLayout_TextBaselines(t *testing.T) {
	l, _ := LayoutFor(3)
	if got := l.TitleBaseline(); got != 1500 {
		t.Errorf("TitleBaseline = %d, want 1500", got)
	}
	if got := l.TimestampBaseline(); got != 1550 {
		t.Errorf("TimestampBaseline = %d, want 1550", got)
	}
}

// Package filter implements the live-preview color filters applied to
// snapshots before encoding. Each filter is a chain of CSS filter-effect
// primitives (grayscale, sepia, saturate, hue-rotate, brightness,
// contrast) evaluated per pixel with clamping after every primitive,
// which is how browsers evaluate a filter list.
package filter

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sort"
)

// ErrUnknown is returned by Parse for names that are not registered.
var ErrUnknown = errors.New("unknown filter")

// None is the identity filter.
const None = "none"

// Filter is a named chain of color operations.
type Filter struct {
	name string
	ops  []op
}

// op maps a normalized RGB triple to a new one.
type op func(r, g, b float64) (float64, float64, float64)

var registry = map[string]Filter{
	None:        {name: None},
	"grayscale": {name: "grayscale", ops: []op{grayscale(1)}},
	"sepia":     {name: "sepia", ops: []op{sepia(1)}},
	"vintage": {name: "vintage", ops: []op{
		grayscale(1), contrast(1.2), brightness(1.1), sepia(0.3), hueRotate(10),
	}},
	"soft": {name: "soft", ops: []op{
		brightness(1.3), contrast(1.05), saturate(0.8),
	}},
}

// Parse returns the filter registered under name. An empty name is None.
func Parse(name string) (Filter, error) {
	if name == "" {
		name = None
	}
	f, ok := registry[name]
	if !ok {
		return Filter{}, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	return f, nil
}

// Names lists every registered filter, "none" first.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		if n != None {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return append([]string{None}, names...)
}

// Name returns the registered name ("none" for the zero Filter).
func (f Filter) Name() string {
	if f.name == "" {
		return None
	}
	return f.name
}

// IsNone reports whether applying f is a no-op.
func (f Filter) IsNone() bool {
	return len(f.ops) == 0
}

// Apply rewrites img in place. Alpha is preserved.
func (f Filter) Apply(img *image.RGBA) {
	if f.IsNone() {
		return
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for i := 0; i+3 < len(row); i += 4 {
			r := float64(row[i]) / 255
			g := float64(row[i+1]) / 255
			bl := float64(row[i+2]) / 255
			for _, o := range f.ops {
				r, g, bl = o(r, g, bl)
				r, g, bl = clamp(r), clamp(g), clamp(bl)
			}
			row[i] = to8(r)
			row[i+1] = to8(g)
			row[i+2] = to8(bl)
		}
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func to8(v float64) uint8 {
	return uint8(math.Round(v * 255))
}

// matrix builds an op from a 3x3 color matrix.
func matrix(m [9]float64) op {
	return func(r, g, b float64) (float64, float64, float64) {
		return m[0]*r + m[1]*g + m[2]*b,
			m[3]*r + m[4]*g + m[5]*b,
			m[6]*r + m[7]*g + m[8]*b
	}
}

func grayscale(amount float64) op {
	a := 1 - amount
	return matrix([9]float64{
		0.2126 + 0.7874*a, 0.7152 - 0.7152*a, 0.0722 - 0.0722*a,
		0.2126 - 0.2126*a, 0.7152 + 0.2848*a, 0.0722 - 0.0722*a,
		0.2126 - 0.2126*a, 0.7152 - 0.7152*a, 0.0722 + 0.9278*a,
	})
}

func sepia(amount float64) op {
	a := 1 - amount
	return matrix([9]float64{
		0.393 + 0.607*a, 0.769 - 0.769*a, 0.189 - 0.189*a,
		0.349 - 0.349*a, 0.686 + 0.314*a, 0.168 - 0.168*a,
		0.272 - 0.272*a, 0.534 - 0.534*a, 0.131 + 0.869*a,
	})
}

func saturate(s float64) op {
	return matrix([9]float64{
		0.213 + 0.787*s, 0.715 - 0.715*s, 0.072 - 0.072*s,
		0.213 - 0.213*s, 0.715 + 0.285*s, 0.072 - 0.072*s,
		0.213 - 0.213*s, 0.715 - 0.715*s, 0.072 + 0.928*s,
	})
}

func hueRotate(deg float64) op {
	rad := deg * math.Pi / 180
	c, s := math.Cos(rad), math.Sin(rad)
	return matrix([9]float64{
		0.213 + c*0.787 - s*0.213, 0.715 - c*0.715 - s*0.715, 0.072 - c*0.072 + s*0.928,
		0.213 - c*0.213 + s*0.143, 0.715 + c*0.285 + s*0.140, 0.072 - c*0.072 - s*0.283,
		0.213 - c*0.213 - s*0.787, 0.715 - c*0.715 + s*0.715, 0.072 + c*0.928 + s*0.072,
	})
}

func brightness(k float64) op {
	return func(r, g, b float64) (float64, float64, float64) {
		return r * k, g * k, b * k
	}
}

func contrast(k float64) op {
	return func(r, g, b float64) (float64, float64, float64) {
		return (r-0.5)*k + 0.5, (g-0.5)*k + 0.5, (b-0.5)*k + 0.5
	}
}

package strip

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"math/rand/v2"
	"os"
	"sync"

	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"

	"github.com/cjeanneret/photobooth/internal/debug"
	"github.com/cjeanneret/photobooth/internal/logic/geometry"
)

// Sticker names a full-canvas overlay.
type Sticker string

const (
	StickerNone  Sticker = "none"
	StickerOne   Sticker = "sticker1" // stars
	StickerTwo   Sticker = "sticker2" // hearts
	StickerThree Sticker = "sticker3" // confetti
)

// Stickers lists the selectable overlays, "none" first.
func Stickers() []Sticker {
	return []Sticker{StickerNone, StickerOne, StickerTwo, StickerThree}
}

// ParseSticker returns the sticker registered under name. Empty is none.
func ParseSticker(name string) (Sticker, error) {
	if name == "" {
		return StickerNone, nil
	}
	for _, s := range Stickers() {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSticker, name)
}

// StickerSet renders and caches overlays. A PNG file configured for a
// sticker replaces its built-in drawing.
type StickerSet struct {
	files map[Sticker]string

	mu    sync.Mutex
	cache map[Sticker]*image.RGBA
}

// NewStickerSet creates a set; files maps sticker names to image paths.
func NewStickerSet(files map[string]string) (*StickerSet, error) {
	set := &StickerSet{
		files: make(map[Sticker]string, len(files)),
		cache: make(map[Sticker]*image.RGBA),
	}
	for name, path := range files {
		s, err := ParseSticker(name)
		if err != nil {
			return nil, err
		}
		if s == StickerNone || path == "" {
			continue
		}
		set.files[s] = path
	}
	return set, nil
}

// Overlay returns the full-canvas overlay for s, or nil for none.
// The returned image is shared and must not be modified.
func (set *StickerSet) Overlay(s Sticker) (*image.RGBA, error) {
	if s == "" || s == StickerNone {
		return nil, nil
	}
	if _, err := ParseSticker(string(s)); err != nil {
		return nil, err
	}

	set.mu.Lock()
	defer set.mu.Unlock()
	if img, ok := set.cache[s]; ok {
		return img, nil
	}

	var img *image.RGBA
	var err error
	if path, ok := set.files[s]; ok {
		img, err = loadOverlay(path)
		if err != nil {
			return nil, err
		}
		debug.Verbose("Sticker %s loaded from %s", s, path)
	} else {
		img = drawBuiltin(s)
	}
	set.cache[s] = img
	return img, nil
}

// loadOverlay decodes an image file and stretches it over the canvas.
func loadOverlay(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sticker: %w", err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode sticker %s: %w", path, err)
	}
	dst := image.NewRGBA(image.Rect(0, 0, geometry.StripWidth, geometry.StripHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst, nil
}

// Palette used by the built-in stickers.
var (
	gold    = color.RGBA{0xf5, 0xc5, 0x18, 0xff}
	rose    = color.RGBA{0xe8, 0x4a, 0x7a, 0xff}
	blush   = color.RGBA{0xf4, 0x9a, 0xb4, 0xff}
	sky     = color.RGBA{0x5b, 0xa4, 0xe6, 0xff}
	mint    = color.RGBA{0x6c, 0xd4, 0xa8, 0xff}
	lilac   = color.RGBA{0xa9, 0x8b, 0xe8, 0xff}
	confPal = []color.RGBA{gold, rose, sky, mint, lilac}
)

// mark is one built-in sticker element, centered at (x, y).
type mark struct {
	x, y, size float32
	angle      float64
	color      color.RGBA
}

// Stars and hearts sit in the side margins and the title band.
var (
	starMarks = []mark{
		{x: 24, y: 40, size: 18, color: gold},
		{x: 500, y: 70, size: 24, angle: 0.3, color: gold},
		{x: 30, y: 470, size: 14, angle: 0.6, color: gold},
		{x: 508, y: 640, size: 16, color: gold},
		{x: 22, y: 880, size: 20, angle: 0.2, color: gold},
		{x: 512, y: 1120, size: 14, angle: 0.5, color: gold},
		{x: 60, y: 1440, size: 22, angle: 0.1, color: gold},
		{x: 470, y: 1470, size: 18, angle: 0.4, color: gold},
	}
	heartMarks = []mark{
		{x: 26, y: 50, size: 16, color: rose},
		{x: 505, y: 90, size: 20, color: blush},
		{x: 24, y: 520, size: 14, color: blush},
		{x: 510, y: 760, size: 16, color: rose},
		{x: 26, y: 1010, size: 18, color: rose},
		{x: 508, y: 1260, size: 14, color: blush},
		{x: 70, y: 1460, size: 18, color: blush},
		{x: 462, y: 1450, size: 22, color: rose},
	}
)

// confettiSeed keeps the confetti layout identical across renders.
const confettiSeed = 0x9e3779b97f4a7c15

func drawBuiltin(s Sticker) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, geometry.StripWidth, geometry.StripHeight))
	switch s {
	case StickerOne:
		for _, m := range starMarks {
			fillMark(dst, m, starPath)
		}
	case StickerTwo:
		for _, m := range heartMarks {
			fillMark(dst, m, heartPath)
		}
	case StickerThree:
		for _, m := range confetti(60) {
			fillMark(dst, m, rectPath)
		}
	}
	return dst
}

// confetti scatters n small pieces along the canvas edges.
func confetti(n int) []mark {
	rng := rand.New(rand.NewPCG(confettiSeed, confettiSeed>>7))
	marks := make([]mark, 0, n)
	for i := 0; i < n; i++ {
		var x float32
		if i%2 == 0 {
			x = 6 + rng.Float32()*34
		} else {
			x = geometry.StripWidth - 40 + rng.Float32()*34
		}
		marks = append(marks, mark{
			x:     x,
			y:     10 + rng.Float32()*(geometry.StripHeight-20),
			size:  4 + rng.Float32()*5,
			angle: rng.Float64() * math.Pi,
			color: confPal[i%len(confPal)],
		})
	}
	return marks
}

// pathFunc traces a closed shape for m, relative to the origin (ox, oy).
type pathFunc func(z *vector.Rasterizer, m mark, ox, oy float32)

// fillMark rasterizes one shape inside its own bounding box and composites
// it over dst.
func fillMark(dst *image.RGBA, m mark, path pathFunc) {
	r := int(math.Ceil(float64(m.size)*1.5)) + 1
	box := image.Rect(int(m.x)-r, int(m.y)-r, int(m.x)+r, int(m.y)+r).Intersect(dst.Bounds())
	if box.Empty() {
		return
	}
	z := vector.NewRasterizer(box.Dx(), box.Dy())
	z.DrawOp = draw.Over
	path(z, m, float32(box.Min.X), float32(box.Min.Y))
	z.Draw(dst, box, image.NewUniform(m.color), image.Point{})
}

func rotate(m mark, dx, dy float64, ox, oy float32) (float32, float32) {
	sin, cos := math.Sincos(m.angle)
	return m.x + float32(dx*cos-dy*sin) - ox, m.y + float32(dx*sin+dy*cos) - oy
}

// starPath traces a five-pointed star; size is the outer radius.
func starPath(z *vector.Rasterizer, m mark, ox, oy float32) {
	outer, inner := float64(m.size), float64(m.size)*0.45
	for i := 0; i < 10; i++ {
		rad := outer
		if i%2 == 1 {
			rad = inner
		}
		a := -math.Pi/2 + float64(i)*math.Pi/5
		x, y := rotate(m, rad*math.Cos(a), rad*math.Sin(a), ox, oy)
		if i == 0 {
			z.MoveTo(x, y)
		} else {
			z.LineTo(x, y)
		}
	}
	z.ClosePath()
}

// heartPath traces a heart from two cubic lobes meeting at the bottom tip.
func heartPath(z *vector.Rasterizer, m mark, ox, oy float32) {
	s := float64(m.size)
	p := func(dx, dy float64) (float32, float32) { return rotate(m, dx*s, dy*s, ox, oy) }

	tipX, tipY := p(0, 1)
	z.MoveTo(tipX, tipY)
	c1x, c1y := p(-1.2, 0.1)
	c2x, c2y := p(-0.6, -0.9)
	topX, topY := p(0, -0.35)
	z.CubeTo(c1x, c1y, c2x, c2y, topX, topY)
	c3x, c3y := p(0.6, -0.9)
	c4x, c4y := p(1.2, 0.1)
	z.CubeTo(c3x, c3y, c4x, c4y, tipX, tipY)
	z.ClosePath()
}

// rectPath traces a rotated 2:1 rectangle.
func rectPath(z *vector.Rasterizer, m mark, ox, oy float32) {
	w, h := float64(m.size), float64(m.size)/2
	corners := [4][2]float64{{-w, -h}, {w, -h}, {w, h}, {-w, h}}
	for i, c := range corners {
		x, y := rotate(m, c[0], c[1], ox, oy)
		if i == 0 {
			z.MoveTo(x, y)
		} else {
			z.LineTo(x, y)
		}
	}
	z.ClosePath()
}

package camera

import (
	"context"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/cjeanneret/photobooth/internal/debug"
)

// barColors are the classic SMPTE-like bars drawn by Pattern.
var barColors = []color.RGBA{
	{0xC0, 0xC0, 0xC0, 0xFF},
	{0xC0, 0xC0, 0x00, 0xFF},
	{0x00, 0xC0, 0xC0, 0xFF},
	{0x00, 0xC0, 0x00, 0xFF},
	{0xC0, 0x00, 0xC0, 0xFF},
	{0xC0, 0x00, 0x00, 0xFF},
	{0x00, 0x00, 0xC0, 0xFF},
}

// Pattern is a synthetic camera producing color bars with a moving marker.
// Used for development on a machine without a webcam (like the mock GPIO
// driver) and for end-to-end tests.
type Pattern struct {
	width, height int
	interval      time.Duration

	mu     sync.Mutex
	open   bool
	frames int
}

// NewPattern creates a pattern device producing w x h frames at fps.
func NewPattern(w, h, fps int) *Pattern {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &Pattern{
		width:    w,
		height:   h,
		interval: time.Second / time.Duration(fps),
	}
}

func (p *Pattern) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	debug.Info("Using PATTERN camera %dx%d (development mode)", p.width, p.height)
	p.open = true
	return nil
}

func (p *Pattern) ReadFrame(ctx context.Context) (image.Image, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(p.interval):
	}

	p.mu.Lock()
	if !p.open {
		p.mu.Unlock()
		return nil, ErrNoFrame
	}
	n := p.frames
	p.frames++
	p.mu.Unlock()

	return p.render(n), nil
}

func (p *Pattern) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	debug.Trace("Pattern camera closed after %d frames", p.frames)
	p.open = false
	return nil
}

func (p *Pattern) render(n int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, p.width, p.height))
	barW := p.width / len(barColors)
	if barW == 0 {
		barW = 1
	}
	for y := 0; y < p.height; y++ {
		for x := 0; x < p.width; x++ {
			i := x / barW
			if i >= len(barColors) {
				i = len(barColors) - 1
			}
			img.SetRGBA(x, y, barColors[i])
		}
	}

	// A white square sweeping left to right makes mirroring visible.
	size := p.height / 8
	if size < 1 {
		size = 1
	}
	span := p.width - size
	if span < 1 {
		span = 1
	}
	x0 := (n * 8) % span
	y0 := p.height/2 - size/2
	for y := y0; y < y0+size; y++ {
		for x := x0; x < x0+size; x++ {
			img.SetRGBA(x, y, color.RGBA{0xFF, 0xFF, 0xFF, 0xFF})
		}
	}
	return img
}

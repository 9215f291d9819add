package strip

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"sync"

	"github.com/cjeanneret/photobooth/internal/debug"
	"github.com/cjeanneret/photobooth/internal/logic/snapshot"
)

// ErrStale is returned by Render when a newer render was requested while
// this one was running. Its result is discarded.
var ErrStale = errors.New("strip render superseded")

// Filename is the download name of a strip.
const Filename = "photostrip.png"

// Renderer serializes strip regenerations: the last request wins.
type Renderer struct {
	compose func([]snapshot.Encoded, int, Style) (*image.RGBA, error)

	mu      sync.Mutex
	seq     uint64
	current *image.RGBA
}

// NewRenderer wraps c.
func NewRenderer(c *Composer) *Renderer {
	return &Renderer{compose: c.Compose}
}

// Render composes a strip and makes it current, unless another Render or
// Invalidate call started after this one.
func (r *Renderer) Render(ctx context.Context, images []snapshot.Encoded, rows int, style Style) (*image.RGBA, error) {
	r.mu.Lock()
	r.seq++
	stamp := r.seq
	r.mu.Unlock()

	img, err := r.compose(images, rows, style)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if stamp != r.seq {
		debug.Trace("Strip render %d discarded (latest %d)", stamp, r.seq)
		return nil, ErrStale
	}
	r.current = img
	return img, nil
}

// Current returns the latest completed strip.
func (r *Renderer) Current() (*image.RGBA, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, r.current != nil
}

// Invalidate drops the current strip and any render in flight.
func (r *Renderer) Invalidate() {
	r.mu.Lock()
	r.seq++
	r.current = nil
	r.mu.Unlock()
}

// EncodePNG encodes a strip for download.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode strip: %w", err)
	}
	return buf.Bytes(), nil
}

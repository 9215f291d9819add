// Package booth owns the photobooth view state: the camera stream, the
// capture sequencer, the selected filter and style, and the rendered strip.
package booth

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"golang.org/x/image/draw"

	"github.com/cjeanneret/photobooth/internal/debug"
	"github.com/cjeanneret/photobooth/internal/hw/camera"
	"github.com/cjeanneret/photobooth/internal/logic/capture"
	"github.com/cjeanneret/photobooth/internal/logic/filter"
	"github.com/cjeanneret/photobooth/internal/logic/snapshot"
	"github.com/cjeanneret/photobooth/internal/logic/strip"
)

var (
	// ErrIncomplete is returned when a strip is requested before every
	// shot of the session has been captured.
	ErrIncomplete = errors.New("session incomplete")

	// ErrNoShot is returned for a shot index outside the captured set.
	ErrNoShot = errors.New("no such shot")
)

// Config holds the booth defaults.
type Config struct {
	Rows          int
	Seconds       int
	Filter        string
	Style         strip.Style
	Params        capture.Params
	PreviewWidth  int
	PreviewHeight int
}

// DefaultConfig returns 3 rows, 3 seconds, no filter, a white strip.
func DefaultConfig() Config {
	return Config{
		Rows:          3,
		Seconds:       3,
		Filter:        filter.None,
		Style:         strip.DefaultStyle(),
		Params:        capture.DefaultParams(),
		PreviewWidth:  640,
		PreviewHeight: 360,
	}
}

// Settings is the user-selected state shown by the UI.
type Settings struct {
	Rows    int         `json:"rows"`
	Seconds int         `json:"seconds"`
	Filter  string      `json:"filter"`
	Style   strip.Style `json:"style"`
}

// Controller is the single owner of the booth state.
type Controller struct {
	stream   *camera.Stream
	seq      *capture.Sequencer
	renderer *strip.Renderer
	defaults Config

	mu       sync.RWMutex
	rows     int
	seconds  int
	filter   filter.Filter
	style    strip.Style
}

// New builds a controller. clock may be nil for the wall clock.
func New(stream *camera.Stream, composer *strip.Composer, clock capture.Clock, cfg Config) (*Controller, error) {
	def := DefaultConfig()
	if cfg.PreviewWidth <= 0 || cfg.PreviewHeight <= 0 {
		cfg.PreviewWidth, cfg.PreviewHeight = def.PreviewWidth, def.PreviewHeight
	}
	if cfg.Rows == 0 {
		cfg.Rows = def.Rows
	}
	if cfg.Seconds == 0 {
		cfg.Seconds = def.Seconds
	}
	if !capture.ValidParams(cfg.Rows, cfg.Seconds) {
		return nil, fmt.Errorf("%w: default %d shots, %ds", capture.ErrInvalidSession, cfg.Rows, cfg.Seconds)
	}
	f, err := filter.Parse(cfg.Filter)
	if err != nil {
		return nil, err
	}
	style, err := cfg.Style.Normalize()
	if err != nil {
		return nil, err
	}
	cfg.Style = style

	c := &Controller{
		stream:   stream,
		renderer: strip.NewRenderer(composer),
		defaults: cfg,
		rows:     cfg.Rows,
		seconds:  cfg.Seconds,
		filter:   f,
		style:    style,
	}
	c.seq = capture.NewSequencer(stream, clock, cfg.Params, c.currentFilter)
	return c, nil
}

// Subscribe forwards sequencer events to o.
func (c *Controller) Subscribe(o capture.Observer) {
	c.seq.Subscribe(o)
}

// Activate acquires the camera. It is idempotent.
func (c *Controller) Activate(ctx context.Context) error {
	if err := c.stream.Acquire(ctx); err != nil {
		debug.Error(err)
		return err
	}
	return nil
}

// StartSession begins capturing rows shots with a seconds countdown each.
// The camera is acquired first if needed. The session outlives ctx; use
// Reset to stop it.
func (c *Controller) StartSession(ctx context.Context, rows, seconds int) (capture.Session, error) {
	if !capture.ValidParams(rows, seconds) {
		return capture.Session{}, fmt.Errorf("%w: %d shots, %ds", capture.ErrInvalidSession, rows, seconds)
	}
	if c.seq.Active() {
		sess, _ := c.seq.Session()
		return sess, capture.ErrSessionActive
	}
	if err := c.Activate(ctx); err != nil {
		return capture.Session{}, err
	}

	sess, err := c.seq.Start(context.WithoutCancel(ctx), rows, seconds)
	if err != nil {
		return sess, err
	}
	c.mu.Lock()
	c.rows, c.seconds = rows, seconds
	c.mu.Unlock()
	c.renderer.Invalidate()
	return sess, nil
}

// Wait blocks until the running session ends.
func (c *Controller) Wait(ctx context.Context) error {
	return c.seq.Wait(ctx)
}

// Session returns a snapshot of the current session.
func (c *Controller) Session() (capture.Session, bool) {
	return c.seq.Session()
}

// Shot returns the i-th captured image (0-based).
func (c *Controller) Shot(i int) (snapshot.Encoded, error) {
	sess, ok := c.seq.Session()
	if !ok || i < 0 || i >= len(sess.Images) {
		return snapshot.Encoded{}, fmt.Errorf("%w: %d", ErrNoShot, i)
	}
	return sess.Images[i], nil
}

// Settings returns the current selections.
func (c *Controller) Settings() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Settings{Rows: c.rows, Seconds: c.seconds, Filter: c.filter.Name(), Style: c.style}
}

// SetFilter selects the filter applied to the preview and to later shots.
func (c *Controller) SetFilter(name string) error {
	f, err := filter.Parse(name)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.filter = f
	c.mu.Unlock()
	debug.Verbose("Filter set to %s", f.Name())
	return nil
}

func (c *Controller) currentFilter() filter.Filter {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filter
}

// SetStyle changes the strip decoration and re-renders a completed strip.
func (c *Controller) SetStyle(ctx context.Context, style strip.Style) error {
	style, err := style.Normalize()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.style = style
	c.mu.Unlock()
	c.renderer.Invalidate()

	if _, err := c.render(ctx); err != nil && !errors.Is(err, ErrIncomplete) && !errors.Is(err, strip.ErrStale) {
		return err
	}
	return nil
}

// Strip returns the strip for the completed session, rendering it if
// needed. A render superseded by a style change is retried.
func (c *Controller) Strip(ctx context.Context) (*image.RGBA, error) {
	for {
		if img, ok := c.renderer.Current(); ok {
			return img, nil
		}
		img, err := c.render(ctx)
		if !errors.Is(err, strip.ErrStale) {
			return img, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		debug.Trace("Strip export superseded, rendering again")
	}
}

// StripPNG returns the strip encoded for download.
func (c *Controller) StripPNG(ctx context.Context) ([]byte, error) {
	img, err := c.Strip(ctx)
	if err != nil {
		return nil, err
	}
	return strip.EncodePNG(img)
}

func (c *Controller) render(ctx context.Context) (*image.RGBA, error) {
	sess, ok := c.seq.Session()
	if !ok || sess.Active || !sess.Complete() {
		return nil, ErrIncomplete
	}
	c.mu.RLock()
	style := c.style
	c.mu.RUnlock()

	return c.renderer.Render(ctx, sess.Images, sess.TargetCount, style)
}

// Preview returns the live frame as the user sees it: cropped to the
// capture ratio, mirrored and filtered, at preview size.
func (c *Controller) Preview() (*image.RGBA, error) {
	frame, err := c.stream.Frame()
	if err != nil {
		return nil, err
	}
	return snapshot.RenderSize(frame, c.currentFilter(), c.defaults.PreviewWidth, c.defaults.PreviewHeight, draw.NearestNeighbor)
}

// Reset stops any countdown, discards the session and strip, releases the
// camera and restores the default selections.
func (c *Controller) Reset() error {
	c.seq.Clear()
	c.renderer.Invalidate()

	c.mu.Lock()
	c.rows, c.seconds = c.defaults.Rows, c.defaults.Seconds
	c.filter, _ = filter.Parse(c.defaults.Filter)
	c.style = c.defaults.Style
	c.mu.Unlock()

	debug.Info("Booth reset")
	return c.stream.Release()
}

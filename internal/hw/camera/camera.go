package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
)

var (
	// ErrUnavailable means the camera could not be opened (missing device,
	// permission denied, unsupported format). It is terminal for a session.
	ErrUnavailable = errors.New("camera unavailable")

	// ErrNoFrame means the stream is up but no frame has arrived yet, or the
	// stream is not acquired.
	ErrNoFrame = errors.New("no frame available")
)

// Device is the low-level frame source, regardless of how frames are
// produced (V4L2 webcam, synthetic pattern, test fake).
type Device interface {
	// Open starts streaming.
	Open() error
	// ReadFrame blocks until the next frame or ctx is done.
	ReadFrame(ctx context.Context) (image.Image, error)
	// Close stops streaming and frees the device.
	Close() error
}

// Settings requests a capture mode from the device.
type Settings struct {
	Type   string // "v4l2" or "pattern"
	Device string // e.g. /dev/video0
	Width  int
	Height int
	FPS    int
	Format string // "mjpeg" or "yuyv"
}

// Defaults for the requested capture mode.
const (
	DefaultDevice = "/dev/video0"
	DefaultWidth  = 1280
	DefaultHeight = 720
	DefaultFPS    = 30
	DefaultFormat = "mjpeg"
)

// WithDefaults fills zero fields.
func (s Settings) WithDefaults() Settings {
	if s.Type == "" {
		s.Type = "v4l2"
	}
	if s.Device == "" {
		s.Device = DefaultDevice
	}
	if s.Width <= 0 {
		s.Width = DefaultWidth
	}
	if s.Height <= 0 {
		s.Height = DefaultHeight
	}
	if s.FPS <= 0 {
		s.FPS = DefaultFPS
	}
	if s.Format == "" {
		s.Format = DefaultFormat
	}
	return s
}

// New selects a Device implementation from settings.
func New(s Settings) (Device, error) {
	s = s.WithDefaults()
	switch s.Type {
	case "v4l2":
		return NewV4L2(s), nil
	case "pattern":
		return NewPattern(s.Width, s.Height, s.FPS), nil
	default:
		return nil, fmt.Errorf("unsupported camera type: %s", s.Type)
	}
}

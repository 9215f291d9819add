//go:build linux

package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"sync"

	"github.com/blackjack/webcam"

	"github.com/cjeanneret/photobooth/internal/debug"
)

// FourCC pixel formats we know how to decode.
const (
	fourccMJPEG webcam.PixelFormat = 'M' | 'J'<<8 | 'P'<<16 | 'G'<<24
	fourccYUYV  webcam.PixelFormat = 'Y' | 'U'<<8 | 'Y'<<16 | 'V'<<24
)

// waitTimeoutSec bounds each WaitForFrame so ReadFrame can observe ctx.
const waitTimeoutSec = 1

// V4L2 is a Device backed by a Video4Linux webcam.
type V4L2 struct {
	settings Settings

	mu     sync.Mutex
	cam    *webcam.Webcam
	format webcam.PixelFormat
	width  int
	height int
}

// NewV4L2 creates a V4L2 device. Nothing is opened until Open.
func NewV4L2(s Settings) *V4L2 {
	return &V4L2{settings: s.WithDefaults()}
}

func (v *V4L2) Open() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.cam != nil {
		return nil
	}

	debug.Info("Opening webcam %s", v.settings.Device)
	cam, err := webcam.Open(v.settings.Device)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrUnavailable, v.settings.Device, err)
	}

	want := fourccMJPEG
	if v.settings.Format == "yuyv" {
		want = fourccYUYV
	}
	formats := cam.GetSupportedFormats()
	if _, ok := formats[want]; !ok {
		cam.Close()
		return fmt.Errorf("%w: %s does not support %s", ErrUnavailable, v.settings.Device, v.settings.Format)
	}

	format, w, h, err := cam.SetImageFormat(want, uint32(v.settings.Width), uint32(v.settings.Height))
	if err != nil {
		cam.Close()
		return fmt.Errorf("%w: set format: %v", ErrUnavailable, err)
	}
	debug.Value("Webcam format", formats[format])
	debug.Value("Webcam resolution", fmt.Sprintf("%dx%d", w, h))

	if err := cam.SetFramerate(float32(v.settings.FPS)); err != nil {
		// Many UVC drivers ignore the request; not fatal.
		debug.Verbose("Webcam: set framerate %d failed: %v", v.settings.FPS, err)
	}
	if err := cam.SetBufferCount(4); err != nil {
		debug.Verbose("Webcam: set buffer count failed: %v", err)
	}
	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		return fmt.Errorf("%w: start streaming: %v", ErrUnavailable, err)
	}

	v.cam = cam
	v.format = format
	v.width = int(w)
	v.height = int(h)
	return nil
}

func (v *V4L2) ReadFrame(ctx context.Context) (image.Image, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		v.mu.Lock()
		cam := v.cam
		v.mu.Unlock()
		if cam == nil {
			return nil, ErrNoFrame
		}

		err := cam.WaitForFrame(waitTimeoutSec)
		var timeout *webcam.Timeout
		if errors.As(err, &timeout) {
			debug.Trace("Webcam: frame wait timed out")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("wait for frame: %w", err)
		}

		raw, err := cam.ReadFrame()
		if err != nil {
			return nil, fmt.Errorf("read frame: %w", err)
		}
		if len(raw) == 0 {
			continue
		}
		return v.decode(raw)
	}
}

// decode converts a raw buffer into an image. The buffer belongs to the
// driver and is only valid until the next read, so both paths copy.
func (v *V4L2) decode(raw []byte) (image.Image, error) {
	switch v.format {
	case fourccMJPEG:
		img, err := jpeg.Decode(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("decode mjpeg: %w", err)
		}
		return img, nil
	case fourccYUYV:
		return yuyvToYCbCr(raw, v.width, v.height)
	default:
		return nil, fmt.Errorf("unsupported pixel format %#x", uint32(v.format))
	}
}

func (v *V4L2) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cam == nil {
		return nil
	}
	debug.Info("Closing webcam %s", v.settings.Device)
	_ = v.cam.StopStreaming()
	err := v.cam.Close()
	v.cam = nil
	return err
}

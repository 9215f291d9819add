//go:build !linux

package camera

import (
	"context"
	"fmt"
	"image"
)

// V4L2 is only available on Linux; elsewhere Open always fails.
type V4L2 struct {
	settings Settings
}

func NewV4L2(s Settings) *V4L2 {
	return &V4L2{settings: s.WithDefaults()}
}

func (v *V4L2) Open() error {
	return fmt.Errorf("%w: v4l2 is not supported on this platform (use camera.type: pattern)", ErrUnavailable)
}

func (v *V4L2) ReadFrame(ctx context.Context) (image.Image, error) {
	return nil, ErrNoFrame
}

func (v *V4L2) Close() error { return nil }

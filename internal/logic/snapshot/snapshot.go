// Package snapshot turns a live camera frame into the fixed-size, mirrored,
// filtered still that a capture session stores.
package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"time"

	"golang.org/x/image/draw"

	"github.com/cjeanneret/photobooth/internal/logic/filter"
	"github.com/cjeanneret/photobooth/internal/logic/geometry"
)

// ErrEmptyFrame is returned when there is nothing to capture.
var ErrEmptyFrame = errors.New("empty frame")

// Encoded is one captured still: PNG bytes at the capture resolution.
// The Data slice is never modified after Take returns.
type Encoded struct {
	Data    []byte
	Width   int
	Height  int
	TakenAt time.Time
}

// Size returns the encoded payload size in bytes.
func (e Encoded) Size() int {
	return len(e.Data)
}

// Render crops frame to fill the capture canvas, mirrors it and applies f.
func Render(frame image.Image, f filter.Filter) (*image.RGBA, error) {
	return RenderSize(frame, f, geometry.CaptureWidth, geometry.CaptureHeight, draw.ApproxBiLinear)
}

// RenderSize is Render with an explicit output size and scaler.
// The live preview uses it with a smaller size and a faster scaler.
func RenderSize(frame image.Image, f filter.Filter, w, h int, scaler draw.Scaler) (*image.RGBA, error) {
	if frame == nil || frame.Bounds().Empty() {
		return nil, ErrEmptyFrame
	}
	src := geometry.CoverCrop(frame.Bounds(), w, h)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	scaler.Scale(dst, dst.Bounds(), frame, src, draw.Src, nil)
	Mirror(dst)
	f.Apply(dst)
	return dst, nil
}

// Take renders frame at 1280x720 and encodes it as PNG.
func Take(frame image.Image, f filter.Filter, now time.Time) (Encoded, error) {
	img, err := Render(frame, f)
	if err != nil {
		return Encoded{}, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Encoded{}, fmt.Errorf("encode snapshot: %w", err)
	}
	return Encoded{
		Data:    buf.Bytes(),
		Width:   img.Rect.Dx(),
		Height:  img.Rect.Dy(),
		TakenAt: now,
	}, nil
}

// FromImage encodes an existing image without cropping or mirroring.
// It is used to feed files from disk into the composer.
func FromImage(img image.Image, now time.Time) (Encoded, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Encoded{}, fmt.Errorf("encode image: %w", err)
	}
	b := img.Bounds()
	return Encoded{Data: buf.Bytes(), Width: b.Dx(), Height: b.Dy(), TakenAt: now}, nil
}

// Decode decodes any registered image format (PNG, JPEG).
func Decode(e Encoded) (image.Image, error) {
	if len(e.Data) == 0 {
		return nil, ErrEmptyFrame
	}
	img, _, err := image.Decode(bytes.NewReader(e.Data))
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return img, nil
}

// EncodeJPEG encodes a preview frame.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Mirror flips img horizontally in place (selfie convention).
func Mirror(img *image.RGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for l, r := 0, len(row)-4; l < r; l, r = l+4, r-4 {
			row[l], row[r] = row[r], row[l]
			row[l+1], row[r+1] = row[r+1], row[l+1]
			row[l+2], row[r+2] = row[r+2], row[l+2]
			row[l+3], row[r+3] = row[r+3], row[l+3]
		}
	}
}

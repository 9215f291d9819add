// Package strip lays captured photos out on a decorated vertical strip.
package strip

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/cjeanneret/photobooth/internal/debug"
	"github.com/cjeanneret/photobooth/internal/logic/geometry"
	"github.com/cjeanneret/photobooth/internal/logic/snapshot"
)

// ErrTooManyImages is returned when there are more images than rows.
var ErrTooManyImages = errors.New("more images than strip rows")

// DefaultTitle is drawn under the photos.
const DefaultTitle = "Photobooth"

// TimestampLayout renders like an en-US locale string with 2-digit fields
// and a 12-hour clock.
const TimestampLayout = "01/02/2006, 03:04 PM"

var borderColor = color.RGBA{0xff, 0xff, 0xff, 0xff}

// Options configures a Composer.
type Options struct {
	Title     string            // text under the photos; DefaultTitle when empty
	TitleFont string            // TTF path; Go Italic when empty
	Stickers  map[string]string // sticker name -> overlay image path
	Now       func() time.Time  // timestamp clock; time.Now when nil
}

// Composer draws strips. It is safe for concurrent use.
type Composer struct {
	title    string
	fonts    fonts
	stickers *StickerSet
	now      func() time.Time
}

// NewComposer loads fonts and sticker files.
func NewComposer(opts Options) (*Composer, error) {
	f, err := loadFonts(opts.TitleFont)
	if err != nil {
		return nil, err
	}
	set, err := NewStickerSet(opts.Stickers)
	if err != nil {
		return nil, err
	}
	c := &Composer{
		title:    opts.Title,
		fonts:    f,
		stickers: set,
		now:      opts.Now,
	}
	if c.title == "" {
		c.title = DefaultTitle
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// Compose draws images (in order, top to bottom) on a 533x1600 canvas.
//
// Every image is decoded before anything is drawn, so the sticker and the
// text always land on top of all photos. A decode failure aborts the
// render. Fewer images than rows leaves the remaining cells empty.
func (c *Composer) Compose(images []snapshot.Encoded, rows int, style Style) (*image.RGBA, error) {
	layout, err := geometry.LayoutFor(rows)
	if err != nil {
		return nil, err
	}
	if len(images) > rows {
		return nil, fmt.Errorf("%w: %d images for %d rows", ErrTooManyImages, len(images), rows)
	}
	style, err = style.Normalize()
	if err != nil {
		return nil, err
	}
	bg, err := ParseColor(style.Background)
	if err != nil {
		return nil, err
	}
	overlay, err := c.stickers.Overlay(style.Sticker)
	if err != nil {
		return nil, err
	}

	decoded, err := decodeAll(images)
	if err != nil {
		return nil, err
	}

	canvas := image.NewRGBA(layout.Canvas())
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	for i, img := range decoded {
		cell := layout.Cell(i)
		crop := geometry.CoverCrop(img.Bounds(), cell.Dx(), cell.Dy())
		draw.CatmullRom.Scale(canvas, cell, img, crop, draw.Src, nil)
		strokeRect(canvas, cell, geometry.BorderWidth, borderColor)
	}

	if overlay != nil {
		draw.Draw(canvas, canvas.Bounds(), overlay, image.Point{}, draw.Over)
	}

	ink := image.NewUniform(TextColor(style.Background))
	drawCentered(canvas, c.fonts.titleFace(), ink, c.title, layout.TitleBaseline())
	if style.Timestamp {
		drawCentered(canvas, c.fonts.stampFace(), ink, c.now().Format(TimestampLayout), layout.TimestampBaseline())
	}

	debug.Verbose("Strip composed: %d/%d photos, background %s, sticker %s",
		len(decoded), rows, style.Background, style.Sticker)
	return canvas, nil
}

// decodeAll decodes every image concurrently and waits for all of them.
func decodeAll(images []snapshot.Encoded) ([]image.Image, error) {
	out := make([]image.Image, len(images))
	errs := make([]error, len(images))

	var wg sync.WaitGroup
	for i := range images {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			img, err := snapshot.Decode(images[i])
			if err != nil {
				errs[i] = fmt.Errorf("photo %d: %w", i+1, err)
				return
			}
			out[i] = img
		}(i)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

// strokeRect draws a border of the given width centered on the edges of r.
func strokeRect(dst *image.RGBA, r image.Rectangle, width int, c color.Color) {
	lo := width / 2
	hi := width - lo
	outer := image.Rect(r.Min.X-lo, r.Min.Y-lo, r.Max.X+lo, r.Max.Y+lo)
	inner := image.Rect(r.Min.X+hi, r.Min.Y+hi, r.Max.X-hi, r.Max.Y-hi)
	src := image.NewUniform(c)

	for _, band := range []image.Rectangle{
		image.Rect(outer.Min.X, outer.Min.Y, outer.Max.X, inner.Min.Y), // top
		image.Rect(outer.Min.X, inner.Max.Y, outer.Max.X, outer.Max.Y), // bottom
		image.Rect(outer.Min.X, inner.Min.Y, inner.Min.X, inner.Max.Y), // left
		image.Rect(inner.Max.X, inner.Min.Y, outer.Max.X, inner.Max.Y), // right
	} {
		draw.Draw(dst, band.Intersect(dst.Bounds()), src, image.Point{}, draw.Src)
	}
}

// drawCentered draws text horizontally centered with its baseline at y.
func drawCentered(dst *image.RGBA, face font.Face, src image.Image, text string, y int) {
	defer face.Close()
	d := &font.Drawer{Dst: dst, Src: src, Face: face}
	w := d.MeasureString(text)
	x := (fixed.I(dst.Bounds().Dx()) - w) / 2
	d.Dot = fixed.Point26_6{X: x, Y: fixed.I(y)}
	d.DrawString(text)
}

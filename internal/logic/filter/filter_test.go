package filter

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestParse_KnownNames(t *testing.T) {
	for _, name := range Names() {
		f, err := Parse(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, f.Name())
	}
}

func TestParse_EmptyIsNone(t *testing.T) {
	f, err := Parse("")
	require.NoError(t, err)
	assert.True(t, f.IsNone())
	assert.Equal(t, None, f.Name())
}

func TestParse_Unknown(t *testing.T) {
	_, err := Parse("blur(4px)")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknown))
}

func TestNames_NoneFirst(t *testing.T) {
	names := Names()
	require.NotEmpty(t, names)
	assert.Equal(t, None, names[0])
	assert.Contains(t, names, "sepia")
	assert.Contains(t, names, "grayscale")
}

func TestApply_NoneLeavesPixelsUntouched(t *testing.T) {
	img := solid(color.RGBA{200, 10, 50, 255})
	f, _ := Parse(None)
	f.Apply(img)
	assert.Equal(t, color.RGBA{200, 10, 50, 255}, img.RGBAAt(1, 1))
}

func TestApply_GrayscaleEqualizesChannels(t *testing.T) {
	img := solid(color.RGBA{255, 0, 0, 255})
	f, _ := Parse("grayscale")
	f.Apply(img)

	px := img.RGBAAt(2, 2)
	assert.Equal(t, px.R, px.G)
	assert.Equal(t, px.G, px.B)
	// Rec. 709 luma of pure red.
	assert.InDelta(t, 54, int(px.R), 1)
	assert.Equal(t, uint8(255), px.A)
}

func TestApply_SepiaWarmsWhite(t *testing.T) {
	img := solid(color.RGBA{128, 128, 128, 255})
	f, _ := Parse("sepia")
	f.Apply(img)

	px := img.RGBAAt(0, 0)
	assert.Greater(t, px.R, px.G)
	assert.Greater(t, px.G, px.B)
}

func TestApply_SoftBrightens(t *testing.T) {
	img := solid(color.RGBA{100, 100, 100, 255})
	f, _ := Parse("soft")
	f.Apply(img)
	assert.Greater(t, img.RGBAAt(0, 0).R, uint8(100))
}

func TestApply_ClampsBrightWhite(t *testing.T) {
	img := solid(color.RGBA{255, 255, 255, 255})
	f, _ := Parse("soft")
	f.Apply(img)
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(3, 3))
}

func TestApply_SubImageOnlyTouchesBounds(t *testing.T) {
	img := solid(color.RGBA{255, 0, 0, 255})
	sub := img.SubImage(image.Rect(0, 0, 2, 4)).(*image.RGBA)
	f, _ := Parse("grayscale")
	f.Apply(sub)

	assert.NotEqual(t, color.RGBA{255, 0, 0, 255}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, img.RGBAAt(3, 0))
}

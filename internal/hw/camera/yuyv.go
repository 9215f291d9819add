package camera

import (
	"fmt"
	"image"
)

// yuyvToYCbCr converts a packed YUYV 4:2:2 buffer into a 4:2:2 YCbCr image.
// Every 4 bytes hold two pixels: Y0 Cb Y1 Cr.
func yuyvToYCbCr(raw []byte, w, h int) (*image.YCbCr, error) {
	if w <= 0 || h <= 0 || w%2 != 0 {
		return nil, fmt.Errorf("yuyv: invalid size %dx%d", w, h)
	}
	if len(raw) < w*h*2 {
		return nil, fmt.Errorf("yuyv: short buffer %d bytes for %dx%d", len(raw), w, h)
	}

	img := image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio422)
	for y := 0; y < h; y++ {
		src := raw[y*w*2 : (y+1)*w*2]
		yRow := img.Y[y*img.YStride:]
		cRow := y * img.CStride
		for x := 0; x < w; x += 2 {
			i := x * 2
			yRow[x] = src[i]
			yRow[x+1] = src[i+2]
			img.Cb[cRow+x/2] = src[i+1]
			img.Cr[cRow+x/2] = src[i+3]
		}
	}
	return img, nil
}

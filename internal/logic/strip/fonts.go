package strip

import (
	"fmt"
	"os"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
)

// Text sizes in pixels.
const (
	TitleSize     = 60
	TimestampSize = 20
)

// fonts holds parsed typefaces. Faces are created per render because a
// truetype face caches glyphs and is not safe for concurrent use.
type fonts struct {
	title *truetype.Font
	stamp *truetype.Font
}

// loadFonts parses the title face from titlePath, or the built-in Go
// Italic face when titlePath is empty.
func loadFonts(titlePath string) (fonts, error) {
	titleTTF := goitalic.TTF
	if titlePath != "" {
		b, err := os.ReadFile(titlePath)
		if err != nil {
			return fonts{}, fmt.Errorf("read title font: %w", err)
		}
		titleTTF = b
	}
	title, err := truetype.Parse(titleTTF)
	if err != nil {
		return fonts{}, fmt.Errorf("parse title font: %w", err)
	}
	stamp, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return fonts{}, fmt.Errorf("parse timestamp font: %w", err)
	}
	return fonts{title: title, stamp: stamp}, nil
}

func (f fonts) titleFace() font.Face {
	return newFace(f.title, TitleSize)
}

func (f fonts) stampFace() font.Face {
	return newFace(f.stamp, TimestampSize)
}

func newFace(f *truetype.Font, size float64) font.Face {
	return truetype.NewFace(f, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

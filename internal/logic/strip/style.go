package strip

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

var (
	// ErrUnknownColor is returned for backgrounds outside the preset list.
	ErrUnknownColor = errors.New("unknown strip color")

	// ErrUnknownSticker is returned for sticker names that are not registered.
	ErrUnknownSticker = errors.New("unknown sticker")
)

// Preset is one selectable strip background.
type Preset struct {
	Label string `json:"label"`
	Value string `json:"value"` // CSS color: keyword or #rrggbb
}

// Presets lists the selectable backgrounds in display order.
var Presets = []Preset{
	{"White", "white"},
	{"Black", "black"},
	{"Pink", "#f6d5da"},
	{"Green", "#dde6d5"},
	{"Blue", "#adc3e5"},
	{"Yellow", "#fff2cc"},
	{"Purple", "#dbcfff"},
	{"Maroon", "#800000"},
	{"Burgundy", "#845050"},
}

// DefaultBackground is the background of a fresh style.
const DefaultBackground = "white"

// Style is the user-selected decoration of a strip.
type Style struct {
	Background string  `json:"background"`
	Sticker    Sticker `json:"sticker"`
	Timestamp  bool    `json:"timestamp"`
}

// DefaultStyle returns a white strip with no sticker and no timestamp.
func DefaultStyle() Style {
	return Style{Background: DefaultBackground, Sticker: StickerNone}
}

// Normalize validates s and fills empty fields with defaults.
func (s Style) Normalize() (Style, error) {
	if s.Background == "" {
		s.Background = DefaultBackground
	}
	s.Background = strings.ToLower(strings.TrimSpace(s.Background))
	if _, err := ParseColor(s.Background); err != nil {
		return Style{}, err
	}
	if s.Sticker == "" {
		s.Sticker = StickerNone
	}
	if _, err := ParseSticker(string(s.Sticker)); err != nil {
		return Style{}, err
	}
	return s, nil
}

// ParseColor resolves a preset value to an opaque color.
func ParseColor(value string) (color.RGBA, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	for _, p := range Presets {
		if p.Value == v {
			return hexOrKeyword(v)
		}
	}
	return color.RGBA{}, fmt.Errorf("%w: %q", ErrUnknownColor, value)
}

func hexOrKeyword(v string) (color.RGBA, error) {
	switch v {
	case "white":
		return color.RGBA{0xff, 0xff, 0xff, 0xff}, nil
	case "black":
		return color.RGBA{0, 0, 0, 0xff}, nil
	}
	if len(v) != 7 || v[0] != '#' {
		return color.RGBA{}, fmt.Errorf("%w: %q", ErrUnknownColor, v)
	}
	n, err := strconv.ParseUint(v[1:], 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%w: %q", ErrUnknownColor, v)
	}
	return color.RGBA{uint8(n >> 16), uint8(n >> 8), uint8(n), 0xff}, nil
}

// TextColor returns white on the dark presets (black, maroon) and black
// everywhere else. Burgundy is dark too but keeps black text.
func TextColor(background string) color.RGBA {
	switch strings.ToLower(strings.TrimSpace(background)) {
	case "black", "#800000":
		return color.RGBA{0xff, 0xff, 0xff, 0xff}
	default:
		return color.RGBA{0, 0, 0, 0xff}
	}
}

package render

import (
	"fmt"
	"image/color"
	"math"
)

// ColorTheme is a predefined gradient used to color spectrum bars by level.
type ColorTheme string

const (
	ClassicTheme   ColorTheme = "classic"   // Blue -> Red
	GrayscaleTheme ColorTheme = "grayscale" // Black -> White
	JungleTheme    ColorTheme = "jungle"    // Dark green -> Yellow
	ThermalTheme   ColorTheme = "thermal"   // Black -> Red -> Yellow -> White
	MarineTheme    ColorTheme = "marine"    // Deep blue -> Cyan -> White

	DefaultColorMapSize = 256
)

var themes = map[ColorTheme]func(float64) color.Color{
	ClassicTheme: func(level float64) color.Color {
		return HSV{H: 240 - level*240, S: 0.9 + level*0.1, V: 0.35 + math.Pow(level, 0.7)*0.65}.RGB()
	},
	GrayscaleTheme: func(level float64) color.Color {
		v := uint8((0.25 + math.Pow(level, 0.7)*0.75) * 255)
		return color.RGBA{R: v, G: v, B: v, A: 0xff}
	},
	JungleTheme: func(level float64) color.Color {
		return HSV{H: 120 - level*60, S: 1, V: 0.3 + math.Pow(level, 0.6)*0.7}.RGB()
	},
	ThermalTheme: func(level float64) color.Color {
		switch {
		case level < 0.33:
			return color.RGBA{R: uint8((0.25 + level*2.25) * 255), A: 0xff}
		case level < 0.66:
			return color.RGBA{R: 255, G: uint8((level - 0.33) * 3 * 255), A: 0xff}
		default:
			return color.RGBA{R: 255, G: 255, B: uint8(math.Min(1, (level-0.66)*3) * 255), A: 0xff}
		}
	},
	MarineTheme: func(level float64) color.Color {
		return HSV{H: 240 - level*60, S: 1 - level*0.8, V: 0.3 + math.Pow(level, 0.6)*0.7}.RGB()
	},
}

// ParseColorTheme validates a theme name. An empty name selects ClassicTheme.
func ParseColorTheme(name string) (ColorTheme, error) {
	if name == "" {
		return ClassicTheme, nil
	}
	if _, ok := themes[ColorTheme(name)]; !ok {
		return "", fmt.Errorf("unknown color theme: %s", name)
	}
	return ColorTheme(name), nil
}

// ColorMapper maps a normalized level in [0, 1] to a pre-computed color.
type ColorMapper struct {
	colors []color.Color
}

func NewColorMapper(theme ColorTheme, size int) *ColorMapper {
	if size < 2 {
		size = DefaultColorMapSize
	}

	fn, ok := themes[theme]
	if !ok {
		fn = themes[ClassicTheme]
	}

	cm := ColorMapper{colors: make([]color.Color, size)}
	for i := range cm.colors {
		cm.colors[i] = fn(float64(i) / float64(size-1))
	}
	return &cm
}

// Color returns the color of level, clamped to [0, 1].
func (cm *ColorMapper) Color(level float64) color.Color {
	if math.IsNaN(level) || level <= 0 {
		return cm.colors[0]
	}
	if level >= 1 {
		return cm.colors[len(cm.colors)-1]
	}
	return cm.colors[int(level*float64(len(cm.colors)-1))]
}

// HSV represents a color in HSV color space
type HSV struct {
	H float64 // Hue [0-360]
	S float64 // Saturation [0-1]
	V float64 // Value [0-1]
}

// RGB converts HSV color space to RGB
func (hsv HSV) RGB() color.Color {
	v := math.Max(0, math.Min(1, hsv.V))
	s := math.Max(0, math.Min(1, hsv.S))
	if s == 0 {
		c := uint8(v * 255)
		return color.RGBA{R: c, G: c, B: c, A: 0xff}
	}

	h := math.Mod(hsv.H, 360)
	if h < 0 {
		h += 360
	}
	h /= 60
	i := math.Floor(h)
	f := h - i

	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))

	var r, g, b float64
	switch int(i) {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}

	return color.RGBA{R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255), A: 0xff}
}

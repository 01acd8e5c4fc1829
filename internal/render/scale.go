package render

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
)

const (
	minTopLevel   = 20.0 // dB; keeps silence from being stretched to full height
	pixelsPerTick = 80.0
)

// Level converts a magnitude to decibels. Magnitudes below 1 map to 0 dB.
func Level(magnitude float64) float64 {
	if magnitude <= 1 {
		return 0
	}
	return 20 * math.Log10(magnitude)
}

// smoothTop tracks the top of the level axis with exponential smoothing so
// the panel does not jump between frames.
type smoothTop struct {
	alpha   float64
	current float64
}

func (s *smoothTop) Update(peak float64) float64 {
	target := math.Max(minTopLevel, math.Ceil(peak/10)*10)
	if s.current == 0 {
		s.current = target
	} else {
		s.current = s.current*(1-s.alpha) + target*s.alpha
	}
	return s.current
}

// frequencyStep returns a 1-2-5 step giving roughly one label per
// pixelsPerTick pixels over span Hz.
func frequencyStep(span float64, width int) float64 {
	if span <= 0 || width <= 0 {
		return 1
	}

	target := span / math.Max(1, float64(width)/pixelsPerTick)
	magnitude := math.Pow(10, math.Floor(math.Log10(target)))
	for _, m := range []float64{1, 2, 5, 10} {
		if step := m * magnitude; step >= target {
			return step
		}
	}
	return 10 * magnitude
}

func formatFrequency(hz float64) string {
	value, prefix := humanize.ComputeSI(hz)
	return fmt.Sprintf("%s %sHz", humanize.Ftoa(math.Round(value*10)/10), prefix)
}

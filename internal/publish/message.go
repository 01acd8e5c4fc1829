package publish

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/roman-kulish/spectrum-scope/internal/spectrum"
)

// ErrMalformedMessage is returned when a wire message does not have the
// expected shape.
var ErrMalformedMessage = errors.New("malformed wire message")

// WireMessage is the observer view of one frame. Time holds the raw samples
// of the block, Freq the magnitudes of the lower half of the spectrum.
type WireMessage struct {
	Time []int     `json:"time"`
	Freq []float64 `json:"freq"`
}

// AppendWireMessage appends the JSON encoding of f to dst:
//
//	{"time":[v0,...,v1023],"freq":[m0,...,m511]}
//
// Magnitudes are written with exactly one decimal digit.
func AppendWireMessage(dst []byte, f *spectrum.Frame) []byte {
	dst = append(dst, `{"time":[`...)
	for i, v := range f.Block {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = strconv.AppendUint(dst, uint64(v), 10)
	}

	dst = append(dst, `],"freq":[`...)
	for i, m := range f.Spectrum() {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = strconv.AppendFloat(dst, m, 'f', 1, 64)
	}

	return append(dst, "]}"...)
}

// ParseWireMessage decodes and validates a wire message.
func ParseWireMessage(data []byte) (*WireMessage, error) {
	var msg WireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	if len(msg.Time) != spectrum.BlockSize {
		return nil, fmt.Errorf("%w: expected %d time samples, got %d", ErrMalformedMessage, spectrum.BlockSize, len(msg.Time))
	}
	if len(msg.Freq) != spectrum.BlockSize/2 {
		return nil, fmt.Errorf("%w: expected %d frequency bins, got %d", ErrMalformedMessage, spectrum.BlockSize/2, len(msg.Freq))
	}

	return &msg, nil
}

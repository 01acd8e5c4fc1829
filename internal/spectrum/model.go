package spectrum

import (
	"errors"
	"fmt"
)

const (
	// BlockSize is the number of samples in one analysis block. The transform
	// requires a power of two.
	BlockSize = 1024

	// SampleBits is the effective resolution of a sample.
	SampleBits = 12

	// SampleMask keeps the meaningful low bits of a raw 16-bit word.
	SampleMask = 1<<SampleBits - 1
)

// ErrInvalidBlockSize is returned when a block size cannot be transformed.
var ErrInvalidBlockSize = errors.New("block size must be a power of two")

// Block is one ordered group of exactly BlockSize consecutive samples. It is
// an array, so assigning or sending it copies the samples.
type Block [BlockSize]uint16

// Frame is the spectral view of one Block.
//
// Magnitudes and Imag alias the working buffers of the Processor that
// produced the frame and are only valid until its next Process call.
type Frame struct {
	Block      Block     // Raw samples, before DC removal
	Magnitudes []float64 // |X[k]| for k in [0, N)
	Imag       []float64 // Imaginary part of X[k], left as the transform produced it
}

// Spectrum returns the bins from 0 Hz up to (excluding) the Nyquist frequency.
// The upper half of the transform mirrors it and is never published.
func (f *Frame) Spectrum() []float64 {
	return f.Magnitudes[:len(f.Magnitudes)/2]
}

// ValidateBlockSize checks that n can be used as the transform length.
func ValidateBlockSize(n int) error {
	if n < 2 || n&(n-1) != 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBlockSize, n)
	}
	return nil
}

// BinFrequency returns the center frequency in Hz of a transform bin.
func BinFrequency(bin, sampleRate, n int) float64 {
	return float64(bin) * float64(sampleRate) / float64(n)
}

// Bin returns the bin index closest to the given frequency.
func Bin(frequency float64, sampleRate, n int) int {
	return int(frequency*float64(n)/float64(sampleRate) + 0.5)
}

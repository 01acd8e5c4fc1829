package spectrum

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Processor turns blocks into magnitude spectra. It owns its working buffers,
// allocated once, so steady-state processing does not allocate.
//
// A Processor is not safe for concurrent use.
type Processor struct {
	n      int
	window []float64
	real   []float64
	imag   []float64
	seq    []complex128
	coeffs []complex128
	fft    *fourier.CmplxFFT
}

// NewProcessor creates a Processor for BlockSize samples using a Hamming window.
func NewProcessor() (*Processor, error) {
	if err := ValidateBlockSize(BlockSize); err != nil {
		return nil, err
	}

	return &Processor{
		n:      BlockSize,
		window: window.Hamming(BlockSize),
		real:   make([]float64, BlockSize),
		imag:   make([]float64, BlockSize),
		seq:    make([]complex128, BlockSize),
		coeffs: make([]complex128, BlockSize),
		fft:    fourier.NewCmplxFFT(BlockSize),
	}, nil
}

// Process computes the spectrum of b:
//  1. removes the DC bias (arithmetic mean),
//  2. applies the Hamming window,
//  3. runs the forward transform,
//  4. replaces every complex bin with its modulus.
func (p *Processor) Process(b *Block) Frame {
	RemoveDC(p.real, b[:])
	clear(p.imag)

	ApplyWindow(p.real, p.window)
	ApplyWindow(p.imag, p.window)

	for i := range p.seq {
		p.seq[i] = complex(p.real[i], p.imag[i])
	}
	p.coeffs = p.fft.Coefficients(p.coeffs, p.seq)

	for i, c := range p.coeffs {
		p.real[i] = cmplx.Abs(c)
		p.imag[i] = imag(c)
	}

	return Frame{
		Block:      *b,
		Magnitudes: p.real,
		Imag:       p.imag,
	}
}

// Mean returns the arithmetic mean of the samples.
func Mean(samples []uint16) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, v := range samples {
		sum += float64(v)
	}
	return sum / float64(len(samples))
}

// RemoveDC writes samples minus their mean into dst, which must be at least
// as long as samples.
func RemoveDC(dst []float64, samples []uint16) {
	mean := Mean(samples)
	for i, v := range samples {
		dst[i] = float64(v) - mean
	}
}

// ApplyWindow multiplies x by the window coefficients in place.
func ApplyWindow(x, coefficients []float64) {
	for i := range x {
		x[i] *= coefficients[i]
	}
}

// PeakBin returns the index of the largest magnitude, ignoring the DC bin.
func PeakBin(magnitudes []float64) int {
	peak := 0
	for i := 1; i < len(magnitudes); i++ {
		if peak == 0 || magnitudes[i] > magnitudes[peak] {
			peak = i
		}
	}
	return peak
}

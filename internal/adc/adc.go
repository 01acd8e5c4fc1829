package adc

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	MinSampleRate = 1
	MaxSampleRate = 384_000

	MinBitWidth = 1
	MaxBitWidth = 16

	MaxChannel = 7

	// BytesPerSample is the size of one little-endian sample word.
	BytesPerSample = 2
)

var (
	// ErrSourceClosed is returned by Read once the source has been closed.
	ErrSourceClosed = errors.New("acquisition source closed")

	// ErrNotConfigured is returned by Read before Configure succeeded.
	ErrNotConfigured = errors.New("acquisition source not configured")
)

// Settings describes how the analog front end is sampled.
type Settings struct {
	SampleRate int `yaml:"sampleRate" json:"sampleRate"` // Hz
	BitWidth   int `yaml:"bitWidth" json:"bitWidth"`     // Effective resolution of a sample
	Channel    int `yaml:"channel" json:"channel"`       // Input channel to capture
}

func (s *Settings) Validate() error {
	if s.SampleRate < MinSampleRate || s.SampleRate > MaxSampleRate {
		return fmt.Errorf("adc.Settings: sample rate must be between %d and %d Hz: %d given", MinSampleRate, MaxSampleRate, s.SampleRate)
	}
	if s.BitWidth < MinBitWidth || s.BitWidth > MaxBitWidth {
		return fmt.Errorf("adc.Settings: bit width must be between %d and %d: %d given", MinBitWidth, MaxBitWidth, s.BitWidth)
	}
	if s.Channel < 0 || s.Channel > MaxChannel {
		return fmt.Errorf("adc.Settings: channel must be between 0 and %d: %d given", MaxChannel, s.Channel)
	}
	return nil
}

// MaxValue returns the largest sample value representable with the bit width.
func (s *Settings) MaxValue() int {
	return 1<<s.BitWidth - 1
}

// Source is an analog acquisition collaborator. Read blocks until at least
// one sample word is available and fills p with consecutive little-endian
// 16-bit words.
type Source interface {
	Configure(settings Settings) error
	Read(p []byte) (int, error)
	Close() error
	Name() string
}

// PutSamples encodes samples into dst as little-endian words and returns the
// number of bytes written. dst must hold at least 2*len(samples) bytes.
func PutSamples(dst []byte, samples []uint16) int {
	for i, v := range samples {
		binary.LittleEndian.PutUint16(dst[i*BytesPerSample:], v)
	}
	return len(samples) * BytesPerSample
}

// Rescale converts a signed sample of the given source bit depth to an
// unsigned value of bitWidth bits.
func Rescale(v, sourceDepth, bitWidth int) uint16 {
	u := v + 1<<(sourceDepth-1)
	if u < 0 {
		u = 0
	}
	if shift := sourceDepth - bitWidth; shift > 0 {
		u >>= shift
	} else if shift < 0 {
		u <<= -shift
	}
	if limit := 1<<bitWidth - 1; u > limit {
		u = limit
	}
	return uint16(u)
}

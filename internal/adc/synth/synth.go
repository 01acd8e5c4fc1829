// Package synth provides a synthetic sinusoid acquisition source, used for
// demos and deterministic tests without an analog front end.
package synth

import (
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"sync/atomic"

	"github.com/roman-kulish/spectrum-scope/internal/adc"
)

const Name = "synth"

// Config describes the generated signal:
//
//	v[n] = Offset + Amplitude*sin(2*pi*Frequency*n/sampleRate) + Noise*N(0,1)
//
// quantized to the configured bit width.
type Config struct {
	Frequency float64 `yaml:"frequency" json:"frequency"` // Hz
	Amplitude float64 `yaml:"amplitude" json:"amplitude"` // In sample units
	Offset    float64 `yaml:"offset" json:"offset"`       // DC bias in sample units
	Noise     float64 `yaml:"noise" json:"noise"`         // Standard deviation of gaussian noise
	Seed      uint64  `yaml:"seed" json:"seed"`
	Realtime  bool    `yaml:"realtime" json:"realtime"` // Pace reads to the sample rate
}

func (c *Config) Validate() error {
	if c.Frequency < 0 {
		return fmt.Errorf("synth.Config: frequency must not be negative: %f", c.Frequency)
	}
	if c.Amplitude < 0 {
		return fmt.Errorf("synth.Config: amplitude must not be negative: %f", c.Amplitude)
	}
	if c.Noise < 0 {
		return fmt.Errorf("synth.Config: noise must not be negative: %f", c.Noise)
	}
	return nil
}

// Source generates samples on demand.
type Source struct {
	config   Config
	settings adc.Settings

	n     uint64
	buf   []uint16
	rng   *rand.Rand
	pacer *adc.Pacer

	configured atomic.Bool
	closed     atomic.Bool
}

func New(config *Config) (*Source, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Source{
		config: *config,
		rng:    rand.New(rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15)),
	}, nil
}

func (s *Source) Configure(settings adc.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	if s.config.Frequency >= float64(settings.SampleRate)/2 {
		return fmt.Errorf("synth: frequency %.1f Hz is above the Nyquist frequency of %d Hz", s.config.Frequency, settings.SampleRate)
	}

	s.settings = settings
	if s.config.Realtime {
		s.pacer = adc.NewPacer(settings.SampleRate)
	}
	s.configured.Store(true)
	return nil
}

// Sample returns the quantized value of the n-th sample.
func (s *Source) Sample(n uint64) uint16 {
	v := s.config.Offset + s.config.Amplitude*math.Sin(2*math.Pi*s.config.Frequency*float64(n)/float64(s.settings.SampleRate))
	if s.config.Noise > 0 {
		v += s.config.Noise * s.rng.NormFloat64()
	}
	return uint16(math.Round(math.Max(0, math.Min(float64(s.settings.MaxValue()), v))))
}

func (s *Source) Read(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, adc.ErrSourceClosed
	}
	if !s.configured.Load() {
		return 0, adc.ErrNotConfigured
	}

	count := len(p) / adc.BytesPerSample
	if count == 0 {
		return 0, io.ErrShortBuffer
	}

	if cap(s.buf) < count {
		s.buf = make([]uint16, count)
	}
	samples := s.buf[:count]
	for i := range samples {
		samples[i] = s.Sample(s.n)
		s.n++
	}
	n := adc.PutSamples(p, samples)

	if s.pacer != nil {
		s.pacer.Wait(count)
	}

	return n, nil
}

func (s *Source) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *Source) Name() string {
	return Name
}

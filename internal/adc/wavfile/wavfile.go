// Package wavfile replays a PCM WAV recording as an acquisition source.
package wavfile

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/go-audio/wav"

	"github.com/roman-kulish/spectrum-scope/internal/adc"
	"github.com/roman-kulish/spectrum-scope/internal/adc/driver"
)

const Name = "wav"

type Config struct {
	Path     string `yaml:"path" json:"path"`
	Loop     bool   `yaml:"loop" json:"loop"`         // Restart from the beginning at the end of the file
	Realtime bool   `yaml:"realtime" json:"realtime"` // Pace reads to the sample rate
}

func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("wavfile.Config: path is required")
	}
	return nil
}

// Source serves the samples of one channel of a WAV file, rescaled to the
// configured bit width.
type Source struct {
	config Config

	samples []uint16
	pos     int
	pacer   *adc.Pacer

	configured atomic.Bool
	closed     atomic.Bool
}

func New(config *Config) (*Source, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Source{config: *config}, nil
}

// Configure decodes the whole file. The file sample rate must match the
// requested one, resampling is not supported.
func (s *Source) Configure(settings adc.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	f, err := os.Open(s.config.Path)
	if err != nil {
		return fmt.Errorf("opening wav file: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return driver.NewConfigError(fmt.Sprintf("wavfile: invalid WAV file '%s'", s.config.Path))
	}
	if int(dec.SampleRate) != settings.SampleRate {
		return driver.NewConfigError(fmt.Sprintf("wavfile: file sample rate %d Hz does not match %d Hz", dec.SampleRate, settings.SampleRate))
	}
	if settings.Channel >= int(dec.NumChans) {
		return driver.NewConfigError(fmt.Sprintf("wavfile: channel %d requested, file has %d", settings.Channel, dec.NumChans))
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return fmt.Errorf("decoding wav file: %w", err)
	}

	channels := int(dec.NumChans)
	depth := int(dec.BitDepth)

	// 8-bit PCM is stored unsigned, wider depths are signed.
	var bias int
	if depth == 8 {
		bias = 1 << 7
	}

	samples := make([]uint16, 0, len(buf.Data)/channels)
	for i := settings.Channel; i < len(buf.Data); i += channels {
		samples = append(samples, adc.Rescale(buf.Data[i]-bias, depth, settings.BitWidth))
	}
	if len(samples) == 0 {
		return driver.NewConfigError(fmt.Sprintf("wavfile: no samples in '%s'", s.config.Path))
	}

	s.samples = samples
	s.pos = 0
	if s.config.Realtime {
		s.pacer = adc.NewPacer(settings.SampleRate)
	}
	s.configured.Store(true)
	return nil
}

// Len returns the number of decoded samples.
func (s *Source) Len() int {
	return len(s.samples)
}

// Read returns io.EOF at the end of the file unless the source loops.
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

	if s.pos >= len(s.samples) {
		if !s.config.Loop {
			return 0, io.EOF
		}
		s.pos = 0
	}

	count = min(count, len(s.samples)-s.pos)
	n := adc.PutSamples(p, s.samples[s.pos:s.pos+count])
	s.pos += count

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

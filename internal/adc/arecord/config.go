package arecord

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/spectrum-scope/internal/adc"
)

const (
	// BufferTimeMin and BufferTimeMax bound the ALSA ring buffer length.
	BufferTimeMin = 10 * time.Millisecond
	BufferTimeMax = 10 * time.Second
)

// Usage examples from man page:
// https://manpages.debian.org/bookworm/alsa-utils/arecord.1.en.html

/*
Example: line-in of a USB sound card, 1 kHz mono
    arecordConfig := arecord.Config{
        Device:     "hw:1,0",
        BufferTime: arecord.NewTimeDuration(500 * time.Millisecond),
    }
    // Executes: arecord -q -t raw -f S16_LE -c 1 -r 1000 -D hw:1,0 --buffer-time=500000
*/

type TimeDuration time.Duration

func NewTimeDuration(d time.Duration) TimeDuration {
	return TimeDuration(d)
}

func (d *TimeDuration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("arecord.TimeDuration: failed to parse: %s", err)
	}

	*d = TimeDuration(duration)
	return nil
}

func (d TimeDuration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *TimeDuration) UnmarshalJSON(bytes []byte) error {
	var v string
	if err := json.Unmarshal(bytes, &v); err != nil {
		return err
	}

	duration, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("arecord.TimeDuration: failed to parse: %s", err)
	}

	*d = TimeDuration(duration)
	return nil
}

func (d TimeDuration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Config is the `arecord` capture configuration. The sample format is always
// signed 16-bit little-endian, the sample rate and channel come from
// adc.Settings.
type Config struct {
	Device     string       `yaml:"device" json:"device"`         // -D pcm device name (default: "default")
	BufferTime TimeDuration `yaml:"bufferTime" json:"bufferTime"` // --buffer-time in microseconds (default: driver)
}

func (c *Config) Validate() error {
	if strings.ContainsAny(c.Device, " \t\n") {
		return fmt.Errorf("arecord.Config: invalid device name: %q", c.Device)
	}

	if bt := time.Duration(c.BufferTime); bt != 0 && (bt < BufferTimeMin || bt > BufferTimeMax) {
		return fmt.Errorf("arecord.Config: buffer time must be between %s and %s: %s given", BufferTimeMin, BufferTimeMax, bt)
	}

	return nil
}

// Args returns the command line arguments for `arecord`. The capture opens
// channel+1 interleaved channels so the requested one can be extracted.
func (c *Config) Args(settings adc.Settings) ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	args := []string{
		"-q",
		"-t", "raw",
		"-f", "S16_LE",
		"-c", strconv.Itoa(settings.Channel + 1),
		"-r", strconv.Itoa(settings.SampleRate),
	}

	if c.Device != "" {
		args = append(args, "-D", c.Device)
	}

	if c.BufferTime > 0 {
		args = append(args, "--buffer-time="+strconv.FormatInt(time.Duration(c.BufferTime).Microseconds(), 10))
	}

	args = append(args, "-") // Always dump to stdout

	return args, nil
}

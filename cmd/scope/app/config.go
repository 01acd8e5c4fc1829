package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/spectrum-scope/internal/adc"
	"github.com/roman-kulish/spectrum-scope/internal/adc/arecord"
	"github.com/roman-kulish/spectrum-scope/internal/adc/synth"
	"github.com/roman-kulish/spectrum-scope/internal/adc/wavfile"
	"github.com/roman-kulish/spectrum-scope/internal/broadcast"
	"github.com/roman-kulish/spectrum-scope/internal/pipeline"
	"github.com/roman-kulish/spectrum-scope/internal/render"
	"github.com/roman-kulish/spectrum-scope/internal/spectrum"
)

const (
	SourceSynth   = synth.Name
	SourceWAV     = wavfile.Name
	SourceArecord = arecord.Name

	minStatsInterval = time.Second
)

// Config represents the main application configuration
type Config struct {
	Settings    Settings             `yaml:"settings"`
	Acquisition AcquisitionConfig    `yaml:"acquisition"`
	Server      ServerConfig         `yaml:"server"`
	Render      render.Config        `yaml:"render"`
	MQTT        broadcast.MQTTConfig `yaml:"mqtt"`
	Storage     StorageConfig        `yaml:"storage"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// AcquisitionConfig selects and configures the acquisition source
type AcquisitionConfig struct {
	Source string `yaml:"source" json:"source"`

	adc.Settings `yaml:",inline"`

	ReadChunk int `yaml:"readChunk" json:"readChunk"` // Bytes per blocking read

	Synth   synth.Config   `yaml:"synth" json:"synth"`
	WAV     wavfile.Config `yaml:"wav" json:"wav"`
	Arecord arecord.Config `yaml:"arecord" json:"arecord"`
}

// SourceConfig returns the configuration of the selected source only.
func (c *AcquisitionConfig) SourceConfig() any {
	switch c.Source {
	case SourceSynth:
		return &c.Synth
	case SourceWAV:
		return &c.WAV
	case SourceArecord:
		return &c.Arecord
	}
	return nil
}

// ServerConfig represents the HTTP surface
type ServerConfig struct {
	Listen        string `yaml:"listen"`
	WebsocketPath string `yaml:"websocketPath"`
}

// StorageConfig represents storage settings
type StorageConfig struct {
	Enabled       bool          `yaml:"enabled"`
	DataDirectory string        `yaml:"dataDirectory"`
	StatsInterval time.Duration `yaml:"statsInterval"`
}

// NewConfig returns the configuration used for any value the file omits.
func NewConfig() *Config {
	return &Config{
		Settings: Settings{LogLevel: "info"},
		Acquisition: AcquisitionConfig{
			Source: SourceSynth,
			Settings: adc.Settings{
				SampleRate: 1000,
				BitWidth:   spectrum.SampleBits,
			},
			ReadChunk: pipeline.DefaultReadChunk,
			Synth: synth.Config{
				Frequency: 50,
				Amplitude: 2000,
				Offset:    2048,
				Realtime:  true,
			},
			WAV: wavfile.Config{
				Loop:     true,
				Realtime: true,
			},
		},
		Server: ServerConfig{
			Listen:        ":8080",
			WebsocketPath: "/ws",
		},
		Render: render.Config{
			Enabled: true,
			Width:   render.DefaultWidth,
			Height:  render.DefaultHeight,
			Theme:   render.ClassicTheme,
		},
		MQTT: broadcast.MQTTConfig{
			Broker: "tcp://localhost:1883",
			Topic:  broadcast.DefaultMQTTTopic,
		},
		Storage: StorageConfig{
			Enabled:       true,
			DataDirectory: storageDir,
			StatsInterval: 10 * time.Second,
		},
	}
}

// LoadConfig reads a YAML configuration file on top of the defaults and
// validates it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (*Config, error) {
	config := NewConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LogLevel parses the configured log level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Settings.LogLevel)); err != nil {
		return level, fmt.Errorf("invalid log level: %s", c.Settings.LogLevel)
	}
	return level, nil
}

func (c *Config) Validate() error {
	if _, err := c.LogLevel(); err != nil {
		return err
	}

	var errs []error
	errs = append(errs, c.Acquisition.Validate())
	errs = append(errs, c.Server.Validate())
	if c.Render.Enabled {
		errs = append(errs, c.Render.Validate())
	}
	errs = append(errs, c.MQTT.Validate())
	errs = append(errs, c.Storage.Validate())

	return errors.Join(errs...)
}

func (c *AcquisitionConfig) Validate() error {
	if err := c.Settings.Validate(); err != nil {
		return err
	}
	if c.BitWidth > spectrum.SampleBits {
		return fmt.Errorf("acquisition: bit width must not exceed %d: %d given", spectrum.SampleBits, c.BitWidth)
	}
	if c.ReadChunk < adc.BytesPerSample {
		return fmt.Errorf("acquisition: read chunk must be at least %d bytes: %d given", adc.BytesPerSample, c.ReadChunk)
	}

	switch c.Source {
	case SourceSynth:
		return c.Synth.Validate()
	case SourceWAV:
		return c.WAV.Validate()
	case SourceArecord:
		return c.Arecord.Validate()
	default:
		return fmt.Errorf("acquisition: unknown source '%s'", c.Source)
	}
}

func (c *ServerConfig) Validate() error {
	if c.Listen == "" {
		return errors.New("server: listen address is required")
	}
	if !strings.HasPrefix(c.WebsocketPath, "/") {
		return fmt.Errorf("server: websocket path must start with '/': %s", c.WebsocketPath)
	}
	if _, reserved := reservedPaths[c.WebsocketPath]; reserved {
		return fmt.Errorf("server: websocket path %s is reserved", c.WebsocketPath)
	}
	return nil
}

func (c *StorageConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.StatsInterval < minStatsInterval {
		return fmt.Errorf("storage: stats interval must be at least %s: %s given", minStatsInterval, c.StatsInterval)
	}
	return nil
}

package app

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/roman-kulish/spectrum-scope/internal/render"
)

const (
	ImagePNG  = "png"
	ImageJPEG = "jpeg"
)

type ImageFormat string

type Config struct {
	URL        string
	OutputFile string
	Format     ImageFormat
	SampleRate int
	Timeout    time.Duration
	Panel      render.Config
}

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

func NewConfig() *Config {
	return &Config{
		URL:        "ws://localhost:8080/ws",
		Format:     ImagePNG,
		SampleRate: 1000,
		Timeout:    10 * time.Second,
		Panel: render.Config{
			Enabled: true,
			Width:   render.DefaultWidth,
			Height:  render.DefaultHeight,
			Theme:   render.ClassicTheme,
		},
	}
}

func NewConfigFromCLI() (*Config, error) {
	return NewConfigFromArgs(os.Args[0], os.Args[1:])
}

// NewConfigFromArgs parses the command line arguments following the program
// name. The output file gets the image format as its extension.
func NewConfigFromArgs(name string, args []string) (*Config, error) {
	c := NewConfig()

	var imageFormat, theme string
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.StringVar(&c.URL, "url", c.URL, "Websocket URL of the scope")
	flags.StringVar(&c.OutputFile, "o", "", "Path to the output file")
	flags.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	flags.StringVar(&theme, "theme", string(render.ClassicTheme), "Color theme. [classic, grayscale, jungle, thermal, marine]")
	flags.IntVar(&c.SampleRate, "sample-rate", c.SampleRate, "Sample rate of the scope in Hz, used for the frequency scale")
	flags.IntVar(&c.Panel.Width, "width", c.Panel.Width, "Image width in pixels")
	flags.IntVar(&c.Panel.Height, "height", c.Panel.Height, "Image height in pixels")
	flags.DurationVar(&c.Timeout, "timeout", c.Timeout, "How long to wait for a frame")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	imageFormat = strings.ToLower(imageFormat)
	c.Panel.Theme = render.ColorTheme(strings.ToLower(theme))

	var err error
	if u, parseErr := url.Parse(c.URL); parseErr != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		err = fmt.Errorf("invalid websocket url: %s", c.URL)
	} else if c.OutputFile == "" {
		err = errors.New("output file is required")
	} else if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
		err = fmt.Errorf("invalid image format: %s", imageFormat)
	} else if c.SampleRate <= 0 {
		err = fmt.Errorf("invalid sample rate: %d", c.SampleRate)
	} else if c.Timeout <= 0 {
		err = fmt.Errorf("invalid timeout: %s", c.Timeout)
	} else {
		err = c.Panel.Validate()
	}

	if err != nil {
		flags.Usage()
		return nil, err
	}

	c.Format = ImageFormat(imageFormat)
	c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	return c, nil
}

// Package render draws the latest spectrum as a bar panel image.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"

	"github.com/roman-kulish/spectrum-scope/internal/spectrum"
)

const (
	dpi            = 72.0
	fontSize       = 11.0
	tickMarkLength = 4

	DefaultWidth  = 640
	DefaultHeight = 240

	minWidth  = 160
	minHeight = 96

	// Default border sizes in pixels
	defaultTopBorder    = 20
	defaultLeftBorder   = 44
	defaultBottomBorder = 24
	defaultRightBorder  = 12

	smoothing = 0.3
)

var (
	backgroundColor = color.RGBA{R: 0x10, G: 0x10, B: 0x14, A: 0xff}
	gridColor       = color.RGBA{R: 0x38, G: 0x38, B: 0x40, A: 0xff}
	labelColor      = image.NewUniform(color.RGBA{R: 0xd0, G: 0xd0, B: 0xd0, A: 0xff})
)

// Config holds the panel geometry and appearance.
type Config struct {
	Enabled bool       `yaml:"enabled" json:"enabled"`
	Width   int        `yaml:"width" json:"width"`
	Height  int        `yaml:"height" json:"height"`
	Theme   ColorTheme `yaml:"theme" json:"theme"`
}

func (c *Config) Validate() error {
	if c.Width == 0 {
		c.Width = DefaultWidth
	}
	if c.Height == 0 {
		c.Height = DefaultHeight
	}
	if c.Width < minWidth || c.Height < minHeight {
		return fmt.Errorf("render: panel must be at least %dx%d pixels: %dx%d given", minWidth, minHeight, c.Width, c.Height)
	}

	theme, err := ParseColorTheme(string(c.Theme))
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	c.Theme = theme
	return nil
}

// Panel keeps the most recent spectrum and renders it on demand. Render is
// called by the analyzer for every frame; Image and ServeHTTP may be called
// concurrently from other goroutines.
type Panel struct {
	config     Config
	sampleRate int
	font       *truetype.Font
	colors     *ColorMapper

	mu      sync.Mutex
	levels  []float64
	top     smoothTop
	frames  uint64
	updated time.Time
}

// NewPanel creates a panel for spectra of BlockSize samples taken at sampleRate.
func NewPanel(config Config, sampleRate int) (*Panel, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("render: invalid sample rate: %d", sampleRate)
	}

	parsedFont, err := freetype.ParseFont(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	return &Panel{
		config:     config,
		sampleRate: sampleRate,
		font:       parsedFont,
		colors:     NewColorMapper(config.Theme, DefaultColorMapSize),
		levels:     make([]float64, spectrum.BlockSize/2),
		top:        smoothTop{alpha: smoothing},
	}, nil
}

// Render stores the lower half of magnitudes as levels. The panel only
// draws magnitudes; imag is not used.
func (p *Panel) Render(magnitudes, _ []float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var peak float64
	for i := range p.levels {
		if i >= len(magnitudes) {
			p.levels[i] = 0
			continue
		}
		p.levels[i] = Level(magnitudes[i])
		if i > 0 {
			peak = math.Max(peak, p.levels[i])
		}
	}

	p.top.Update(peak)
	p.frames++
	p.updated = time.Now()
}

// Image draws the latest levels.
func (p *Panel) Image() (*image.RGBA, error) {
	p.mu.Lock()
	levels := append([]float64(nil), p.levels...)
	top := p.top.current
	frames := p.frames
	p.mu.Unlock()

	return p.draw(levels, math.Max(top, minTopLevel), frames)
}

// Draw renders a spectrum given as magnitudes without touching the stored
// state. It is used to render frames received from elsewhere.
func (p *Panel) Draw(magnitudes []float64) (*image.RGBA, error) {
	levels := make([]float64, len(magnitudes))
	var top smoothTop
	var peak float64
	for i, m := range magnitudes {
		levels[i] = Level(m)
		if i > 0 {
			peak = math.Max(peak, levels[i])
		}
	}
	return p.draw(levels, top.Update(peak), 1)
}

func (p *Panel) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	img, err := p.Image()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err = png.Encode(&buf, img); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

func (p *Panel) plotArea() image.Rectangle {
	return image.Rect(defaultLeftBorder, defaultTopBorder,
		p.config.Width-defaultRightBorder, p.config.Height-defaultBottomBorder)
}

// column returns the x coordinate of a bin in a spectrum of n bins.
func (p *Panel) column(bin, n int) int {
	area := p.plotArea()
	return area.Min.X + bin*area.Dx()/n
}

func (p *Panel) draw(levels []float64, top float64, frames uint64) (*image.RGBA, error) {
	if len(levels) == 0 {
		return nil, errors.New("render: empty spectrum")
	}

	img := image.NewRGBA(image.Rect(0, 0, p.config.Width, p.config.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, draw.Src)

	face := truetype.NewFace(p.font, &truetype.Options{Size: fontSize, DPI: dpi, Hinting: font.HintingFull})
	defer face.Close()

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(p.font)
	ctx.SetFontSize(fontSize)
	ctx.SetHinting(font.HintingFull)
	ctx.SetSrc(labelColor)
	ctx.SetClip(img.Bounds())
	ctx.SetDst(img)

	area := p.plotArea()

	if err := p.drawLevelScale(img, ctx, face, area, top); err != nil {
		return nil, fmt.Errorf("drawing level scale: %w", err)
	}
	if err := p.drawFrequencyScale(img, ctx, face, area, len(levels)); err != nil {
		return nil, fmt.Errorf("drawing frequency scale: %w", err)
	}

	peak := p.drawBars(img, area, levels, top)

	info := fmt.Sprintf("peak %s  frames %s", formatFrequency(spectrum.BinFrequency(peak, p.sampleRate, 2*len(levels))), humanize.Comma(int64(frames)))
	if _, err := ctx.DrawString(info, freetype.Pt(area.Min.X, defaultTopBorder-6)); err != nil {
		return nil, fmt.Errorf("drawing info: %w", err)
	}

	return img, nil
}

// drawBars draws one bar per pixel column using the largest level of the
// bins falling into it, and returns the strongest non-DC bin.
func (p *Panel) drawBars(img *image.RGBA, area image.Rectangle, levels []float64, top float64) int {
	n := len(levels)
	peak := 0

	for x := area.Min.X; x < area.Max.X; x++ {
		from := (x - area.Min.X) * n / area.Dx()
		to := max(from+1, (x-area.Min.X+1)*n/area.Dx())

		var level float64
		for bin := from; bin < to && bin < n; bin++ {
			level = math.Max(level, levels[bin])
		}

		normalized := math.Min(1, level/top)
		height := int(normalized * float64(area.Dy()))
		c := p.colors.Color(normalized)
		for y := area.Max.Y - height; y < area.Max.Y; y++ {
			img.Set(x, y, c)
		}
	}

	for bin := 1; bin < n; bin++ {
		if levels[bin] > levels[peak] || peak == 0 {
			peak = bin
		}
	}
	return peak
}

func (p *Panel) drawLevelScale(img *image.RGBA, ctx *freetype.Context, face font.Face, area image.Rectangle, top float64) error {
	step := 10.0
	for top/step > 6 {
		step *= 2
	}

	metrics := face.Metrics()
	half := (metrics.Ascent.Round() - metrics.Descent.Round()) / 2

	for level := 0.0; level <= top; level += step {
		y := area.Max.Y - int(level/top*float64(area.Dy()))

		for x := area.Min.X; x < area.Max.X; x++ {
			img.Set(x, y, gridColor)
		}
		for x := area.Min.X - tickMarkLength; x < area.Min.X; x++ {
			img.Set(x, y, labelColor.C)
		}

		label := fmt.Sprintf("%.0f dB", level)
		width := font.MeasureString(face, label).Round()
		if _, err := ctx.DrawString(label, freetype.Pt(area.Min.X-tickMarkLength-2-width, y+half)); err != nil {
			return err
		}
	}
	return nil
}

func (p *Panel) drawFrequencyScale(img *image.RGBA, ctx *freetype.Context, face font.Face, area image.Rectangle, bins int) error {
	nyquist := spectrum.BinFrequency(bins, p.sampleRate, 2*bins)
	step := frequencyStep(nyquist, area.Dx())
	textY := area.Max.Y + tickMarkLength + face.Metrics().Ascent.Round()

	for freq := 0.0; freq < nyquist; freq += step {
		x := area.Min.X + int(freq/nyquist*float64(area.Dx()))

		for y := area.Min.Y; y < area.Max.Y; y++ {
			img.Set(x, y, gridColor)
		}
		for y := area.Max.Y; y < area.Max.Y+tickMarkLength; y++ {
			img.Set(x, y, labelColor.C)
		}

		label := formatFrequency(freq)
		width := font.MeasureString(face, label).Round()
		if _, err := ctx.DrawString(label, freetype.Pt(x-width/2, textY)); err != nil {
			return err
		}
	}
	return nil
}

package publish

import (
	"io"
	"log/slog"

	"github.com/roman-kulish/spectrum-scope/internal/spectrum"
)

// Broadcaster delivers a message to every connected observer without
// waiting for them. msg is only valid for the duration of the call.
type Broadcaster interface {
	SendToAll(msg []byte)
}

// Renderer draws a spectrum. The slices are only valid for the duration of
// the call.
type Renderer interface {
	Render(magnitudes, imag []float64)
}

// WithRenderer forwards every published frame to r after broadcasting.
func WithRenderer(r Renderer) func(*Publisher) {
	return func(p *Publisher) {
		p.renderer = r
	}
}

func WithLogger(logger *slog.Logger) func(*Publisher) {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// Publisher encodes frames as wire messages and hands them to a Broadcaster.
// It reuses one message buffer and is not safe for concurrent use.
type Publisher struct {
	broadcaster Broadcaster
	renderer    Renderer
	buf         []byte
	logger      *slog.Logger
}

func NewPublisher(b Broadcaster, options ...func(*Publisher)) *Publisher {
	p := Publisher{
		broadcaster: b,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&p)
	}

	return &p
}

func (p *Publisher) Publish(f spectrum.Frame) {
	p.buf = AppendWireMessage(p.buf[:0], &f)
	p.broadcaster.SendToAll(p.buf)

	if p.renderer != nil {
		p.renderer.Render(f.Magnitudes, f.Imag)
	}

	p.logger.Debug("frame published", slog.Int("bytes", len(p.buf)))
}

// Fanout broadcasts to several broadcasters in order.
type Fanout []Broadcaster

func (f Fanout) SendToAll(msg []byte) {
	for _, b := range f {
		b.SendToAll(msg)
	}
}

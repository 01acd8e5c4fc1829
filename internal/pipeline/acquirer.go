package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/roman-kulish/spectrum-scope/internal/adc"
	"github.com/roman-kulish/spectrum-scope/internal/spectrum"
	"github.com/roman-kulish/spectrum-scope/internal/telemetry"
)

// DefaultReadChunk is the number of bytes requested from the source per read,
// 256 samples of 16 bits.
const DefaultReadChunk = 512

// AcquirerOption configures an Acquirer.
type AcquirerOption func(*Acquirer)

// WithAcquirerReadChunk sets the number of bytes requested per read.
func WithAcquirerReadChunk(size int) AcquirerOption {
	return func(a *Acquirer) {
		if size >= adc.BytesPerSample {
			a.readChunk = size
		}
	}
}

// WithAcquirerLogger sets the logger of the acquirer.
func WithAcquirerLogger(logger *slog.Logger) AcquirerOption {
	return func(a *Acquirer) {
		a.logger = logger
	}
}

// WithAcquirerCounters sets the telemetry counters updated by the acquirer.
func WithAcquirerCounters(counters *telemetry.Counters) AcquirerOption {
	return func(a *Acquirer) {
		a.counters = counters
	}
}

// Acquirer reads raw little-endian 16-bit words from an acquisition source,
// frames them into blocks and offers every completed block to a BlockChannel.
type Acquirer struct {
	src       adc.Source
	out       *BlockChannel
	readChunk int

	block spectrum.Block // accumulation block, owned by the acquirer
	index int            // samples accumulated in block
	carry []byte         // dangling low byte of a sample split across reads

	logger   *slog.Logger
	counters *telemetry.Counters
}

// NewAcquirer creates an Acquirer reading from src and offering blocks to out.
func NewAcquirer(src adc.Source, out *BlockChannel, options ...AcquirerOption) *Acquirer {
	a := Acquirer{
		src:       src,
		out:       out,
		readChunk: DefaultReadChunk,
		carry:     make([]byte, 0, 1),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&a)
	}

	a.logger = a.logger.With(slog.String("stage", "acquirer"), slog.String("source", src.Name()))
	return &a
}

// Run reads the source until ctx is done or the source is exhausted or
// closed. Read failures are skipped and keep the partially filled block. On
// return the output channel is closed so the consumer can drain it.
func (a *Acquirer) Run(ctx context.Context) error {
	defer a.out.Close()

	buf := make([]byte, a.readChunk)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		n, err := a.src.Read(buf)
		if n > 0 {
			a.consume(buf[:n])
		}

		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, adc.ErrSourceClosed) {
				a.logger.Debug("source ended", slog.Any("reason", err))
				return nil
			}

			if a.counters != nil {
				a.counters.ReadFailed()
			}
			a.logger.Debug("read failed", slog.Any("error", err), slog.Int("pending", a.index))
		}
	}
}

func (a *Acquirer) consume(p []byte) {
	if len(a.carry) == 1 && len(p) > 0 {
		a.append(uint16(a.carry[0]) | uint16(p[0])<<8)
		a.carry = a.carry[:0]
		p = p[1:]
	}

	for len(p) >= adc.BytesPerSample {
		a.append(uint16(p[0]) | uint16(p[1])<<8)
		p = p[adc.BytesPerSample:]
	}

	if len(p) == 1 {
		a.carry = append(a.carry, p[0])
	}
}

func (a *Acquirer) append(raw uint16) {
	a.block[a.index] = raw & spectrum.SampleMask
	a.index++

	if a.index < spectrum.BlockSize {
		return
	}
	a.index = 0

	accepted := a.out.TryOffer(a.block)
	if a.counters == nil {
		return
	}

	a.counters.BlockAcquired()
	if !accepted {
		a.counters.BlockDropped()
	}
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roman-kulish/spectrum-scope/internal/spectrum"
	"github.com/roman-kulish/spectrum-scope/internal/telemetry"
)

// FramePublisher delivers processed frames to observers. Publish must not
// retain the frame slices after it returns.
type FramePublisher interface {
	Publish(frame spectrum.Frame)
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithAnalyzerLogger sets the logger of the analyzer.
func WithAnalyzerLogger(logger *slog.Logger) AnalyzerOption {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

// WithAnalyzerCounters sets the telemetry counters updated by the analyzer.
func WithAnalyzerCounters(counters *telemetry.Counters) AnalyzerOption {
	return func(a *Analyzer) {
		a.counters = counters
	}
}

// Analyzer receives blocks, computes their spectrum and publishes the result.
type Analyzer struct {
	in         *BlockChannel
	processor  *spectrum.Processor
	publisher  FramePublisher
	sampleRate int

	logger   *slog.Logger
	counters *telemetry.Counters
}

// NewAnalyzer creates an Analyzer. sampleRate is only used to report the
// frequency of the strongest bin.
func NewAnalyzer(in *BlockChannel, publisher FramePublisher, sampleRate int, options ...AnalyzerOption) (*Analyzer, error) {
	processor, err := spectrum.NewProcessor()
	if err != nil {
		return nil, fmt.Errorf("creating spectral processor: %w", err)
	}

	a := Analyzer{
		in:         in,
		processor:  processor,
		publisher:  publisher,
		sampleRate: sampleRate,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&a)
	}

	a.logger = a.logger.With(slog.String("stage", "analyzer"))
	return &a, nil
}

// Run processes blocks until ctx is done or the channel is closed and drained.
func (a *Analyzer) Run(ctx context.Context) error {
	for {
		block, err := a.in.Receive(ctx)
		if err != nil {
			if errors.Is(err, ErrChannelClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receiving block: %w", err)
		}

		a.analyze(&block)
	}
}

func (a *Analyzer) analyze(block *spectrum.Block) {
	start := time.Now()

	frame := a.processor.Process(block)
	a.publisher.Publish(frame)

	if a.counters == nil {
		return
	}

	peak := spectrum.PeakBin(frame.Spectrum())
	a.counters.FramePublished()
	a.counters.Processed(time.Since(start), spectrum.BinFrequency(peak, a.sampleRate, spectrum.BlockSize))
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"

	"github.com/roman-kulish/spectrum-scope/internal/adc"
	"github.com/roman-kulish/spectrum-scope/internal/spectrum"
	"github.com/roman-kulish/spectrum-scope/internal/telemetry"
)

// WithLogger sets the logger shared by both stages.
func WithLogger(logger *slog.Logger) func(*Pipeline) {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithCounters sets the telemetry counters updated by both stages.
func WithCounters(counters *telemetry.Counters) func(*Pipeline) {
	return func(p *Pipeline) {
		p.counters = counters
	}
}

// WithReadChunk sets the number of bytes requested from the source per read.
func WithReadChunk(size int) func(*Pipeline) {
	return func(p *Pipeline) {
		p.readChunk = size
	}
}

// WithChannelCapacity sets the depth of the hand-off channel.
func WithChannelCapacity(capacity int) func(*Pipeline) {
	return func(p *Pipeline) {
		p.capacity = capacity
	}
}

// Pipeline couples an Acquirer and an Analyzer through a BlockChannel and
// runs them on separate goroutines. The acquirer is pinned to its own OS
// thread so sampling is not delayed by analysis.
type Pipeline struct {
	src        adc.Source
	publisher  FramePublisher
	sampleRate int

	readChunk int
	capacity  int

	logger   *slog.Logger
	counters *telemetry.Counters
}

// New creates a Pipeline. The source must already be configured with the
// given sample rate.
func New(src adc.Source, publisher FramePublisher, sampleRate int, options ...func(*Pipeline)) *Pipeline {
	p := Pipeline{
		src:        src,
		publisher:  publisher,
		sampleRate: sampleRate,
		readChunk:  DefaultReadChunk,
		capacity:   DefaultChannelCapacity,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&p)
	}

	return &p
}

// Run blocks until ctx is done or the source is exhausted and every buffered
// block was analyzed. A blocking read is only interrupted by closing the
// source, which the caller does on shutdown.
func (p *Pipeline) Run(ctx context.Context) error {
	blocks := NewBlockChannel(p.capacity)

	acquirer := NewAcquirer(p.src, blocks,
		WithAcquirerReadChunk(p.readChunk),
		WithAcquirerLogger(p.logger),
		WithAcquirerCounters(p.counters))

	analyzer, err := NewAnalyzer(blocks, p.publisher, p.sampleRate,
		WithAnalyzerLogger(p.logger),
		WithAnalyzerCounters(p.counters))
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	var acquireErr, analyzeErr error

	wg.Add(2)
	go func() {
		defer wg.Done()

		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		if acquireErr = acquirer.Run(ctx); acquireErr != nil {
			acquireErr = fmt.Errorf("acquirer: %w", acquireErr)
		}
	}()

	go func() {
		defer wg.Done()

		if analyzeErr = analyzer.Run(ctx); analyzeErr != nil {
			analyzeErr = fmt.Errorf("analyzer: %w", analyzeErr)
		}
	}()

	p.logger.Info("pipeline started",
		slog.String("source", p.src.Name()),
		slog.Int("sampleRate", p.sampleRate),
		slog.Int("blockSize", spectrum.BlockSize),
		slog.Int("channelCapacity", blocks.Cap()))

	wg.Wait()

	p.logger.Info("pipeline stopped", slog.Uint64("dropped", blocks.Dropped()))
	return errors.Join(acquireErr, analyzeErr)
}

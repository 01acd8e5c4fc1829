// Package arecord captures an ALSA input through the `arecord` utility.
package arecord

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/roman-kulish/spectrum-scope/internal/adc"
	"github.com/roman-kulish/spectrum-scope/internal/adc/driver"
)

const (
	Runtime = "arecord"
	Name    = "arecord"

	sourceBitDepth = 16
)

// ErrBrokenPipe is returned when reading the capture output fails
var ErrBrokenPipe = errors.New("broken pipe")

// WithLogger sets the logger for the capture process
func WithLogger(logger *slog.Logger) func(d *Device) {
	return func(d *Device) {
		d.logger = logger.With(slog.String("source", Name))
	}
}

// WithCommand overrides how the capture process is created.
func WithCommand(fn func(ctx context.Context, args []string) *exec.Cmd) func(d *Device) {
	return func(d *Device) {
		d.command = fn
	}
}

// Device runs `arecord` and exposes its stdout as an adc.Source.
type Device struct {
	config   Config
	settings adc.Settings
	command  func(ctx context.Context, args []string) *exec.Cmd

	cmd      *exec.Cmd
	stdout   io.ReadCloser
	scratch  []byte
	channels int

	running  atomic.Bool
	closed   atomic.Bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	waitOnce sync.Once
	waitErr  error
	exited   bool // exit error already returned by Read

	logger *slog.Logger
}

// New creates a new capture device with a discard logger
func New(config *Config, options ...func(d *Device)) (*Device, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	d := Device{
		config: *config,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&d)
	}

	if d.command == nil {
		binPath, err := driver.FindRuntime(Runtime)
		if err != nil {
			return nil, fmt.Errorf("error finding runtime: %w", err)
		}
		d.command = func(ctx context.Context, args []string) *exec.Cmd {
			return exec.CommandContext(ctx, binPath, args...)
		}
	}

	return &d, nil
}

// Configure starts the capture process.
func (d *Device) Configure(settings adc.Settings) error {
	if d.running.Load() {
		return fmt.Errorf("capture is already running")
	}

	args, err := d.config.Args(settings)
	if err != nil {
		return driver.NewConfigError(fmt.Sprintf("arecord: %s", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := d.command(ctx, args)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("error creating stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("error creating stderr pipe: %w", err)
	}

	if err = cmd.Start(); err != nil {
		cancel()
		return driver.NewRuntimeError("error starting command", err)
	}

	d.settings = settings
	d.channels = settings.Channel + 1
	d.cmd = cmd
	d.stdout = stdout
	d.cancel = cancel
	d.running.Store(true)

	d.wg.Add(1)
	go d.handleStderr(stderr)

	d.logger.Info("capture started", slog.String("args", strings.Join(args, " ")))
	return nil
}

// Read blocks until at least one full interleaved frame is available and
// returns the samples of the configured channel rescaled to its bit width.
func (d *Device) Read(p []byte) (int, error) {
	if d.closed.Load() {
		return 0, adc.ErrSourceClosed
	}
	if d.stdout == nil {
		return 0, adc.ErrNotConfigured
	}

	count := len(p) / adc.BytesPerSample
	if count == 0 {
		return 0, io.ErrShortBuffer
	}

	frameSize := d.channels * adc.BytesPerSample
	if need := count * frameSize; cap(d.scratch) < need {
		d.scratch = make([]byte, need)
	}
	scratch := d.scratch[:count*frameSize]

	n, err := io.ReadAtLeast(d.stdout, scratch, frameSize)
	if rem := n % frameSize; err == nil && rem != 0 {
		var m int
		m, err = io.ReadFull(d.stdout, scratch[n:n+frameSize-rem])
		n += m
	}
	if err != nil {
		if d.closed.Load() {
			return 0, adc.ErrSourceClosed
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, fs.ErrClosed) {
			// The exit error is reported once, then the source is exhausted.
			if exitErr := d.wait(); exitErr != nil && !d.exited {
				d.exited = true
				return 0, driver.NewRuntimeError("capture process exited", exitErr)
			}
			return 0, io.EOF
		}
		return 0, fmt.Errorf("%w: error reading stdout: %w", ErrBrokenPipe, err)
	}

	frames := n / frameSize
	offset := d.settings.Channel * adc.BytesPerSample
	for i := 0; i < frames; i++ {
		v := int16(binary.LittleEndian.Uint16(scratch[i*frameSize+offset:]))
		binary.LittleEndian.PutUint16(p[i*adc.BytesPerSample:], adc.Rescale(int(v), sourceBitDepth, d.settings.BitWidth))
	}

	return frames * adc.BytesPerSample, nil
}

// Close stops the capture process and waits for it to exit.
func (d *Device) Close() error {
	if d.closed.Swap(true) {
		return nil // already closed
	}
	if !d.running.Load() {
		return nil
	}

	d.cancel()
	_ = d.wait()
	return nil
}

func (d *Device) Name() string {
	return Name
}

// handleStderr reads from stderr and logs warnings.
func (d *Device) handleStderr(stderr io.Reader) {
	defer d.wg.Done()

	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		d.logger.Warn(fmt.Sprintf("%s >> %s", Runtime, line))
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		d.logger.Error(fmt.Sprintf("error reading stderr: %s", err.Error()))
	}
}

// wait reaps the capture process once stderr has been drained and returns
// its exit error, unless the exit was caused by Close.
func (d *Device) wait() error {
	d.waitOnce.Do(func() {
		d.wg.Wait()

		if err := d.cmd.Wait(); err != nil && !d.closed.Load() {
			d.logger.Error(fmt.Sprintf("command exited with error: %s", err.Error()))
			d.waitErr = err
		}
		d.running.Store(false)
	})

	return d.waitErr
}

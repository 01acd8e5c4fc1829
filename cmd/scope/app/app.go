package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/spectrum-scope/internal/adc"
	"github.com/roman-kulish/spectrum-scope/internal/adc/arecord"
	"github.com/roman-kulish/spectrum-scope/internal/adc/synth"
	"github.com/roman-kulish/spectrum-scope/internal/adc/wavfile"
	"github.com/roman-kulish/spectrum-scope/internal/broadcast"
	"github.com/roman-kulish/spectrum-scope/internal/pipeline"
	"github.com/roman-kulish/spectrum-scope/internal/publish"
	"github.com/roman-kulish/spectrum-scope/internal/render"
	"github.com/roman-kulish/spectrum-scope/internal/storage"
	"github.com/roman-kulish/spectrum-scope/internal/telemetry"
)

const (
	storageDir = "data"

	shutdownTimeout = 5 * time.Second
)

// Run acquires and analyzes the configured source until ctx is done or the
// source is exhausted, serving observers over HTTP meanwhile.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	return run(ctx, config, logger, nil)
}

// run is Run with an optional callback receiving the bound server address.
func run(ctx context.Context, config *Config, logger *slog.Logger, listening func(addr net.Addr)) error {
	counters := telemetry.NewCounters()

	src, err := createSource(&config.Acquisition, logger)
	if err != nil {
		return fmt.Errorf("failed to create source: %w", err)
	}
	defer src.Close()

	if err = src.Configure(config.Acquisition.Settings); err != nil {
		return fmt.Errorf("failed to configure source %s: %w", src.Name(), err)
	}

	var store storage.Store
	var sessionID int64
	if config.Storage.Enabled {
		if store, err = createStorage(&config.Storage); err != nil {
			return fmt.Errorf("failed to create storage: %w", err)
		}
		defer store.Close()

		sessionConfig := map[string]any{
			"settings":  config.Acquisition.Settings,
			"readChunk": config.Acquisition.ReadChunk,
			src.Name():  config.Acquisition.SourceConfig(),
		}
		if sessionID, err = store.CreateSession(ctx, src.Name(), sessionConfig); err != nil {
			return fmt.Errorf("creating session: %w", err)
		}
	}

	hub := broadcast.NewHub(broadcast.WithLogger(logger), broadcast.WithCounters(counters))
	defer hub.Close()

	fanout := publish.Fanout{hub}
	if config.MQTT.Enabled {
		sink, err := broadcast.DialMQTT(&config.MQTT, logger)
		if err != nil {
			return fmt.Errorf("connecting MQTT sink: %w", err)
		}
		defer sink.Close()

		fanout = append(fanout, sink)
	}

	publisherOptions := []func(*publish.Publisher){publish.WithLogger(logger)}

	var panel *render.Panel
	if config.Render.Enabled {
		if panel, err = render.NewPanel(config.Render, config.Acquisition.SampleRate); err != nil {
			return fmt.Errorf("creating panel: %w", err)
		}
		publisherOptions = append(publisherOptions, publish.WithRenderer(panel))
	}

	listener, err := net.Listen("tcp", config.Server.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", config.Server.Listen, err)
	}
	if listening != nil {
		listening(listener.Addr())
	}

	rt := routes{hub: hub, panel: panel, store: store, counters: counters, logger: logger}
	server := newServer(&config.Server, rt.handler(config.Server.WebsocketPath))

	p := pipeline.New(src, publish.NewPublisher(fanout, publisherOptions...), config.Acquisition.SampleRate,
		pipeline.WithLogger(logger),
		pipeline.WithCounters(counters),
		pipeline.WithReadChunk(config.Acquisition.ReadChunk))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	var pipelineErr, serverErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel() // source exhausted: stop everything else

		pipelineErr = p.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()

		logger.Info("serving observers", slog.String("addr", listener.Addr().String()), slog.String("websocket", config.Server.WebsocketPath))
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr = fmt.Errorf("serving HTTP: %w", err)
			cancel()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		reportStats(ctx, config.Storage.StatsInterval, counters, store, sessionID, logger)
	}()

	<-ctx.Done()

	// A pending read is only interrupted by closing the source.
	_ = src.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	_ = hub.Close()
	shutdownErr := server.Shutdown(shutdownCtx)

	wg.Wait()

	if store != nil {
		if _, err := store.StoreStats(context.Background(), sessionID, counters.Get()); err != nil {
			logger.Warn("storing final stats", slog.Any("error", err))
		}
	}
	logStats(logger, counters.Get())

	return errors.Join(pipelineErr, serverErr, shutdownErr)
}

func createSource(config *AcquisitionConfig, logger *slog.Logger) (adc.Source, error) {
	switch config.Source {
	case SourceSynth:
		return synth.New(&config.Synth)

	case SourceWAV:
		return wavfile.New(&config.WAV)

	case SourceArecord:
		return arecord.New(&config.Arecord, arecord.WithLogger(logger))

	default:
		return nil, fmt.Errorf("unknown source '%s'", config.Source)
	}
}

func createStorage(config *StorageConfig) (*storage.SqliteStore, error) {
	dbPath := config.DataDirectory
	if dbPath == "" {
		dbPath = storageDir
	}
	if !filepath.IsAbs(dbPath) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current working directory: %w", err)
		}
		dbPath = filepath.Join(wd, dbPath)
	}

	stat, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("storage directory '%s' does not exist: %w", dbPath, err)
		}
		return nil, err
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("invalid storage directory '%s'", dbPath)
	}

	return storage.NewSqliteStore(filepath.Join(dbPath, "spectrum_scope.sqlite")), nil
}

// reportStats logs, and stores when a store is configured, a telemetry
// snapshot every interval until ctx is done.
func reportStats(ctx context.Context, interval time.Duration, provider telemetry.Provider, store storage.Store, sessionID int64, logger *slog.Logger) {
	if interval <= 0 {
		interval = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			t := provider.Get()
			logStats(logger, t)

			if store == nil {
				continue
			}
			if _, err := store.StoreStats(ctx, sessionID, t); err != nil && ctx.Err() == nil {
				logger.Warn("storing stats", slog.Any("error", err))
			}
		}
	}
}

func logStats(logger *slog.Logger, t *telemetry.Telemetry) {
	attrs := []any{
		slog.String("acquired", humanize.Comma(int64(t.BlocksAcquired))),
		slog.String("dropped", humanize.Comma(int64(t.BlocksDropped))),
		slog.String("readFailures", humanize.Comma(int64(t.ReadFailures))),
		slog.String("published", humanize.Comma(int64(t.FramesPublished))),
		slog.Int64("observers", t.Observers),
		slog.Duration("processing", t.LastProcessing),
	}
	if t.PeakFrequency != nil {
		attrs = append(attrs, slog.String("peak", fmt.Sprintf("%.1f Hz", *t.PeakFrequency)))
	}

	logger.Info("pipeline stats", attrs...)
}

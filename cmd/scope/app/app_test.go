package app

import (
	"context"
	"io"
	"log/slog"
	"math"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/roman-kulish/spectrum-scope/internal/spectrum"
	"github.com/roman-kulish/spectrum-scope/internal/storage"
)

func writeSineWav(t *testing.T, dir string, sampleRate, samples int, frequency float64) string {
	t.Helper()

	data := make([]int, samples)
	for i := range data {
		data[i] = int(math.Round(16000 * math.Sin(2*math.Pi*frequency*float64(i)/float64(sampleRate))))
	}

	path := filepath.Join(dir, "signal.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create wav file: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err = enc.Write(buf); err != nil {
		t.Fatalf("Failed to write wav data: %v", err)
	}
	if err = enc.Close(); err != nil {
		t.Fatalf("Failed to close encoder: %v", err)
	}
	return path
}

func TestRun_WavToEnd(t *testing.T) {
	dir := t.TempDir()

	config := NewConfig()
	config.Acquisition.Source = SourceWAV
	config.Acquisition.WAV.Path = writeSineWav(t, dir, 1000, 2*spectrum.BlockSize, 50)
	config.Acquisition.WAV.Loop = false
	config.Acquisition.WAV.Realtime = false
	config.Server.Listen = "127.0.0.1:0"
	config.Storage.DataDirectory = dir
	if err := config.Validate(); err != nil {
		t.Fatalf("Invalid configuration: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := Run(context.Background(), config, logger); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	store := storage.NewSqliteStore(filepath.Join(dir, "spectrum_scope.sqlite"))
	defer store.Close()

	ctx := context.Background()
	sessions, err := store.Sessions(ctx)
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Source != SourceWAV {
		t.Fatalf("Expected one wav session, got %+v", sessions)
	}

	stats, err := store.LatestStats(ctx, sessions[0].ID)
	if err != nil {
		t.Fatalf("Failed to read stats: %v", err)
	}
	if stats.BlocksAcquired != 2 || stats.FramesPublished != 2 || stats.BlocksDropped != 0 {
		t.Errorf("Unexpected final stats: %+v", stats.Telemetry)
	}
	if stats.PeakFrequency == nil || math.Abs(*stats.PeakFrequency-50) > 1 {
		t.Errorf("Expected a peak near 50 Hz, got %v", stats.PeakFrequency)
	}
}

func TestRun_MissingStorageDirectory(t *testing.T) {
	config := NewConfig()
	config.Acquisition.Synth.Realtime = false
	config.Storage.DataDirectory = filepath.Join(t.TempDir(), "missing")

	err := Run(context.Background(), config, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("Expected a missing directory error, got %v", err)
	}
}

func TestRun_MQTTDialFailure(t *testing.T) {
	// A port that was just released refuses connections.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to reserve a port: %v", err)
	}
	broker := "tcp://" + l.Addr().String()
	_ = l.Close()

	config := NewConfig()
	config.Acquisition.Synth.Realtime = false
	config.Storage.Enabled = false
	config.MQTT.Enabled = true
	config.MQTT.Broker = broker
	if err = config.Validate(); err != nil {
		t.Fatalf("Invalid configuration: %v", err)
	}

	err = Run(context.Background(), config, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err == nil || !strings.Contains(err.Error(), "connecting MQTT sink") {
		t.Errorf("Expected a wrapped MQTT error, got %v", err)
	}
}

package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/roman-kulish/spectrum-scope/internal/adc"
	"github.com/roman-kulish/spectrum-scope/internal/telemetry"
)

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()

	s := NewSqliteStore(filepath.Join(t.TempDir(), "scope.db"))
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Failed to close store: %v", err)
		}
	})
	return s
}

func TestSqliteStore_Sessions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	settings := adc.Settings{SampleRate: 1000, BitWidth: 12}
	first, err := s.CreateSession(ctx, "synth", settings)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	second, err := s.CreateSession(ctx, "wav", nil)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if second <= first {
		t.Errorf("Expected increasing session IDs, got %d and %d", first, second)
	}

	sess, err := s.Session(ctx, first)
	if err != nil {
		t.Fatalf("Failed to read session: %v", err)
	}
	if sess.Source != "synth" {
		t.Errorf("Expected source synth, got %s", sess.Source)
	}
	if sess.Config == nil || *sess.Config != `{"sampleRate":1000,"bitWidth":12,"channel":0}` {
		t.Errorf("Unexpected config: %v", sess.Config)
	}
	if sess.StartTime.IsZero() {
		t.Error("Expected a start time")
	}

	sessions, err := s.Sessions(ctx)
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(sessions))
	}
	if sessions[1].Config != nil {
		t.Errorf("Expected no config for the second session, got %s", *sessions[1].Config)
	}

	if _, err = s.Session(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSqliteStore_Stats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sessionID, err := s.CreateSession(ctx, "synth", "{}")
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	if _, err = s.LatestStats(ctx, sessionID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound before any stats, got %v", err)
	}

	now := time.Now().Truncate(time.Second)
	if _, err = s.StoreStats(ctx, sessionID, &telemetry.Telemetry{Timestamp: now, BlocksAcquired: 1}); err != nil {
		t.Fatalf("Failed to store stats: %v", err)
	}

	peak := 49.8
	latest := telemetry.Telemetry{
		Timestamp:       now.Add(10 * time.Second),
		BlocksAcquired:  10,
		BlocksDropped:   2,
		ReadFailures:    1,
		FramesPublished: 8,
		Observers:       3,
		LastProcessing:  1500 * time.Microsecond,
		PeakFrequency:   &peak,
	}
	if _, err = s.StoreStats(ctx, sessionID, &latest); err != nil {
		t.Fatalf("Failed to store stats: %v", err)
	}

	got, err := s.LatestStats(ctx, sessionID)
	if err != nil {
		t.Fatalf("Failed to read stats: %v", err)
	}

	if got.SessionID != sessionID {
		t.Errorf("Expected session %d, got %d", sessionID, got.SessionID)
	}
	if !got.Timestamp.Equal(latest.Timestamp) {
		t.Errorf("Expected timestamp %s, got %s", latest.Timestamp, got.Timestamp)
	}
	if got.BlocksAcquired != 10 || got.BlocksDropped != 2 || got.ReadFailures != 1 || got.FramesPublished != 8 {
		t.Errorf("Unexpected counters: %+v", got.Telemetry)
	}
	if got.Observers != 3 || got.LastProcessing != 1500*time.Microsecond {
		t.Errorf("Unexpected gauges: %+v", got.Telemetry)
	}
	if got.PeakFrequency == nil || *got.PeakFrequency != peak {
		t.Errorf("Expected peak frequency %v, got %v", peak, got.PeakFrequency)
	}
}

func TestSqliteStore_CloseTwice(t *testing.T) {
	s := NewSqliteStore(filepath.Join(t.TempDir(), "scope.db"))
	if _, err := s.CreateSession(context.Background(), "synth", nil); err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Expected second Close to be a no-op, got %v", err)
	}
}

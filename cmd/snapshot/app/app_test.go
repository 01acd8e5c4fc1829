package app

import (
	"context"
	"errors"
	"image/png"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roman-kulish/spectrum-scope/internal/broadcast"
	"github.com/roman-kulish/spectrum-scope/internal/publish"
	"github.com/roman-kulish/spectrum-scope/internal/spectrum"
)

func wireMessage(t *testing.T, bin int) []byte {
	t.Helper()

	p, err := spectrum.NewProcessor()
	if err != nil {
		t.Fatalf("Failed to create processor: %v", err)
	}

	var b spectrum.Block
	for i := range b {
		b[i] = uint16(2048 + 1500*math.Sin(2*math.Pi*float64(bin)*float64(i)/spectrum.BlockSize))
	}

	f := p.Process(&b)
	return publish.AppendWireMessage(nil, &f)
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testConfig(t *testing.T, url string) *Config {
	t.Helper()

	config := NewConfig()
	config.URL = url
	config.OutputFile = filepath.Join(t.TempDir(), "frame.png")
	config.Timeout = 5 * time.Second
	if err := config.Panel.Validate(); err != nil {
		t.Fatalf("Invalid panel config: %v", err)
	}
	return config
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRun_WritesImage(t *testing.T) {
	hub := broadcast.NewHub()
	defer hub.Close()

	hub.SendToAll(wireMessage(t, 100))

	server := httptest.NewServer(hub)
	defer server.Close()

	config := testConfig(t, wsURL(server))
	if err := Run(context.Background(), config, discard()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	f, err := os.Open(config.OutputFile)
	if err != nil {
		t.Fatalf("Failed to open output: %v", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("Failed to decode output: %v", err)
	}
	if b := img.Bounds(); b.Dx() != config.Panel.Width || b.Dy() != config.Panel.Height {
		t.Errorf("Expected %dx%d image, got %dx%d", config.Panel.Width, config.Panel.Height, b.Dx(), b.Dy())
	}
}

func TestReceiveFrame_SkipsMalformed(t *testing.T) {
	valid := wireMessage(t, 64)

	var upgrader websocket.Upgrader
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"time":[1,2],"freq":[]}`))
		_ = conn.WriteMessage(websocket.TextMessage, valid)
		_, _, _ = conn.ReadMessage()
	}))
	defer server.Close()

	msg, err := receiveFrame(context.Background(), wsURL(server), discard())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if peak := spectrum.PeakBin(msg.Freq); peak != 64 {
		t.Errorf("Expected peak bin 64, got %d", peak)
	}
}

func TestRun_Timeout(t *testing.T) {
	hub := broadcast.NewHub()
	defer hub.Close()

	server := httptest.NewServer(hub)
	defer server.Close()

	config := testConfig(t, wsURL(server))
	config.Timeout = 100 * time.Millisecond

	err := Run(context.Background(), config, discard())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

package wavfile

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/roman-kulish/spectrum-scope/internal/adc"
)

func writeWav(t *testing.T, sampleRate, channels int, data []int) string {
	t.Helper()
	return writeWavDepth(t, sampleRate, 16, channels, data)
}

func writeWavDepth(t *testing.T, sampleRate, bitDepth, channels int, data []int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "signal.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create wav file: %v", err)
	}

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err = enc.Write(buf); err != nil {
		t.Fatalf("Failed to write wav data: %v", err)
	}
	if err = enc.Close(); err != nil {
		t.Fatalf("Failed to close encoder: %v", err)
	}
	if err = f.Close(); err != nil {
		t.Fatalf("Failed to close wav file: %v", err)
	}
	return path
}

func TestSource_ReadsChannel(t *testing.T) {
	// interleaved stereo: left = -32768, 0, 32767; right = 16
	path := writeWav(t, 1000, 2, []int{-32768, 16, 0, 16, 32767, 16})

	src, err := New(&Config{Path: path})
	if err != nil {
		t.Fatalf("Failed to create source: %v", err)
	}
	if err = src.Configure(adc.Settings{SampleRate: 1000, BitWidth: 12, Channel: 0}); err != nil {
		t.Fatalf("Failed to configure source: %v", err)
	}
	if src.Len() != 3 {
		t.Fatalf("Expected 3 samples, got %d", src.Len())
	}

	buf := make([]byte, 64)
	n, err := src.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if n != 6 {
		t.Fatalf("Expected 6 bytes, got %d", n)
	}

	expected := []uint16{0, 2048, 4095}
	for i, want := range expected {
		if got := binary.LittleEndian.Uint16(buf[i*2:]); got != want {
			t.Errorf("Sample %d: expected %d, got %d", i, want, got)
		}
	}

	if _, err = src.Read(buf); !errors.Is(err, io.EOF) {
		t.Errorf("Expected io.EOF at the end of the file, got %v", err)
	}
}

func TestSource_Loop(t *testing.T) {
	path := writeWav(t, 1000, 1, []int{0, 100})

	src, err := New(&Config{Path: path, Loop: true})
	if err != nil {
		t.Fatalf("Failed to create source: %v", err)
	}
	if err = src.Configure(adc.Settings{SampleRate: 1000, BitWidth: 12}); err != nil {
		t.Fatalf("Failed to configure source: %v", err)
	}

	buf := make([]byte, 4)
	for i := 0; i < 3; i++ {
		n, err := src.Read(buf)
		if err != nil {
			t.Fatalf("Read %d failed: %v", i, err)
		}
		if n != 4 {
			t.Fatalf("Read %d: expected 4 bytes, got %d", i, n)
		}
	}
}

func TestSource_ConfigureErrors(t *testing.T) {
	path := writeWav(t, 8000, 1, []int{0, 1, 2, 3})

	testCases := []struct {
		name     string
		settings adc.Settings
	}{
		{"sample rate mismatch", adc.Settings{SampleRate: 1000, BitWidth: 12}},
		{"missing channel", adc.Settings{SampleRate: 8000, BitWidth: 12, Channel: 1}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			src, err := New(&Config{Path: path})
			if err != nil {
				t.Fatalf("Failed to create source: %v", err)
			}
			if err = src.Configure(tc.settings); err == nil {
				t.Error("Expected configuration error")
			}
		})
	}

	if _, err := New(&Config{}); err == nil {
		t.Error("Expected error for an empty path")
	}
}

func TestSource_ReadsUnsigned8Bit(t *testing.T) {
	path := writeWavDepth(t, 1000, 8, 1, []int{0, 128, 255})

	src, err := New(&Config{Path: path})
	if err != nil {
		t.Fatalf("Failed to create source: %v", err)
	}
	if err = src.Configure(adc.Settings{SampleRate: 1000, BitWidth: 12}); err != nil {
		t.Fatalf("Failed to configure source: %v", err)
	}

	buf := make([]byte, 64)
	n, err := src.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	expected := []uint16{0, 2048, 4080}
	if n != len(expected)*adc.BytesPerSample {
		t.Fatalf("Expected %d bytes, got %d", len(expected)*adc.BytesPerSample, n)
	}
	for i, want := range expected {
		if got := binary.LittleEndian.Uint16(buf[i*2:]); got != want {
			t.Errorf("Sample %d: expected %d, got %d", i, want, got)
		}
	}
}

package synth

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/roman-kulish/spectrum-scope/internal/adc"
)

func TestSource_ReadQuantizedSine(t *testing.T) {
	src, err := New(&Config{Frequency: 50, Amplitude: 2000, Offset: 2048})
	if err != nil {
		t.Fatalf("Failed to create source: %v", err)
	}
	if err = src.Configure(adc.Settings{SampleRate: 1000, BitWidth: 12}); err != nil {
		t.Fatalf("Failed to configure source: %v", err)
	}

	buf := make([]byte, 512)
	n, err := src.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("Expected %d bytes, got %d", len(buf), n)
	}

	for i := 0; i < n/2; i++ {
		got := binary.LittleEndian.Uint16(buf[i*2:])
		want := uint16(math.Round(2048 + 2000*math.Sin(2*math.Pi*50*float64(i)/1000)))
		if got != want {
			t.Fatalf("Sample %d: expected %d, got %d", i, want, got)
		}
		if got > 4095 {
			t.Fatalf("Sample %d exceeds 12 bits: %d", i, got)
		}
	}
}

func TestSource_Clamps(t *testing.T) {
	src, err := New(&Config{Frequency: 10, Amplitude: 5000, Offset: 2048})
	if err != nil {
		t.Fatalf("Failed to create source: %v", err)
	}
	if err = src.Configure(adc.Settings{SampleRate: 1000, BitWidth: 12}); err != nil {
		t.Fatalf("Failed to configure source: %v", err)
	}

	for n := uint64(0); n < 100; n++ {
		if v := src.Sample(n); v > 4095 {
			t.Fatalf("Expected clamped value, got %d", v)
		}
	}
}

func TestSource_Lifecycle(t *testing.T) {
	src, err := New(&Config{Frequency: 50, Amplitude: 100, Offset: 2048})
	if err != nil {
		t.Fatalf("Failed to create source: %v", err)
	}

	if _, err = src.Read(make([]byte, 4)); !errors.Is(err, adc.ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}

	if err = src.Configure(adc.Settings{SampleRate: 1000, BitWidth: 12}); err != nil {
		t.Fatalf("Failed to configure source: %v", err)
	}

	if _, err = src.Read(make([]byte, 1)); !errors.Is(err, io.ErrShortBuffer) {
		t.Errorf("Expected io.ErrShortBuffer, got %v", err)
	}

	_ = src.Close()
	if _, err = src.Read(make([]byte, 4)); !errors.Is(err, adc.ErrSourceClosed) {
		t.Errorf("Expected ErrSourceClosed, got %v", err)
	}
}

func TestSource_RejectsAliasedFrequency(t *testing.T) {
	src, err := New(&Config{Frequency: 600, Amplitude: 100})
	if err != nil {
		t.Fatalf("Failed to create source: %v", err)
	}
	if err = src.Configure(adc.Settings{SampleRate: 1000, BitWidth: 12}); err == nil {
		t.Error("Expected an error for a frequency above Nyquist")
	}
}

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		name   string
		config Config
	}{
		{"negative frequency", Config{Frequency: -1}},
		{"negative amplitude", Config{Amplitude: -1}},
		{"negative noise", Config{Noise: -1}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.config.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestSource_ReadContinuesAcrossCalls(t *testing.T) {
	src, err := New(&Config{Frequency: 50, Amplitude: 2000, Offset: 2048})
	if err != nil {
		t.Fatalf("Failed to create source: %v", err)
	}
	if err = src.Configure(adc.Settings{SampleRate: 1000, BitWidth: 12}); err != nil {
		t.Fatalf("Failed to configure source: %v", err)
	}

	var samples []uint16
	for _, size := range []int{8, 512, 3, 64} {
		buf := make([]byte, size)
		n, err := src.Read(buf)
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if want := size / 2 * 2; n != want {
			t.Fatalf("Expected %d bytes, got %d", want, n)
		}
		for i := 0; i < n; i += 2 {
			samples = append(samples, binary.LittleEndian.Uint16(buf[i:]))
		}
	}

	for i, got := range samples {
		if want := src.Sample(uint64(i)); got != want {
			t.Fatalf("Sample %d: expected %d, got %d", i, want, got)
		}
	}
}

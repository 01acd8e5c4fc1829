package adc

import (
	"encoding/binary"
	"testing"
	"time"
)

func TestSettings_Validate(t *testing.T) {
	testCases := []struct {
		name     string
		settings Settings
		valid    bool
	}{
		{"default", Settings{SampleRate: 1000, BitWidth: 12}, true},
		{"zero sample rate", Settings{SampleRate: 0, BitWidth: 12}, false},
		{"too wide", Settings{SampleRate: 1000, BitWidth: 17}, false},
		{"negative channel", Settings{SampleRate: 1000, BitWidth: 12, Channel: -1}, false},
		{"channel out of range", Settings{SampleRate: 1000, BitWidth: 12, Channel: MaxChannel + 1}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.settings.Validate()
			if tc.valid && err != nil {
				t.Errorf("Expected valid settings, got %v", err)
			}
			if !tc.valid && err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestPutSamples(t *testing.T) {
	buf := make([]byte, 6)
	n := PutSamples(buf, []uint16{0x0123, 0x0fff, 0})
	if n != 6 {
		t.Fatalf("Expected 6 bytes, got %d", n)
	}
	if buf[0] != 0x23 || buf[1] != 0x01 {
		t.Errorf("Expected little-endian encoding, got % x", buf[:2])
	}
	if v := binary.LittleEndian.Uint16(buf[2:]); v != 0x0fff {
		t.Errorf("Expected 0x0fff, got %#x", v)
	}
}

func TestRescale(t *testing.T) {
	testCases := []struct {
		v, depth, width int
		want            uint16
	}{
		{-32768, 16, 12, 0},
		{0, 16, 12, 2048},
		{32767, 16, 12, 4095},
		{0, 8, 12, 2048},
		{127, 8, 12, 4080},
		{-1 << 23, 24, 12, 0},
	}

	for _, tc := range testCases {
		if got := Rescale(tc.v, tc.depth, tc.width); got != tc.want {
			t.Errorf("Rescale(%d, %d, %d): expected %d, got %d", tc.v, tc.depth, tc.width, tc.want, got)
		}
	}
}

func TestPacer_Wait(t *testing.T) {
	now := time.Unix(0, 0)
	var slept []time.Duration

	p := NewPacer(1000)
	p.now = func() time.Time { return now }
	p.sleep = func(d time.Duration) {
		slept = append(slept, d)
		now = now.Add(d)
	}

	p.Wait(256)
	p.Wait(256)

	if len(slept) != 2 {
		t.Fatalf("Expected 2 sleeps, got %d", len(slept))
	}
	for i, d := range slept {
		if d != 256*time.Millisecond {
			t.Errorf("Sleep %d: expected 256ms, got %s", i, d)
		}
	}

	// a long stall resets the schedule
	now = now.Add(5 * time.Second)
	p.Wait(256)
	if len(slept) != 2 {
		t.Errorf("Expected no sleep after a stall, got %d sleeps", len(slept))
	}
}

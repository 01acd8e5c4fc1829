package adc

import (
	"time"
)

// Pacer throttles a file-backed or synthetic source to the configured sample
// rate so frames are produced at the same cadence as real hardware.
type Pacer struct {
	sampleRate int
	next       time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

func NewPacer(sampleRate int) *Pacer {
	return &Pacer{
		sampleRate: sampleRate,
		now:        time.Now,
		sleep:      time.Sleep,
	}
}

// Wait blocks until the given number of samples would have been acquired.
func (p *Pacer) Wait(samples int) {
	now := p.now()
	if p.next.IsZero() {
		p.next = now
	}

	p.next = p.next.Add(time.Duration(samples) * time.Second / time.Duration(p.sampleRate))

	// After a long stall, restart the schedule instead of bursting to catch up.
	if now.Sub(p.next) > time.Second {
		p.next = now
		return
	}

	if d := p.next.Sub(now); d > 0 {
		p.sleep(d)
	}
}

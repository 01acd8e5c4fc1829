package telemetry

import (
	"math"
	"sync/atomic"
	"time"
)

type Provider interface {
	Get() *Telemetry
}

// Telemetry is a point-in-time snapshot of the pipeline counters
type Telemetry struct {
	Timestamp       time.Time     `json:"timestamp"`               // When the snapshot was taken
	BlocksAcquired  uint64        `json:"blocksAcquired"`          // Completed blocks framed by the acquirer
	BlocksDropped   uint64        `json:"blocksDropped"`           // Completed blocks dropped because the channel was full
	ReadFailures    uint64        `json:"readFailures"`            // Failed reads from the acquisition source
	FramesPublished uint64        `json:"framesPublished"`         // Frames broadcast to observers
	Observers       int64         `json:"observers"`               // Currently connected observers
	LastProcessing  time.Duration `json:"lastProcessing"`          // Duration of the last spectral processing + publish
	PeakFrequency   *float64      `json:"peakFrequency,omitempty"` // Strongest bin of the last frame in Hz, if any
}

// Counters collects pipeline telemetry. All methods are safe for concurrent
// use; each counter has a single writer stage.
type Counters struct {
	blocksAcquired  atomic.Uint64
	blocksDropped   atomic.Uint64
	readFailures    atomic.Uint64
	framesPublished atomic.Uint64
	observers       atomic.Int64
	lastProcessing  atomic.Int64
	peakFrequency   atomic.Uint64
	hasPeak         atomic.Bool

	now func() time.Time
}

func NewCounters() *Counters {
	return &Counters{now: time.Now}
}

func (c *Counters) BlockAcquired()  { c.blocksAcquired.Add(1) }
func (c *Counters) BlockDropped()   { c.blocksDropped.Add(1) }
func (c *Counters) ReadFailed()     { c.readFailures.Add(1) }
func (c *Counters) FramePublished() { c.framesPublished.Add(1) }

func (c *Counters) ObserverConnected()    { c.observers.Add(1) }
func (c *Counters) ObserverDisconnected() { c.observers.Add(-1) }

// Processed records the duration of one block and the frequency of its peak.
func (c *Counters) Processed(d time.Duration, peakFrequency float64) {
	c.lastProcessing.Store(int64(d))
	c.peakFrequency.Store(math.Float64bits(peakFrequency))
	c.hasPeak.Store(true)
}

func (c *Counters) Get() *Telemetry {
	t := Telemetry{
		Timestamp:       c.now(),
		BlocksAcquired:  c.blocksAcquired.Load(),
		BlocksDropped:   c.blocksDropped.Load(),
		ReadFailures:    c.readFailures.Load(),
		FramesPublished: c.framesPublished.Load(),
		Observers:       c.observers.Load(),
		LastProcessing:  time.Duration(c.lastProcessing.Load()),
	}

	if c.hasPeak.Load() {
		peak := math.Float64frombits(c.peakFrequency.Load())
		t.PeakFrequency = &peak
	}

	return &t
}

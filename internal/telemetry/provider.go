package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "scope"

// Collector exports a Provider as Prometheus metrics.
type Collector struct {
	provider Provider

	blocksAcquired  *prometheus.Desc
	blocksDropped   *prometheus.Desc
	readFailures    *prometheus.Desc
	framesPublished *prometheus.Desc
	observers       *prometheus.Desc
	lastProcessing  *prometheus.Desc
	peakFrequency   *prometheus.Desc
}

func NewCollector(provider Provider) *Collector {
	return &Collector{
		provider: provider,

		blocksAcquired: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "pipeline", "blocks_acquired_total"),
			"Completed sample blocks framed by the acquirer.", nil, nil),
		blocksDropped: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "pipeline", "blocks_dropped_total"),
			"Completed sample blocks dropped because the hand-off channel was full.", nil, nil),
		readFailures: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "acquisition", "read_failures_total"),
			"Failed reads from the acquisition source.", nil, nil),
		framesPublished: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "pipeline", "frames_published_total"),
			"Spectrum frames broadcast to observers.", nil, nil),
		observers: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "broadcast", "observers"),
			"Currently connected observers.", nil, nil),
		lastProcessing: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "pipeline", "last_processing_seconds"),
			"Duration of the last spectral processing and publish.", nil, nil),
		peakFrequency: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "spectrum", "peak_frequency_hertz"),
			"Frequency of the strongest bin in the last frame.", nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.blocksAcquired
	ch <- c.blocksDropped
	ch <- c.readFailures
	ch <- c.framesPublished
	ch <- c.observers
	ch <- c.lastProcessing
	ch <- c.peakFrequency
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	t := c.provider.Get()

	ch <- prometheus.MustNewConstMetric(c.blocksAcquired, prometheus.CounterValue, float64(t.BlocksAcquired))
	ch <- prometheus.MustNewConstMetric(c.blocksDropped, prometheus.CounterValue, float64(t.BlocksDropped))
	ch <- prometheus.MustNewConstMetric(c.readFailures, prometheus.CounterValue, float64(t.ReadFailures))
	ch <- prometheus.MustNewConstMetric(c.framesPublished, prometheus.CounterValue, float64(t.FramesPublished))
	ch <- prometheus.MustNewConstMetric(c.observers, prometheus.GaugeValue, float64(t.Observers))
	ch <- prometheus.MustNewConstMetric(c.lastProcessing, prometheus.GaugeValue, t.LastProcessing.Seconds())

	if t.PeakFrequency != nil {
		ch <- prometheus.MustNewConstMetric(c.peakFrequency, prometheus.GaugeValue, *t.PeakFrequency)
	}
}

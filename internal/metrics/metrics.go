// Package metrics exposes scan and upload counters to prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harrylevesque/scanrelay/internal/models"
)

const namespace = "scanrelay"

// Collector groups the counters of a station and of the receiver.
// A nil *Collector is valid and records nothing.
type Collector struct {
	scans    prometheus.Counter
	dropped  prometheus.Counter
	uploads  *prometheus.CounterVec
	rearms   prometheus.Counter
	received prometheus.Counter
}

// New creates the counters and registers them with reg.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		scans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Decode events accepted for upload.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_dropped_total",
			Help:      "Decode events dropped because an upload was in flight.",
		}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Upload attempts by outcome.",
		}, []string{"outcome"}),
		rearms: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rearms_total",
			Help:      "Scanner previews restarted after an upload.",
		}),
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "received_scans_total",
			Help:      "Scans stored by the receiving endpoint.",
		}),
	}
	reg.MustRegister(c.scans, c.dropped, c.uploads, c.rearms, c.received)
	return c
}

func (c *Collector) Scanned() {
	if c != nil {
		c.scans.Inc()
	}
}

func (c *Collector) Dropped() {
	if c != nil {
		c.dropped.Inc()
	}
}

func (c *Collector) Uploaded(o models.UploadOutcome) {
	if c != nil {
		c.uploads.WithLabelValues(o.Kind.String()).Inc()
	}
}

func (c *Collector) Rearmed() {
	if c != nil {
		c.rearms.Inc()
	}
}

func (c *Collector) Received() {
	if c != nil {
		c.received.Inc()
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

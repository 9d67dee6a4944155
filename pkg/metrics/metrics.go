// Package metrics exposes archiver counters through a private Prometheus registry.
// A nil *Collector is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chanarchive"

// Collector holds every archiver counter
type Collector struct {
	registry *prometheus.Registry

	requests           *prometheus.CounterVec
	redirects          prometheus.Counter
	rateLimited        prometheus.Counter
	credentialWithheld prometheus.Counter
	days               *prometheus.CounterVec
	pagesLost          prometheus.Counter
	downloads          *prometheus.CounterVec
	downloadBytes      prometheus.Counter
}

// New creates a Collector registered on its own registry
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Backend requests by response class.",
		}, []string{"class"}),
		redirects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redirects_total",
			Help:      "Redirects followed by the transport.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "429 responses received.",
		}),
		credentialWithheld: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_withheld_total",
			Help:      "Requests sent to hosts outside the safe domain set.",
		}),
		days: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "days_total",
			Help:      "Scanned days by outcome.",
		}, []string{"status"}),
		pagesLost: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_lost_total",
			Help:      "Secondary search pages that failed and were skipped.",
		}),
		downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Download tasks by outcome.",
		}, []string{"outcome"}),
		downloadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_bytes_total",
			Help:      "Bytes written to disk.",
		}),
	}

	c.registry.MustRegister(
		c.requests,
		c.redirects,
		c.rateLimited,
		c.credentialWithheld,
		c.days,
		c.pagesLost,
		c.downloads,
		c.downloadBytes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the private registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// StatusClass maps a status code to "2xx", "3xx", ... or "error" for 0
func StatusClass(code int) string {
	switch {
	case code <= 0:
		return "error"
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code == 429:
		return "429"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

func (c *Collector) ObserveRequest(code int) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(StatusClass(code)).Inc()
}

func (c *Collector) ObserveRedirect() {
	if c == nil {
		return
	}
	c.redirects.Inc()
}

func (c *Collector) ObserveRateLimited() {
	if c == nil {
		return
	}
	c.rateLimited.Inc()
}

func (c *Collector) ObserveCredentialWithheld() {
	if c == nil {
		return
	}
	c.credentialWithheld.Inc()
}

func (c *Collector) ObserveDay(status string) {
	if c == nil {
		return
	}
	c.days.WithLabelValues(status).Inc()
}

func (c *Collector) ObservePagesLost(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.pagesLost.Add(float64(n))
}

// ObserveDownload records one finished task and the bytes it wrote
func (c *Collector) ObserveDownload(outcome string, bytes int64) {
	if c == nil {
		return
	}
	c.downloads.WithLabelValues(outcome).Inc()
	if bytes > 0 {
		c.downloadBytes.Add(float64(bytes))
	}
}

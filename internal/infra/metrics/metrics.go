package metrics

import (
	"net/http"
	"time"

	"zkcred/internal/domain"
	"zkcred/internal/prover"
	"zkcred/internal/usecase"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors holds the proving and verification series. Labels carry only
// backends, outcomes and reason codes; never identifiers.
type Collectors struct {
	registry *prometheus.Registry

	proofDuration  *prometheus.HistogramVec
	proofsTotal    *prometheus.CounterVec
	queueDepth     prometheus.Gauge
	verifyDuration *prometheus.HistogramVec
	verifyTotal    *prometheus.CounterVec
	verifyReasons  *prometheus.CounterVec
}

func New() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		proofDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "zkcred",
			Subsystem: "prover",
			Name:      "duration_seconds",
			Help:      "Proof generation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"backend", "outcome"}),
		proofsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zkcred",
			Subsystem: "prover",
			Name:      "proofs_total",
			Help:      "Proof generation attempts by outcome.",
		}, []string{"backend", "outcome"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "zkcred",
			Subsystem: "prover",
			Name:      "queue_depth",
			Help:      "Queued and running proving jobs.",
		}),
		verifyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "zkcred",
			Subsystem: "verifier",
			Name:      "duration_seconds",
			Help:      "Verification latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		verifyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zkcred",
			Subsystem: "verifier",
			Name:      "verifications_total",
			Help:      "Verifications by outcome.",
		}, []string{"outcome"}),
		verifyReasons: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zkcred",
			Subsystem: "verifier",
			Name:      "rejections_total",
			Help:      "Rejection reasons.",
		}, []string{"reason"}),
	}
	c.registry.MustRegister(
		c.proofDuration,
		c.proofsTotal,
		c.queueDepth,
		c.verifyDuration,
		c.verifyTotal,
		c.verifyReasons,
		collectors.NewGoCollector(),
	)
	return c
}

func (c *Collectors) ObserveProof(backend, outcome string, d time.Duration) {
	c.proofDuration.WithLabelValues(backend, outcome).Observe(d.Seconds())
	c.proofsTotal.WithLabelValues(backend, outcome).Inc()
}

func (c *Collectors) SetQueueDepth(n int) {
	c.queueDepth.Set(float64(n))
}

func (c *Collectors) ObserveVerification(outcome string, reasons []domain.Reason, d time.Duration) {
	c.verifyDuration.WithLabelValues(outcome).Observe(d.Seconds())
	c.verifyTotal.WithLabelValues(outcome).Inc()
	for _, r := range reasons {
		c.verifyReasons.WithLabelValues(string(r)).Inc()
	}
}

// Gatherer exposes the registry for tests.
func (c *Collectors) Gatherer() prometheus.Gatherer {
	return c.registry
}

func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

var (
	_ prover.Observer              = (*Collectors)(nil)
	_ usecase.VerificationObserver = (*Collectors)(nil)
)

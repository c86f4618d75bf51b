package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"nftcate/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors. It satisfies usecase.IssuanceMetrics.
type Metrics struct {
	gatherer prometheus.Gatherer

	issuanceTotal        *prometheus.CounterVec
	stageDuration        *prometheus.HistogramVec
	stageErrors          *prometheus.CounterVec
	verificationTotal    *prometheus.CounterVec
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpInflightRequests prometheus.Gauge
}

// New registers the collectors on reg. A nil reg gets a private registry, which
// keeps tests independent of the process default.
func New(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		gatherer: reg,
		issuanceTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nftcate_issuance_total",
			Help: "Issuance attempts by outcome and the stage they ended in.",
		}, []string{"outcome", "stage"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nftcate_issuance_stage_duration_seconds",
			Help:    "Duration of each issuance stage.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		stageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nftcate_issuance_stage_errors_total",
			Help: "Issuance stage failures by error class.",
		}, []string{"stage", "class"}),
		verificationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nftcate_verification_total",
			Help: "Verification requests by result.",
		}, []string{"result"}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nftcate_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nftcate_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		httpInflightRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nftcate_http_inflight_requests",
			Help: "HTTP requests currently being served.",
		}),
	}
	for _, c := range []prometheus.Collector{
		m.issuanceTotal,
		m.stageDuration,
		m.stageErrors,
		m.verificationTotal,
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.httpInflightRequests,
	} {
		if err := registerCollector(reg, c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) ObserveStage(stage domain.Stage, elapsed time.Duration, err error) {
	m.stageDuration.WithLabelValues(string(stage)).Observe(elapsed.Seconds())
	if err != nil {
		m.stageErrors.WithLabelValues(string(stage), string(domain.Classify(err))).Inc()
	}
}

func (m *Metrics) IssuanceFinished(outcome string, stage domain.Stage) {
	label := string(stage)
	if label == "" {
		label = "preconditions"
	}
	m.issuanceTotal.WithLabelValues(outcome, label).Inc()
}

func (m *Metrics) VerificationFinished(result string) {
	m.verificationTotal.WithLabelValues(result).Inc()
}

// RequestStarted returns a func that records the request once its status is known.
func (m *Metrics) RequestStarted(method, route string) func(status int) {
	m.httpInflightRequests.Inc()
	started := time.Now()
	return func(status int) {
		m.httpInflightRequests.Dec()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequestDuration.WithLabelValues(method, route).Observe(time.Since(started).Seconds())
		m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func registerCollector(reg prometheus.Registerer, collector prometheus.Collector) error {
	if err := reg.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return nil
		}
		return err
	}
	return nil
}

// Package metrics exposes generation pipeline metrics for Prometheus.
package metrics

import (
	"errors"

	"github.com/motionforge/api/internal/model"
	"github.com/motionforge/api/internal/provider"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Submit attempt outcomes
const (
	OutcomeSuccess        = "success"
	OutcomeRejected       = "rejected"
	OutcomeTransportError = "transport_error"
)

// Collector owns a private registry so several collectors can coexist in
// one process (tests, embedded servers).
type Collector struct {
	registry *prometheus.Registry

	adapterSubmitAttempts *prometheus.CounterVec
	submissions           *prometheus.CounterVec
	polls                 *prometheus.CounterVec
	assetUploadBytes      prometheus.Histogram

	logger *zap.Logger
}

// NewCollector creates the collector and registers every metric under namespace
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	c := &Collector{
		registry: reg,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	c.adapterSubmitAttempts = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adapter_submit_attempts_total",
			Help:      "Provider submit attempts per adapter and outcome",
		},
		[]string{"adapter", "outcome"},
	)

	c.submissions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Generation submissions by final outcome",
		},
		[]string{"outcome"},
	)

	c.polls = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Status polls per adapter and normalized state",
		},
		[]string{"adapter", "state"},
	)

	c.assetUploadBytes = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "asset_upload_bytes",
			Help:      "Size of stored source images in bytes",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		},
	)

	return c
}

// Registry is the registry to expose on /metrics
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// SubmitAttempt records one adapter submit attempt
func (c *Collector) SubmitAttempt(adapterID string, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeRejected
		var submitErr *provider.SubmitError
		if errors.As(err, &submitErr) && submitErr.HTTPStatus == 0 {
			outcome = OutcomeTransportError
		}
	}
	c.adapterSubmitAttempts.WithLabelValues(adapterID, outcome).Inc()
}

// Poll records one status poll
func (c *Collector) Poll(adapterID string, state model.JobState, err error) {
	label := string(state)
	if err != nil {
		label = "error"
	}
	c.polls.WithLabelValues(adapterID, label).Inc()
}

// Submission records the final outcome of a generate request
func (c *Collector) Submission(outcome string) {
	c.submissions.WithLabelValues(outcome).Inc()
}

// AssetUploaded records the size of a stored source image
func (c *Collector) AssetUploaded(size int) {
	c.assetUploadBytes.Observe(float64(size))
}

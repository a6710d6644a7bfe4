package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// LeadMetrics exposes counters/histograms for the lead intake pipeline.
type LeadMetrics struct {
	submissionsTotal   *prometheus.CounterVec
	submissionDuration *prometheus.HistogramVec
	originRejections   *prometheus.CounterVec
	verificationsTotal *prometheus.CounterVec
	upstreamTotal      *prometheus.CounterVec
	upstreamLatency    *prometheus.HistogramVec
}

func NewLeadMetrics(reg prometheus.Registerer) *LeadMetrics {
	m := &LeadMetrics{
		submissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadgateway",
			Subsystem: "intake",
			Name:      "submissions_total",
			Help:      "Lead submissions by type and pipeline outcome",
		}, []string{"lead_type", "outcome"}),
		submissionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "leadgateway",
			Subsystem: "intake",
			Name:      "submission_duration_seconds",
			Help:      "End-to-end latency of lead submissions",
			Buckets:   prometheus.DefBuckets,
		}, []string{"lead_type"}),
		originRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadgateway",
			Subsystem: "intake",
			Name:      "origin_rejections_total",
			Help:      "Requests refused by the origin allowlist",
		}, []string{"path"}),
		verificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadgateway",
			Subsystem: "turnstile",
			Name:      "verifications_total",
			Help:      "Bot verification results",
		}, []string{"result"}),
		upstreamTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadgateway",
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Upstream deliveries by lead type and HTTP status (0 = no response)",
		}, []string{"lead_type", "status"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "leadgateway",
			Subsystem: "upstream",
			Name:      "latency_seconds",
			Help:      "Latency of upstream deliveries",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 7, 10},
		}, []string{"lead_type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.submissionsTotal,
		m.submissionDuration,
		m.originRejections,
		m.verificationsTotal,
		m.upstreamTotal,
		m.upstreamLatency,
	)
	return m
}

// ObserveSubmission records the final outcome of one request.
func (m *LeadMetrics) ObserveSubmission(leadType, outcome string, seconds float64) {
	if m == nil {
		return
	}
	if leadType == "" {
		leadType = "unknown"
	}
	m.submissionsTotal.WithLabelValues(leadType, outcome).Inc()
	m.submissionDuration.WithLabelValues(leadType).Observe(seconds)
}

func (m *LeadMetrics) ObserveOriginRejected(path string) {
	if m == nil {
		return
	}
	m.originRejections.WithLabelValues(path).Inc()
}

func (m *LeadMetrics) ObserveVerification(result string) {
	if m == nil {
		return
	}
	m.verificationsTotal.WithLabelValues(result).Inc()
}

// ObserveUpstream satisfies upstream.Observer.
func (m *LeadMetrics) ObserveUpstream(leadType string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.upstreamTotal.WithLabelValues(leadType, strconv.Itoa(status)).Inc()
	m.upstreamLatency.WithLabelValues(leadType).Observe(seconds)
}

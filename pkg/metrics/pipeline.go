package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics records the notification pipeline's stage outcomes.
type PipelineMetrics struct {
	batchDuration   *prometheus.HistogramVec
	eventsProcessed *prometheus.CounterVec
	summaryDuration *prometheus.HistogramVec
	summaryResults  *prometheus.CounterVec
	emailResults    *prometheus.CounterVec
}

// NewPipelineMetrics registers the pipeline metrics on the provided registerer.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	batchDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "notify_batch_duration_seconds",
		Help:    "Duration of batch drain runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	eventsProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_events_processed",
		Help: "Pending events handled per batch decision.",
	}, []string{"decision"})
	summaryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "notify_summary_duration_seconds",
		Help:    "Duration of summarization attempts in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})
	summaryResults := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_summary_results",
		Help: "Summarization attempt results per status and error code.",
	}, []string{"status", "error_code"})
	emailResults := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_email_results",
		Help: "Email dispatch results.",
	}, []string{"outcome"})
	reg.MustRegister(batchDuration, eventsProcessed, summaryDuration, summaryResults, emailResults)
	return &PipelineMetrics{
		batchDuration:   batchDuration,
		eventsProcessed: eventsProcessed,
		summaryDuration: summaryDuration,
		summaryResults:  summaryResults,
		emailResults:    emailResults,
	}
}

// ObserveBatchDuration records the duration of one drain run.
func (m *PipelineMetrics) ObserveBatchDuration(outcome string, duration time.Duration) {
	if m == nil || m.batchDuration == nil {
		return
	}
	m.batchDuration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

// IncEventDecision counts one per-event batch decision.
func (m *PipelineMetrics) IncEventDecision(decision string) {
	if m == nil || m.eventsProcessed == nil {
		return
	}
	m.eventsProcessed.WithLabelValues(normalizeLabel(decision)).Inc()
}

// ObserveSummaryDuration records the duration of one summarization attempt.
func (m *PipelineMetrics) ObserveSummaryDuration(status string, duration time.Duration) {
	if m == nil || m.summaryDuration == nil {
		return
	}
	m.summaryDuration.WithLabelValues(normalizeLabel(status)).Observe(duration.Seconds())
}

// IncSummaryResult counts one summarization result.
func (m *PipelineMetrics) IncSummaryResult(status, errorCode string) {
	if m == nil || m.summaryResults == nil {
		return
	}
	m.summaryResults.WithLabelValues(normalizeLabel(status), normalizeLabel(errorCode)).Inc()
}

// IncEmailResult counts one email dispatch outcome.
func (m *PipelineMetrics) IncEmailResult(outcome string) {
	if m == nil || m.emailResults == nil {
		return
	}
	m.emailResults.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

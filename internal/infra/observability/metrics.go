package observability

import (
	"time"

	"github.com/boddenberg/sellernotes-bot-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics of the bot.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	turnDuration   prometheus.Histogram
	activities     *prometheus.CounterVec
	dialogOutcomes *prometheus.CounterVec
	searchResults  *prometheus.CounterVec
	formRejections *prometheus.CounterVec
	externalErrors *prometheus.CounterVec
	relogins       prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		turnDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sellernotes_turn_duration_seconds",
				Help:    "Duration of message turns.",
				Buckets: prometheus.DefBuckets,
			},
		),
		activities: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sellernotes_activities_total",
				Help: "Inbound activities by type.",
			},
			[]string{"type"},
		),
		dialogOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sellernotes_dialog_outcomes_total",
				Help: "Finished conversations by outcome.",
			},
			[]string{"outcome"},
		),
		searchResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sellernotes_search_results_total",
				Help: "Customer searches by result cardinality.",
			},
			[]string{"result"},
		),
		formRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sellernotes_form_rejections_total",
				Help: "Form answers rejected by validation.",
			},
			[]string{"field"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sellernotes_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		relogins: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sellernotes_relogins_total",
				Help: "Silent re-logins after the directory rejected a token.",
			},
		),
	}
}

// RecordTurnDuration records how long a message turn took.
func (m *Metrics) RecordTurnDuration(d time.Duration) {
	m.turnDuration.Observe(d.Seconds())
}

// IncrActivity counts an inbound activity.
func (m *Metrics) IncrActivity(kind string) {
	m.activities.WithLabelValues(kind).Inc()
}

// IncrDialogOutcome counts a finished conversation.
func (m *Metrics) IncrDialogOutcome(outcome string) {
	m.dialogOutcomes.WithLabelValues(outcome).Inc()
}

// IncrSearchResult counts a customer search by result bucket.
func (m *Metrics) IncrSearchResult(result string) {
	m.searchResults.WithLabelValues(result).Inc()
}

// IncrFormRejection counts a rejected form answer.
func (m *Metrics) IncrFormRejection(field string) {
	m.formRejections.WithLabelValues(field).Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrRelogin counts a silent re-login.
func (m *Metrics) IncrRelogin() {
	m.relogins.Inc()
}

// GetDialogSnapshot returns a snapshot of the conversation metrics suitable
// for the GET /v1/metrics/dialog endpoint.
func (m *Metrics) GetDialogSnapshot() *domain.DialogMetrics {
	var turns int64
	var avgMs float64
	hm := &dto.Metric{}
	if err := m.turnDuration.Write(hm); err == nil && hm.Histogram != nil {
		turns = int64(hm.Histogram.GetSampleCount())
		if turns > 0 {
			avgMs = hm.Histogram.GetSampleSum() / float64(turns) * 1000
		}
	}

	outcomes := collectCounters(m.dialogOutcomes)
	finished := outcomes["saved"] + outcomes["save_failed"] + outcomes["canceled"]
	completion := float64(0)
	if finished > 0 {
		completion = float64(outcomes["saved"]+outcomes["save_failed"]) / float64(finished)
	}

	return &domain.DialogMetrics{
		Turns:          turns,
		AvgTurnMs:      avgMs,
		Activities:     collectCounters(m.activities),
		Outcomes:       outcomes,
		SearchResults:  collectCounters(m.searchResults),
		FormRejections: collectCounters(m.formRejections),
		ExternalErrors: collectCounters(m.externalErrors),
		Relogins:       int64(getCounterValue(m.relogins)),
		CompletionRate: completion,
		Period:         "all_time",
	}
}

// collectCounters reads every label value of a single-label CounterVec.
func collectCounters(cv *prometheus.CounterVec) map[string]int64 {
	out := make(map[string]int64)
	ch := make(chan prometheus.Metric)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()
	for metric := range ch {
		m := &dto.Metric{}
		if err := metric.Write(m); err != nil || m.Counter == nil {
			continue
		}
		labels := m.GetLabel()
		if len(labels) == 0 {
			continue
		}
		out[labels[0].GetValue()] = int64(m.Counter.GetValue())
	}
	return out
}

// getCounterValue extracts the current float64 value of a counter.
func getCounterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

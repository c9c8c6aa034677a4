package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/mikey/llm-mail-sorter/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mail_sorter"

// Metrics records pass, batch and apply events as Prometheus series. It implements core.Observer.
type Metrics struct {
	passes          *prometheus.CounterVec
	passDuration    prometheus.Histogram
	sendersBySource *prometheus.CounterVec
	unresolved      prometheus.Gauge
	batches         *prometheus.CounterVec
	batchResolved   prometheus.Counter
	rulesProposed   prometheus.Counter
	rulesCreated    prometheus.Counter
	rulesRejected   prometheus.Counter
	rulesCollected  prometheus.Counter
	recordsChanged  *prometheus.CounterVec
	penalties       prometheus.Counter

	mu      sync.Mutex
	started map[string]time.Time
}

// New registers the metric families with reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		passes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_total",
			Help:      "Classification passes by result",
		}, []string{"result"}),
		passDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Wall time of a classification pass",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		sendersBySource: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "senders_classified_total",
			Help:      "Rule-set entries written by the layer that decided them",
		}, []string{"source"}),
		unresolved: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "senders_unresolved",
			Help:      "Senders left pending after the last pass",
		}),
		batches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_batches_total",
			Help:      "Oracle classification batches by result",
		}, []string{"result"}),
		batchResolved: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_verdicts_total",
			Help:      "Senders resolved by the oracle",
		}),
		rulesProposed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "learned_rules_proposed_total",
			Help:      "Patterns proposed by the oracle",
		}),
		rulesCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "learned_rules_created_total",
			Help:      "Learned rules created",
		}),
		rulesRejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "learned_rules_rejected_total",
			Help:      "Proposed patterns rejected as invalid",
		}),
		rulesCollected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "learned_rules_collected_total",
			Help:      "Learned rules deleted by garbage collection",
		}),
		recordsChanged: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_changed_total",
			Help:      "Records whose classification changed on apply",
		}, []string{"category"}),
		penalties: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "learned_rule_penalties_total",
			Help:      "Learned rules penalized after a manual correction",
		}),
		started: make(map[string]time.Time),
	}
}

// Handler serves the registered metrics
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) PassStarted(passID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started[passID] = time.Now()
}

func (m *Metrics) GCCompleted(deleted []core.LearnedRule) {
	m.rulesCollected.Add(float64(len(deleted)))
}

func (m *Metrics) RulesLearned(report *core.SynthesisReport) {
	if report == nil {
		return
	}
	m.rulesProposed.Add(float64(report.Proposed))
	m.rulesCreated.Add(float64(report.Created))
	m.rulesRejected.Add(float64(len(report.Rejected)))
}

func (m *Metrics) BatchStarted(int, int, int) {}

func (m *Metrics) BatchFinished(_ int, resolved int, err error) {
	if err != nil {
		m.batches.WithLabelValues("failed").Inc()
		return
	}
	m.batches.WithLabelValues("ok").Inc()
	m.batchResolved.Add(float64(resolved))
}

func (m *Metrics) PassFinished(report *core.PassReport, err error) {
	if report != nil {
		m.mu.Lock()
		if start, ok := m.started[report.PassID]; ok {
			m.passDuration.Observe(time.Since(start).Seconds())
			delete(m.started, report.PassID)
		}
		m.mu.Unlock()
	}

	if err != nil {
		m.passes.WithLabelValues("failed").Inc()
		return
	}
	m.passes.WithLabelValues("ok").Inc()
	if report == nil {
		return
	}
	for source, n := range report.BySource {
		m.sendersBySource.WithLabelValues(string(source)).Add(float64(n))
	}
	m.unresolved.Set(float64(report.Unresolved))
}

func (m *Metrics) RulesApplied(report *core.ApplyReport) {
	if report == nil {
		return
	}
	for category, n := range report.Changed {
		m.recordsChanged.WithLabelValues(category).Add(float64(n))
	}
	m.penalties.Add(float64(len(report.Penalized)))
}

var _ core.Observer = (*Metrics)(nil)

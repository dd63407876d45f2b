package automation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/skovalik/cognograph/metric"
)

// engineMetrics tracks engine activity. A nil receiver means metrics are
// disabled and every method is a no-op.
type engineMetrics struct {
	events        *prometheus.CounterVec
	matches       prometheus.Counter
	coalesced     prometheus.Counter
	executions    *prometheus.CounterVec
	rejections    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	ruleCount     prometheus.Gauge
	pendingTimers prometheus.Gauge
	stackDepth    prometheus.Gauge
}

func newEngineMetrics(registry *metric.MetricsRegistry) *engineMetrics {
	if registry == nil {
		return nil
	}

	m := &engineMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cognograph_engine_events_total",
			Help: "Events received, by event type",
		}, []string{"event_type"}),
		matches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cognograph_engine_trigger_matches_total",
			Help: "Trigger matches across all rules",
		}),
		coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cognograph_engine_debounce_coalesced_total",
			Help: "Events that replaced a pending debounce timer",
		}),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cognograph_engine_executions_total",
			Help: "Rule executions, by result",
		}, []string{"result"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cognograph_engine_rejections_total",
			Help: "Executions rejected by safety guards, by reason",
		}, []string{"reason"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cognograph_engine_execution_duration_seconds",
			Help:    "Step executor call duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"result"}),
		ruleCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cognograph_engine_registered_rules",
			Help: "Rules currently registered",
		}),
		pendingTimers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cognograph_engine_pending_timers",
			Help: "Debounce timers currently armed",
		}),
		stackDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cognograph_engine_stack_depth",
			Help: "Current execution stack depth",
		}),
	}

	const component = "automation-engine"
	if err := registry.RegisterCounterVec(component, "events_total", m.events); err != nil {
		m.events = nil
	}
	if err := registry.RegisterCounter(component, "trigger_matches_total", m.matches); err != nil {
		m.matches = nil
	}
	if err := registry.RegisterCounter(component, "debounce_coalesced_total", m.coalesced); err != nil {
		m.coalesced = nil
	}
	if err := registry.RegisterCounterVec(component, "executions_total", m.executions); err != nil {
		m.executions = nil
	}
	if err := registry.RegisterCounterVec(component, "rejections_total", m.rejections); err != nil {
		m.rejections = nil
	}
	if err := registry.RegisterHistogramVec(component, "execution_duration_seconds", m.duration); err != nil {
		m.duration = nil
	}
	if err := registry.RegisterGauge(component, "registered_rules", m.ruleCount); err != nil {
		m.ruleCount = nil
	}
	if err := registry.RegisterGauge(component, "pending_timers", m.pendingTimers); err != nil {
		m.pendingTimers = nil
	}
	if err := registry.RegisterGauge(component, "stack_depth", m.stackDepth); err != nil {
		m.stackDepth = nil
	}

	return m
}

func (m *engineMetrics) recordEvent(eventType string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(eventType).Inc()
}

func (m *engineMetrics) recordMatch() {
	if m == nil || m.matches == nil {
		return
	}
	m.matches.Inc()
}

func (m *engineMetrics) recordCoalesced() {
	if m == nil || m.coalesced == nil {
		return
	}
	m.coalesced.Inc()
}

func (m *engineMetrics) recordExecution(success bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	if m.executions != nil {
		m.executions.WithLabelValues(result).Inc()
	}
	if m.duration != nil {
		m.duration.WithLabelValues(result).Observe(elapsed.Seconds())
	}
}

func (m *engineMetrics) recordRejection(reason string) {
	if m == nil || m.rejections == nil {
		return
	}
	m.rejections.WithLabelValues(reason).Inc()
}

func (m *engineMetrics) updateRuleCount(n int) {
	if m == nil || m.ruleCount == nil {
		return
	}
	m.ruleCount.Set(float64(n))
}

func (m *engineMetrics) updatePendingTimers(n int) {
	if m == nil || m.pendingTimers == nil {
		return
	}
	m.pendingTimers.Set(float64(n))
}

func (m *engineMetrics) updateStackDepth(n int) {
	if m == nil || m.stackDepth == nil {
		return
	}
	m.stackDepth.Set(float64(n))
}

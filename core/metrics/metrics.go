package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "guildfm"

// Reconcile outcomes
const (
	OutcomePlay   = "play"
	OutcomeReplay = "replay"
	OutcomeStop   = "stop"
	OutcomeStale  = "stale"
	OutcomeNoop   = "noop"
)

// Metrics groups the service's prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	nodeEvents      *prometheus.CounterVec
	reconciles      *prometheus.CounterVec
	commands        *prometheus.CounterVec
	notifyFailures  prometheus.Counter
	nodeOpFailures  *prometheus.CounterVec
	dispatchBacklog prometheus.Gauge
}

// New 创建并注册所有指标
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		nodeEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_events_total",
			Help:      "Lifecycle events received from the audio node.",
		}, []string{"kind"}),
		reconciles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_outcomes_total",
			Help:      "Decisions taken by the queue reconciler.",
		}, []string{"outcome"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands executed, by name and result.",
		}, []string{"command", "result"}),
		notifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Notifications that could not be delivered.",
		}),
		nodeOpFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_command_failures_total",
			Help:      "Play/stop commands the audio node rejected.",
		}, []string{"op"}),
		dispatchBacklog: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatch_backlog",
			Help:      "Node events waiting in tenant mailboxes.",
		}),
	}
	reg.MustRegister(m.nodeEvents, m.reconciles, m.commands, m.notifyFailures, m.nodeOpFailures, m.dispatchBacklog)
	return m
}

// RegisterTenantGauge 注册当前活跃租户数
func RegisterTenantGauge(reg prometheus.Registerer, count func() int) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "tenants",
		Help:      "Tenants that currently own a queue.",
	}, func() float64 { return float64(count()) }))
}

func (m *Metrics) NodeEvent(kind string) {
	if m != nil {
		m.nodeEvents.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) Reconcile(outcome string) {
	if m != nil {
		m.reconciles.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Command(name string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.commands.WithLabelValues(name, result).Inc()
}

func (m *Metrics) NotificationFailed() {
	if m != nil {
		m.notifyFailures.Inc()
	}
}

func (m *Metrics) NodeCommandFailed(op string) {
	if m != nil {
		m.nodeOpFailures.WithLabelValues(op).Inc()
	}
}

// BacklogAdd 邮箱积压变化，入队 +1，出队 -1
func (m *Metrics) BacklogAdd(delta float64) {
	if m != nil {
		m.dispatchBacklog.Add(delta)
	}
}

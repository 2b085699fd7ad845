package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics - счётчики ядра. Регистрируются в собственном реестре, чтобы тесты не делили состояние.
type Metrics struct {
	registry          *prometheus.Registry
	orderTransitions  *prometheus.CounterVec
	escrowOperations  *prometheus.CounterVec
	processorDuration *prometheus.HistogramVec
	fraudAlerts       *prometheus.CounterVec
	fraudBlocked      *prometheus.CounterVec
	workerRuns        *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		orderTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gig_escrow_order_transitions_total",
			Help: "Выполненные переходы заказов",
		}, []string{"event", "to"}),
		escrowOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gig_escrow_escrow_operations_total",
			Help: "Операции escrow по результату",
		}, []string{"operation", "result"}),
		processorDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gig_escrow_processor_call_duration_seconds",
			Help:    "Длительность вызовов платёжного процессора",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		fraudAlerts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gig_escrow_fraud_alerts_total",
			Help: "Сигналы антифрода",
		}, []string{"type", "severity"}),
		fraudBlocked: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gig_escrow_fraud_blocked_total",
			Help: "Операции, заблокированные политикой антифрода",
		}, []string{"operation"}),
		workerRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gig_escrow_worker_runs_total",
			Help: "Запуски фоновых задач",
		}, []string{"job", "result"}),
	}
}

func (m *Metrics) OrderTransition(event, to string) {
	m.orderTransitions.WithLabelValues(event, to).Inc()
}

func (m *Metrics) EscrowOperation(operation string, err error) {
	m.escrowOperations.WithLabelValues(operation, result(err)).Inc()
}

func (m *Metrics) ProcessorCall(operation string, d time.Duration) {
	m.processorDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *Metrics) FraudAlert(typ, severity string) {
	m.fraudAlerts.WithLabelValues(typ, severity).Inc()
}

func (m *Metrics) FraudBlocked(operation string) {
	m.fraudBlocked.WithLabelValues(operation).Inc()
}

func (m *Metrics) WorkerRun(job string, err error) {
	m.workerRuns.WithLabelValues(job, result(err)).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler отдаёт метрики для /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

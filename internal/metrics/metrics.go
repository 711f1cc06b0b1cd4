package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"collegepay/internal/model"
)

var (
	logins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collegepay_logins_total",
			Help: "Identity resolutions by role and outcome",
		},
		[]string{"role", "status"},
	)

	paymentsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collegepay_payments_submitted_total",
			Help: "Payments submitted by students",
		},
	)

	paymentTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collegepay_payment_transitions_total",
			Help: "Payment status changes made by administrators",
		},
		[]string{"from", "to"},
	)

	queueMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collegepay_queue_messages_total",
			Help: "Queue messages handled by the worker",
		},
		[]string{"type", "status"},
	)

	paymentsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "collegepay_payments",
			Help: "Current number of payments per status",
		},
		[]string{"status"},
	)

	students = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "collegepay_students",
			Help: "Current number of registered students",
		},
	)
)

// TrackLogin counts one identity resolution.
func TrackLogin(role model.Role, ok bool) {
	logins.WithLabelValues(string(role), outcome(ok)).Inc()
}

// TrackSubmission counts one submitted payment.
func TrackSubmission() {
	paymentsSubmitted.Inc()
}

// TrackTransition counts one status change.
func TrackTransition(from, to model.Status) {
	paymentTransitions.WithLabelValues(string(from), string(to)).Inc()
}

// TrackMessage counts one processed queue message.
func TrackMessage(msgType string, ok bool) {
	queueMessages.WithLabelValues(msgType, outcome(ok)).Inc()
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// Source is what the monitor samples.
type Source interface {
	CountPaymentsByStatus(ctx context.Context) (map[model.Status]int, error)
	CountUsersByRole(ctx context.Context, role model.Role) (int, error)
}

// Monitor periodically refreshes the gauges from the record store.
type Monitor struct {
	source   Source
	interval time.Duration
}

func NewMonitor(source Source, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{source: source, interval: interval}
}

// Run collects until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Collect(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Collect(ctx)
		}
	}
}

// Collect samples the store once.
func (m *Monitor) Collect(ctx context.Context) {
	counts, err := m.source.CountPaymentsByStatus(ctx)
	if err != nil {
		slog.Warn("Collect(): count payments failed", "error", err)
		return
	}
	for _, status := range []model.Status{model.StatusPending, model.StatusCompleted, model.StatusRejected} {
		paymentsByStatus.WithLabelValues(string(status)).Set(float64(counts[status]))
	}

	n, err := m.source.CountUsersByRole(ctx, model.RoleStudent)
	if err != nil {
		slog.Warn("Collect(): count students failed", "error", err)
		return
	}
	students.Set(float64(n))
}

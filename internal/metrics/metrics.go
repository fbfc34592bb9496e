package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flash_promo_job_runs_total",
		Help: "Total number of scheduled job runs by job and outcome.",
	}, []string{"job", "status"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flash_promo_job_duration_seconds",
		Help:    "Duration of scheduled job runs.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})

	NotificationsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flash_promo_notifications_total",
		Help: "Notification attempts by delivery status.",
	}, []string{"status"})

	Reservations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flash_promo_reservations_total",
		Help: "Reservation attempts by outcome.",
	}, []string{"outcome"})

	PromosDeactivated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flash_promo_promos_deactivated_total",
		Help: "Promos switched off by the expiry cleanup.",
	})
)

// Статусы запусков задач
const (
	JobStatusOK      = "ok"
	JobStatusFailed  = "failed"
	JobStatusSkipped = "skipped"
	JobStatusPanic   = "panic"
)

// Recorder: фасад над глобальными метриками
type Recorder struct{}

// JobRun фиксирует завершение задачи
func (Recorder) JobRun(job, status string, seconds float64) {
	JobRuns.WithLabelValues(job, status).Inc()
	if status != JobStatusSkipped {
		JobDuration.WithLabelValues(job).Observe(seconds)
	}
}

// Notification фиксирует попытку отправки уведомления
func (Recorder) Notification(status string) {
	NotificationsDispatched.WithLabelValues(status).Inc()
}

// Reservation фиксирует исход попытки резерва
func (Recorder) Reservation(outcome string) {
	Reservations.WithLabelValues(outcome).Inc()
}

// Deactivated фиксирует число выключенных акций
func (Recorder) Deactivated(n int) {
	PromosDeactivated.Add(float64(n))
}

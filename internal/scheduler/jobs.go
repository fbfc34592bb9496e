package scheduler

import (
	"context"
	"fmt"
	"time"

	"flash-promo-service/internal/logger"
	"flash-promo-service/internal/models"
)

// Имена задач
const (
	JobActivationScan = "activation_scan"
	JobExpiryCleanup  = "expiry_cleanup"
	JobQueueDrain     = "queue_drain"
)

// ActivePromoLister отдаёт акции, действующие прямо сейчас
type ActivePromoLister interface {
	ListEffectivelyActive(ctx context.Context) ([]*models.FlashPromo, error)
}

// PromoDispatcher рассылает уведомления по акции
type PromoDispatcher interface {
	DispatchForPromo(ctx context.Context, promoID int64) (*models.DispatchResult, error)
}

// ExpirySweeper выключает акции с истёкшим окном
type ExpirySweeper interface {
	DeactivateExpired(ctx context.Context) ([]int64, error)
}

// Source: входящая очередь сообщений
type Source interface {
	Receive(ctx context.Context, max, waitSeconds int) ([]models.QueueMessage, error)
	Ack(ctx context.Context, token string) error
}

// ActivationScan рассылает уведомления по всем действующим акциям.
// Ошибка по одной акции не прерывает обход остальных.
func ActivationScan(promos ActivePromoLister, dispatcher PromoDispatcher, log *logger.Logger, interval time.Duration) Job {
	return Job{
		Name:     JobActivationScan,
		Interval: interval,
		Run: func(ctx context.Context) (string, error) {
			active, err := promos.ListEffectivelyActive(ctx)
			if err != nil {
				return "", fmt.Errorf("error checking active promos: %w", err)
			}

			var delivered, failed, errs int
			for _, promo := range active {
				res, err := dispatcher.DispatchForPromo(ctx, promo.ID)
				if err != nil {
					errs++
					log.WithJob(JobActivationScan).WithError(err).WithField("promo_id", promo.ID).Error("Dispatch failed")
					continue
				}
				delivered += res.Delivered
				failed += res.Failed
			}

			summary := fmt.Sprintf("processed %d active promos: %d delivered, %d failed", len(active), delivered, failed)
			if errs > 0 {
				return summary, fmt.Errorf("%d of %d promo dispatches failed", errs, len(active))
			}
			return summary, nil
		},
	}
}

// ExpiryCleanup выключает акции, окно которых на сегодня закончилось.
func ExpiryCleanup(sweeper ExpirySweeper, interval time.Duration) Job {
	return Job{
		Name:     JobExpiryCleanup,
		Interval: interval,
		Run: func(ctx context.Context) (string, error) {
			ids, err := sweeper.DeactivateExpired(ctx)
			if err != nil {
				return "", fmt.Errorf("error cleaning up expired promos: %w", err)
			}
			return fmt.Sprintf("deactivated %d expired promos", len(ids)), nil
		},
	}
}

// QueueDrain забирает пачку сообщений из очереди, журналирует и подтверждает каждое.
// Неподтверждённое сообщение вернётся в очередь после таймаута видимости.
func QueueDrain(source Source, log *logger.Logger, interval time.Duration, max, waitSeconds int) Job {
	return Job{
		Name:     JobQueueDrain,
		Interval: interval,
		Run: func(ctx context.Context) (string, error) {
			messages, err := source.Receive(ctx, max, waitSeconds)
			if err != nil {
				return "", fmt.Errorf("error processing queue messages: %w", err)
			}

			var acked, ackErrs int
			for _, msg := range messages {
				log.WithJob(JobQueueDrain).WithFields(map[string]interface{}{
					"message_id": msg.ID,
					"body":       string(msg.Body),
				}).Info("Queue message received")

				if err := source.Ack(ctx, msg.AckToken); err != nil {
					ackErrs++
					log.WithJob(JobQueueDrain).WithError(err).WithField("message_id", msg.ID).Warn("Failed to ack queue message")
					continue
				}
				acked++
			}

			summary := fmt.Sprintf("received %d queue messages, acked %d", len(messages), acked)
			if ackErrs > 0 {
				return summary, fmt.Errorf("failed to ack %d queue messages", ackErrs)
			}
			return summary, nil
		},
	}
}

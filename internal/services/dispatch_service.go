package services

import (
	"context"
	"fmt"
	"time"

	"flash-promo-service/internal/apperror"
	"flash-promo-service/internal/clock"
	"flash-promo-service/internal/config"
	"flash-promo-service/internal/database"
	"flash-promo-service/internal/logger"
	"flash-promo-service/internal/metrics"
	"flash-promo-service/internal/models"

	"github.com/lib/pq"
)

// Publisher доставляет уведомление пользователю через внешний канал (Kafka, SNS).
type Publisher interface {
	Publish(ctx context.Context, n models.PromoNotification) error
	Name() string
}

// StatsCacheInvalidator сбрасывает кеш статистики уведомлений
type StatsCacheInvalidator interface {
	InvalidateCache(ctx context.Context) error
}

const dateLayout = "2006-01-02"

// DispatchService рассылает уведомления о флеш-акциях подходящим пользователям поблизости.
type DispatchService struct {
	db                 *database.DB
	promos             *PromoService
	publisher          Publisher
	log                *logger.Logger
	clock              clock.Clock
	maxDistanceKm      float64
	retryFailedSameDay bool
	metrics            metrics.Recorder
	statsCache         StatsCacheInvalidator
}

// NewDispatchService создает диспетчер уведомлений.
func NewDispatchService(db *database.DB, promos *PromoService, publisher Publisher, log *logger.Logger, clk clock.Clock, cfg *config.PromoConfig) *DispatchService {
	s := &DispatchService{
		db:            db,
		promos:        promos,
		publisher:     publisher,
		log:           log,
		clock:         clk,
		maxDistanceKm: DefaultMaxDistanceKm,
	}
	if cfg != nil {
		s.maxDistanceKm = maxDistanceOrDefault(cfg.MaxDistanceKm)
		s.retryFailedSameDay = cfg.RetryFailedSameDay
	}
	return s
}

// SetStatsCache подключает сброс кеша статистики после рассылки.
func (s *DispatchService) SetStatsCache(c StatsCacheInvalidator) {
	s.statsCache = c
}

// DispatchForPromo рассылает уведомления по одной акции. Несуществующая акция не ошибка.
// Ошибки публикации не выходят наружу: они записываются в журнал уведомлений.
func (s *DispatchService) DispatchForPromo(ctx context.Context, promoID int64) (*models.DispatchResult, error) {
	result := &models.DispatchResult{PromoID: promoID}

	promo, err := s.promos.GetPromo(ctx, promoID)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			s.log.WithField("promo_id", promoID).Warn("Promo for dispatch does not exist")
			return result, nil
		}
		return nil, err
	}

	now := s.clock.Now()
	today := clock.Today(now)

	candidates, err := s.candidateUsers(ctx, promo, today)
	if err != nil {
		return nil, err
	}
	result.Candidates = len(candidates)

	store := promo.Product.Store
	message := promo.NotificationMessage(promo.Product.Name)

	for _, user := range candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if user.NotifiedOn(today) || !IsNear(user, store, s.maxDistanceKm) {
			result.Skipped++
			continue
		}

		claimed, err := s.claimUserForToday(ctx, user.ID, today)
		if err != nil {
			s.log.WithError(err).WithField("user_id", user.ID).Error("Failed to claim user for notification")
			result.Skipped++
			continue
		}
		if !claimed {
			// параллельный диспетчер уже уведомил пользователя сегодня
			result.Skipped++
			continue
		}

		result.Attempted++
		status := s.publish(ctx, promo, user, message)
		if status == models.DeliveryStatusDelivered {
			result.Delivered++
		} else {
			result.Failed++
		}

		s.appendLog(ctx, &models.NotificationLog{
			UserID:           user.ID,
			StoreID:          store.ID,
			FlashPromoID:     &promo.ID,
			NotificationType: models.NotificationTypeFlashPromo,
			Message:          message,
			DeliveryStatus:   status,
			SentAt:           now,
		})

		if status == models.DeliveryStatusFailed && s.retryFailedSameDay {
			s.releaseUserClaim(ctx, user)
		}
	}

	s.log.WithFields(map[string]interface{}{
		"promo_id":   promoID,
		"candidates": result.Candidates,
		"attempted":  result.Attempted,
		"delivered":  result.Delivered,
		"failed":     result.Failed,
		"skipped":    result.Skipped,
		"publisher":  s.publisher.Name(),
	}).Info("Promo dispatch finished")

	if result.Attempted > 0 && s.statsCache != nil {
		if err := s.statsCache.InvalidateCache(ctx); err != nil {
			s.log.WithError(err).Warn("Failed to invalidate notification stats cache")
		}
	}

	return result, nil
}

// candidateUsers выбирает пользователей из сегментов акции, ещё не уведомлённых сегодня.
func (s *DispatchService) candidateUsers(ctx context.Context, promo *models.FlashPromo, today time.Time) ([]*models.User, error) {
	userTypes := promo.EligibleSegments.UserTypes()
	if len(userTypes) == 0 {
		return nil, nil
	}

	types := make([]string, len(userTypes))
	for i, ut := range userTypes {
		types[i] = string(ut)
	}

	query := `SELECT ` + userColumns + `
		FROM users
		WHERE user_type = ANY($1)
		  AND last_notification_sent IS DISTINCT FROM $2::date
		ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(types), today.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// claimUserForToday атомарно отмечает пользователя уведомлённым сегодня.
// false означает, что отметку уже поставил кто-то другой.
func (s *DispatchService) claimUserForToday(ctx context.Context, userID int64, today time.Time) (bool, error) {
	query := `
		UPDATE users
		SET last_notification_sent = $1::date
		WHERE id = $2 AND last_notification_sent IS DISTINCT FROM $1::date
	`
	res, err := s.db.ExecContext(ctx, query, today.Format(dateLayout), userID)
	if err != nil {
		return false, fmt.Errorf("failed to mark user notified: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// releaseUserClaim возвращает прежнюю дату уведомления, чтобы пользователь попал в следующий проход
func (s *DispatchService) releaseUserClaim(ctx context.Context, user *models.User) {
	var previous interface{}
	if user.LastNotificationSent != nil {
		previous = user.LastNotificationSent.Format(dateLayout)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET last_notification_sent = $1::date WHERE id = $2`, previous, user.ID); err != nil {
		s.log.WithError(err).WithField("user_id", user.ID).Warn("Failed to release notification claim")
	}
}

func (s *DispatchService) publish(ctx context.Context, promo *models.FlashPromo, user *models.User, message string) models.DeliveryStatus {
	err := s.publisher.Publish(ctx, models.PromoNotification{
		UserID:  user.ID,
		PromoID: promo.ID,
		Message: message,
	})
	if err != nil {
		s.metrics.Notification(string(models.DeliveryStatusFailed))
		s.log.WithError(err).WithFields(map[string]interface{}{
			"user_id":  user.ID,
			"promo_id": promo.ID,
		}).Warn("Failed to publish promo notification")
		return models.DeliveryStatusFailed
	}

	s.metrics.Notification(string(models.DeliveryStatusDelivered))
	s.log.WithFields(map[string]interface{}{
		"user_id":  user.ID,
		"promo_id": promo.ID,
	}).Debug("Promo notification published")
	return models.DeliveryStatusDelivered
}

func (s *DispatchService) appendLog(ctx context.Context, entry *models.NotificationLog) {
	query := `
		INSERT INTO notification_logs (user_id, store_id, flash_promo_id, notification_type, message, delivery_status, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := s.db.ExecContext(ctx, query,
		entry.UserID, entry.StoreID, entry.FlashPromoID, entry.NotificationType, entry.Message, entry.DeliveryStatus, entry.SentAt,
	); err != nil {
		s.log.WithError(err).WithFields(map[string]interface{}{
			"user_id":  entry.UserID,
			"promo_id": *entry.FlashPromoID,
		}).Error("Failed to write notification log")
	}
}

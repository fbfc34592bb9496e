package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"flash-promo-service/internal/apperror"
	"flash-promo-service/internal/clock"
	"flash-promo-service/internal/config"
	"flash-promo-service/internal/database"
	"flash-promo-service/internal/logger"
	"flash-promo-service/internal/models"
	"flash-promo-service/internal/redis"
)

const (
	DefaultStatsDays     = 30
	DefaultStatsMaxDays  = 365
	defaultStatsCacheTTL = 5 * time.Minute
)

// NotificationStatsService агрегирует журнал уведомлений и кеширует результаты в Redis.
type NotificationStatsService struct {
	db          *database.DB
	redis       *redis.Client
	log         *logger.Logger
	clock       clock.Clock
	cacheTTL    time.Duration
	defaultDays int
	maxDays     int
}

// NewNotificationStatsService создает сервис статистики уведомлений.
func NewNotificationStatsService(db *database.DB, redisClient *redis.Client, log *logger.Logger, clk clock.Clock, cfg *config.StatsConfig) *NotificationStatsService {
	s := &NotificationStatsService{
		db:          db,
		redis:       redisClient,
		log:         log,
		clock:       clk,
		cacheTTL:    defaultStatsCacheTTL,
		defaultDays: DefaultStatsDays,
		maxDays:     DefaultStatsMaxDays,
	}

	if cfg != nil {
		if cfg.CacheTTLMinutes > 0 {
			s.cacheTTL = time.Duration(cfg.CacheTTLMinutes) * time.Minute
		}
		if cfg.DefaultDays > 0 {
			s.defaultDays = cfg.DefaultDays
		}
		if cfg.MaxDays > 0 {
			s.maxDays = cfg.MaxDays
		}
	}
	return s
}

// StoreStats возвращает статистику уведомлений магазина, которым владеет ownerID.
func (s *NotificationStatsService) StoreStats(ctx context.Context, ownerID int64, days int) (*models.StoreNotificationStats, error) {
	filter, err := s.buildFilter(days)
	if err != nil {
		return nil, err
	}

	storeID, storeName, err := s.resolveOwnedStore(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	cacheKey := redis.GenerateKey(redis.KeyPrefixStats, "store", strconv.FormatInt(storeID, 10),
		strconv.Itoa(filter.Days), filter.To.Format(dateLayout))

	var cached models.StoreNotificationStats
	if s.tryGetFromCache(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	stats := &models.StoreNotificationStats{
		StoreID:     storeID,
		StoreName:   storeName,
		PeriodDays:  filter.Days,
		StartDate:   filter.From.Format(dateLayout),
		EndDate:     filter.To.Format(dateLayout),
		GeneratedAt: s.clock.Now(),
	}

	totalsQuery := `
		SELECT COUNT(*), COUNT(DISTINCT user_id)
		FROM notification_logs
		WHERE store_id = $1 AND sent_at BETWEEN $2 AND $3
	`
	if err := s.db.QueryRowContext(ctx, totalsQuery, storeID, filter.From, filter.To).
		Scan(&stats.TotalNotificationsSent, &stats.UniqueUsersNotified); err != nil {
		return nil, fmt.Errorf("failed to load notification totals: %w", err)
	}

	if stats.NotificationsByStatus, err = s.fetchByStatus(ctx, storeID, filter); err != nil {
		return nil, err
	}
	if stats.NotificationsByDay, err = s.fetchByDay(ctx, storeID, filter); err != nil {
		return nil, err
	}
	if stats.NotificationsByType, err = s.fetchByType(ctx, storeID, filter); err != nil {
		return nil, err
	}

	s.saveToCache(ctx, cacheKey, stats)
	return stats, nil
}

// AllStoresSummary возвращает сводку по всем магазинам. Доступна только персоналу.
func (s *NotificationStatsService) AllStoresSummary(ctx context.Context, isStaff bool, days int) (*models.AllStoresSummary, error) {
	if !isStaff {
		return nil, apperror.Forbidden("only admin users can view all stores summary", nil)
	}

	filter, err := s.buildFilter(days)
	if err != nil {
		return nil, err
	}

	cacheKey := redis.GenerateKey(redis.KeyPrefixStats, "all", strconv.Itoa(filter.Days), filter.To.Format(dateLayout))
	var cached models.AllStoresSummary
	if s.tryGetFromCache(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	query := `
		SELECT s.id,
		       s.name,
		       COUNT(n.id) AS total_notifications,
		       COUNT(DISTINCT n.user_id) AS unique_users,
		       COUNT(n.id) FILTER (WHERE n.delivery_status = 'delivered') AS successful_notifications,
		       COUNT(n.id) FILTER (WHERE n.delivery_status = 'failed') AS failed_notifications
		FROM notification_logs n
		JOIN stores s ON s.id = n.store_id
		WHERE n.sent_at BETWEEN $1 AND $2
		GROUP BY s.id, s.name
		ORDER BY total_notifications DESC, s.id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, filter.From, filter.To)
	if err != nil {
		return nil, fmt.Errorf("failed to load stores summary: %w", err)
	}
	defer rows.Close()

	summary := &models.AllStoresSummary{
		PeriodDays:  filter.Days,
		StartDate:   filter.From.Format(dateLayout),
		EndDate:     filter.To.Format(dateLayout),
		StoresStats: make([]models.StoreSummaryRow, 0),
		GeneratedAt: s.clock.Now(),
	}
	for rows.Next() {
		var row models.StoreSummaryRow
		if err := rows.Scan(&row.StoreID, &row.StoreName, &row.TotalNotifications, &row.UniqueUsers,
			&row.SuccessfulNotifications, &row.FailedNotifications); err != nil {
			return nil, fmt.Errorf("failed to scan store summary: %w", err)
		}
		summary.StoresStats = append(summary.StoresStats, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stores summary: %w", err)
	}
	summary.TotalStoresWithNotifications = len(summary.StoresStats)

	s.saveToCache(ctx, cacheKey, summary)
	return summary, nil
}

// ListNotifications возвращает журнал уведомлений магазина владельца, новые сначала.
func (s *NotificationStatsService) ListNotifications(ctx context.Context, ownerID int64, limit, offset int) ([]*models.NotificationLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	storeID, _, err := s.resolveOwnedStore(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, user_id, store_id, flash_promo_id, notification_type, message, delivery_status, sent_at
		FROM notification_logs
		WHERE store_id = $1
		ORDER BY sent_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := s.db.QueryContext(ctx, query, storeID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	logs := make([]*models.NotificationLog, 0)
	for rows.Next() {
		l := &models.NotificationLog{}
		if err := rows.Scan(&l.ID, &l.UserID, &l.StoreID, &l.FlashPromoID, &l.NotificationType, &l.Message, &l.DeliveryStatus, &l.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}
	return logs, nil
}

// resolveOwnedStore находит единственный магазин владельца; ноль или несколько дают NotFound.
func (s *NotificationStatsService) resolveOwnedStore(ctx context.Context, ownerID int64) (int64, string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM stores WHERE owner_id = $1 ORDER BY id LIMIT 2`, ownerID)
	if err != nil {
		return 0, "", fmt.Errorf("failed to resolve store: %w", err)
	}
	defer rows.Close()

	var (
		found int
		id    int64
		name  string
	)
	for rows.Next() {
		found++
		if err := rows.Scan(&id, &name); err != nil {
			return 0, "", fmt.Errorf("failed to scan store: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, "", fmt.Errorf("failed to iterate stores: %w", err)
	}
	if found != 1 {
		return 0, "", apperror.NotFound(ErrStoreNotFound.Error(), ErrStoreNotFound)
	}
	return id, name, nil
}

func (s *NotificationStatsService) buildFilter(days int) (*models.StatsFilter, error) {
	if days == 0 {
		days = s.defaultDays
	}
	if days < 0 || days > s.maxDays {
		return nil, apperror.Validation(fmt.Sprintf("days must be between 1 and %d", s.maxDays), nil)
	}
	to := s.clock.Now()
	return &models.StatsFilter{
		Days: days,
		From: to.AddDate(0, 0, -days),
		To:   to,
	}, nil
}

func (s *NotificationStatsService) fetchByStatus(ctx context.Context, storeID int64, filter *models.StatsFilter) ([]models.StatusCount, error) {
	query := `
		SELECT delivery_status, COUNT(*)
		FROM notification_logs
		WHERE store_id = $1 AND sent_at BETWEEN $2 AND $3
		GROUP BY delivery_status
		ORDER BY delivery_status
	`
	rows, err := s.db.QueryContext(ctx, query, storeID, filter.From, filter.To)
	if err != nil {
		return nil, fmt.Errorf("failed to load notifications by status: %w", err)
	}
	defer rows.Close()

	result := make([]models.StatusCount, 0)
	for rows.Next() {
		var item models.StatusCount
		if err := rows.Scan(&item.DeliveryStatus, &item.Count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate status counts: %w", err)
	}
	return result, nil
}

func (s *NotificationStatsService) fetchByDay(ctx context.Context, storeID int64, filter *models.StatsFilter) ([]models.DayCount, error) {
	query := `
		SELECT date(sent_at) AS day, COUNT(*)
		FROM notification_logs
		WHERE store_id = $1 AND sent_at BETWEEN $2 AND $3
		GROUP BY day
		ORDER BY day
	`
	rows, err := s.db.QueryContext(ctx, query, storeID, filter.From, filter.To)
	if err != nil {
		return nil, fmt.Errorf("failed to load notifications by day: %w", err)
	}
	defer rows.Close()

	result := make([]models.DayCount, 0)
	for rows.Next() {
		var (
			day  time.Time
			item models.DayCount
		)
		if err := rows.Scan(&day, &item.Count); err != nil {
			return nil, fmt.Errorf("failed to scan day count: %w", err)
		}
		item.Day = day.Format(dateLayout)
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate day counts: %w", err)
	}
	return result, nil
}

func (s *NotificationStatsService) fetchByType(ctx context.Context, storeID int64, filter *models.StatsFilter) ([]models.TypeCount, error) {
	query := `
		SELECT notification_type, COUNT(*)
		FROM notification_logs
		WHERE store_id = $1 AND sent_at BETWEEN $2 AND $3
		GROUP BY notification_type
		ORDER BY notification_type
	`
	rows, err := s.db.QueryContext(ctx, query, storeID, filter.From, filter.To)
	if err != nil {
		return nil, fmt.Errorf("failed to load notifications by type: %w", err)
	}
	defer rows.Close()

	result := make([]models.TypeCount, 0)
	for rows.Next() {
		var item models.TypeCount
		if err := rows.Scan(&item.NotificationType, &item.Count); err != nil {
			return nil, fmt.Errorf("failed to scan type count: %w", err)
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate type counts: %w", err)
	}
	return result, nil
}

// InvalidateCache сбрасывает закешированную статистику после новых записей в журнале.
func (s *NotificationStatsService) InvalidateCache(ctx context.Context) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.DeleteByPrefix(ctx, redis.KeyPrefixStats+":")
}

func (s *NotificationStatsService) tryGetFromCache(ctx context.Context, key string, dest interface{}) bool {
	if s.redis == nil {
		return false
	}
	if err := s.redis.Get(ctx, key, dest); err != nil {
		return false
	}
	return true
}

func (s *NotificationStatsService) saveToCache(ctx context.Context, key string, value interface{}) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("Failed to cache notification stats")
	}
}

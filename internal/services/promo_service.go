package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"flash-promo-service/internal/apperror"
	"flash-promo-service/internal/clock"
	"flash-promo-service/internal/database"
	"flash-promo-service/internal/logger"
	"flash-promo-service/internal/metrics"
	"flash-promo-service/internal/models"

	"github.com/shopspring/decimal"
)

// PromoEventPublisher уведомляет внешние системы о смене состояния акций
type PromoEventPublisher interface {
	PublishPromoDeactivated(promoID int64) error
}

// PromoService управляет флеш-акциями и их жизненным циклом.
type PromoService struct {
	db      *database.DB
	log     *logger.Logger
	clock   clock.Clock
	events  PromoEventPublisher
	metrics metrics.Recorder
}

// NewPromoService создаёт сервис акций.
func NewPromoService(db *database.DB, log *logger.Logger, clk clock.Clock) *PromoService {
	return &PromoService{
		db:    db,
		log:   log,
		clock: clk,
	}
}

// SetEventPublisher подключает публикацию событий об акциях.
func (s *PromoService) SetEventPublisher(p PromoEventPublisher) {
	s.events = p
}

// CreatePromo создаёт флеш-акцию на товар.
func (s *PromoService) CreatePromo(ctx context.Context, req *models.CreateFlashPromoRequest) (*models.FlashPromo, error) {
	if req == nil {
		return nil, apperror.Validation("request body is required", nil)
	}
	segments, err := validatePromoPayload(req.PromoPrice, req.StartTime, req.EndTime, req.EligibleSegments)
	if err != nil {
		return nil, err
	}

	var originalPrice decimal.Decimal
	if err := s.db.QueryRowContext(ctx, `SELECT original_price FROM products WHERE id = $1`, req.ProductID).Scan(&originalPrice); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound(ErrProductNotFound.Error(), ErrProductNotFound)
		}
		return nil, fmt.Errorf("failed to get product price: %w", err)
	}
	if err := validatePromoPrice(req.PromoPrice, originalPrice); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	query := `
		INSERT INTO flash_promos (product_id, promo_price, start_time, end_time, eligible_segments, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	if err := s.db.QueryRowContext(ctx, query,
		req.ProductID, req.PromoPrice, req.StartTime, req.EndTime, segments, req.IsActive, now, now,
	).Scan(&id); err != nil {
		return nil, fmt.Errorf("failed to create promo: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"promo_id":   id,
		"product_id": req.ProductID,
		"window":     req.StartTime.String() + "-" + req.EndTime.String(),
	}).Info("Flash promo created")

	return s.GetPromo(ctx, id)
}

// UpdatePromo обновляет цену, окно, сегменты и флаг активности акции.
func (s *PromoService) UpdatePromo(ctx context.Context, id int64, req *models.UpdateFlashPromoRequest) (*models.FlashPromo, error) {
	if req == nil {
		return nil, apperror.Validation("request body is required", nil)
	}
	segments, err := validatePromoPayload(req.PromoPrice, req.StartTime, req.EndTime, req.EligibleSegments)
	if err != nil {
		return nil, err
	}

	var originalPrice decimal.Decimal
	priceQuery := `
		SELECT p.original_price
		FROM flash_promos fp
		JOIN products p ON p.id = fp.product_id
		WHERE fp.id = $1
	`
	if err := s.db.QueryRowContext(ctx, priceQuery, id).Scan(&originalPrice); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound(ErrPromoNotFound.Error(), ErrPromoNotFound)
		}
		return nil, fmt.Errorf("failed to get product price: %w", err)
	}
	if err := validatePromoPrice(req.PromoPrice, originalPrice); err != nil {
		return nil, err
	}

	query := `
		UPDATE flash_promos
		SET promo_price = $1, start_time = $2, end_time = $3, eligible_segments = $4, is_active = $5, updated_at = $6
		WHERE id = $7
	`
	if _, err := s.db.ExecContext(ctx, query,
		req.PromoPrice, req.StartTime, req.EndTime, segments, req.IsActive, s.clock.Now(), id,
	); err != nil {
		return nil, fmt.Errorf("failed to update promo: %w", err)
	}

	return s.GetPromo(ctx, id)
}

// SetPromoActive вручную включает или выключает акцию без каких-либо проверок окна.
func (s *PromoService) SetPromoActive(ctx context.Context, id int64, active bool) (*models.FlashPromo, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE flash_promos SET is_active = $1, updated_at = $2 WHERE id = $3`,
		active, s.clock.Now(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to toggle promo: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, apperror.NotFound(ErrPromoNotFound.Error(), ErrPromoNotFound)
	}

	s.log.WithFields(map[string]interface{}{
		"promo_id":  id,
		"is_active": active,
	}).Info("Flash promo toggled")

	if !active {
		s.publishDeactivated(id)
	}
	return s.GetPromo(ctx, id)
}

// GetPromo возвращает акцию вместе с товаром и магазином.
func (s *PromoService) GetPromo(ctx context.Context, id int64) (*models.FlashPromo, error) {
	promo, err := scanPromo(s.db.QueryRowContext(ctx, `SELECT `+promoColumns+` WHERE fp.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound(ErrPromoNotFound.Error(), ErrPromoNotFound)
		}
		return nil, fmt.Errorf("failed to get promo: %w", err)
	}
	return promo, nil
}

// ListPromos возвращает акции постранично. activeOnly оставляет только действующие сейчас.
func (s *PromoService) ListPromos(ctx context.Context, activeOnly bool, limit, offset int) ([]*models.FlashPromo, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	if activeOnly {
		query := `SELECT ` + promoColumns + `
	WHERE fp.is_active = TRUE AND fp.start_time <= $1 AND fp.end_time >= $1
	ORDER BY fp.id
	LIMIT $2 OFFSET $3`
		return s.queryPromos(ctx, query, models.TimeOfDayOf(s.clock.Now()), limit, offset)
	}

	query := `SELECT ` + promoColumns + `
	ORDER BY fp.created_at DESC, fp.id DESC
	LIMIT $1 OFFSET $2`
	return s.queryPromos(ctx, query, limit, offset)
}

// ListEffectivelyActive возвращает все акции, действующие в текущий момент.
func (s *PromoService) ListEffectivelyActive(ctx context.Context) ([]*models.FlashPromo, error) {
	now := s.clock.Now()
	query := `SELECT ` + promoColumns + `
	WHERE fp.is_active = TRUE AND fp.start_time <= $1 AND fp.end_time >= $1
	ORDER BY fp.id`

	promos, err := s.queryPromos(ctx, query, models.TimeOfDayOf(now))
	if err != nil {
		return nil, err
	}

	// окно сверяется ещё раз: запрос и фильтр должны совпадать
	active := promos[:0]
	for _, p := range promos {
		if p.IsEffectivelyActive(now) {
			active = append(active, p)
		}
	}
	return active, nil
}

// DeactivateExpired выключает активные акции, окно которых на сегодня уже закончилось.
// Возвращает ID выключенных акций.
func (s *PromoService) DeactivateExpired(ctx context.Context) ([]int64, error) {
	now := s.clock.Now()
	query := `
		UPDATE flash_promos
		SET is_active = FALSE, updated_at = $1
		WHERE is_active = TRUE AND end_time < $2
		RETURNING id
	`

	rows, err := s.db.QueryContext(ctx, query, now, models.TimeOfDayOf(now))
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate expired promos: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan deactivated promo id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deactivated promos: %w", err)
	}

	s.metrics.Deactivated(len(ids))
	for _, id := range ids {
		s.publishDeactivated(id)
	}

	if len(ids) > 0 {
		s.log.WithField("count", len(ids)).Info("Expired flash promos deactivated")
	}
	return ids, nil
}

func (s *PromoService) queryPromos(ctx context.Context, query string, args ...interface{}) ([]*models.FlashPromo, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list promos: %w", err)
	}
	defer rows.Close()

	promos := make([]*models.FlashPromo, 0)
	for rows.Next() {
		p, err := scanPromo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan promo: %w", err)
		}
		promos = append(promos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate promos: %w", err)
	}
	return promos, nil
}

func (s *PromoService) publishDeactivated(id int64) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishPromoDeactivated(id); err != nil {
		s.log.WithError(err).WithField("promo_id", id).Warn("Failed to publish promo deactivated event")
	}
}

func validatePromoPayload(price decimal.Decimal, start, end models.TimeOfDay, tags []string) (models.Segments, error) {
	if price.IsNegative() {
		return nil, apperror.Validation("promo_price must be non-negative", nil)
	}
	if !end.After(start) {
		return nil, apperror.Validation("end_time must be after start_time", nil)
	}
	if len(tags) == 0 {
		return nil, apperror.Validation("eligible_segments must not be empty", nil)
	}
	segments, err := models.NormalizeSegments(tags)
	if err != nil {
		return nil, apperror.Validation(err.Error(), err)
	}
	return segments, nil
}

func validatePromoPrice(promoPrice, originalPrice decimal.Decimal) error {
	if !promoPrice.LessThan(originalPrice) {
		return apperror.Validation(
			fmt.Sprintf("promo_price must be lower than the original price %s", originalPrice.StringFixed(2)), nil)
	}
	return nil
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"flash-promo-service/internal/apperror"
	"flash-promo-service/internal/clock"
	"flash-promo-service/internal/config"
	"flash-promo-service/internal/database"
	"flash-promo-service/internal/logger"
	"flash-promo-service/internal/metrics"
	"flash-promo-service/internal/models"
)

// DefaultReservationHold: сколько держится резерв товара
const DefaultReservationHold = 60 * time.Second

// Исходы резервирования для метрик
const (
	reserveOutcomeCreated   = "created"
	reserveOutcomeConflict  = "conflict"
	reserveOutcomeRejected  = "rejected"
	reserveOutcomeCompleted = "completed"
	reserveOutcomeExpired   = "expired"
)

// ReservationEventPublisher уведомляет внешние системы о резервах
type ReservationEventPublisher interface {
	PublishReservationCreated(r *models.ProductReservation) error
	PublishReservationCompleted(r *models.ProductReservation) error
}

// ReservationService выдаёт эксклюзивные резервы товаров по флеш-акциям.
type ReservationService struct {
	db            *database.DB
	promos        *PromoService
	log           *logger.Logger
	clock         clock.Clock
	hold          time.Duration
	maxDistanceKm float64
	events        ReservationEventPublisher
	metrics       metrics.Recorder
}

// NewReservationService создает сервис резервов.
func NewReservationService(db *database.DB, promos *PromoService, log *logger.Logger, clk clock.Clock, cfg *config.PromoConfig) *ReservationService {
	hold := DefaultReservationHold
	maxKm := DefaultMaxDistanceKm
	if cfg != nil {
		if cfg.ReservationHoldSecond > 0 {
			hold = time.Duration(cfg.ReservationHoldSecond) * time.Second
		}
		maxKm = maxDistanceOrDefault(cfg.MaxDistanceKm)
	}

	return &ReservationService{
		db:            db,
		promos:        promos,
		log:           log,
		clock:         clk,
		hold:          hold,
		maxDistanceKm: maxKm,
	}
}

// SetEventPublisher подключает публикацию событий о резервах.
func (s *ReservationService) SetEventPublisher(p ReservationEventPublisher) {
	s.events = p
}

// Reserve резервирует товар акции за пользователем.
// Проверки идут в порядке: акция существует, действует, пользователь в сегменте,
// пользователь рядом с магазином, товар свободен.
func (s *ReservationService) Reserve(ctx context.Context, promoID, userID int64) (*models.ProductReservation, error) {
	promo, err := s.promos.GetPromo(ctx, promoID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if !promo.IsEffectivelyActive(now) {
		s.metrics.Reservation(reserveOutcomeRejected)
		return nil, apperror.Precondition(ErrPromoInactive.Error(), ErrPromoInactive)
	}

	user, err := loadUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	if !IsEligible(user, promo) {
		s.metrics.Reservation(reserveOutcomeRejected)
		return nil, apperror.Forbidden(ErrNotEligible.Error(), ErrNotEligible)
	}

	if !IsNear(user, promo.Product.Store, s.maxDistanceKm) {
		s.metrics.Reservation(reserveOutcomeRejected)
		return nil, apperror.Forbidden(ErrNotNearStore.Error(), ErrNotNearStore)
	}

	reservation, err := s.claim(ctx, promo.ProductID, userID, now)
	if err != nil {
		if errors.Is(err, ErrProductAlreadyReserved) {
			s.metrics.Reservation(reserveOutcomeConflict)
		}
		return nil, err
	}

	s.metrics.Reservation(reserveOutcomeCreated)
	s.log.WithFields(map[string]interface{}{
		"reservation_id": reservation.ID,
		"promo_id":       promoID,
		"product_id":     reservation.ProductID,
		"user_id":        userID,
		"reserved_until": reservation.ReservedUntil,
	}).Info("Product reserved")

	if s.events != nil {
		if err := s.events.PublishReservationCreated(reservation); err != nil {
			s.log.WithError(err).WithField("reservation_id", reservation.ID).Warn("Failed to publish reservation created event")
		}
	}
	return reservation, nil
}

// claim атомарно проверяет отсутствие открытого резерва и создаёт новый.
// Строка товара блокируется FOR UPDATE, поэтому параллельные claim одного товара идут по очереди.
func (s *ReservationService) claim(ctx context.Context, productID, userID int64, now time.Time) (*models.ProductReservation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var lockedID int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM products WHERE id = $1 FOR UPDATE`, productID).Scan(&lockedID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound(ErrProductNotFound.Error(), ErrProductNotFound)
		}
		return nil, fmt.Errorf("failed to lock product: %w", err)
	}

	openQuery := `
		SELECT EXISTS (
			SELECT 1 FROM product_reservations
			WHERE product_id = $1 AND is_completed = FALSE AND reserved_until > $2
		)
	`
	var taken bool
	if err := tx.QueryRowContext(ctx, openQuery, productID, now).Scan(&taken); err != nil {
		return nil, fmt.Errorf("failed to check open reservations: %w", err)
	}
	if taken {
		return nil, apperror.Conflict(ErrProductAlreadyReserved.Error(), ErrProductAlreadyReserved)
	}

	reservation := &models.ProductReservation{
		ProductID:     productID,
		UserID:        userID,
		ReservedUntil: now.Add(s.hold),
		CreatedAt:     now,
	}

	insertQuery := `
		INSERT INTO product_reservations (product_id, user_id, reserved_until, is_completed, created_at)
		VALUES ($1, $2, $3, FALSE, $4)
		RETURNING id
	`
	if err := tx.QueryRowContext(ctx, insertQuery,
		reservation.ProductID, reservation.UserID, reservation.ReservedUntil, reservation.CreatedAt,
	).Scan(&reservation.ID); err != nil {
		return nil, fmt.Errorf("failed to insert reservation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reservation: %w", err)
	}
	return reservation, nil
}

// Complete выкупает резерв. Истёкший резерв завершить нельзя, даже уже выкупленный.
// Резерв другого пользователя для вызывающего не существует.
func (s *ReservationService) Complete(ctx context.Context, reservationID, userID int64) (*models.ProductReservation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		SELECT id, product_id, user_id, reserved_until, is_completed, created_at
		FROM product_reservations
		WHERE id = $1
		FOR UPDATE
	`
	r, err := scanReservation(tx.QueryRowContext(ctx, query, reservationID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound(ErrReservationNotFound.Error(), ErrReservationNotFound)
		}
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	if r.UserID != userID {
		return nil, apperror.NotFound(ErrReservationNotFound.Error(), ErrReservationNotFound)
	}

	now := s.clock.Now()
	if r.IsExpired(now) {
		s.metrics.Reservation(reserveOutcomeExpired)
		return nil, apperror.Precondition(ErrReservationExpired.Error(), ErrReservationExpired)
	}

	if r.IsCompleted {
		return r, nil
	}

	if _, err := tx.ExecContext(ctx, `UPDATE product_reservations SET is_completed = TRUE WHERE id = $1`, r.ID); err != nil {
		return nil, fmt.Errorf("failed to complete reservation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reservation completion: %w", err)
	}
	r.IsCompleted = true

	s.metrics.Reservation(reserveOutcomeCompleted)
	s.log.WithFields(map[string]interface{}{
		"reservation_id": r.ID,
		"product_id":     r.ProductID,
		"user_id":        r.UserID,
	}).Info("Reservation completed")

	if s.events != nil {
		if err := s.events.PublishReservationCompleted(r); err != nil {
			s.log.WithError(err).WithField("reservation_id", r.ID).Warn("Failed to publish reservation completed event")
		}
	}
	return r, nil
}

// GetReservation возвращает резерв пользователя.
func (s *ReservationService) GetReservation(ctx context.Context, reservationID, userID int64) (*models.ProductReservation, error) {
	query := `
		SELECT id, product_id, user_id, reserved_until, is_completed, created_at
		FROM product_reservations
		WHERE id = $1
	`
	r, err := scanReservation(s.db.QueryRowContext(ctx, query, reservationID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound(ErrReservationNotFound.Error(), ErrReservationNotFound)
		}
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	if r.UserID != userID {
		return nil, apperror.NotFound(ErrReservationNotFound.Error(), ErrReservationNotFound)
	}
	return r, nil
}

func scanReservation(row rowScanner) (*models.ProductReservation, error) {
	r := &models.ProductReservation{}
	if err := row.Scan(&r.ID, &r.ProductID, &r.UserID, &r.ReservedUntil, &r.IsCompleted, &r.CreatedAt); err != nil {
		return nil, err
	}
	return r, nil
}

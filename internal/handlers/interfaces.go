package handlers

import (
	"context"

	"flash-promo-service/internal/models"
	"flash-promo-service/internal/scheduler"
	"flash-promo-service/internal/services"
)

// ----- Promos -----

type PromoService interface {
	CreatePromo(ctx context.Context, req *models.CreateFlashPromoRequest) (*models.FlashPromo, error)
	UpdatePromo(ctx context.Context, id int64, req *models.UpdateFlashPromoRequest) (*models.FlashPromo, error)
	SetPromoActive(ctx context.Context, id int64, active bool) (*models.FlashPromo, error)
	GetPromo(ctx context.Context, id int64) (*models.FlashPromo, error)
	ListPromos(ctx context.Context, activeOnly bool, limit, offset int) ([]*models.FlashPromo, error)
}

type Dispatcher interface {
	DispatchForPromo(ctx context.Context, promoID int64) (*models.DispatchResult, error)
}

// DispatchRequester ставит рассылку в очередь событий вместо синхронного выполнения
type DispatchRequester interface {
	PublishDispatchRequested(promoID int64) error
}

// ----- Reservations -----

type ReservationService interface {
	Reserve(ctx context.Context, promoID, userID int64) (*models.ProductReservation, error)
	Complete(ctx context.Context, reservationID, userID int64) (*models.ProductReservation, error)
	GetReservation(ctx context.Context, reservationID, userID int64) (*models.ProductReservation, error)
}

// ----- Notifications -----

type NotificationStats interface {
	StoreStats(ctx context.Context, ownerID int64, days int) (*models.StoreNotificationStats, error)
	AllStoresSummary(ctx context.Context, isStaff bool, days int) (*models.AllStoresSummary, error)
	ListNotifications(ctx context.Context, ownerID int64, limit, offset int) ([]*models.NotificationLog, error)
}

// ----- Rate limit -----

type RateLimiter interface {
	Allow(ctx context.Context, scope, client string) (services.RateDecision, error)
	Usage(ctx context.Context, scope, client string) (services.RateDecision, error)
	Enabled() bool
}

// ----- Health -----

type DBHealth interface {
	Health() error
	SchemaState(ctx context.Context) (version int64, dirty bool, err error)
}

type SchedulerState interface {
	Running() bool
	Snapshot() []scheduler.JobState
}

type RedisHealth interface {
	Health(ctx context.Context) error
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType представляет тип события
type EventType string

const (
	EventTypePromoNotification      EventType = "promo.notification"
	EventTypePromoDispatchRequested EventType = "promo.dispatch_requested"
	EventTypePromoDeactivated       EventType = "promo.deactivated"
	EventTypeReservationCreated     EventType = "reservation.created"
	EventTypeReservationCompleted   EventType = "reservation.completed"
)

// Event представляет событие в системе
type Event struct {
	ID        uuid.UUID   `json:"id"`
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// PromoDispatchRequestedData: данные события запроса рассылки по акции
type PromoDispatchRequestedData struct {
	PromoID int64 `json:"promo_id"`
}

// PromoDeactivatedData: данные события выключения акции
type PromoDeactivatedData struct {
	PromoID       int64     `json:"promo_id"`
	DeactivatedAt time.Time `json:"deactivated_at"`
}

// ReservationEventData: данные событий резервирования
type ReservationEventData struct {
	ReservationID int64     `json:"reservation_id"`
	ProductID     int64     `json:"product_id"`
	UserID        int64     `json:"user_id"`
	ReservedUntil time.Time `json:"reserved_until"`
}

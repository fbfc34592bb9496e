package services

import "errors"

// Причины отказов. Сервисы заворачивают их в apperror соответствующего вида,
// поэтому вызывающий может различать их через errors.Is.
var (
	ErrPromoNotFound          = errors.New("promo not found")
	ErrPromoInactive          = errors.New("this promo is not active")
	ErrNotEligible            = errors.New("you are not eligible for this promo")
	ErrNotNearStore           = errors.New("you are not near the store")
	ErrProductAlreadyReserved = errors.New("product is already reserved")
	ErrReservationNotFound    = errors.New("reservation not found")
	ErrReservationExpired     = errors.New("reservation has expired")
	ErrUserNotFound           = errors.New("user not found")
	ErrProductNotFound        = errors.New("product not found")
	ErrStoreNotFound          = errors.New("no store found for the authenticated user")
)

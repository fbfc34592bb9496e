package models

import "time"

// ProductReservation: эксклюзивный удерживаемый на короткое время резерв товара.
type ProductReservation struct {
	ID            int64     `json:"id" db:"id"`
	ProductID     int64     `json:"product_id" db:"product_id"`
	UserID        int64     `json:"user_id" db:"user_id"`
	ReservedUntil time.Time `json:"reserved_until" db:"reserved_until"`
	IsCompleted   bool      `json:"is_completed" db:"is_completed"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// IsOpen: резерв не завершён и ещё не истёк, т.е. занимает слот товара.
func (r *ProductReservation) IsOpen(now time.Time) bool {
	return !r.IsCompleted && r.ReservedUntil.After(now)
}

// IsExpired: срок удержания прошёл.
func (r *ProductReservation) IsExpired(now time.Time) bool {
	return r.ReservedUntil.Before(now)
}

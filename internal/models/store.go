package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Store представляет магазин с необязательными координатами.
type Store struct {
	ID        int64     `json:"id" db:"id"`
	OwnerID   *int64    `json:"owner_id,omitempty" db:"owner_id"`
	Name      string    `json:"name" db:"name"`
	Address   string    `json:"address" db:"address"`
	Latitude  *float64  `json:"latitude,omitempty" db:"latitude"`
	Longitude *float64  `json:"longitude,omitempty" db:"longitude"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Product представляет товар магазина.
type Product struct {
	ID            int64           `json:"id" db:"id"`
	StoreID       int64           `json:"store_id" db:"store_id"`
	Name          string          `json:"name" db:"name"`
	Description   string          `json:"description" db:"description"`
	OriginalPrice decimal.Decimal `json:"original_price" db:"original_price"`
	IsAvailable   bool            `json:"is_available" db:"is_available"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`

	Store *Store `json:"store,omitempty" db:"-"`
}

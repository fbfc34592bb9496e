package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"flash-promo-service/internal/apperror"
	"flash-promo-service/internal/models"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

const promoColumns = `
		fp.id, fp.product_id, fp.promo_price, fp.start_time, fp.end_time,
		fp.eligible_segments, fp.is_active, fp.created_at, fp.updated_at,
		p.id, p.store_id, p.name, p.description, p.original_price, p.is_available,
		s.id, s.owner_id, s.name, s.address, s.latitude, s.longitude, s.is_active
	FROM flash_promos fp
	JOIN products p ON p.id = fp.product_id
	JOIN stores s ON s.id = p.store_id`

// scanPromo читает акцию вместе с товаром и магазином (колонки promoColumns)
func scanPromo(row rowScanner) (*models.FlashPromo, error) {
	promo := &models.FlashPromo{}
	product := &models.Product{}
	store := &models.Store{}

	if err := row.Scan(
		&promo.ID, &promo.ProductID, &promo.PromoPrice, &promo.StartTime, &promo.EndTime,
		&promo.EligibleSegments, &promo.IsActive, &promo.CreatedAt, &promo.UpdatedAt,
		&product.ID, &product.StoreID, &product.Name, &product.Description, &product.OriginalPrice, &product.IsAvailable,
		&store.ID, &store.OwnerID, &store.Name, &store.Address, &store.Latitude, &store.Longitude, &store.IsActive,
	); err != nil {
		return nil, err
	}

	product.Store = store
	promo.Product = product
	return promo, nil
}

const userColumns = `id, username, user_type, latitude, longitude, last_notification_sent, is_staff`

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	if err := row.Scan(&u.ID, &u.Username, &u.UserType, &u.Latitude, &u.Longitude, &u.LastNotificationSent, &u.IsStaff); err != nil {
		return nil, err
	}
	return u, nil
}

// loadUser возвращает пользователя по ID
func loadUser(ctx context.Context, q queryRower, userID int64) (*models.User, error) {
	row := q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound(ErrUserNotFound.Error(), ErrUserNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

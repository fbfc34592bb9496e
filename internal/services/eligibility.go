package services

import (
	"flash-promo-service/internal/geo"
	"flash-promo-service/internal/models"
)

// DefaultMaxDistanceKm: радиус, в котором пользователь считается рядом с магазином
const DefaultMaxDistanceKm = 2.0

// IsEligible сообщает, входит ли тип пользователя в сегменты акции
func IsEligible(user *models.User, promo *models.FlashPromo) bool {
	if user == nil || promo == nil {
		return false
	}
	return promo.EligibleSegments.Contains(user.UserType)
}

// IsNear сообщает, находится ли пользователь не дальше maxKm от магазина.
// Без координат у любой из сторон результат всегда false.
func IsNear(user *models.User, store *models.Store, maxKm float64) bool {
	if user == nil || store == nil {
		return false
	}
	userPoint, ok := geo.NewPoint(user.Latitude, user.Longitude)
	if !ok {
		return false
	}
	storePoint, ok := geo.NewPoint(store.Latitude, store.Longitude)
	if !ok {
		return false
	}
	return geo.Within(userPoint, storePoint, maxKm)
}

func maxDistanceOrDefault(km float64) float64 {
	if km <= 0 {
		return DefaultMaxDistanceKm
	}
	return km
}

package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"time"

	"flash-promo-service/internal/config"
	"flash-promo-service/internal/logger"
	"flash-promo-service/internal/models"
	"flash-promo-service/internal/services"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestLogger() *logger.Logger {
	log := logger.New(&config.LoggerConfig{Level: "error", Format: "json"})
	log.SetOutput(io.Discard)
	return log
}

// newRequest собирает запрос с заголовками идентичности; userID=0 оставляет запрос анонимным.
func newRequest(method, target, body string, userID int64, role string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if userID > 0 {
		req.Header.Set(services.HeaderUserID, strconv.FormatInt(userID, 10))
	}
	if role != "" {
		req.Header.Set(services.HeaderUserRole, role)
	}
	return req
}

type stubPromoService struct {
	promo      *models.FlashPromo
	promos     []*models.FlashPromo
	err        error
	created    *models.CreateFlashPromoRequest
	updated    *models.UpdateFlashPromoRequest
	lastID     int64
	activeOnly bool
	limit      int
	offset     int
	active     *bool
}

func (s *stubPromoService) CreatePromo(_ context.Context, req *models.CreateFlashPromoRequest) (*models.FlashPromo, error) {
	s.created = req
	return s.promo, s.err
}

func (s *stubPromoService) UpdatePromo(_ context.Context, id int64, req *models.UpdateFlashPromoRequest) (*models.FlashPromo, error) {
	s.lastID, s.updated = id, req
	return s.promo, s.err
}

func (s *stubPromoService) SetPromoActive(_ context.Context, id int64, active bool) (*models.FlashPromo, error) {
	s.lastID, s.active = id, &active
	return s.promo, s.err
}

func (s *stubPromoService) GetPromo(_ context.Context, id int64) (*models.FlashPromo, error) {
	s.lastID = id
	return s.promo, s.err
}

func (s *stubPromoService) ListPromos(_ context.Context, activeOnly bool, limit, offset int) ([]*models.FlashPromo, error) {
	s.activeOnly, s.limit, s.offset = activeOnly, limit, offset
	return s.promos, s.err
}

type stubDispatcher struct {
	result *models.DispatchResult
	err    error
	calls  []int64
}

func (s *stubDispatcher) DispatchForPromo(_ context.Context, promoID int64) (*models.DispatchResult, error) {
	s.calls = append(s.calls, promoID)
	return s.result, s.err
}

type stubRequester struct {
	err   error
	calls []int64
}

func (s *stubRequester) PublishDispatchRequested(promoID int64) error {
	s.calls = append(s.calls, promoID)
	return s.err
}

type stubReservationService struct {
	reservation *models.ProductReservation
	err         error
	lastID      int64
	lastUser    int64
}

func (s *stubReservationService) Reserve(_ context.Context, promoID, userID int64) (*models.ProductReservation, error) {
	s.lastID, s.lastUser = promoID, userID
	return s.reservation, s.err
}

func (s *stubReservationService) Complete(_ context.Context, reservationID, userID int64) (*models.ProductReservation, error) {
	s.lastID, s.lastUser = reservationID, userID
	return s.reservation, s.err
}

func (s *stubReservationService) GetReservation(_ context.Context, reservationID, userID int64) (*models.ProductReservation, error) {
	s.lastID, s.lastUser = reservationID, userID
	return s.reservation, s.err
}

type stubNotificationStats struct {
	stats   *models.StoreNotificationStats
	summary *models.AllStoresSummary
	logs    []*models.NotificationLog
	err     error
	ownerID int64
	days    int
	isStaff bool
	limit   int
	offset  int
}

func (s *stubNotificationStats) StoreStats(_ context.Context, ownerID int64, days int) (*models.StoreNotificationStats, error) {
	s.ownerID, s.days = ownerID, days
	return s.stats, s.err
}

func (s *stubNotificationStats) AllStoresSummary(_ context.Context, isStaff bool, days int) (*models.AllStoresSummary, error) {
	s.isStaff, s.days = isStaff, days
	return s.summary, s.err
}

func (s *stubNotificationStats) ListNotifications(_ context.Context, ownerID int64, limit, offset int) ([]*models.NotificationLog, error) {
	s.ownerID, s.limit, s.offset = ownerID, limit, offset
	return s.logs, s.err
}

package services

import (
	"context"
	"database/sql/driver"
	"sync"
	"testing"
	"time"

	"flash-promo-service/internal/clock"
	"flash-promo-service/internal/config"
	"flash-promo-service/internal/database"
	"flash-promo-service/internal/logger"
	"flash-promo-service/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
)

func newTestLogger() *logger.Logger {
	return logger.New(&config.LoggerConfig{Level: "error", Format: "json"})
}

func newMockDB(t *testing.T) (*database.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return &database.DB{DB: db}, mock
}

// testNow: полдень, внутри окна 09:00-17:00 тестовой акции
var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestClock() *clock.MockClock {
	return clock.NewMockClock(testNow)
}

func f64(v float64) *float64 { return &v }

// Магазин стоит на Таймс-сквер; "рядом" в паре сотен метров, "далеко" в Центральном парке (~3 км).
var (
	storeLat, storeLon = 40.7580, -73.9855
	nearLat, nearLon   = 40.7590, -73.9845
	farLat, farLon     = 40.7829, -73.9654
)

var promoColumnNames = []string{
	"id", "product_id", "promo_price", "start_time", "end_time",
	"eligible_segments", "is_active", "created_at", "updated_at",
	"p_id", "store_id", "p_name", "description", "original_price", "is_available",
	"s_id", "owner_id", "s_name", "address", "latitude", "longitude", "s_is_active",
}

type promoFixture struct {
	ID          int64
	ProductID   int64
	StoreID     int64
	PromoPrice  string
	Original    string
	Start, End  string
	Segments    string
	IsActive    bool
	ProductName string
	StoreLat    interface{}
	StoreLon    interface{}
}

func defaultPromo() promoFixture {
	return promoFixture{
		ID:          1,
		ProductID:   10,
		StoreID:     5,
		PromoPrice:  "80.00",
		Original:    "100.00",
		Start:       "09:00:00",
		End:         "17:00:00",
		Segments:    "{new_users,frequent_buyers}",
		IsActive:    true,
		ProductName: "Sneakers",
		StoreLat:    storeLat,
		StoreLon:    storeLon,
	}
}

func (f promoFixture) addTo(rows *sqlmock.Rows) *sqlmock.Rows {
	return rows.AddRow(
		f.ID, f.ProductID, f.PromoPrice, f.Start, f.End,
		[]byte(f.Segments), f.IsActive, testNow, testNow,
		f.ProductID, f.StoreID, f.ProductName, "", f.Original, true,
		f.StoreID, int64(42), "Downtown", "Broadway 1", f.StoreLat, f.StoreLon, true,
	)
}

func (f promoFixture) rows() *sqlmock.Rows {
	return f.addTo(sqlmock.NewRows(promoColumnNames))
}

var userColumnNames = []string{"id", "username", "user_type", "latitude", "longitude", "last_notification_sent", "is_staff"}

type userFixture struct {
	ID       int64
	Type     models.UserType
	Lat, Lon interface{}
	LastSent interface{}
}

func (u userFixture) addTo(rows *sqlmock.Rows) *sqlmock.Rows {
	return rows.AddRow(u.ID, "user", string(u.Type), u.Lat, u.Lon, u.LastSent, false)
}

func (u userFixture) rows() *sqlmock.Rows {
	return u.addTo(sqlmock.NewRows(userColumnNames))
}

// exactArg сравнивает аргумент запроса после конвертации драйвером
type exactArg struct{ want driver.Value }

func (a exactArg) Match(v driver.Value) bool { return v == a.want }

type stubPublisher struct {
	mu   sync.Mutex
	err  error
	sent []models.PromoNotification
}

func (p *stubPublisher) Publish(ctx context.Context, n models.PromoNotification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, n)
	return nil
}

func (p *stubPublisher) Name() string { return "stub" }

type recordingEvents struct {
	deactivated []int64
	created     []int64
	completed   []int64
}

func (e *recordingEvents) PublishPromoDeactivated(id int64) error {
	e.deactivated = append(e.deactivated, id)
	return nil
}

func (e *recordingEvents) PublishReservationCreated(r *models.ProductReservation) error {
	e.created = append(e.created, r.ID)
	return nil
}

func (e *recordingEvents) PublishReservationCompleted(r *models.ProductReservation) error {
	e.completed = append(e.completed, r.ID)
	return nil
}

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"flash-promo-service/internal/apperror"
	"flash-promo-service/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
)

func TestPromoService_GetPromo(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := NewPromoService(db, newTestLogger(), newTestClock())

	mock.ExpectQuery("FROM flash_promos fp").
		WithArgs(int64(1)).
		WillReturnRows(defaultPromo().rows())

	promo, err := service.GetPromo(context.Background(), 1)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if promo.Product == nil || promo.Product.Store == nil {
		t.Fatalf("expected product and store loaded")
	}
	if !promo.PromoPrice.Equal(decimal.RequireFromString("80")) || promo.Product.Name != "Sneakers" {
		t.Fatalf("unexpected promo %+v", promo)
	}
	if promo.StartTime != models.MustTimeOfDay(9, 0, 0) || len(promo.EligibleSegments) != 2 {
		t.Fatalf("unexpected window or segments: %s %v", promo.StartTime, promo.EligibleSegments)
	}
	if promo.Product.Store.OwnerID == nil || *promo.Product.Store.OwnerID != 42 {
		t.Fatalf("expected store owner loaded")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPromoService_GetPromo_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := NewPromoService(db, newTestLogger(), newTestClock())

	mock.ExpectQuery("FROM flash_promos fp").
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows(promoColumnNames))

	_, err := service.GetPromo(context.Background(), 404)
	if !apperror.Is(err, apperror.KindNotFound) || !errors.Is(err, ErrPromoNotFound) {
		t.Fatalf("expected promo not found, got %v", err)
	}
}

func TestPromoService_CreatePromo_NormalizesSegments(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := NewPromoService(db, newTestLogger(), newTestClock())

	mock.ExpectQuery("SELECT original_price FROM products").
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"original_price"}).AddRow("100.00"))
	mock.ExpectQuery("INSERT INTO flash_promos").
		WithArgs(int64(10), "80", "09:00:00", "17:00:00", `{"new_users","frequent_buyers"}`, true, testNow, testNow).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery("FROM flash_promos fp").
		WithArgs(int64(1)).
		WillReturnRows(defaultPromo().rows())

	promo, err := service.CreatePromo(context.Background(), &models.CreateFlashPromoRequest{
		ProductID:        10,
		PromoPrice:       decimal.RequireFromString("80.00"),
		StartTime:        models.MustTimeOfDay(9, 0, 0),
		EndTime:          models.MustTimeOfDay(17, 0, 0),
		EligibleSegments: []string{"new", "frequent"},
		IsActive:         true,
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	amount, percent := promo.Discount(promo.Product.OriginalPrice)
	if !amount.Equal(decimal.RequireFromString("20.00")) || !percent.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected 20.00 off (20%%), got %s (%s%%)", amount, percent)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPromoService_CreatePromo_Validation(t *testing.T) {
	service := NewPromoService(nil, newTestLogger(), newTestClock())

	base := func() *models.CreateFlashPromoRequest {
		return &models.CreateFlashPromoRequest{
			ProductID:        10,
			PromoPrice:       decimal.RequireFromString("80"),
			StartTime:        models.MustTimeOfDay(9, 0, 0),
			EndTime:          models.MustTimeOfDay(17, 0, 0),
			EligibleSegments: []string{"new_users"},
		}
	}

	cases := map[string]func(r *models.CreateFlashPromoRequest){
		"unknown segment":   func(r *models.CreateFlashPromoRequest) { r.EligibleSegments = []string{"vip"} },
		"no segments":       func(r *models.CreateFlashPromoRequest) { r.EligibleSegments = nil },
		"empty window":      func(r *models.CreateFlashPromoRequest) { r.EndTime = r.StartTime },
		"overnight window":  func(r *models.CreateFlashPromoRequest) { r.StartTime = models.MustTimeOfDay(22, 0, 0) },
		"negative price":    func(r *models.CreateFlashPromoRequest) { r.PromoPrice = decimal.NewFromInt(-1) },
		"regular is no tag": func(r *models.CreateFlashPromoRequest) { r.EligibleSegments = []string{"regular"} },
	}
	for name, mutate := range cases {
		req := base()
		mutate(req)
		if _, err := service.CreatePromo(context.Background(), req); !apperror.Is(err, apperror.KindValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}

	if _, err := service.CreatePromo(context.Background(), nil); !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("nil request: expected validation error, got %v", err)
	}
}

func TestPromoService_CreatePromo_PriceNotBelowOriginal(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := NewPromoService(db, newTestLogger(), newTestClock())

	mock.ExpectQuery("SELECT original_price FROM products").
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"original_price"}).AddRow("100.00"))

	_, err := service.CreatePromo(context.Background(), &models.CreateFlashPromoRequest{
		ProductID:        10,
		PromoPrice:       decimal.RequireFromString("100.00"),
		StartTime:        models.MustTimeOfDay(9, 0, 0),
		EndTime:          models.MustTimeOfDay(17, 0, 0),
		EligibleSegments: []string{"new_users"},
	})
	if !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPromoService_CreatePromo_ProductNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := NewPromoService(db, newTestLogger(), newTestClock())

	mock.ExpectQuery("SELECT original_price FROM products").
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"original_price"}))

	_, err := service.CreatePromo(context.Background(), &models.CreateFlashPromoRequest{
		ProductID:        99,
		PromoPrice:       decimal.RequireFromString("1"),
		StartTime:        models.MustTimeOfDay(9, 0, 0),
		EndTime:          models.MustTimeOfDay(17, 0, 0),
		EligibleSegments: []string{"new_users"},
	})
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected product not found, got %v", err)
	}
}

func TestPromoService_UpdatePromo(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := NewPromoService(db, newTestLogger(), newTestClock())

	mock.ExpectQuery("SELECT p.original_price").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"original_price"}).AddRow("100.00"))
	mock.ExpectExec("UPDATE flash_promos").
		WithArgs("70", "10:00:00", "18:00:00", `{"frequent_buyers"}`, false, testNow, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM flash_promos fp").
		WithArgs(int64(1)).
		WillReturnRows(defaultPromo().rows())

	_, err := service.UpdatePromo(context.Background(), 1, &models.UpdateFlashPromoRequest{
		PromoPrice:       decimal.RequireFromString("70"),
		StartTime:        models.MustTimeOfDay(10, 0, 0),
		EndTime:          models.MustTimeOfDay(18, 0, 0),
		EligibleSegments: []string{"frequent_buyers"},
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPromoService_SetPromoActive_PublishesDeactivation(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	events := &recordingEvents{}
	service := NewPromoService(db, newTestLogger(), newTestClock())
	service.SetEventPublisher(events)

	inactive := defaultPromo()
	inactive.IsActive = false

	mock.ExpectExec("UPDATE flash_promos SET is_active").
		WithArgs(false, testNow, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM flash_promos fp").
		WithArgs(int64(1)).
		WillReturnRows(inactive.rows())

	promo, err := service.SetPromoActive(context.Background(), 1, false)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if promo.IsActive {
		t.Fatalf("expected promo inactive")
	}
	if len(events.deactivated) != 1 || events.deactivated[0] != 1 {
		t.Fatalf("expected deactivation event, got %v", events.deactivated)
	}
}

func TestPromoService_SetPromoActive_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := NewPromoService(db, newTestLogger(), newTestClock())

	mock.ExpectExec("UPDATE flash_promos SET is_active").
		WithArgs(true, testNow, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if _, err := service.SetPromoActive(context.Background(), 7, true); !errors.Is(err, ErrPromoNotFound) {
		t.Fatalf("expected promo not found, got %v", err)
	}
}

func TestPromoService_ListEffectivelyActive(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := NewPromoService(db, newTestLogger(), newTestClock())

	inWindow := defaultPromo()
	// строка, которую SQL вернуть не должен, но вернул: фильтр в Go её отбросит
	lapsed := defaultPromo()
	lapsed.ID = 2
	lapsed.Start, lapsed.End = "06:00:00", "07:00:00"

	rows := sqlmock.NewRows(promoColumnNames)
	inWindow.addTo(rows)
	lapsed.addTo(rows)

	mock.ExpectQuery("WHERE fp.is_active = TRUE AND fp.start_time <= \\$1 AND fp.end_time >= \\$1").
		WithArgs("12:00:00").
		WillReturnRows(rows)

	promos, err := service.ListEffectivelyActive(context.Background())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(promos) != 1 || promos[0].ID != 1 {
		t.Fatalf("expected only promo 1, got %d promos", len(promos))
	}
}

func TestPromoService_ListPromos(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := NewPromoService(db, newTestLogger(), newTestClock())

	mock.ExpectQuery("ORDER BY fp.created_at DESC").
		WithArgs(50, 0).
		WillReturnRows(defaultPromo().rows())

	promos, err := service.ListPromos(context.Background(), false, 0, -5)
	if err != nil || len(promos) != 1 {
		t.Fatalf("expected one promo, got %d err=%v", len(promos), err)
	}

	mock.ExpectQuery("WHERE fp.is_active = TRUE").
		WithArgs("12:00:00", 10, 20).
		WillReturnRows(sqlmock.NewRows(promoColumnNames))

	promos, err = service.ListPromos(context.Background(), true, 10, 20)
	if err != nil || len(promos) != 0 {
		t.Fatalf("expected empty list, got %d err=%v", len(promos), err)
	}
}

func TestPromoService_DeactivateExpired(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	clk := newTestClock()
	clk.Set(time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC))

	events := &recordingEvents{}
	service := NewPromoService(db, newTestLogger(), clk)
	service.SetEventPublisher(events)

	mock.ExpectQuery("UPDATE flash_promos").
		WithArgs(clk.Now(), "18:00:00").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)).AddRow(int64(4)))

	ids, err := service.DeactivateExpired(context.Background())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(ids) != 2 || ids[0] != 3 || ids[1] != 4 {
		t.Fatalf("unexpected ids %v", ids)
	}
	if len(events.deactivated) != 2 {
		t.Fatalf("expected events for each deactivated promo, got %v", events.deactivated)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPromoService_DeactivateExpired_NothingToDo(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := NewPromoService(db, newTestLogger(), newTestClock())

	mock.ExpectQuery("UPDATE flash_promos").
		WithArgs(testNow, "12:00:00").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	ids, err := service.DeactivateExpired(context.Background())
	if err != nil || len(ids) != 0 {
		t.Fatalf("expected nothing deactivated, got %v err=%v", ids, err)
	}
}

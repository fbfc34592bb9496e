package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Segment: целевая когорта пользователей, на которую направлена флеш-акция.
type Segment string

const (
	SegmentNewUsers       Segment = "new_users"
	SegmentFrequentBuyers Segment = "frequent_buyers"
)

// segmentUserTypes: закрытая таблица соответствия сегментов и типов пользователей.
var segmentUserTypes = map[Segment]UserType{
	SegmentNewUsers:       UserTypeNew,
	SegmentFrequentBuyers: UserTypeFrequent,
}

// segmentAliases допускает на входе тип пользователя вместо названия сегмента.
var segmentAliases = map[string]Segment{
	string(SegmentNewUsers):       SegmentNewUsers,
	string(SegmentFrequentBuyers): SegmentFrequentBuyers,
	string(UserTypeNew):           SegmentNewUsers,
	string(UserTypeFrequent):      SegmentFrequentBuyers,
}

// ParseSegment нормализует тег сегмента. Неизвестные теги отклоняются.
func ParseSegment(tag string) (Segment, error) {
	s, ok := segmentAliases[tag]
	if !ok {
		return "", fmt.Errorf("unknown segment %q", tag)
	}
	return s, nil
}

// UserType возвращает тип пользователя, которому соответствует сегмент.
func (s Segment) UserType() (UserType, bool) {
	ut, ok := segmentUserTypes[s]
	return ut, ok
}

// Segments: множество сегментов акции; хранится в колонке TEXT[].
type Segments []Segment

// NormalizeSegments проверяет и дедуплицирует теги, сохраняя порядок первого появления.
func NormalizeSegments(tags []string) (Segments, error) {
	seen := make(map[Segment]bool, len(tags))
	out := make(Segments, 0, len(tags))
	for _, tag := range tags {
		s, err := ParseSegment(tag)
		if err != nil {
			return nil, err
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out, nil
}

// UserTypes возвращает типы пользователей, которые покрывают сегменты.
func (ss Segments) UserTypes() []UserType {
	var types []UserType
	seen := make(map[UserType]bool)
	for _, s := range ss {
		if ut, ok := s.UserType(); ok && !seen[ut] {
			seen[ut] = true
			types = append(types, ut)
		}
	}
	return types
}

// Contains сообщает, входит ли тип пользователя в сегменты.
func (ss Segments) Contains(ut UserType) bool {
	for _, s := range ss {
		if mapped, ok := s.UserType(); ok && mapped == ut {
			return true
		}
	}
	return false
}

// Value пишет сегменты как массив Postgres.
func (ss Segments) Value() (driver.Value, error) {
	strs := make([]string, len(ss))
	for i, s := range ss {
		strs[i] = string(s)
	}
	return pq.StringArray(strs).Value()
}

// Scan читает массив Postgres. Устаревшие неизвестные теги пропускаются.
func (ss *Segments) Scan(src interface{}) error {
	var strs pq.StringArray
	if err := strs.Scan(src); err != nil {
		return err
	}
	out := make(Segments, 0, len(strs))
	for _, tag := range strs {
		if s, err := ParseSegment(tag); err == nil {
			out = append(out, s)
		}
	}
	*ss = out
	return nil
}

// FlashPromo представляет флеш-акцию на один товар.
type FlashPromo struct {
	ID               int64           `json:"id" db:"id"`
	ProductID        int64           `json:"product_id" db:"product_id"`
	PromoPrice       decimal.Decimal `json:"promo_price" db:"promo_price"`
	StartTime        TimeOfDay       `json:"start_time" db:"start_time"`
	EndTime          TimeOfDay       `json:"end_time" db:"end_time"`
	EligibleSegments Segments        `json:"eligible_segments" db:"eligible_segments"`
	IsActive         bool            `json:"is_active" db:"is_active"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`

	// Product заполняется при загрузке акции вместе с товаром и магазином.
	Product *Product `json:"product,omitempty" db:"-"`
}

// InWindow сообщает, попадает ли время суток now в окно акции (границы включительно).
func (p *FlashPromo) InWindow(now time.Time) bool {
	tod := TimeOfDayOf(now)
	return !tod.Before(p.StartTime) && !tod.After(p.EndTime)
}

// IsEffectivelyActive: флаг активности установлен и текущее время внутри окна.
func (p *FlashPromo) IsEffectivelyActive(now time.Time) bool {
	return p.IsActive && p.InWindow(now)
}

// WindowLapsed сообщает, что окно акции на сегодня уже закончилось.
func (p *FlashPromo) WindowLapsed(now time.Time) bool {
	return TimeOfDayOf(now).After(p.EndTime)
}

// Discount возвращает абсолютную скидку и процент относительно исходной цены.
func (p *FlashPromo) Discount(originalPrice decimal.Decimal) (amount, percent decimal.Decimal) {
	amount = originalPrice.Sub(p.PromoPrice)
	if originalPrice.IsZero() {
		return amount, decimal.Zero
	}
	percent = amount.Div(originalPrice).Mul(decimal.NewFromInt(100)).Round(2)
	return amount, percent
}

// NotificationMessage формирует текст уведомления об акции.
func (p *FlashPromo) NotificationMessage(productName string) string {
	return fmt.Sprintf("Flash Promo available: %s at %s", productName, p.PromoPrice.StringFixed(2))
}

// CreateFlashPromoRequest описывает запрос на создание флеш-акции.
type CreateFlashPromoRequest struct {
	ProductID        int64           `json:"product_id"`
	PromoPrice       decimal.Decimal `json:"promo_price"`
	StartTime        TimeOfDay       `json:"start_time"`
	EndTime          TimeOfDay       `json:"end_time"`
	EligibleSegments []string        `json:"eligible_segments"`
	IsActive         bool            `json:"is_active"`
}

// UpdateFlashPromoRequest описывает запрос на обновление флеш-акции.
type UpdateFlashPromoRequest struct {
	PromoPrice       decimal.Decimal `json:"promo_price"`
	StartTime        TimeOfDay       `json:"start_time"`
	EndTime          TimeOfDay       `json:"end_time"`
	EligibleSegments []string        `json:"eligible_segments"`
	IsActive         bool            `json:"is_active"`
}

// SetPromoActiveRequest: ручное включение/выключение акции оператором.
type SetPromoActiveRequest struct {
	IsActive bool `json:"is_active"`
}

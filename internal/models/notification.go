package models

import "time"

// DeliveryStatus: результат попытки отправки уведомления.
type DeliveryStatus string

const (
	DeliveryStatusSent      DeliveryStatus = "sent"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)

// NotificationTypeFlashPromo: единственный тип уведомлений, который шлёт диспетчер.
const NotificationTypeFlashPromo = "flash_promo"

// NotificationLog: неизменяемая запись об одной попытке отправки.
type NotificationLog struct {
	ID               int64          `json:"id" db:"id"`
	UserID           int64          `json:"user_id" db:"user_id"`
	StoreID          int64          `json:"store_id" db:"store_id"`
	FlashPromoID     *int64         `json:"flash_promo_id,omitempty" db:"flash_promo_id"`
	NotificationType string         `json:"notification_type" db:"notification_type"`
	Message          string         `json:"message" db:"message"`
	DeliveryStatus   DeliveryStatus `json:"delivery_status" db:"delivery_status"`
	SentAt           time.Time      `json:"sent_at" db:"sent_at"`
}

// PromoNotification: полезная нагрузка исходящего сообщения.
type PromoNotification struct {
	UserID  int64  `json:"user_id"`
	PromoID int64  `json:"promo_id"`
	Message string `json:"message"`
}

// QueueMessage: сообщение входящей очереди с токеном подтверждения.
type QueueMessage struct {
	ID       string `json:"id"`
	Body     []byte `json:"body"`
	AckToken string `json:"-"`
}

// StatsFilter задаёт окно статистики уведомлений.
type StatsFilter struct {
	Days int
	From time.Time
	To   time.Time
}

// StatusCount: количество уведомлений с данным статусом.
type StatusCount struct {
	DeliveryStatus DeliveryStatus `json:"delivery_status"`
	Count          int            `json:"count"`
}

// DayCount: количество уведомлений за день.
type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// TypeCount: количество уведомлений по типу.
type TypeCount struct {
	NotificationType string `json:"notification_type"`
	Count            int    `json:"count"`
}

// StoreNotificationStats: статистика уведомлений одного магазина.
type StoreNotificationStats struct {
	StoreID                int64         `json:"store_id"`
	StoreName              string        `json:"store_name"`
	PeriodDays             int           `json:"period_days"`
	StartDate              string        `json:"start_date"`
	EndDate                string        `json:"end_date"`
	TotalNotificationsSent int           `json:"total_notifications_sent"`
	NotificationsByStatus  []StatusCount `json:"notifications_by_status"`
	UniqueUsersNotified    int           `json:"unique_users_notified"`
	NotificationsByDay     []DayCount    `json:"notifications_by_day"`
	NotificationsByType    []TypeCount   `json:"notifications_by_type"`
	GeneratedAt            time.Time     `json:"generated_at"`
}

// StoreSummaryRow: строка сводки по всем магазинам.
type StoreSummaryRow struct {
	StoreID                 int64  `json:"store_id"`
	StoreName               string `json:"store_name"`
	TotalNotifications      int    `json:"total_notifications"`
	UniqueUsers             int    `json:"unique_users"`
	SuccessfulNotifications int    `json:"successful_notifications"`
	FailedNotifications     int    `json:"failed_notifications"`
}

// AllStoresSummary: сводка уведомлений по всем магазинам.
type AllStoresSummary struct {
	PeriodDays                   int               `json:"period_days"`
	StartDate                    string            `json:"start_date"`
	EndDate                      string            `json:"end_date"`
	TotalStoresWithNotifications int               `json:"total_stores_with_notifications"`
	StoresStats                  []StoreSummaryRow `json:"stores_stats"`
	GeneratedAt                  time.Time         `json:"generated_at"`
}

// DispatchResult: итог рассылки по одной акции.
type DispatchResult struct {
	PromoID    int64 `json:"promo_id"`
	Candidates int   `json:"candidates"`
	Attempted  int   `json:"attempted"`
	Delivered  int   `json:"delivered"`
	Failed     int   `json:"failed"`
	Skipped    int   `json:"skipped"`
}

package models

import "time"

// UserType: тип пользователя, по которому он попадает в сегменты акций.
type UserType string

const (
	UserTypeNew      UserType = "new"
	UserTypeFrequent UserType = "frequent"
	UserTypeRegular  UserType = "regular"
)

// User представляет покупателя (подмножество полей, нужное сервису акций).
type User struct {
	ID                   int64      `json:"id" db:"id"`
	Username             string     `json:"username" db:"username"`
	UserType             UserType   `json:"user_type" db:"user_type"`
	Latitude             *float64   `json:"latitude,omitempty" db:"latitude"`
	Longitude            *float64   `json:"longitude,omitempty" db:"longitude"`
	LastNotificationSent *time.Time `json:"last_notification_sent,omitempty" db:"last_notification_sent"`
	IsStaff              bool       `json:"is_staff" db:"is_staff"`
}

// NotifiedOn сообщает, получал ли пользователь уведомление в день day.
func (u *User) NotifiedOn(day time.Time) bool {
	if u.LastNotificationSent == nil {
		return false
	}
	y1, m1, d1 := u.LastNotificationSent.Date()
	y2, m2, d2 := day.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

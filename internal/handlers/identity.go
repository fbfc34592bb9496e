package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"flash-promo-service/internal/services"
)

// Роли вызывающего, которые выставляет шлюз
const (
	RoleCustomer = "customer"
	RoleStaff    = "staff"
	RoleAdmin    = "admin"
)

// Caller: аутентифицированный пользователь запроса.
// Аутентификацию выполняет шлюз, сервис доверяет его заголовкам.
type Caller struct {
	UserID int64
	Role   string
}

// IsStaff сообщает, есть ли у вызывающего права персонала.
func (c Caller) IsStaff() bool {
	return c.Role == RoleStaff || c.Role == RoleAdmin
}

// callerFromRequest читает идентичность из заголовков; false, если пользователь не указан.
func callerFromRequest(r *http.Request) (Caller, bool) {
	raw := strings.TrimSpace(r.Header.Get(services.HeaderUserID))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return Caller{}, false
	}

	role := strings.ToLower(strings.TrimSpace(r.Header.Get(services.HeaderUserRole)))
	if role == "" {
		role = RoleCustomer
	}
	return Caller{UserID: id, Role: role}, true
}

// requireCaller пишет 401 и возвращает false, если запрос без идентичности.
func requireCaller(w http.ResponseWriter, r *http.Request) (Caller, bool) {
	caller, ok := callerFromRequest(r)
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "Authentication required")
		return Caller{}, false
	}
	return caller, true
}

// requireStaff дополнительно проверяет роль персонала.
func requireStaff(w http.ResponseWriter, r *http.Request) (Caller, bool) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return Caller{}, false
	}
	if !caller.IsStaff() {
		writeErrorResponse(w, http.StatusForbidden, "Staff privileges required")
		return Caller{}, false
	}
	return caller, true
}

package main

import (
	"encoding/json"
	"net/http"
	"strings"

	"flash-promo-service/internal/handlers"
	"flash-promo-service/internal/logger"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// routes собирает HTTP-обработчики сервиса.
type routes struct {
	promos        *handlers.PromoHandler
	reservations  *handlers.ReservationHandler
	notifications *handlers.NotificationHandler
	health        *handlers.HealthHandler
	rateLimit     *handlers.RateLimitHandler
}

// setupRoutes настраивает маршруты HTTP сервера
func setupRoutes(r routes, limiter handlers.RateLimiter, log *logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	applyAPI := func(h http.HandlerFunc) http.HandlerFunc {
		return corsMiddleware(requestIDMiddleware(handlers.RateLimitMiddleware(limiter, handlers.RateScopeAPI, log, h)))
	}
	applyReserve := func(h http.HandlerFunc) http.HandlerFunc {
		return handlers.RateLimitMiddleware(limiter, handlers.RateScopeReserve, log, h)
	}

	// Health check endpoints
	mux.HandleFunc("/health", corsMiddleware(r.health.Health))
	mux.HandleFunc("/health/readiness", corsMiddleware(r.health.Readiness))
	mux.HandleFunc("/health/liveness", corsMiddleware(r.health.Liveness))

	// Prometheus
	mux.Handle("/metrics", promhttp.Handler())

	// Promo endpoints
	mux.HandleFunc("/api/promos", applyAPI(handlePromosRoute(r.promos)))
	mux.HandleFunc("/api/promos/", applyAPI(handlePromoRoute(r.promos, applyReserve)))

	// Reservation endpoints
	mux.HandleFunc("/api/reservations/", applyAPI(handleReservationRoute(r.reservations)))

	// Notification endpoints
	mux.HandleFunc("/api/notifications", applyAPI(r.notifications.ListNotifications))
	mux.HandleFunc("/api/notifications/store-stats", applyAPI(r.notifications.StoreStats))
	mux.HandleFunc("/api/notifications/all-stores-summary", applyAPI(r.notifications.AllStoresSummary))

	// Rate limit status
	mux.HandleFunc("/api/rate-limit/status", corsMiddleware(r.rateLimit.Status))

	return mux
}

// handlePromosRoute обрабатывает коллекцию акций
func handlePromosRoute(handler *handlers.PromoHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handler.ListPromos(w, r)
		case http.MethodPost:
			handler.CreatePromo(w, r)
		default:
			writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

// handlePromoRoute обрабатывает отдельную акцию и её действия
func handlePromoRoute(handler *handlers.PromoHandler, reserveLimit func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	reserve := reserveLimit(handler.Reserve)
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/reserve"):
			reserve(w, r)
		case strings.HasSuffix(r.URL.Path, "/dispatch"):
			handler.Dispatch(w, r)
		case strings.HasSuffix(r.URL.Path, "/active"):
			handler.SetActive(w, r)
		default:
			switch r.Method {
			case http.MethodGet:
				handler.GetPromo(w, r)
			case http.MethodPut:
				handler.UpdatePromo(w, r)
			default:
				writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
		}
	}
}

// handleReservationRoute обрабатывает резерв и его выкуп
func handleReservationRoute(handler *handlers.ReservationHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/complete") {
			handler.Complete(w, r)
			return
		}
		handler.GetReservation(w, r)
	}
}

// corsMiddleware и другие helper функции
func corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID, X-User-Role, X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// requestIDMiddleware пробрасывает X-Request-ID или выдаёт новый.
func requestIDMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
			r.Header.Set("X-Request-ID", id)
		}
		w.Header().Set("X-Request-ID", id)
		next(w, r)
	}
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	type errorResponse struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}

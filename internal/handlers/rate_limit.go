package handlers

import (
	"net/http"
	"strconv"
	"time"

	"flash-promo-service/internal/config"
	"flash-promo-service/internal/logger"
	"flash-promo-service/internal/services"
)

// Области лимитирования: общий API и отдельное окно для резервирования
const (
	RateScopeAPI     = "api"
	RateScopeReserve = "reserve"
)

// RateLimitHandler отвечает за статус лимита.
type RateLimitHandler struct {
	limiter RateLimiter
	log     *logger.Logger
	cfg     *config.RateLimitConfig
}

// NewRateLimitHandler создает новый RateLimitHandler.
func NewRateLimitHandler(limiter RateLimiter, log *logger.Logger, cfg *config.RateLimitConfig) *RateLimitHandler {
	return &RateLimitHandler{
		limiter: limiter,
		log:     log,
		cfg:     cfg,
	}
}

// Status возвращает текущие значения лимита клиента по каждой области.
func (h *RateLimitHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if h.limiter == nil || !h.limiter.Enabled() || h.cfg == nil {
		writeJSONResponse(w, http.StatusOK, map[string]interface{}{"enabled": false})
		return
	}

	key := services.ClientKey(r)
	scopes := make(map[string]interface{}, 2)
	for _, scope := range []string{RateScopeAPI, RateScopeReserve} {
		d, err := h.limiter.Usage(r.Context(), scope, key)
		if err != nil {
			h.log.WithError(err).Error("Failed to fetch rate limit usage")
			writeErrorResponse(w, http.StatusInternalServerError, "Failed to fetch rate limit usage")
			return
		}
		entry := map[string]interface{}{
			"used":      d.Used,
			"remaining": d.Remaining,
		}
		if !d.ResetAt.IsZero() {
			entry["reset_at"] = d.ResetAt.Format(time.RFC3339)
		}
		scopes[scope] = entry
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"enabled":        true,
		"limit":          h.cfg.Requests,
		"window_seconds": h.cfg.WindowSeconds,
		"key":            key,
		"scopes":         scopes,
	})
}

// RateLimitMiddleware применяет лимит области scope к хендлеру.
func RateLimitMiddleware(limiter RateLimiter, scope string, log *logger.Logger, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if limiter == nil || !limiter.Enabled() {
			next(w, r)
			return
		}

		d, err := limiter.Allow(r.Context(), scope, services.ClientKey(r))
		if err != nil {
			log.WithError(err).WithField("scope", scope).Error("Rate limiter failed")
			writeErrorResponse(w, http.StatusInternalServerError, "Rate limiter error")
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
		if !d.ResetAt.IsZero() {
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
		}

		if !d.Allowed {
			if !d.ResetAt.IsZero() {
				w.Header().Set("Retry-After", strconv.Itoa(int(time.Until(d.ResetAt).Seconds())+1))
			}
			writeErrorResponse(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}

		next(w, r)
	}
}

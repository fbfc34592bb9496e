package handlers

import (
	"context"
	"net/http"
	"time"

	"flash-promo-service/internal/config"
	"flash-promo-service/internal/logger"
)

// NotificationHandler отдаёт журнал и статистику уведомлений.
type NotificationHandler struct {
	stats NotificationStats
	log   *logger.Logger
	cfg   *config.StatsConfig
}

// NewNotificationHandler создаёт обработчик уведомлений.
func NewNotificationHandler(stats NotificationStats, log *logger.Logger, cfg *config.StatsConfig) *NotificationHandler {
	return &NotificationHandler{stats: stats, log: log, cfg: cfg}
}

// ListNotifications возвращает журнал уведомлений магазина вызывающего.
func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	limit, offset := parsePagination(r)
	logs, err := h.stats.ListNotifications(r.Context(), caller.UserID, limit, offset)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list notifications")
		return
	}
	writeJSONResponse(w, http.StatusOK, logs)
}

// StoreStats возвращает статистику уведомлений магазина вызывающего.
func (h *NotificationHandler) StoreStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	days, err := parseDays(r)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), statsTimeout(h.cfg))
	defer cancel()

	stats, err := h.stats.StoreStats(ctx, caller.UserID, days)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to load store stats")
		return
	}
	writeJSONResponse(w, http.StatusOK, stats)
}

// AllStoresSummary возвращает сводку по всем магазинам (только персонал).
func (h *NotificationHandler) AllStoresSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	days, err := parseDays(r)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), statsTimeout(h.cfg))
	defer cancel()

	summary, err := h.stats.AllStoresSummary(ctx, caller.IsStaff(), days)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to load stores summary")
		return
	}
	writeJSONResponse(w, http.StatusOK, summary)
}

func statsTimeout(cfg *config.StatsConfig) time.Duration {
	if cfg != nil && cfg.RequestTimeoutSeconds > 0 {
		return time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	}
	return 5 * time.Second
}

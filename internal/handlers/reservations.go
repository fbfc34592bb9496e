package handlers

import (
	"net/http"

	"flash-promo-service/internal/logger"
)

const reservationsPathPrefix = "/api/reservations/"

// ReservationHandler обрабатывает резервы товаров.
type ReservationHandler struct {
	service ReservationService
	log     *logger.Logger
}

// NewReservationHandler создаёт обработчик резервов.
func NewReservationHandler(service ReservationService, log *logger.Logger) *ReservationHandler {
	return &ReservationHandler{service: service, log: log}
}

// GetReservation возвращает резерв вызывающего пользователя.
func (h *ReservationHandler) GetReservation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	id, err := extractIDFromPath(r.URL.Path, reservationsPathPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	reservation, err := h.service.GetReservation(r.Context(), id, caller.UserID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get reservation")
		return
	}
	writeJSONResponse(w, http.StatusOK, reservation)
}

// Complete выкупает резерв.
func (h *ReservationHandler) Complete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	id, err := extractIDFromPath(r.URL.Path, reservationsPathPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	reservation, err := h.service.Complete(r.Context(), id, caller.UserID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to complete reservation")
		return
	}
	writeJSONResponse(w, http.StatusOK, reservation)
}

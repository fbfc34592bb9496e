package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"flash-promo-service/internal/clock"
	"flash-promo-service/internal/logger"
	"flash-promo-service/internal/models"

	"github.com/shopspring/decimal"
)

const promosPathPrefix = "/api/promos/"

// PromoHandler обрабатывает флеш-акции: CRUD, рассылку и резервирование.
type PromoHandler struct {
	promos       PromoService
	reservations ReservationService
	dispatcher   Dispatcher
	requests     DispatchRequester
	clock        clock.Clock
	log          *logger.Logger
}

// NewPromoHandler создаёт обработчик акций. requests может быть nil: тогда асинхронная рассылка недоступна.
func NewPromoHandler(promos PromoService, reservations ReservationService, dispatcher Dispatcher, requests DispatchRequester, clk clock.Clock, log *logger.Logger) *PromoHandler {
	return &PromoHandler{
		promos:       promos,
		reservations: reservations,
		dispatcher:   dispatcher,
		requests:     requests,
		clock:        clk,
		log:          log,
	}
}

// promoResponse дополняет акцию вычисляемыми полями.
type promoResponse struct {
	*models.FlashPromo
	DiscountAmount    *decimal.Decimal `json:"discount_amount,omitempty"`
	DiscountPercent   *decimal.Decimal `json:"discount_percent,omitempty"`
	EffectivelyActive bool             `json:"effectively_active"`
}

func (h *PromoHandler) toResponse(p *models.FlashPromo) promoResponse {
	resp := promoResponse{FlashPromo: p, EffectivelyActive: p.IsEffectivelyActive(h.clock.Now())}
	if p.Product != nil {
		amount, percent := p.Discount(p.Product.OriginalPrice)
		resp.DiscountAmount = &amount
		resp.DiscountPercent = &percent
	}
	return resp
}

// ListPromos возвращает акции. ?active=true оставляет только действующие сейчас.
func (h *PromoHandler) ListPromos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if _, ok := requireCaller(w, r); !ok {
		return
	}

	limit, offset := parsePagination(r)
	activeOnly := strings.EqualFold(r.URL.Query().Get("active"), "true")

	promos, err := h.promos.ListPromos(r.Context(), activeOnly, limit, offset)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list promos")
		return
	}

	resp := make([]promoResponse, 0, len(promos))
	for _, p := range promos {
		resp = append(resp, h.toResponse(p))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

// CreatePromo создаёт акцию. Только для персонала.
func (h *PromoHandler) CreatePromo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if _, ok := requireStaff(w, r); !ok {
		return
	}

	var req models.CreateFlashPromoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ProductID <= 0 {
		writeErrorResponse(w, http.StatusBadRequest, "product_id is required")
		return
	}

	promo, err := h.promos.CreatePromo(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create promo")
		return
	}
	writeJSONResponse(w, http.StatusCreated, h.toResponse(promo))
}

// GetPromo возвращает акцию по ID.
func (h *PromoHandler) GetPromo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if _, ok := requireCaller(w, r); !ok {
		return
	}

	id, err := extractIDFromPath(r.URL.Path, promosPathPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	promo, err := h.promos.GetPromo(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get promo")
		return
	}
	writeJSONResponse(w, http.StatusOK, h.toResponse(promo))
}

// UpdatePromo обновляет акцию. Только для персонала.
func (h *PromoHandler) UpdatePromo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if _, ok := requireStaff(w, r); !ok {
		return
	}

	id, err := extractIDFromPath(r.URL.Path, promosPathPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	var req models.UpdateFlashPromoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	promo, err := h.promos.UpdatePromo(r.Context(), id, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update promo")
		return
	}
	writeJSONResponse(w, http.StatusOK, h.toResponse(promo))
}

// SetActive вручную включает или выключает акцию. Только для персонала.
func (h *PromoHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if _, ok := requireStaff(w, r); !ok {
		return
	}

	id, err := extractIDFromPath(r.URL.Path, promosPathPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	var req models.SetPromoActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	promo, err := h.promos.SetPromoActive(r.Context(), id, req.IsActive)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to toggle promo")
		return
	}
	writeJSONResponse(w, http.StatusOK, h.toResponse(promo))
}

// Dispatch запускает рассылку по акции. ?async=true ставит её в очередь событий.
func (h *PromoHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if _, ok := requireStaff(w, r); !ok {
		return
	}

	id, err := extractIDFromPath(r.URL.Path, promosPathPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	if strings.EqualFold(r.URL.Query().Get("async"), "true") {
		if h.requests == nil {
			writeErrorResponse(w, http.StatusServiceUnavailable, "Asynchronous dispatch is not configured")
			return
		}
		if err := h.requests.PublishDispatchRequested(id); err != nil {
			h.log.WithError(err).WithField("promo_id", id).Error("Failed to enqueue dispatch")
			writeErrorResponse(w, http.StatusInternalServerError, "Failed to enqueue dispatch")
			return
		}
		writeJSONResponse(w, http.StatusAccepted, map[string]interface{}{"promo_id": id, "status": "queued"})
		return
	}

	result, err := h.dispatcher.DispatchForPromo(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to dispatch promo")
		return
	}
	writeJSONResponse(w, http.StatusOK, result)
}

// Reserve резервирует товар акции за вызывающим пользователем.
func (h *PromoHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	id, err := extractIDFromPath(r.URL.Path, promosPathPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	reservation, err := h.reservations.Reserve(r.Context(), id, caller.UserID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to reserve product")
		return
	}
	writeJSONResponse(w, http.StatusCreated, reservation)
}

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"pointspay/internal/model"
	"pointspay/internal/service"
)

// webhookBodyLimit bounds the raw payload read; gateway events are small.
const webhookBodyLimit = 1 << 20

type Handler struct {
	svc service.PointsService
}

func NewHandler(svc service.PointsService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("POST /checkout", h.Checkout)
	mux.HandleFunc("POST /webhook", h.Webhook)
	mux.HandleFunc("GET /balance", h.Balance)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req model.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	res, err := h.svc.CreateCheckout(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"url": res.URL, "transaction_id": res.TransactionID})
}

// Webhook reads the body raw and unparsed: signature verification must run
// over the exact bytes the gateway signed.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, webhookBodyLimit)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_body")
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		h.respondError(w, http.StatusBadRequest, "missing_signature")
		return
	}

	if err := h.svc.HandleNotification(r.Context(), payload, signature); err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		h.respondError(w, http.StatusBadRequest, "missing_params")
		return
	}

	balance, err := h.svc.GetBalance(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrValidation):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrAuthentication):
		h.respondError(w, http.StatusBadRequest, "invalid_signature")
	case errors.Is(err, model.ErrGateway):
		h.respondError(w, http.StatusBadGateway, "gateway_error")
	default:
		h.respondError(w, http.StatusInternalServerError, "internal_error")
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/honeynil/GymLedgerService/internal/infrastructure/observability"
	"github.com/honeynil/GymLedgerService/internal/models"
	"github.com/shopspring/decimal"
)

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	telegramID, err := pathInt(r, "telegram_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	order, err := h.payments.CreateOrder(r.Context(), telegramID, req.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	telegramID, err := pathInt(r, "telegram_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	orders, err := h.payments.ListOrders(r.Context(), telegramID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) InitPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderNumber int64 `json:"order_number"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	session, err := h.payments.InitPayment(r.Context(), req.OrderNumber)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// PaymentNotification always answers 200 OK: any other answer makes the
// provider re-deliver the notification.
func (h *Handler) PaymentNotification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderNumber json.Number `json:"order_number"`
		OrderID     json.Number `json:"OrderId"`
		Status      string      `json:"status"`
	}
	logger := observability.Logger(r.Context())

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("undecodable payment notification", "error", err)
		writeOK(w)
		return
	}

	raw := req.OrderNumber
	if raw == "" {
		raw = req.OrderID
	}
	number, err := strconv.ParseInt(raw.String(), 10, 64)
	if err != nil {
		logger.Warn("payment notification without order number", "order_id", raw.String())
		writeOK(w)
		return
	}

	n := models.PaymentNotification{OrderNumber: number, Status: req.Status}
	if err := h.payments.HandleNotification(r.Context(), n); err != nil {
		logger.Error("payment notification not applied",
			"order_number", number,
			"status", req.Status,
			"error", err)
	}
	writeOK(w)
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

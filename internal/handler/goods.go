package handler

import (
	"net/http"

	"github.com/honeynil/GymLedgerService/internal/models"
	service "github.com/honeynil/GymLedgerService/internal/services"
)

func (h *Handler) ListGoods(w http.ResponseWriter, r *http.Request) {
	goods, err := h.goods.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if goods == nil {
		goods = []models.Good{}
	}
	writeJSON(w, http.StatusOK, goods)
}

func (h *Handler) CreateGood(w http.ResponseWriter, r *http.Request) {
	var good models.Good
	if err := decode(r, &good); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.goods.Create(r.Context(), &good); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, good)
}

func (h *Handler) UpdateGood(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var upd models.GoodUpdate
	if err := decode(r, &upd); err != nil {
		h.writeError(w, r, err)
		return
	}
	good, err := h.goods.Update(r.Context(), id, upd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, good)
}

func (h *Handler) DeleteGood(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.goods.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) BuyGoods(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TelegramID int64  `json:"telegram_id"`
		GoodsID    int64  `json:"goods_id"`
		Quantity   int    `json:"quantity"`
		RequestID  string `json:"request_id"`
		UUID       string `json:"uuid"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.RequestID == "" {
		req.RequestID = req.UUID
	}

	purchase, err := h.goods.Buy(r.Context(), service.BuyRequest{
		TelegramID: req.TelegramID,
		GoodsID:    req.GoodsID,
		Quantity:   req.Quantity,
		RequestID:  req.RequestID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, purchase)
}

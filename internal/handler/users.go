package handler

import (
	"net/http"
	"strconv"

	"github.com/honeynil/GymLedgerService/internal/models"
	"github.com/shopspring/decimal"
)

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var user models.User
	if err := decode(r, &user); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.users.Register(r.Context(), &user); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	id, err := queryInt(r, "user_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	telegramID, err := queryInt(r, "telegram_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	users, err := h.users.List(r.Context(), models.UserFilter{ID: id, TelegramID: telegramID})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	telegramID, err := pathInt(r, "telegram_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var upd models.UserUpdate
	if err := decode(r, &upd); err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.users.Update(r.Context(), telegramID, upd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.users.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListBalances(w http.ResponseWriter, r *http.Request) {
	telegramID, err := queryInt(r, "telegram_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	negative, _ := strconv.ParseBool(r.URL.Query().Get("negative"))

	balances, err := h.balance.ListBalances(r.Context(), models.BalanceFilter{
		NegativeOnly: negative,
		TelegramID:   telegramID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if balances == nil {
		balances = []models.Balance{}
	}
	writeJSON(w, http.StatusOK, balances)
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	telegramID, err := pathInt(r, "telegram_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	balance, err := h.balance.GetBalance(r.Context(), telegramID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

type amountRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	NegativeAllowed bool            `json:"negative_allowed"`
}

func (h *Handler) TopUp(w http.ResponseWriter, r *http.Request) {
	telegramID, err := pathInt(r, "telegram_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req amountRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	balance, err := h.balance.TopUp(r.Context(), telegramID, req.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, balance)
}

func (h *Handler) ChargeOff(w http.ResponseWriter, r *http.Request) {
	telegramID, err := pathInt(r, "telegram_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req amountRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	balance, err := h.balance.ChargeOff(r.Context(), telegramID, req.Amount, req.NegativeAllowed)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, balance)
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	telegramID, err := pathInt(r, "telegram_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	entries, err := h.balance.ListTransactions(r.Context(), telegramID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []models.Transaction{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	telegramID, err := pathInt(r, "telegram_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	purchases, err := h.goods.ListPurchases(r.Context(), telegramID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if purchases == nil {
		purchases = []models.Purchase{}
	}
	writeJSON(w, http.StatusOK, purchases)
}

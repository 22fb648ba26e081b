package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/honeynil/GymLedgerService/internal/models"
	service "github.com/honeynil/GymLedgerService/internal/services"
	pkgerrors "github.com/honeynil/GymLedgerService/pkg/errors"
)

func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.subscriptions.ListPlans(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if plans == nil {
		plans = []models.SubscriptionPlan{}
	}
	writeJSON(w, http.StatusOK, plans)
}

func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var plan models.SubscriptionPlan
	if err := decode(r, &plan); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.subscriptions.CreatePlan(r.Context(), &plan); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

func (h *Handler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var upd models.PlanUpdate
	if err := decode(r, &upd); err != nil {
		h.writeError(w, r, err)
		return
	}
	plan, err := h.subscriptions.UpdatePlan(r.Context(), id, upd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (h *Handler) DeletePlan(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.subscriptions.DeletePlan(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) BuySubscription(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TelegramID      int64      `json:"telegram_id"`
		SubscriptionID  int64      `json:"subscription_id"`
		NegativeAllowed bool       `json:"negative_allowed"`
		StartDate       *time.Time `json:"start_date"`
		RequestID       string     `json:"request_id"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.subscriptions.Activate(r.Context(), service.ActivationRequest{
		TelegramID:      req.TelegramID,
		SubscriptionID:  req.SubscriptionID,
		NegativeAllowed: req.NegativeAllowed,
		StartDate:       req.StartDate,
		RequestID:       req.RequestID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) ListUserSubscriptions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseSubscriptionFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	subs, err := h.subscriptions.ListUserSubscriptions(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if subs == nil {
		subs = []models.UserSubscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

func (h *Handler) CheckSubscription(w http.ResponseWriter, r *http.Request) {
	telegramID, err := pathInt(r, "telegram_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	has, err := h.subscriptions.HasCurrent(r.Context(), telegramID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"status": has})
}

func (h *Handler) UpdateSubscriptionStatus(w http.ResponseWriter, r *http.Request) {
	telegramID, err := pathInt(r, "telegram_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req struct {
		SubscriptionID int64                     `json:"subscription_id"`
		Status         models.SubscriptionStatus `json:"status"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	sub, err := h.subscriptions.UpdateStatus(r.Context(), telegramID, req.SubscriptionID, req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// parseSubscriptionFilter accepts repeated or comma separated subscription_id
// and status values; finish_from/finish_to are RFC 3339 or plain dates.
func parseSubscriptionFilter(r *http.Request) (models.UserSubscriptionFilter, error) {
	q := r.URL.Query()
	var filter models.UserSubscriptionFilter

	for _, raw := range splitValues(q["subscription_id"]) {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, fmt.Errorf("%w: subscription_id must be an integer", pkgerrors.ErrInvalidInput)
		}
		filter.SubscriptionIDs = append(filter.SubscriptionIDs, id)
	}
	for _, raw := range splitValues(q["status"]) {
		filter.Statuses = append(filter.Statuses, models.SubscriptionStatus(strings.ToUpper(raw)))
	}

	var err error
	if filter.FinishFrom, err = queryTime(q.Get("finish_from")); err != nil {
		return filter, err
	}
	if filter.FinishTo, err = queryTime(q.Get("finish_to")); err != nil {
		return filter, err
	}
	if filter.TelegramID, err = queryInt(r, "telegram_id"); err != nil {
		return filter, err
	}
	return filter, nil
}

func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func queryTime(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: invalid date %q", pkgerrors.ErrInvalidInput, raw)
}

package handler

import (
	"net/http"

	"github.com/honeynil/GymLedgerService/internal/models"
)

func (h *Handler) ListTrainers(w http.ResponseWriter, r *http.Request) {
	trainers, err := h.trainers.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if trainers == nil {
		trainers = []models.Trainer{}
	}
	writeJSON(w, http.StatusOK, trainers)
}

func (h *Handler) CreateTrainer(w http.ResponseWriter, r *http.Request) {
	var trainer models.Trainer
	if err := decode(r, &trainer); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.trainers.Create(r.Context(), &trainer); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, trainer)
}

func (h *Handler) UpdateTrainer(w http.ResponseWriter, r *http.Request) {
	userID, err := pathInt(r, "user_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var upd models.TrainerUpdate
	if err := decode(r, &upd); err != nil {
		h.writeError(w, r, err)
		return
	}
	trainer, err := h.trainers.Update(r.Context(), userID, upd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trainer)
}

func (h *Handler) DeleteTrainer(w http.ResponseWriter, r *http.Request) {
	userID, err := pathInt(r, "user_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.trainers.Delete(r.Context(), userID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListUserTrainers(w http.ResponseWriter, r *http.Request) {
	telegramID, err := pathInt(r, "telegram_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	links, err := h.trainers.ListForUser(r.Context(), telegramID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if links == nil {
		links = []models.UserTrainer{}
	}
	writeJSON(w, http.StatusOK, links)
}

func (h *Handler) AssignTrainer(w http.ResponseWriter, r *http.Request) {
	telegramID, err := pathInt(r, "telegram_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req struct {
		TrainerID int64 `json:"trainers_id"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	link, err := h.trainers.Assign(r.Context(), telegramID, req.TrainerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, link)
}

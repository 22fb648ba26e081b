package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/honeynil/GymLedgerService/internal/models"
	pkgerrors "github.com/honeynil/GymLedgerService/pkg/errors"
)

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.calendar.ListEvents(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if events == nil {
		events = []models.CalendarEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var event models.CalendarEvent
	if err := decode(r, &event); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.calendar.CreateEvent(r.Context(), &event); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "event_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var event models.CalendarEvent
	if err := decode(r, &event); err != nil {
		h.writeError(w, r, err)
		return
	}
	event.ID = id
	if err := h.calendar.UpdateEvent(r.Context(), &event); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "event_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.calendar.DeleteEvent(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RollPeriodic(w http.ResponseWriter, r *http.Request) {
	rollover, err := h.calendar.RollPeriodic(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rollover)
}

// ListActions serves both /calendar/actions and /calendar/actions/{day}.
func (h *Handler) ListActions(w http.ResponseWriter, r *http.Request) {
	actions, err := h.calendar.ListActions(r.Context(), mux.Vars(r)["day"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if actions == nil {
		actions = []models.CalendarAction{}
	}
	writeJSON(w, http.StatusOK, actions)
}

func (h *Handler) CreateAction(w http.ResponseWriter, r *http.Request) {
	var action models.CalendarAction
	if err := decode(r, &action); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.calendar.CreateAction(r.Context(), &action); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, action)
}

func (h *Handler) SetPeriodic(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "action_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	periodic, err := strconv.ParseBool(mux.Vars(r)["value"])
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: value must be true or false", pkgerrors.ErrInvalidInput))
		return
	}
	action, err := h.calendar.SetPeriodic(r.Context(), id, periodic)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, action)
}

func (h *Handler) DeleteAction(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "action_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.calendar.DeleteAction(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListActionRecords(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "action_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	records, err := h.calendar.ListRecordsByAction(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if records == nil {
		records = []models.CalendarRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) ListUserRecords(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "user_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	records, err := h.calendar.ListRecordsByUser(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if records == nil {
		records = []models.CalendarRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func recordIDs(r *http.Request) (actionID, userID int64, err error) {
	if actionID, err = pathInt(r, "action_id"); err != nil {
		return 0, 0, err
	}
	if userID, err = pathInt(r, "user_id"); err != nil {
		return 0, 0, err
	}
	return actionID, userID, nil
}

func (h *Handler) BookRecord(w http.ResponseWriter, r *http.Request) {
	actionID, userID, err := recordIDs(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	booking, err := h.calendar.Book(r.Context(), actionID, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (h *Handler) CancelRecord(w http.ResponseWriter, r *http.Request) {
	actionID, userID, err := recordIDs(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	booking, err := h.calendar.Cancel(r.Context(), actionID, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

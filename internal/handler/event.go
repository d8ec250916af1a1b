package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/tempo/internal/model"
	"github.com/dukerupert/tempo/internal/schedule"
	ws "github.com/dukerupert/tempo/internal/websocket"
)

// EventHandler serves event CRUD plus task and habit scheduling.
type EventHandler struct {
	svc    *schedule.Service
	loc    *time.Location
	pub    publisher
	logger *slog.Logger
	now    func() time.Time
}

func NewEventHandler(svc *schedule.Service, hub *ws.Hub, loc *time.Location, logger *slog.Logger) *EventHandler {
	return &EventHandler{svc: svc, loc: loc, pub: publisher{hub: hub}, logger: logger, now: time.Now}
}

func (h *EventHandler) ScheduleTask(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	var task model.Task
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	existed, err := h.svc.Scheduled(r.Context(), userID, model.EntityTask, task.ID)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to look up task event")
		return
	}

	event, err := h.svc.ScheduleTask(r.Context(), userID, task)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to schedule task")
		return
	}
	if event == nil {
		if existed {
			h.pub.publish(userID, ws.EntityTimeEvent, ws.ActionDeleted, "", map[string]string{
				"entity_type": string(model.EntityTask),
				"entity_id":   task.ID,
			})
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.pub.publish(userID, ws.EntityTimeEvent, scheduleAction(existed), event.ID, event)
	writeJSON(w, http.StatusOK, event)
}

func (h *EventHandler) ScheduleHabit(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	var habit model.Habit
	if err := json.NewDecoder(r.Body).Decode(&habit); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	existed, err := h.svc.Scheduled(r.Context(), userID, model.EntityHabit, habit.ID)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to look up habit event")
		return
	}

	event, err := h.svc.ScheduleHabit(r.Context(), userID, habit)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to schedule habit")
		return
	}

	h.pub.publish(userID, ws.EntityTimeEvent, scheduleAction(existed), event.ID, event)
	writeJSON(w, http.StatusOK, event)
}

func (h *EventHandler) Unschedule(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	entityType := model.EntityType(r.PathValue("entity_type"))
	entityID := r.PathValue("entity_id")
	if !entityType.Valid() {
		writeError(w, http.StatusBadRequest, "unknown entity type")
		return
	}

	if err := h.svc.Unschedule(r.Context(), userID, entityType, entityID); err != nil {
		writeServiceError(w, h.logger, err, "failed to unschedule")
		return
	}

	h.pub.publish(userID, ws.EntityTimeEvent, ws.ActionDeleted, "", map[string]string{
		"entity_type": string(entityType),
		"entity_id":   entityID,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	var e model.TimeEvent
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	e.UserID = userID
	e.Title = strings.TrimSpace(e.Title)
	if e.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	created, err := h.svc.CreateEvent(r.Context(), e)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to create event")
		return
	}

	h.pub.publish(userID, ws.EntityTimeEvent, ws.ActionCreated, created.ID, created)
	writeJSON(w, http.StatusCreated, created)
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	var rng *model.DateRange
	if r.URL.Query().Has("start") || r.URL.Query().Has("end") {
		parsed, msg := parseRange(r, h.loc)
		if msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
		rng = &parsed
	}

	events, err := h.svc.Events(r.Context(), userID, rng)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to list events")
		return
	}
	if events == nil {
		events = []model.TimeEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	event, err := h.svc.Event(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to get event")
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch model.EventPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	event, err := h.svc.UpdateEvent(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to update event")
		return
	}

	h.pub.publish(event.UserID, ws.EntityTimeEvent, ws.ActionUpdated, event.ID, event)
	writeJSON(w, http.StatusOK, event)
}

func (h *EventHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status model.EventStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	event, err := h.svc.UpdateStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to update status")
		return
	}

	h.pub.publish(event.UserID, ws.EntityTimeEvent, ws.ActionUpdated, event.ID, event)
	writeJSON(w, http.StatusOK, event)
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	event, err := h.svc.Event(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to delete event")
		return
	}
	if err := h.svc.DeleteEvent(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, err, "failed to delete event")
		return
	}

	h.pub.publish(event.UserID, ws.EntityTimeEvent, ws.ActionDeleted, id, nil)
	w.WriteHeader(http.StatusNoContent)
}

// Next returns the first occurrence strictly after ?after (default now).
func (h *EventHandler) Next(w http.ResponseWriter, r *http.Request) {
	after := h.now()
	if s := r.URL.Query().Get("after"); s != "" {
		t, _, err := parseFlexibleTime(s, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "after must be RFC3339 or YYYY-MM-DD format")
			return
		}
		after = t
	}

	next, err := h.svc.NextOccurrence(r.Context(), r.PathValue("id"), after)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to compute next occurrence")
		return
	}
	writeJSON(w, http.StatusOK, map[string]*time.Time{"next": next})
}

// ToggleCompletion flips the habit's completion for ?date.
func (h *EventHandler) ToggleCompletion(w http.ResponseWriter, r *http.Request) {
	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		writeError(w, http.StatusBadRequest, "date query parameter is required")
		return
	}
	day, _, err := parseFlexibleTime(dateStr, h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be RFC3339 or YYYY-MM-DD format")
		return
	}

	occ, err := h.svc.ToggleHabitCompletion(r.Context(), r.PathValue("id"), day)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to toggle completion")
		return
	}

	h.pub.publish(occ.UserID, ws.EntityTimeOccurrence, ws.ActionUpdated, occ.ID, occ)
	writeJSON(w, http.StatusOK, occ)
}

// scheduleAction is the change-feed action for a schedule call: the first
// schedule of an entity creates its event, later ones update it.
func scheduleAction(existed bool) string {
	if existed {
		return ws.ActionUpdated
	}
	return ws.ActionCreated
}

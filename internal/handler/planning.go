package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/tempo/internal/model"
	"github.com/dukerupert/tempo/internal/schedule"
)

const defaultMinSlot = 15

// PlanningHandler answers read-only questions about a user's time.
type PlanningHandler struct {
	svc    *schedule.Service
	loc    *time.Location
	logger *slog.Logger
}

func NewPlanningHandler(svc *schedule.Service, loc *time.Location, logger *slog.Logger) *PlanningHandler {
	return &PlanningHandler{svc: svc, loc: loc, logger: logger}
}

func (h *PlanningHandler) Occurrences(w http.ResponseWriter, r *http.Request) {
	rng, msg := parseRange(r, h.loc)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	occs, err := h.svc.Occurrences(r.Context(), r.PathValue("user_id"), rng)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to list occurrences")
		return
	}
	if occs == nil {
		occs = []model.TimeOccurrence{}
	}
	writeJSON(w, http.StatusOK, occs)
}

type conflictResponse struct {
	HasConflict bool                   `json:"has_conflict"`
	Conflicts   []model.ConflictResult `json:"conflicts"`
}

// Conflicts checks a candidate event against the user's schedule.
func (h *PlanningHandler) Conflicts(w http.ResponseWriter, r *http.Request) {
	var candidate model.TimeEvent
	if err := json.NewDecoder(r.Body).Decode(&candidate); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	candidate.UserID = r.PathValue("user_id")

	conflicts, err := h.svc.CheckPlacement(r.Context(), candidate.UserID, candidate)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to check conflicts")
		return
	}
	if conflicts == nil {
		conflicts = []model.ConflictResult{}
	}
	writeJSON(w, http.StatusOK, conflictResponse{HasConflict: len(conflicts) > 0, Conflicts: conflicts})
}

func (h *PlanningHandler) FreeSlots(w http.ResponseWriter, r *http.Request) {
	rng, msg := parseRange(r, h.loc)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	minMinutes := defaultMinSlot
	if s := r.URL.Query().Get("min"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "min must be a positive number of minutes")
			return
		}
		minMinutes = n
	}

	slots, err := h.svc.FreeSlots(r.Context(), r.PathValue("user_id"), rng, minMinutes)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to find free slots")
		return
	}
	if slots == nil {
		slots = []model.TimeSlot{}
	}
	writeJSON(w, http.StatusOK, slots)
}

type busyResponse struct {
	BusyMinutes int `json:"busy_minutes"`
	FreeMinutes int `json:"free_minutes"`
}

func (h *PlanningHandler) Busy(w http.ResponseWriter, r *http.Request) {
	rng, msg := parseRange(r, h.loc)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	busy, free, err := h.svc.BusyTime(r.Context(), r.PathValue("user_id"), rng)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to total busy time")
		return
	}
	writeJSON(w, http.StatusOK, busyResponse{BusyMinutes: busy, FreeMinutes: free})
}

// Breaks plans recovery breaks for ?date.
func (h *PlanningHandler) Breaks(w http.ResponseWriter, r *http.Request) {
	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		writeError(w, http.StatusBadRequest, "date query parameter is required")
		return
	}
	h.planBreaks(w, r, dateStr, nil)
}

type planBreaksRequest struct {
	Date  string       `json:"date"`
	Tasks []model.Task `json:"tasks"`
}

// PlanBreaks plans recovery breaks for the body's date, rating importance
// from the task list the caller sends along.
func (h *PlanningHandler) PlanBreaks(w http.ResponseWriter, r *http.Request) {
	var req planBreaksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Date == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	tasks := req.Tasks
	if tasks == nil {
		tasks = []model.Task{}
	}
	h.planBreaks(w, r, req.Date, tasks)
}

func (h *PlanningHandler) planBreaks(w http.ResponseWriter, r *http.Request, dateStr string, tasks []model.Task) {
	day, _, err := parseFlexibleTime(dateStr, h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be RFC3339 or YYYY-MM-DD format")
		return
	}

	breaks, err := h.svc.PlanBreaks(r.Context(), r.PathValue("user_id"), day, tasks)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to plan breaks")
		return
	}
	if breaks == nil {
		breaks = []model.PlannedBreak{}
	}
	writeJSON(w, http.StatusOK, breaks)
}

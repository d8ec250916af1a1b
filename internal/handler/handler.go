package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/tempo/internal/datecalc"
	"github.com/dukerupert/tempo/internal/model"
	"github.com/dukerupert/tempo/internal/normalize"
	"github.com/dukerupert/tempo/internal/schedule"
	ws "github.com/dukerupert/tempo/internal/websocket"
)

const dateLayout = "2006-01-02"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps scheduling errors onto HTTP statuses. Anything
// unrecognised is logged and reported as a 500 with the fallback message.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, schedule.ErrNotFound):
		writeError(w, http.StatusNotFound, "event not found")
	case errors.Is(err, schedule.ErrNotHabit),
		errors.Is(err, schedule.ErrNotDue),
		errors.Is(err, model.ErrInvalidEvent),
		errors.Is(err, model.ErrInvalidRecurrence),
		errors.Is(err, normalize.ErrInvalidTask),
		errors.Is(err, normalize.ErrInvalidHabit):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error(fallback, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

// parseFlexibleTime accepts RFC 3339 or a bare YYYY-MM-DD date, which is
// read as midnight in loc. The bool reports whether s was date-only.
func parseFlexibleTime(s string, loc *time.Location) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, false, nil
	}
	t, err := time.ParseInLocation(dateLayout, s, loc)
	return t, true, err
}

// parseRange reads the start and end query parameters. A date-only end
// covers that whole day.
func parseRange(r *http.Request, loc *time.Location) (model.DateRange, string) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")
	if startStr == "" || endStr == "" {
		return model.DateRange{}, "start and end query parameters are required"
	}

	start, _, err := parseFlexibleTime(startStr, loc)
	if err != nil {
		return model.DateRange{}, "start must be RFC3339 or YYYY-MM-DD format"
	}
	end, dateOnly, err := parseFlexibleTime(endStr, loc)
	if err != nil {
		return model.DateRange{}, "end must be RFC3339 or YYYY-MM-DD format"
	}
	if dateOnly {
		end = datecalc.DayBounds(end).End
	}
	if end.Before(start) {
		return model.DateRange{}, "end must not be before start"
	}
	return model.DateRange{Start: start, End: end}, ""
}

// publisher fans change notifications out to the owner's websocket clients.
type publisher struct {
	hub *ws.Hub
}

func (p publisher) publish(userID, entity, action, id string, data any) {
	if p.hub == nil || userID == "" {
		return
	}
	p.hub.Publish(ws.NewMessage(userID, entity, action, id, data))
}

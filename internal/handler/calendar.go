package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/tempo/internal/ical"
	"github.com/dukerupert/tempo/internal/model"
	"github.com/dukerupert/tempo/internal/schedule"
)

// CalendarHandler exports a user's events as an iCalendar feed.
type CalendarHandler struct {
	svc    *schedule.Service
	loc    *time.Location
	logger *slog.Logger
	now    func() time.Time
}

func NewCalendarHandler(svc *schedule.Service, loc *time.Location, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{svc: svc, loc: loc, logger: logger, now: time.Now}
}

func (h *CalendarHandler) Export(w http.ResponseWriter, r *http.Request) {
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
		writeServiceError(w, h.logger, err, "failed to export calendar")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="tempo.ics"`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(ical.Export("Tempo", events, h.now())))
}

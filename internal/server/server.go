package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/tempo/internal/database"
	"github.com/dukerupert/tempo/internal/engine"
	"github.com/dukerupert/tempo/internal/handler"
	"github.com/dukerupert/tempo/internal/middleware"
	"github.com/dukerupert/tempo/internal/normalize"
	"github.com/dukerupert/tempo/internal/registry"
	"github.com/dukerupert/tempo/internal/schedule"
	ws "github.com/dukerupert/tempo/internal/websocket"
)

type Config struct {
	Policy    normalize.Policy
	RateLimit int
}

type Server struct {
	db          *database.DB
	hub         *ws.Hub
	svc         *schedule.Service
	eventH      *handler.EventHandler
	planningH   *handler.PlanningHandler
	calendarH   *handler.CalendarHandler
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(db *database.DB, cfg Config, logger *slog.Logger) *Server {
	loc := cfg.Policy.Location
	if loc == nil {
		loc = time.Local
	}

	hub := ws.NewHub(logger.With("component", "websocket"))
	reg := registry.New(db, logger)
	svc := schedule.New(reg, engine.New(loc), normalize.New(cfg.Policy), logger)

	limit := cfg.RateLimit
	if limit < 1 {
		limit = 120
	}

	return &Server{
		db:          db,
		hub:         hub,
		svc:         svc,
		eventH:      handler.NewEventHandler(svc, hub, loc, logger.With("component", "events")),
		planningH:   handler.NewPlanningHandler(svc, loc, logger.With("component", "planning")),
		calendarH:   handler.NewCalendarHandler(svc, loc, logger.With("component", "calendar")),
		rateLimiter: middleware.NewRateLimiter(limit, time.Minute),
		logger:      logger,
	}
}

// Service exposes the scheduling core for background jobs.
func (s *Server) Service() *schedule.Service {
	return s.svc
}

func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))

	mux.HandleFunc("POST /api/users/{user_id}/tasks", s.eventH.ScheduleTask)
	mux.HandleFunc("POST /api/users/{user_id}/habits", s.eventH.ScheduleHabit)
	mux.HandleFunc("DELETE /api/users/{user_id}/entities/{entity_type}/{entity_id}", s.eventH.Unschedule)
	mux.HandleFunc("POST /api/users/{user_id}/events", s.eventH.Create)
	mux.HandleFunc("GET /api/users/{user_id}/events", s.eventH.List)

	mux.HandleFunc("GET /api/events/{id}", s.eventH.Get)
	mux.HandleFunc("PATCH /api/events/{id}", s.eventH.Update)
	mux.HandleFunc("DELETE /api/events/{id}", s.eventH.Delete)
	mux.HandleFunc("PUT /api/events/{id}/status", s.eventH.UpdateStatus)
	mux.HandleFunc("GET /api/events/{id}/next", s.eventH.Next)
	mux.HandleFunc("POST /api/events/{id}/completions", s.eventH.ToggleCompletion)

	mux.HandleFunc("GET /api/users/{user_id}/occurrences", s.planningH.Occurrences)
	mux.HandleFunc("POST /api/users/{user_id}/conflicts", s.planningH.Conflicts)
	mux.HandleFunc("GET /api/users/{user_id}/free-slots", s.planningH.FreeSlots)
	mux.HandleFunc("GET /api/users/{user_id}/busy", s.planningH.Busy)
	mux.HandleFunc("GET /api/users/{user_id}/breaks", s.planningH.Breaks)
	mux.HandleFunc("POST /api/users/{user_id}/breaks", s.planningH.PlanBreaks)

	mux.HandleFunc("GET /api/users/{user_id}/calendar.ics", s.calendarH.Export)

	limited := middleware.LimitMutations(s.rateLimiter)(mux)
	return middleware.RequestLogger(s.logger.With("component", "http"))(limited)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"status":      status,
		"connections": s.hub.ClientCount(),
	})
}

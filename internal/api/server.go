package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/convoscope/internal/metrics"
	"github.com/MikeSquared-Agency/convoscope/internal/session"
	"github.com/MikeSquared-Agency/convoscope/internal/store"
)

const maxBodyBytes = 10 << 20

// History reads stored analyses. store.Repository satisfies it.
type History interface {
	Latest(ctx context.Context, conversationID string) (*store.Record, error)
	List(ctx context.Context, conversationID string, limit int) ([]store.Record, error)
}

// BusStatus reports event bus connectivity.
type BusStatus interface {
	Connected() bool
}

// Deps are the server's collaborators. Only View is required.
type Deps struct {
	View     *session.View
	Identity *Identity
	Hub      *Hub
	Metrics  *metrics.Collector
	History  History
	Bus      BusStatus
}

type Server struct {
	router  *chi.Mux
	port    int
	http    *http.Server
	view    *session.View
	hub     *Hub
	metrics *metrics.Collector
	history History
	bus     BusStatus
	logger  *slog.Logger
}

func NewServer(port int, d Deps, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	hub := d.Hub
	if hub == nil {
		hub = NewHub(logger)
	}

	s := &Server{
		router:  router,
		port:    port,
		view:    d.View,
		hub:     hub,
		metrics: d.Metrics,
		history: d.History,
		bus:     d.Bus,
		logger:  logger,
	}
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	router.Get("/health", s.health)
	if d.Metrics != nil {
		router.Handle("/metrics", d.Metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(d.Identity.Middleware)

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(RoleViewer))
			r.Get("/convoscope/status", s.status)
			r.Get("/conversation", s.getConversation)
			r.Get("/conversation/export", s.exportConversation)
			r.Get("/conversation/messages/{id}", s.getMessage)
			r.Get("/analysis", s.getAnalysis)
			r.Get("/analysis/history", s.analysisHistory)
			r.Get("/highlight", s.getHighlight)
			r.Get("/highlight/ws", s.highlightStream)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(RoleAnalyst))
			r.Post("/conversation/import", s.importConversation)
			r.Post("/conversation/import/cc", s.importTranscript)
			r.Post("/analysis", s.analyze)
			r.Delete("/analysis", s.dismissAnalysis)
			r.Post("/highlight/{id}", s.activateHighlight)
		})
	})

	return s
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("API server starting", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and disconnects stream clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	conv, rev, _ := s.view.Conversation()
	body := map[string]any{
		"agent":              "convoscope",
		"status":             "ok",
		"scorer":             s.view.ScorerName(),
		"revision":           rev,
		"analyses_in_flight": s.view.InFlight(),
		"highlight_clients":  s.hub.Clients(),
		"role":               RoleFrom(r.Context()).String(),
	}
	if conv != nil {
		body["conversation_id"] = conv.ID
		if s.history != nil {
			if rec, err := s.history.Latest(r.Context(), conv.ID); err == nil {
				body["last_stored_analysis"] = rec.CreatedAt
			} else if !errors.Is(err, store.ErrNotFound) {
				s.logger.Warn("latest stored analysis", "conversation_id", conv.ID, "error", err)
			}
		}
	}
	if s.bus != nil {
		body["bus_connected"] = s.bus.Connected()
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

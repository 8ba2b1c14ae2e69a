package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"schedsync/internal/category"
	"schedsync/internal/event"
	appLog "schedsync/internal/log"
	"schedsync/internal/store"
)

// Server exposes a read-only JSON view of a Store's cache.
//
//	GET  /health
//	GET  /api/events[?visible=1]
//	GET  /api/categories
//	GET  /api/selected
//	POST /api/refresh
type Server struct {
	store    *store.Store
	registry *category.Registry
	userID   event.ID
	mux      *http.ServeMux
}

// NewServer constructs a new Server. userID is used by /api/refresh.
func NewServer(s *store.Store, reg *category.Registry, userID event.ID) *Server {
	srv := &Server{
		store:    s,
		registry: reg,
		userID:   userID,
		mux:      http.NewServeMux(),
	}
	srv.registerRoutes()
	return srv
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	hs := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+addr)
		errCh <- hs.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hs.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/categories", s.handleCategories)
	s.mux.HandleFunc("GET /api/selected", s.handleSelected)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Events     []event.Event `json:"events"`
	Categories []int         `json:"categories"`
	DateRange  []string      `json:"date_range"`
}

// handleEvents returns the cached snapshot. With visible=1 the snapshot is
// restricted to the categories currently shown.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events := s.store.Events()
	if r.URL.Query().Get("visible") == "1" {
		events = s.store.Visible()
	}
	f := s.store.Filter()
	writeJSON(w, http.StatusOK, eventsResponse{
		Events:     events,
		Categories: f.Categories(),
		DateRange:  f.DateRange(),
	})
}

type categoryDTO struct {
	category.Category
	Visible bool `json:"visible"`
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	all := s.registry.All()
	out := make([]categoryDTO, 0, len(all))
	for _, c := range all {
		out = append(out, categoryDTO{Category: c, Visible: s.store.Filter().IsVisible(c.Value)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSelected(w http.ResponseWriter, _ *http.Request) {
	ev, ok := s.store.Selected()
	if !ok {
		writeError(w, http.StatusNotFound, "no event selected")
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// handleRefresh triggers a fetch for the configured user.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.Fetch(r.Context(), s.userID)
	if err != nil {
		appLog.Error("api refresh failed", err, "user", s.userID)
		writeError(w, http.StatusBadGateway, "refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": len(events)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

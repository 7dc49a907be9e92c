// Package server exposes the catalog components over HTTP and WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gabrielmiguelok/golivecatalog/internal/config"
	"github.com/gabrielmiguelok/golivecatalog/pkg/live"
	"github.com/gabrielmiguelok/golivecatalog/pkg/logging"
	"github.com/gabrielmiguelok/golivecatalog/pkg/remote"
)

const shutdownTimeout = 10 * time.Second

// Server serves the users API and live component sessions.
type Server struct {
	cfg      config.Config
	registry *live.Registry
	users    *remote.Fetcher[remote.User]
	logger   logging.Logger
	mux      *http.ServeMux
}

// New creates a server. The registry decides which components /live/{name} can mount.
func New(cfg config.Config, registry *live.Registry, users *remote.Fetcher[remote.User], logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	s := &Server{
		cfg:      cfg,
		registry: registry,
		users:    users,
		logger:   logger,
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/users", s.handleUsers)
	s.mux.HandleFunc("GET /live/{component}", s.handleLive)
	return s
}

// Handler returns the root handler with request logging.
func (s *Server) Handler() http.Handler {
	return logging.RequestLogger(s.logger)(s.mux)
}

// Run listens on the configured address until ctx ends, then shuts down.
// Live sessions derive their context from ctx so they end with it.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", logging.String("address", s.cfg.Address))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("server shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type usersResponse struct {
	Status  string        `json:"status"`
	Message string        `json:"message,omitempty"`
	Query   string        `json:"query,omitempty"`
	Total   int           `json:"total"`
	Users   []remote.User `json:"users"`
}

// handleUsers answers from the memoized fetch. By default it waits for the
// fetch to resolve; wait=false returns the pending state immediately.
func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	res := s.users.Fetch(r.Context(), s.cfg.UsersURL)

	st := res.State()
	if r.URL.Query().Get("wait") != "false" {
		var err error
		if st, err = res.Wait(r.Context()); err != nil {
			return
		}
	}

	resp := usersResponse{
		Status:  st.Status.String(),
		Message: st.Message(),
		Query:   query,
	}

	code := http.StatusOK
	switch st.Status {
	case remote.StatusPending:
		code = http.StatusAccepted
	case remote.StatusFailed:
		code = http.StatusBadGateway
		logging.L(r.Context()).Warn("users list unavailable", logging.Err(st.Failure))
	case remote.StatusReady:
		resp.Total = len(st.Items)
		resp.Users = remote.FilterUsers(st.Items, query)
	}

	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

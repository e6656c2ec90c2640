package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"carousel/internal/archive"
	"carousel/internal/config"
	"carousel/internal/logging"
	"carousel/internal/services"
)

type apiServer struct {
	bind     string
	token    string
	logger   *slog.Logger
	daemon   *Daemon
	archives *archive.Builder

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, errors.New("api server requires config and daemon")
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, errors.New("api bind address is empty")
	}

	srv := &apiServer{
		bind:     bind,
		token:    strings.TrimSpace(cfg.Paths.APIToken),
		logger:   logger,
		daemon:   d,
		archives: archive.NewBuilder(d.store),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/convert", srv.handleConvert)
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/sessions", authMiddleware(srv.token, srv.handleSessions))
	mux.HandleFunc("/api/sessions/", srv.handleSessionResource)
	mux.HandleFunc("/healthz", srv.handleHealthz)
	mux.Handle("/metrics", d.recorder.Handler())

	// Conversions hold one request open across the upload plus two bounded
	// subprocess runs, so the read/write windows are sized in minutes.
	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Minute,
		WriteTimeout:      30 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError translates a taxonomy error into an HTTP response.
// Client-class failures carry their message through; everything else is
// logged with detail and answered generically so internals never leak.
func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	status := services.HTTPStatus(err)
	switch {
	case status == http.StatusBadRequest || status == http.StatusNotFound:
		s.log().Debug("request rejected", logging.Int("status", status), logging.Error(err))
		s.writeError(w, status, clientMessage(err))
	default:
		s.log().Error("request failed", logging.Int("status", status), logging.Error(err))
		s.writeError(w, status, clientMessage(err))
	}
}

// clientMessage picks the user-facing text for an error. Validation and
// lookup failures are descriptive by construction; server-side failures
// collapse to a generic message.
func clientMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrNotFound):
		return trimTaxonomyPrefix(err.Error())
	case errors.Is(err, services.ErrExternalTool), errors.Is(err, services.ErrTimeout):
		return "conversion failed"
	default:
		return "internal error"
	}
}

// trimTaxonomyPrefix strips the sentinel and component/operation prefix from
// a wrapped error, leaving the human-readable tail ("session not found").
func trimTaxonomyPrefix(message string) string {
	if idx := strings.LastIndex(message, ": "); idx >= 0 && idx+2 < len(message) {
		return message[idx+2:]
	}
	return message
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return logging.NewComponentLogger(s.logger, "api-server")
	}
	return logging.NewNop()
}

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

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"camdl/internal/api"
	"camdl/internal/logging"
	"camdl/internal/services"
)

const (
	shutdownTimeout    = 5 * time.Second
	sessionDrainWindow = 10 * time.Second
	notifyTimeout      = 15 * time.Second
)

type apiServer struct {
	daemon   *Daemon
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// Handler returns the HTTP handler serving the camdl API and, when
// configured, the static web UI.
func (d *Daemon) Handler() http.Handler {
	srv := &apiServer{
		daemon: d,
		logger: logging.NewComponentLogger(d.logger, "api-server"),
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  4096,
		},
	}
	return srv.routes()
}

func (s *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger(s.logger))
	r.Use(recoverer(s.logger))

	r.Group(func(r chi.Router) {
		r.Use(bearerAuth(s.daemon.cfg.Paths.APIToken))

		r.Route("/camera", func(r chi.Router) {
			r.Post("/save-settings", s.handleSaveSettings)
			r.Post("/get-settings", s.handleGetSettings)
			r.Post("/ping", s.handlePing)
			r.Post("/download", s.handleDownload)
			r.Get("/download/ws", s.handleDownloadWS)
			r.Post("/count-files", s.handleCountFiles)
			r.Post("/download-zip", s.handleDownloadZip)
			r.Delete("/delete-files", s.handleDeleteFiles)
		})
		r.Get("/api/status", s.handleStatus)
	})

	if dir := strings.TrimSpace(s.daemon.cfg.Paths.StaticDir); dir != "" {
		r.Handle("/*", http.FileServer(http.Dir(dir)))
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, failure("not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, failure("method not allowed"))
	})
	return r
}

// Serve accepts connections on listener until ctx is cancelled, then shuts
// the server down and waits for in-flight download sessions to reap their
// jobs. Request contexts derive from ctx, so cancelling it disconnects
// every open stream.
func (d *Daemon) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           d.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
		ErrorLog:          slog.NewLogLogger(d.logger.Handler(), slog.LevelWarn),
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		d.logger.Info("api server listening",
			logging.String("address", listener.Addr().String()),
			logging.String(logging.FieldEventType, "api_listening"),
		)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api serve: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			d.logger.Warn("api server shutdown incomplete", logging.Error(err))
			_ = server.Close()
		}
		if !d.waitSessions(sessionDrainWindow) {
			logging.WarnWithContext(d.logger, "download sessions still running at shutdown", "shutdown_sessions_pending",
				logging.Int("sessions", len(d.relay.Active())),
				logging.String(logging.FieldImpact, "child jobs may outlive the daemon"),
			)
		}
		return nil
	})
	return group.Wait()
}

// ListenAndServe binds the configured API address and calls Serve.
func (d *Daemon) ListenAndServe(ctx context.Context) error {
	bind := strings.TrimSpace(d.cfg.Paths.APIBind)
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "daemon", "listen", fmt.Sprintf("bind %s", bind), err)
	}
	return d.Serve(ctx, listener)
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	refresh := r.URL.Query().Get("refresh") == "1" || strings.EqualFold(r.URL.Query().Get("refresh"), "true")
	writeJSON(w, http.StatusOK, s.daemon.Status(r.Context(), refresh))
}

func failure(message string) api.Response {
	return api.Response{Success: false, Message: message}
}

// writeServiceError maps err through services.HTTPStatus and writes the
// failure envelope.
func writeServiceError(w http.ResponseWriter, err error, message string) {
	writeJSON(w, services.HTTPStatus(err), failure(message))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

package web

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"workoutcal/internal/auth"
	"workoutcal/internal/calendar"
	"workoutcal/internal/config"
	appLog "workoutcal/internal/log"
	"workoutcal/internal/recurrence"
	"workoutcal/internal/schedule"
	"workoutcal/internal/store"
)

// Server provides the HTTP API over the schedule service and the calendar
// feed. /health and /metrics are public; everything under /api/ needs a
// bearer token.
type Server struct {
	cfg     *config.Config
	svc     *schedule.Service
	feed    *calendar.Feed
	builder recurrence.Builder
	mux     *http.ServeMux

	// now is the clock used for default calendar windows.
	now func() time.Time
}

// NewServer constructs a new Server. Date inputs are read in the feed's
// display timezone.
func NewServer(cfg *config.Config, svc *schedule.Service, feed *calendar.Feed) *Server {
	s := &Server{
		cfg:     cfg,
		svc:     svc,
		feed:    feed,
		builder: recurrence.Builder{Location: feed.Location()},
		mux:     http.NewServeMux(),
		now:     time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the routed handler with authentication and request
// logging applied.
func (s *Server) Handler() http.Handler {
	mw := auth.Middleware{
		Config:  auth.Config{Secret: s.cfg.Auth.Secret, Issuer: s.cfg.Auth.Issuer},
		Skipper: auth.PathPrefixSkipper("/api/"),
		Reject: func(w http.ResponseWriter, _ *http.Request, err error) {
			writeError(w, http.StatusUnauthorized, err.Error())
		},
	}
	return requestLog(mw.Wrap(s.mux))
}

// Run serves on listen until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, listen string) error {
	srv := &http.Server{
		Addr:              listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+listen)
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	s.mux.HandleFunc("GET /api/templates", s.handleTemplates)
	s.mux.HandleFunc("GET /api/instances", s.handleListInstances)
	s.mux.HandleFunc("POST /api/instances", s.handleCommit)
	s.mux.HandleFunc("POST /api/rules/preview", s.handlePreview)
	s.mux.HandleFunc("GET /api/calendar", s.handleCalendar)
	s.mux.HandleFunc("GET /api/calendar.ics", s.handleCalendarICS)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// statusRecorder captures the status code for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestLog tags each request with an id and logs it once served.
func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()
		next.ServeHTTP(rec, r)

		appLog.Debug("http request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(started),
		)
	})
}

type errResp struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errResp{Error: msg})
}

// writeServiceError maps engine and service errors onto HTTP responses.
// fallback is the message used for storage failures.
func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	var verr *recurrence.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errResp{Error: verr.Err.Error(), Field: verr.Field})
	case errors.Is(err, schedule.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, store.ErrTemplateNotFound):
		writeError(w, http.StatusNotFound, store.ErrTemplateNotFound.Error())
	case errors.Is(err, recurrence.ErrMalformedRule):
		appLog.Error("stored schedule unreadable", err)
		writeError(w, http.StatusInternalServerError, "could not load schedule")
	default:
		appLog.Error("request failed", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

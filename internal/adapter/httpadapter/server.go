package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/dendroclim/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxJobBytes bounds the size of a job submitted over HTTP.
const maxJobBytes = 32 << 20

// Analyzer runs one analysis job synchronously.
type Analyzer interface {
	Run(raw domain.RawEvent) (domain.AnalysisResult, error)
}

// ResultReader returns stored result JSON by ID, or domain.ErrResultNotFound.
type ResultReader interface {
	Result(ctx context.Context, id string) ([]byte, error)
}

// Option configures optional routes of the Server.
type Option func(*Server, *http.ServeMux)

// WithAnalyzer mounts POST /analyses, which runs a job and returns its result.
func WithAnalyzer(a Analyzer) Option {
	return func(s *Server, mux *http.ServeMux) {
		mux.HandleFunc("POST /analyses", s.handleAnalyze(a))
	}
}

// WithResults mounts GET /analyses/{id}, which returns a stored result.
func WithResults(r ResultReader) Option {
	return func(s *Server, mux *http.ServeMux) {
		mux.HandleFunc("GET /analyses/{id}", s.handleResult(r))
	}
}

// Server exposes health, readiness, metrics and analysis HTTP endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, and /metrics routes
// plus the analysis routes enabled by opts.
func NewServer(addr string, ready sharedobs.ReadinessChecker, logger *slog.Logger, opts ...Option) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	for _, opt := range opts {
		opt(s, mux)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleAnalyze(a Analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJobBytes))
		if err != nil {
			status := http.StatusBadRequest
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			writeError(w, status, err)
			return
		}
		result, err := a.Run(domain.RawEvent{Value: body, Timestamp: time.Now()})
		if err != nil {
			status := statusFor(err)
			if status == http.StatusInternalServerError {
				s.logger.Error("analysis failed", "error", err)
			}
			writeError(w, status, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) handleResult(rr ResultReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := rr.Result(r.Context(), r.PathValue("id"))
		switch {
		case errors.Is(err, domain.ErrResultNotFound):
			writeError(w, http.StatusNotFound, err)
		case err != nil:
			s.logger.Error("read result failed", "error", err, "id", r.PathValue("id"))
			writeError(w, http.StatusInternalServerError, errors.New("could not read result"))
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write(data) //nolint:errcheck // client went away
		}
	}
}

// statusFor maps job errors to HTTP status codes: invalid input is the
// client's fault, anything else is ours.
func statusFor(err error) int {
	switch {
	case domain.IsMalformedJob(err):
		return http.StatusBadRequest
	case domain.IsInvalidJob(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	body := map[string]any{"error": err.Error()}
	var violation *domain.SchemaViolation
	if errors.As(err, &violation) {
		issues := make([]string, len(violation.Issues))
		for i, issue := range violation.Issues {
			issues[i] = issue.String()
		}
		body["issues"] = issues
	}
	var cfgErr *domain.ConfigurationError
	if errors.As(err, &cfgErr) {
		body["parameter"] = cfgErr.Parameter
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("encode response: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data) //nolint:errcheck // client went away
}

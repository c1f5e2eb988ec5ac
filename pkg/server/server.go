// Package server provides the HTTP API for strategy evaluation and search
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mpapenbr/racestrategy/log"
	"github.com/mpapenbr/racestrategy/pkg/profile"
	"github.com/mpapenbr/racestrategy/pkg/strategy"
)

const (
	DefaultRuns    = 100
	MaxRuns        = 10000
	MaxRepetitions = 50
	maxBodySize    = 1 << 16
)

var errBadRequest = errors.New("bad request")

type (
	// ReportPublisher receives every report created by the optimize endpoint
	// and every comparison created by the compare endpoint
	ReportPublisher interface {
		PublishReport(ctx context.Context, r *strategy.Report) error
		PublishComparison(ctx context.Context, track string, c *strategy.Comparison) error
	}
	Option func(*Server)
	Server struct {
		resolver    *profile.Resolver
		parallelism int
		publisher   ReportPublisher
		l           *log.Logger
		seed        func() uint64
	}
)

func WithParallelism(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

func WithPublisher(p ReportPublisher) Option {
	return func(s *Server) {
		s.publisher = p
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		s.l = l
	}
}

func New(resolver *profile.Resolver, opts ...Option) *Server {
	ret := &Server{
		resolver:    resolver,
		parallelism: runtime.GOMAXPROCS(0),
		l:           log.Default().Named("server"),
		//nolint:gosec // no crypto needed
		seed: func() uint64 { return uint64(time.Now().UnixNano()) },
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Handler returns the API routes wrapped with tracing, CORS and h2c support
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.health)
	mux.HandleFunc("GET /v1/teams", s.teams)
	mux.HandleFunc("GET /v1/tracks", s.tracks)
	mux.HandleFunc("POST /v1/evaluate", s.evaluate)
	mux.HandleFunc("POST /v1/optimize", s.optimize)
	mux.HandleFunc("POST /v1/compare", s.compare)
	return h2c.NewHandler(
		newCORS().Handler(otelhttp.NewHandler(mux, "racestrategy")),
		&http2.Server{})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) teams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.resolver.Source().Teams(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, teams)
}

func (s *Server) tracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.resolver.Source().Tracks(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tracks)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, target any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.l.Warn("could not write response", log.ErrorField(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.l.Error("request failed",
			log.String("path", r.URL.Path),
			log.ErrorField(err))
	} else {
		s.l.Debug("request rejected",
			log.String("path", r.URL.Path),
			log.ErrorField(err))
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func newCORS() *cors.Cors {
	return cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{
			"Accept",
			"Accept-Encoding",
			"Content-Encoding",
		},
		MaxAge: int(2 * time.Hour / time.Second),
	})
}

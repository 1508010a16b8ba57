// Package httpapi exposes the writing assistant and the idea pad over
// JSON-over-HTTP, with a WebSocket stream for live session events.
package httpapi

import (
	"net/http"

	"github.com/MrWong99/inkwell/internal/assist"
	"github.com/MrWong99/inkwell/internal/health"
	"github.com/MrWong99/inkwell/internal/ideapad"
	"github.com/MrWong99/inkwell/internal/observe"
)

// maxBody caps request bodies. Dictation uploads carry base64 audio, so the
// limit is generous.
const maxBody = 32 << 20

// Config holds the collaborators a [Server] routes to. Assistant and IdeaPad
// are required; the rest are optional.
type Config struct {
	Assistant *assist.Assistant
	IdeaPad   *ideapad.Manager

	// Health, when set, serves /healthz and /readyz.
	Health *health.Handler

	// Metrics instruments every request and the suggestion counters. Nil
	// falls back to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// MetricsHandler, when set, is mounted at /metrics.
	MetricsHandler http.Handler

	// EventBuffer is the per-client queue length of the live event stream.
	// Zero means 64.
	EventBuffer int
}

// Server is the HTTP front end.
type Server struct {
	cfg     Config
	metrics *observe.Metrics
	mux     *http.ServeMux
}

// New builds a Server and registers its routes.
func New(cfg Config) *Server {
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 64
	}
	m := cfg.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	s := &Server{cfg: cfg, metrics: m, mux: http.NewServeMux()}
	s.routes()
	return s
}

// Handler returns the routed handler wrapped in tracing, metrics, and
// access logging.
func (s *Server) Handler() http.Handler {
	return observe.Middleware(s.metrics)(s.mux)
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /v1/rephrase", s.handleRephrase)
	s.mux.HandleFunc("POST /v1/continue", s.handleContinue)
	s.mux.HandleFunc("POST /v1/lookup", s.handleLookup)
	s.mux.HandleFunc("POST /v1/proofread", s.handleProofread)
	s.mux.HandleFunc("POST /v1/analyze", s.handleAnalyze)
	s.mux.HandleFunc("POST /v1/review", s.handleReview)
	s.mux.HandleFunc("POST /v1/dictation", s.handleDictation)

	s.mux.HandleFunc("POST /v1/suggestions/apply", s.handleApply)
	s.mux.HandleFunc("POST /v1/suggestions/apply-all", s.handleApplyAll)
	s.mux.HandleFunc("POST /v1/suggestions/reject", s.handleReject)
	s.mux.HandleFunc("POST /v1/selection/replace", s.handleReplaceSelection)

	s.mux.HandleFunc("POST /v1/live/start", s.handleLiveStart)
	s.mux.HandleFunc("POST /v1/live/stop", s.handleLiveStop)
	s.mux.HandleFunc("GET /v1/live", s.handleLiveSnapshot)
	s.mux.HandleFunc("GET /v1/live/events", s.handleLiveEvents)

	if s.cfg.Health != nil {
		s.cfg.Health.Register(s.mux)
	}
	if s.cfg.MetricsHandler != nil {
		s.mux.Handle("GET /metrics", s.cfg.MetricsHandler)
	}
}

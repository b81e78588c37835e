// Package server exposes the Standvox HTTP API.
//
// The API has two halves:
//
//   - Standup records: GET /standup/previous and /standup/day read stored
//     answers, POST /standup/save persists a finished day (used by browser
//     clients that run the interview locally over WebRTC).
//   - Signaling: POST /webrtc-signal proxies the browser's SDP offer to the
//     realtime API so the client never sees the API key.
//
// Liveness, readiness and Prometheus metrics endpoints are registered
// alongside.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/standvox/standvox/internal/health"
	"github.com/standvox/standvox/internal/observe"
	"github.com/standvox/standvox/internal/store"
)

// Server wires the HTTP handlers around a record store.
type Server struct {
	store   store.Store
	signal  *SignalProxy
	health  *health.Handler
	metrics *observe.Metrics
	log     *slog.Logger
	now     func() time.Time
}

// Option configures a [Server].
type Option func(*Server)

// WithSignalProxy enables the /webrtc-signal endpoint.
func WithSignalProxy(p *SignalProxy) Option {
	return func(s *Server) { s.signal = p }
}

// WithHealth replaces the default (checker-less) health handler.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetrics replaces the default metrics instance.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithClock replaces the wall clock, fixing what "today" means for the
// record endpoints.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a Server backed by st.
func New(st store.Store, opts ...Option) *Server {
	s := &Server{
		store: st,
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.health == nil {
		s.health = health.New()
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// Routes returns the fully assembled HTTP handler, with request metrics and
// tracing applied to every route.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /standup/previous", s.handlePrevious)
	mux.HandleFunc("GET /standup/day", s.handleDay)
	mux.HandleFunc("POST /standup/save", s.handleSave)
	if s.signal != nil {
		mux.HandleFunc("POST /webrtc-signal", s.signal.Handle)
	}
	s.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(s.metrics, mux)
}

// recordsResponse is the JSON body for the record read endpoints.
type recordsResponse struct {
	Records []store.DayRecord `json:"records"`
}

// handlePrevious returns the records saved for the day before today. An
// empty list means no standup was recorded; clients fall back to their
// default roster.
func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.LoadPrevious(r.Context(), s.now())
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, fmt.Errorf("load previous day: %w", err))
		return
	}
	s.writeJSON(w, http.StatusOK, recordsResponse{Records: records})
}

// handleDay returns the records for an explicit date, taken from the
// year/month/day query parameters.
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	day, err := time.Parse("2006-1-2", fmt.Sprintf("%s-%s-%s", q.Get("year"), q.Get("month"), q.Get("day")))
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, fmt.Errorf("invalid date parameters: %w", err))
		return
	}
	records, err := s.store.LoadDay(r.Context(), day)
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, fmt.Errorf("load day: %w", err))
		return
	}
	s.writeJSON(w, http.StatusOK, recordsResponse{Records: records})
}

// saveRequest is the JSON body accepted by POST /standup/save.
type saveRequest struct {
	Records []store.DayRecord `json:"records"`
}

// handleSave persists a completed standup. The day is taken from the date
// stamped on the first record; records carry their date so a client can
// submit yesterday's session after midnight.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.fail(w, r, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	if len(req.Records) == 0 {
		s.fail(w, r, http.StatusBadRequest, errors.New("no records to save"))
		return
	}

	day, err := time.Parse(store.DateLayout, req.Records[0].Date)
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, fmt.Errorf("invalid record date %q: %w", req.Records[0].Date, err))
		return
	}

	if err := s.store.SaveDay(r.Context(), day, req.Records); err != nil {
		s.fail(w, r, http.StatusInternalServerError, fmt.Errorf("save day: %w", err))
		return
	}

	s.log.Info("standup records saved",
		slog.String("date", req.Records[0].Date),
		slog.Int("count", len(req.Records)),
	)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encoding response failed", slog.String("error", err.Error()))
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		observe.Logger(r.Context()).Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

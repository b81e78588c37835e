package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/standvox/standvox/internal/observe"
	"github.com/standvox/standvox/internal/resilience"
)

const (
	defaultSignalUpstream = "https://api.openai.com/v1/realtime"
	defaultSignalTimeout  = 30 * time.Second
)

// SignalProxy forwards a browser's SDP offer to the realtime API and relays
// the answer back. Keeping the exchange server-side means the API key never
// reaches the client.
type SignalProxy struct {
	apiKey       string
	upstream     string
	defaultModel string
	defaultSpeed float64
	client       *http.Client
	breaker      *resilience.CircuitBreaker
	metrics      *observe.Metrics
	log          *slog.Logger
}

// SignalOption configures a [SignalProxy].
type SignalOption func(*SignalProxy)

// WithSignalUpstream overrides the realtime API base URL. Used in tests.
func WithSignalUpstream(u string) SignalOption {
	return func(p *SignalProxy) { p.upstream = u }
}

// WithSignalTimeout sets the upstream request timeout.
func WithSignalTimeout(d time.Duration) SignalOption {
	return func(p *SignalProxy) { p.client.Timeout = d }
}

// WithSignalDefaults sets the model and speed applied when the client's
// session_params omit them.
func WithSignalDefaults(model string, speed float64) SignalOption {
	return func(p *SignalProxy) {
		if model != "" {
			p.defaultModel = model
		}
		if speed != 0 {
			p.defaultSpeed = speed
		}
	}
}

// WithSignalLogger replaces the default logger.
func WithSignalLogger(l *slog.Logger) SignalOption {
	return func(p *SignalProxy) { p.log = l }
}

// NewSignalProxy creates a proxy that authenticates upstream with apiKey.
func NewSignalProxy(apiKey string, opts ...SignalOption) *SignalProxy {
	p := &SignalProxy{
		apiKey:       apiKey,
		upstream:     defaultSignalUpstream,
		defaultModel: "gpt-4o-realtime-preview-2024-12-17",
		defaultSpeed: 1.0,
		client:       &http.Client{Timeout: defaultSignalTimeout},
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name: "signal-upstream",
		}),
		metrics: observe.DefaultMetrics(),
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// signalRequest is the JSON body POSTed by the browser client.
type signalRequest struct {
	SDP           string `json:"sdp"`
	SessionParams struct {
		Model string  `json:"model"`
		Speed float64 `json:"speed"`
	} `json:"session_params"`
}

// Handle implements POST /webrtc-signal.
func (p *SignalProxy) Handle(w http.ResponseWriter, r *http.Request) {
	var req signalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":"decode body: %s"}`, err), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.SDP) == "" {
		http.Error(w, `{"error":"sdp is required"}`, http.StatusBadRequest)
		return
	}

	model := req.SessionParams.Model
	if model == "" {
		model = p.defaultModel
	}
	speed := req.SessionParams.Speed
	if speed == 0 {
		speed = p.defaultSpeed
	}

	q := url.Values{}
	q.Set("model", model)
	q.Set("speed", strconv.FormatFloat(speed, 'f', -1, 64))

	upstreamReq, err := http.NewRequestWithContext(r.Context(), http.MethodPost,
		p.upstream+"?"+q.Encode(), strings.NewReader(req.SDP))
	if err != nil {
		http.Error(w, `{"error":"build upstream request"}`, http.StatusInternalServerError)
		return
	}
	upstreamReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	upstreamReq.Header.Set("Content-Type", "application/sdp")
	upstreamReq.Header.Set("OpenAI-Beta", "realtime=v1")

	// Only transport failures count against the breaker; upstream error
	// statuses are the client's problem and pass through below.
	var resp *http.Response
	start := time.Now()
	err = p.breaker.Execute(func() error {
		var doErr error
		resp, doErr = p.client.Do(upstreamReq)
		return doErr
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		http.Error(w, `{"error":"realtime API temporarily unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		observe.Logger(r.Context()).Error("signal upstream request failed",
			slog.String("error", err.Error()),
		)
		http.Error(w, `{"error":"realtime API unreachable"}`, http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()
	p.metrics.SignalDuration.Record(r.Context(), time.Since(start).Seconds())

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		http.Error(w, `{"error":"read upstream response"}`, http.StatusBadGateway)
		return
	}

	// Error statuses pass through so the client can surface them.
	if resp.StatusCode >= http.StatusBadRequest {
		p.log.Warn("signal upstream rejected offer",
			slog.Int("status", resp.StatusCode),
			slog.String("model", model),
		)
		w.Header().Set("Content-Type", resp.Header.Get("Content-Type"))
		w.WriteHeader(resp.StatusCode)
		_, _ = w.Write(body)
		return
	}

	w.Header().Set("Content-Type", "application/sdp")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

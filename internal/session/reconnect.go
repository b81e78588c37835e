package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/standvox/standvox/pkg/audio"
)

const (
	defaultMaxRetries = 10
	defaultBackoff    = 1 * time.Second
	defaultMaxBackoff = 30 * time.Second
)

// Reconnector reopens a dropped capture stream so a flaky voice connection
// does not end the standup mid-interview.
//
// Connect performs the initial open; Monitor starts the background goroutine
// that waits for NotifyDisconnect and then redials the source with
// exponential backoff, doubling the delay per attempt up to a cap. Each
// successful redial is announced through the OnReconnect callback; running
// out of attempts is announced through OnExhausted.
//
// All methods are safe for concurrent use.
type Reconnector struct {
	source      audio.Source
	maxRetries  int
	backoff     time.Duration
	maxBackoff  time.Duration
	onReconnect func(audio.Capture)
	onExhausted func()

	mu      sync.Mutex
	capture audio.Capture

	done     chan struct{}
	stopOnce sync.Once

	// dropped carries at most one pending disconnect signal.
	dropped chan struct{}
}

// ReconnectorConfig configures a [Reconnector].
type ReconnectorConfig struct {
	// Source opens and reopens the capture stream.
	Source audio.Source

	// MaxRetries caps redial attempts per disconnect. Default 10.
	MaxRetries int

	// Backoff is the delay before the second attempt; it doubles per attempt.
	// Default 1s.
	Backoff time.Duration

	// MaxBackoff caps the per-attempt delay. Default 30s.
	MaxBackoff time.Duration

	// OnReconnect receives the fresh capture after a successful redial.
	// May be nil.
	OnReconnect func(audio.Capture)

	// OnExhausted is called when every redial attempt failed. May be nil.
	OnExhausted func()
}

// NewReconnector creates a stopped Reconnector; call Connect then Monitor.
func NewReconnector(cfg ReconnectorConfig) *Reconnector {
	r := &Reconnector{
		source:      cfg.Source,
		maxRetries:  cfg.MaxRetries,
		backoff:     cfg.Backoff,
		maxBackoff:  cfg.MaxBackoff,
		onReconnect: cfg.OnReconnect,
		onExhausted: cfg.OnExhausted,
		done:        make(chan struct{}),
		dropped:     make(chan struct{}, 1),
	}
	if r.maxRetries <= 0 {
		r.maxRetries = defaultMaxRetries
	}
	if r.backoff <= 0 {
		r.backoff = defaultBackoff
	}
	if r.maxBackoff <= 0 {
		r.maxBackoff = defaultMaxBackoff
	}
	return r
}

// Connect opens the capture stream for the first time.
func (r *Reconnector) Connect(ctx context.Context) (audio.Capture, error) {
	capture, err := r.source.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconnector initial connect: %w", err)
	}
	r.setCapture(capture)
	return capture, nil
}

// Monitor starts the background goroutine that services disconnect signals.
func (r *Reconnector) Monitor(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.done:
				return
			case <-r.dropped:
				r.redial(ctx)
			}
		}
	}()
}

// NotifyDisconnect reports that the capture stream has been lost. Extra calls
// during an ongoing redial are coalesced.
func (r *Reconnector) NotifyDisconnect() {
	select {
	case r.dropped <- struct{}{}:
	default:
	}
}

// Stop ends monitoring and stops the current capture. Safe to call multiple
// times.
func (r *Reconnector) Stop() error {
	r.stopOnce.Do(func() {
		close(r.done)
	})

	r.mu.Lock()
	capture := r.capture
	r.capture = nil
	r.mu.Unlock()

	if capture != nil {
		return capture.Stop()
	}
	return nil
}

// Capture returns the active capture, or nil while a redial is in flight.
func (r *Reconnector) Capture() audio.Capture {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.capture
}

func (r *Reconnector) setCapture(c audio.Capture) {
	r.mu.Lock()
	r.capture = c
	r.mu.Unlock()
}

// redial reopens the source, sleeping between attempts with doubling delays.
func (r *Reconnector) redial(ctx context.Context) {
	delay := r.backoff

	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		default:
		}

		capture, err := r.source.Open(ctx)
		if err == nil {
			r.mu.Lock()
			stale := r.capture
			r.capture = capture
			r.mu.Unlock()
			if stale != nil {
				_ = stale.Stop()
			}

			slog.Info("capture reconnected", "attempt", attempt)
			if r.onReconnect != nil {
				r.onReconnect(capture)
			}
			return
		}

		slog.Warn("capture redial failed",
			"attempt", attempt,
			"max_retries", r.maxRetries,
			"next_delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-time.After(delay):
		}

		delay *= 2
		if delay > r.maxBackoff {
			delay = r.maxBackoff
		}
	}

	slog.Error("capture lost, redial attempts exhausted", "max_retries", r.maxRetries)
	if r.onExhausted != nil {
		r.onExhausted()
	}
}

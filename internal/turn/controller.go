// Package turn owns the mutually-exclusive speaking state of an interview
// session: at any instant either the interviewer is speaking (AI turn) or the
// human participant is (user turn).
//
// The controller is the sole owner of the microphone gate. The gate is enabled
// exactly when the state is [UserTurn] — nothing else in the process may
// toggle the capture track, because an open microphone during an AI turn lets
// the detector hear the interviewer's own audio and mis-fire it as user
// speech.
package turn

import (
	"errors"
	"fmt"
	"sync"
)

// State identifies who currently holds the speaking turn.
type State int

const (
	// UserTurn means the human participant may speak and the microphone is
	// enabled. Sessions start in this state so the participant speaks first.
	UserTurn State = iota

	// AITurn means the interviewer is speaking and the microphone is gated
	// off.
	AITurn
)

// String returns the wire-friendly name of the state.
func (s State) String() string {
	switch s {
	case UserTurn:
		return "USER_TURN"
	case AITurn:
		return "AI_TURN"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrTurnViolation is returned when an operation is attempted outside its
// legal state. The controller's state is unchanged when it is returned.
var ErrTurnViolation = errors.New("turn: operation not legal in current state")

// MicGate enables or disables the outgoing capture track. Satisfied by
// [github.com/standvox/standvox/pkg/audio.Capture].
type MicGate interface {
	SetTrackEnabled(enabled bool) error
}

// Option is a functional option for [NewController].
type Option func(*Controller)

// WithNotify registers a callback invoked after every turn change, with the
// new state. The callback runs synchronously under the controller's lock and
// must not call back into the controller.
func WithNotify(fn func(State)) Option {
	return func(c *Controller) { c.notify = fn }
}

// Controller enforces turn mutual exclusion and drives the microphone gate.
// All methods are safe for concurrent use.
type Controller struct {
	mu         sync.Mutex
	gate       MicGate
	notify     func(State)
	state      State
	micEnabled bool
	// speaking tracks VAD-observed user speech. Valid only while state is
	// UserTurn; cleared on every transition to AITurn.
	speaking bool
}

// NewController creates a controller in [UserTurn] with the microphone gate
// enabled.
func NewController(gate MicGate, opts ...Option) (*Controller, error) {
	c := &Controller{
		gate:  gate,
		state: UserTurn,
	}
	for _, o := range opts {
		o(c)
	}
	if err := c.gate.SetTrackEnabled(true); err != nil {
		return nil, fmt.Errorf("turn: enable microphone: %w", err)
	}
	c.micEnabled = true
	return c, nil
}

// State returns the current turn state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// MicEnabled reports whether the capture track is currently enabled.
func (c *Controller) MicEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.micEnabled
}

// UserSpeaking reports whether the detector currently observes user speech.
// Always false outside [UserTurn].
func (c *Controller) UserSpeaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaking
}

// BeginAITurn hands the turn to the interviewer. Legal from any state; the
// microphone is disabled and any observed user speech is cleared.
func (c *Controller) BeginAITurn() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == AITurn {
		return nil
	}
	if err := c.gate.SetTrackEnabled(false); err != nil {
		return fmt.Errorf("turn: disable microphone: %w", err)
	}
	c.micEnabled = false
	c.state = AITurn
	c.speaking = false
	if c.notify != nil {
		c.notify(c.state)
	}
	return nil
}

// EndAITurn hands the turn back to the participant and enables the
// microphone. Legal only from [AITurn]; returns [ErrTurnViolation] otherwise.
func (c *Controller) EndAITurn() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != AITurn {
		return fmt.Errorf("turn: end AI turn from %s: %w", c.state, ErrTurnViolation)
	}
	if err := c.gate.SetTrackEnabled(true); err != nil {
		return fmt.Errorf("turn: enable microphone: %w", err)
	}
	c.micEnabled = true
	c.state = UserTurn
	if c.notify != nil {
		c.notify(c.state)
	}
	return nil
}

// VADStarted records a detector speech-start observation. It is a no-op
// outside [UserTurn]: speech-start events during AI audio playback are the
// detector hearing the interviewer, not the participant. Reports whether the
// observation was applied.
func (c *Controller) VADStarted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != UserTurn {
		return false
	}
	c.speaking = true
	return true
}

// VADStopped records a detector speech-stop observation. It is a no-op
// outside [UserTurn]. Reports whether the participant was actively speaking
// before this call; callers use a true result to commit any provisional
// transcript as a completed utterance.
func (c *Controller) VADStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != UserTurn {
		return false
	}
	was := c.speaking
	c.speaking = false
	return was
}

// ToggleMic flips the microphone on user request. Muting is permitted
// whenever the microphone is enabled. Unmuting is permitted only during
// [UserTurn]; attempting it during an AI turn returns [ErrTurnViolation]
// with state and gate unchanged.
func (c *Controller) ToggleMic() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.micEnabled {
		if err := c.gate.SetTrackEnabled(false); err != nil {
			return fmt.Errorf("turn: disable microphone: %w", err)
		}
		c.micEnabled = false
		c.speaking = false
		return nil
	}

	if c.state != UserTurn {
		return fmt.Errorf("turn: unmute during %s: %w", c.state, ErrTurnViolation)
	}
	if err := c.gate.SetTrackEnabled(true); err != nil {
		return fmt.Errorf("turn: enable microphone: %w", err)
	}
	c.micEnabled = true
	return nil
}

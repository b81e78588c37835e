// Package vad defines the Engine interface for Voice Activity Detection backends.
//
// A VAD engine converts a continuous stream of captured audio frames into
// discrete speech-start/speech-stop events. Each session maintains its own
// internal state (calibration profile, edge-detection history) so that
// multiple capture streams can be processed independently.
//
// VAD is synchronous: ProcessFrame returns immediately with a detection
// result, so it can sit inside the per-frame loop that gates the interview
// microphone.
//
// Implementations must be safe for concurrent use across different sessions.
// A single SessionHandle should not be shared across goroutines unless the
// implementation explicitly documents thread safety for that type.
package vad

import (
	"time"

	"github.com/standvox/standvox/pkg/audio"
)

// Config holds the parameters for a VAD session.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the rate of the
	// frames passed to ProcessFrame. Common values: 16000, 24000, 48000.
	SampleRate int

	// CalibrationFrames is the number of initial frames used to measure the
	// ambient noise floor before any speech event can be emitted. At the
	// typical 20 frames/sec polling rate, 60 frames is a 3 second window.
	CalibrationFrames int

	// MarginDb is added to the measured ambient noise level to form the
	// speaking threshold. Typical: 12.
	MarginDb float64

	// FloorDb is the lowest permitted speaking threshold in dBFS. The
	// computed threshold never drops below this value regardless of how
	// quiet the calibration window was. Typical: -50.
	FloorDb float64

	// Hold is the trailing-silence window: a speech segment ends only after
	// this much time passes without a voiced frame. Every voiced frame
	// restarts the window. Typical: 1500ms–2s.
	Hold time.Duration
}

// CalibrationProfile is the ambient-noise measurement computed from the
// calibration window. It is read-only once calibration completes; Reset
// discards it and restarts calibration.
type CalibrationProfile struct {
	// AmbientNoiseDb is the mean overall energy of the calibration frames,
	// in dBFS.
	AmbientNoiseDb float64

	// SpeakingThresholdDb is max(FloorDb, AmbientNoiseDb + MarginDb).
	SpeakingThresholdDb float64
}

// SessionHandle represents an active VAD session for a single capture stream.
// It is an interface so that test code can supply mock implementations
// without a live engine.
//
// A SessionHandle should not be shared between goroutines unless the
// implementation explicitly guarantees concurrent safety.
type SessionHandle interface {
	// ProcessFrame analyses a single audio frame and returns the detection
	// result. Frames submitted before calibration completes yield
	// [EventCalibrating] and are otherwise discarded. Returns an error if
	// the frame does not match the configured sample rate or the session is
	// closed.
	//
	// This method is called synchronously in the capture loop; it must not
	// block.
	ProcessFrame(frame audio.Frame) (Event, error)

	// Profile returns the calibration profile and whether calibration has
	// completed.
	Profile() (CalibrationProfile, bool)

	// Reset clears all accumulated state, including the calibration profile,
	// without closing the session. Use this when the capture stream is
	// interrupted or restarted.
	Reset()

	// Close releases all resources associated with the session. After Close,
	// ProcessFrame must return an error. Calling Close more than once is
	// safe and returns nil.
	Close() error
}

// Engine is the factory for VAD sessions. It is the top-level interface
// implemented by each VAD backend.
//
// Implementations must be safe for concurrent use: multiple goroutines may
// call NewSession simultaneously to create independent sessions.
type Engine interface {
	// NewSession creates a new VAD session with the given configuration. The
	// session starts in the calibration phase and is immediately ready to
	// accept audio frames.
	//
	// Returns an error if the configuration is invalid.
	NewSession(cfg Config) (SessionHandle, error)
}

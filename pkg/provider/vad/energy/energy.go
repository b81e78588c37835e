// Package energy implements the vad.Engine interface with a calibrating,
// multi-feature energy detector. It requires no model weights or cgo: each
// frame is classified from its overall RMS energy, voice-band energy, and
// zero-crossing rate, against a threshold measured from the ambient noise
// floor at session start.
//
// Stop detection uses trailing-silence hysteresis: a speech segment ends only
// after the configured hold window elapses without a voiced frame, measured
// on the frame-timestamp clock. Every voiced frame restarts the window, so a
// natural mid-sentence pause does not end the segment.
package energy

import (
	"fmt"
	"sync"
	"time"

	"github.com/standvox/standvox/pkg/audio"
	"github.com/standvox/standvox/pkg/provider/vad"
)

// Compile-time assertions that Engine and session satisfy the vad interfaces.
var _ vad.Engine = (*Engine)(nil)
var _ vad.SessionHandle = (*session)(nil)

// Defaults applied by NewSession when the corresponding Config field is zero.
const (
	defaultCalibrationFrames = 60
	defaultMarginDb          = 12.0
	defaultFloorDb           = -50.0
	defaultHold              = 1800 * time.Millisecond
)

// Frame-classification constants. A frame is voiced only when all four
// conditions hold; see classify.
const (
	// voiceBandMarginDb: the voice band must clear the threshold by this much.
	voiceBandMarginDb = 8.0

	// maxBandDeficitDb: the voice band may trail the overall energy by at
	// most this much. A large deficit means the energy is out-of-band
	// (rumble, hum) rather than speech.
	maxBandDeficitDb = 10.0

	// ZCR band typical of voiced speech. Below: DC-like rumble or silence.
	// Above: broadband noise.
	minVoiceZCR = 0.02
	maxVoiceZCR = 0.35
)

// Engine implements vad.Engine. The zero value is ready to use; New is
// provided for symmetry with the other provider packages.
type Engine struct{}

// New creates an energy VAD engine.
func New() *Engine {
	return &Engine{}
}

// NewSession creates a new calibrating VAD session. Zero-valued Config fields
// are replaced with package defaults.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("energy: sample rate %d is invalid", cfg.SampleRate)
	}
	if cfg.CalibrationFrames == 0 {
		cfg.CalibrationFrames = defaultCalibrationFrames
	}
	if cfg.CalibrationFrames < 0 {
		return nil, fmt.Errorf("energy: calibration frames %d is invalid", cfg.CalibrationFrames)
	}
	if cfg.MarginDb == 0 {
		cfg.MarginDb = defaultMarginDb
	}
	if cfg.FloorDb == 0 {
		cfg.FloorDb = defaultFloorDb
	}
	if cfg.Hold == 0 {
		cfg.Hold = defaultHold
	}
	if cfg.Hold < 0 {
		return nil, fmt.Errorf("energy: hold duration %v is invalid", cfg.Hold)
	}
	return &session{cfg: cfg}, nil
}

// session holds the per-stream detection state: the rolling calibration
// window, the computed profile, and the speech edge detector.
type session struct {
	mu  sync.Mutex
	cfg vad.Config

	// Calibration.
	calSum     float64
	calCount   int
	profile    vad.CalibrationProfile
	calibrated bool

	// Edge detection.
	speaking   bool
	lastVoiced time.Duration
	closed     bool
}

// ProcessFrame classifies one frame. See vad.SessionHandle.
func (s *session) ProcessFrame(frame audio.Frame) (vad.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return vad.Event{}, fmt.Errorf("energy: session closed")
	}
	if frame.SampleRate != s.cfg.SampleRate {
		return vad.Event{}, fmt.Errorf("energy: frame sample rate %d does not match session rate %d",
			frame.SampleRate, s.cfg.SampleRate)
	}

	level := overallDb(frame.PCM)

	// Calibration phase: accumulate the noise floor, emit nothing.
	if !s.calibrated {
		s.calSum += level
		s.calCount++
		if s.calCount >= s.cfg.CalibrationFrames {
			ambient := s.calSum / float64(s.calCount)
			threshold := ambient + s.cfg.MarginDb
			if threshold < s.cfg.FloorDb {
				threshold = s.cfg.FloorDb
			}
			s.profile = vad.CalibrationProfile{
				AmbientNoiseDb:      ambient,
				SpeakingThresholdDb: threshold,
			}
			s.calibrated = true
		}
		return vad.Event{Type: vad.EventCalibrating}, nil
	}

	voiced := s.classify(frame, level)
	ev := vad.Event{
		Type:        vad.EventNone,
		LevelDb:     level,
		ThresholdDb: s.profile.SpeakingThresholdDb,
	}

	switch {
	case voiced && !s.speaking:
		s.speaking = true
		s.lastVoiced = frame.Timestamp
		ev.Type = vad.EventSpeechStart

	case voiced && s.speaking:
		// Restart the trailing-silence window.
		s.lastVoiced = frame.Timestamp

	case !voiced && s.speaking:
		if frame.Timestamp-s.lastVoiced > s.cfg.Hold {
			s.speaking = false
			ev.Type = vad.EventSpeechStop
		}
	}

	return ev, nil
}

// classify reports whether the frame is voiced. All four conditions must
// hold; the thresholds are relative to the calibrated speaking threshold.
func (s *session) classify(frame audio.Frame, level float64) bool {
	threshold := s.profile.SpeakingThresholdDb
	if level <= threshold {
		return false
	}

	band := voiceBandDb(frame.PCM, frame.SampleRate)
	if band <= threshold+voiceBandMarginDb {
		return false
	}
	if band < level-maxBandDeficitDb {
		return false
	}

	zcr := zeroCrossingRate(frame.PCM)
	return zcr >= minVoiceZCR && zcr <= maxVoiceZCR
}

// Profile returns the calibration profile and whether calibration completed.
func (s *session) Profile() (vad.CalibrationProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile, s.calibrated
}

// Reset discards the calibration profile and edge state, restarting the
// session from the calibration phase.
func (s *session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calSum = 0
	s.calCount = 0
	s.profile = vad.CalibrationProfile{}
	s.calibrated = false
	s.speaking = false
	s.lastVoiced = 0
}

// Close marks the session closed. Idempotent.
func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Package mock provides in-memory fakes for the vad package interfaces.
//
// A Session plays back scripted detection events per submitted frame and
// keeps the frames it saw, so a test can drive a turn controller through an
// exact speech/silence sequence:
//
//	sess := &mock.Session{
//	    Script:     []vad.Event{{Type: vad.EventSpeechStart, LevelDb: -30}},
//	    Calibrated: true,
//	}
//	eng := &mock.Engine{Session: sess}
package mock

import (
	"sync"

	"github.com/standvox/standvox/pkg/audio"
	"github.com/standvox/standvox/pkg/provider/vad"
)

// Engine is a fake vad.Engine handing out a canned session.
type Engine struct {
	mu sync.Mutex

	// Session is what NewSession hands out; nil means a fresh empty Session
	// per call.
	Session vad.SessionHandle

	// NewSessionErr makes NewSession fail when non-nil.
	NewSessionErr error

	// Configs collects the Config of every NewSession call.
	Configs []vad.Config
}

var _ vad.Engine = (*Engine)(nil)

func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Configs = append(e.Configs, cfg)
	switch {
	case e.NewSessionErr != nil:
		return nil, e.NewSessionErr
	case e.Session != nil:
		return e.Session, nil
	default:
		return &Session{}, nil
	}
}

// Session is a fake vad.SessionHandle.
//
// ProcessFrame walks Script one entry per call and sticks on the last entry
// once the script runs out; an empty script yields EventResult forever.
type Session struct {
	mu sync.Mutex

	// Script supplies per-call detection results, in order.
	Script []vad.Event

	// EventResult is the fallback result when Script is empty.
	EventResult vad.Event

	// ProfileResult and Calibrated are what Profile reports.
	ProfileResult vad.CalibrationProfile
	Calibrated    bool

	// ProcessFrameErr makes every ProcessFrame call fail when non-nil.
	ProcessFrameErr error

	// CloseErr is returned from Close.
	CloseErr error

	// Frames holds every frame submitted through ProcessFrame.
	Frames []audio.Frame

	// ResetCallCount and CloseCallCount count the respective calls.
	ResetCallCount int
	CloseCallCount int

	cursor int
}

var _ vad.SessionHandle = (*Session)(nil)

func (s *Session) ProcessFrame(frame audio.Frame) (vad.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Frames = append(s.Frames, frame)
	if s.ProcessFrameErr != nil {
		return vad.Event{}, s.ProcessFrameErr
	}
	if len(s.Script) == 0 {
		return s.EventResult, nil
	}
	ev := s.Script[s.cursor]
	if s.cursor+1 < len(s.Script) {
		s.cursor++
	}
	return ev, nil
}

func (s *Session) Profile() (vad.CalibrationProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ProfileResult, s.Calibrated
}

// Reset rewinds the script to its first entry.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ResetCallCount++
	s.cursor = 0
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	return s.CloseErr
}

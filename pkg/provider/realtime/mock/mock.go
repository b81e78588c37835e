// Package mock provides in-memory fakes for the realtime package interfaces.
//
// A Session hands the caller both ends of the audio and transcript streams:
// tests push transcripts and synthesized audio into the channels they own and
// close them to end the session.
//
//	sess := &mock.Session{
//	    AudioCh:       make(chan []byte, 8),
//	    TranscriptsCh: make(chan realtime.Transcript, 4),
//	}
//	p := &mock.Provider{Session: sess}
package mock

import (
	"context"
	"sync"

	"github.com/standvox/standvox/pkg/provider/realtime"
)

// ConnectCall is one recorded Provider.Connect invocation.
type ConnectCall struct {
	Ctx context.Context
	Cfg realtime.SessionConfig
}

// Provider is a fake realtime.Provider handing out a canned session.
type Provider struct {
	mu sync.Mutex

	// Session is what Connect hands out; nil means a fresh Session with
	// buffered channels per call.
	Session realtime.SessionHandle

	// ConnectErr makes Connect fail when non-nil.
	ConnectErr error

	// ConnectCalls collects every Connect invocation.
	ConnectCalls []ConnectCall
}

var _ realtime.Provider = (*Provider)(nil)

func (p *Provider) Connect(ctx context.Context, cfg realtime.SessionConfig) (realtime.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConnectCalls = append(p.ConnectCalls, ConnectCall{Ctx: ctx, Cfg: cfg})
	switch {
	case p.ConnectErr != nil:
		return nil, p.ConnectErr
	case p.Session != nil:
		return p.Session, nil
	default:
		return &Session{
			AudioCh:       make(chan []byte, 64),
			TranscriptsCh: make(chan realtime.Transcript, 16),
		}, nil
	}
}

// SendAudioCall is one recorded SendAudio invocation.
type SendAudioCall struct {
	// Chunk is a copy of the submitted audio bytes.
	Chunk []byte
}

// Session is a fake realtime.SessionHandle. The test owns AudioCh and
// TranscriptsCh and closes them to signal end-of-session.
type Session struct {
	mu sync.Mutex

	// AudioCh backs Audio().
	AudioCh chan []byte

	// TranscriptsCh backs Transcripts().
	TranscriptsCh chan realtime.Transcript

	// SendAudioErr, UpdateInstructionsErr and CloseErr make the matching
	// method fail when non-nil.
	SendAudioErr          error
	UpdateInstructionsErr error
	CloseErr              error

	// ErrResult is what Err reports.
	ErrResult error

	// SendAudioCalls collects every SendAudio invocation.
	SendAudioCalls []SendAudioCall

	// Instructions collects the text of every UpdateInstructions call.
	Instructions []string

	// CloseCallCount counts Close calls.
	CloseCallCount int

	onError func(error)
}

var _ realtime.SessionHandle = (*Session)(nil)

func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.SendAudioCalls = append(s.SendAudioCalls, SendAudioCall{Chunk: cp})
	return s.SendAudioErr
}

func (s *Session) Audio() <-chan []byte { return s.AudioCh }

func (s *Session) Transcripts() <-chan realtime.Transcript { return s.TranscriptsCh }

func (s *Session) UpdateInstructions(instructions string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Instructions = append(s.Instructions, instructions)
	return s.UpdateInstructionsErr
}

func (s *Session) OnError(handler func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = handler
}

// Handler returns the error callback registered through OnError, so a test
// can inject transport errors.
func (s *Session) Handler() func(error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onError
}

func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ErrResult
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	return s.CloseErr
}

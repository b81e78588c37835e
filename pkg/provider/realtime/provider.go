// Package realtime defines the interface to the speech-to-speech interviewer
// transport: a bidirectional session that accepts microphone audio and
// delivers synthesized speech plus final transcripts for both parties.
package realtime

import (
	"context"
	"time"
)

// Role identifies which party a transcript belongs to.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Transcript is a finalized utterance transcript delivered by the transport.
// Partial (delta) transcripts are accumulated inside the provider; only
// completed utterances surface here.
type Transcript struct {
	Role Role
	Text string
	At   time.Time
}

// SessionConfig configures a new interviewer session.
type SessionConfig struct {
	// Instructions is the initial interviewer prompt.
	Instructions string

	// Voice selects the synthesized voice, provider-specific.
	Voice string

	// Speed scales speech rate; 1.0 is normal, 0 means provider default.
	Speed float64

	// TranscriptionModel and TranscriptionLanguage configure user-audio
	// transcription. Opaque to the flow engine.
	TranscriptionModel    string
	TranscriptionLanguage string
}

// SessionHandle is a live bidirectional session.
//
// Audio and Transcripts channels are owned by the session and closed when it
// terminates, whether by Close or by a transport failure; after closure Err
// reports the terminating error, if any.
type SessionHandle interface {
	// SendAudio delivers a raw PCM16 chunk of microphone audio.
	SendAudio(chunk []byte) error

	// Audio streams the interviewer's synthesized speech as PCM16 chunks.
	Audio() <-chan []byte

	// Transcripts streams finalized transcripts for both parties.
	Transcripts() <-chan Transcript

	// UpdateInstructions replaces the interviewer prompt mid-session.
	UpdateInstructions(instructions string) error

	// OnError registers a callback for non-fatal transport error events.
	OnError(handler func(error))

	// Err returns the first error that terminated the session, or nil.
	Err() error

	// Close terminates the session and releases its resources. Idempotent.
	Close() error
}

// Provider establishes interviewer sessions.
type Provider interface {
	Connect(ctx context.Context, cfg SessionConfig) (SessionHandle, error)
}

// Package audio defines the interfaces and types for microphone capture
// within Standvox.
//
// The two primary abstractions are:
//
//   - [Source] — opens the audio hardware (or a platform voice channel) and
//     returns a [Capture].
//   - [Capture] — an active capture stream, delivering raw PCM frames and
//     exposing the outgoing-track gate used by the turn controller.
//
// Implementations are provided by adapter packages (e.g., audio/discordcap).
// The interfaces are intentionally narrow so the session engine stays
// decoupled from hardware details.
//
// This package lives under pkg/ because external code (third-party capture
// adapters) is expected to implement [Source] and [Capture].
package audio

import (
	"context"
	"time"
)

// Frame is a single captured audio frame. Frames are the atomic unit fed to
// voice-activity detection and forwarded to the realtime transport.
type Frame struct {
	// PCM holds signed 16-bit mono samples in the time domain.
	PCM []int16

	// SampleRate in Hz (e.g., 48000 for Discord voice, 24000 for realtime APIs).
	SampleRate int

	// Timestamp marks when this frame was captured, relative to stream start.
	// Voice-activity hysteresis is driven off this clock, so adapters must
	// supply monotonically non-decreasing values.
	Timestamp time.Duration
}

// Duration returns the play time of the frame, derived from sample count and
// rate. Returns zero when the sample rate is unset.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.PCM)) * time.Second / time.Duration(f.SampleRate)
}

// Capture represents an active microphone capture stream.
//
// The stream delivers frames continuously on the Frames channel regardless of
// the track gate: SetTrackEnabled controls only whether the captured audio is
// transmitted onward (the "mic" the interviewee perceives), so the session
// engine can keep analysing ambient audio while the track is muted.
//
// Implementations must be safe for concurrent use.
type Capture interface {
	// Frames returns the channel on which captured frames arrive. The channel
	// is closed when the capture ends, either via Stop or because the
	// underlying transport disconnected.
	Frames() <-chan Frame

	// SetTrackEnabled enables or disables the outgoing audio track. Disabling
	// does not stop capture; it gates transmission. Returns an error if the
	// capture has been stopped.
	SetTrackEnabled(enabled bool) error

	// TrackEnabled reports the current gate position.
	TrackEnabled() bool

	// Stop releases the capture hardware and closes the Frames channel.
	// Calling Stop more than once is safe and returns nil.
	Stop() error
}

// Playback is optionally implemented by captures that can also render audio
// to the participant (e.g., a voice channel adapter that plays the
// interviewer's synthesised speech). The session engine type-asserts for it
// and silently skips playback when absent.
type Playback interface {
	// Play queues a chunk of raw PCM for playback. Must not block
	// indefinitely; implementations may drop frames under backpressure.
	Play(pcm []int16, sampleRate int) error
}

// Source is the entry point for a capture provider.
//
// Implementations must be safe for concurrent use.
type Source interface {
	// Open starts capturing and returns an active [Capture]. The supplied ctx
	// governs the setup phase only; once returned, the Capture lives until
	// [Capture.Stop] is called.
	Open(ctx context.Context) (Capture, error)
}

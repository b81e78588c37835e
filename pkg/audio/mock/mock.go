// Package mock provides in-memory mock implementations of the [audio.Source]
// and [audio.Capture] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so
// that tests can assert on call counts and arguments, and they expose
// exported fields that the test can set to control return values.
//
// Typical usage:
//
//	frames := make(chan audio.Frame, 16)
//	cap := &mock.Capture{FramesResult: frames}
//	source := &mock.Source{OpenResult: cap}
//	got, err := source.Open(ctx)
package mock

import (
	"context"
	"sync"

	"github.com/standvox/standvox/pkg/audio"
)

// ─── Capture ──────────────────────────────────────────────────────────────────

// Capture is a mock implementation of [audio.Capture].
// Set the exported Result fields before use; inspect the Call* fields after.
type Capture struct {
	mu sync.Mutex

	// FramesResult is returned by [Capture.Frames]. Defaults to a closed
	// channel if left nil.
	FramesResult chan audio.Frame

	// SetTrackEnabledError is returned by [Capture.SetTrackEnabled].
	SetTrackEnabledError error

	// StopError is returned by [Capture.Stop].
	StopError error

	// PlayError is returned by [Capture.Play].
	PlayError error

	// Enabled mirrors the last value passed to SetTrackEnabled.
	Enabled bool

	// GateChanges records every value passed to SetTrackEnabled, in order.
	GateChanges []bool

	// Played records every PCM chunk passed to Play, in order.
	Played [][]int16

	// CallCountStop records how many times Stop was called.
	CallCountStop int

	stopped bool
}

// Frames returns FramesResult, or a pre-closed channel when unset.
func (c *Capture) Frames() <-chan audio.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FramesResult == nil {
		ch := make(chan audio.Frame)
		close(ch)
		return ch
	}
	return c.FramesResult
}

// SetTrackEnabled records the gate change and returns SetTrackEnabledError.
func (c *Capture) SetTrackEnabled(enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.GateChanges = append(c.GateChanges, enabled)
	if c.SetTrackEnabledError != nil {
		return c.SetTrackEnabledError
	}
	c.Enabled = enabled
	return nil
}

// TrackEnabled reports the last successfully applied gate position.
func (c *Capture) TrackEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Enabled
}

// Play records the chunk and returns PlayError.
func (c *Capture) Play(pcm []int16, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]int16, len(pcm))
	copy(cp, pcm)
	c.Played = append(c.Played, cp)
	return c.PlayError
}

// Stop records the call, closes FramesResult on first use, and returns StopError.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountStop++
	if !c.stopped {
		c.stopped = true
		if c.FramesResult != nil {
			close(c.FramesResult)
		}
	}
	return c.StopError
}

// Stopped reports whether Stop has been called at least once.
func (c *Capture) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// Compile-time interface assertions.
var _ audio.Capture = (*Capture)(nil)
var _ audio.Playback = (*Capture)(nil)

// ─── Source ───────────────────────────────────────────────────────────────────

// Source is a mock implementation of [audio.Source].
type Source struct {
	mu sync.Mutex

	// OpenResult is returned by [Source.Open]. Defaults to a new empty
	// Capture if left nil.
	OpenResult audio.Capture

	// OpenError, if non-nil, is returned as the error from Open.
	OpenError error

	// CallCountOpen records how many times Open was called.
	CallCountOpen int
}

// Open records the call and returns OpenResult, OpenError.
func (s *Source) Open(_ context.Context) (audio.Capture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountOpen++
	if s.OpenError != nil {
		return nil, s.OpenError
	}
	if s.OpenResult != nil {
		return s.OpenResult, nil
	}
	return &Capture{}, nil
}

var _ audio.Source = (*Source)(nil)

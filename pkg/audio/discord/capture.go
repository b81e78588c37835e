package discord

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/standvox/standvox/pkg/audio"
)

// Compile-time interface assertions.
var (
	_ audio.Capture  = (*Capture)(nil)
	_ audio.Playback = (*Capture)(nil)
)

const (
	frameChannelBuffer  = 64
	outputChannelBuffer = 64
)

// ErrCaptureStopped is returned by Play after Stop has been called.
var ErrCaptureStopped = errors.New("discord: capture stopped")

// Capture wraps a discordgo.VoiceConnection and adapts it to the
// [audio.Capture] and [audio.Playback] interfaces. Incoming Opus packets
// are decoded per SSRC, downmixed to mono and delivered as [audio.Frame]
// values on a single stream; outgoing PCM handed to Play is resampled to
// 48 kHz stereo, encoded to Opus and transmitted.
//
// The transmit gate set via SetTrackEnabled is advisory state for the
// caller; frames keep flowing while muted so downstream level detection
// stays calibrated.
//
// Capture is safe for concurrent use.
type Capture struct {
	vc *discordgo.VoiceConnection

	frames  chan audio.Frame
	output  chan []int16 // 48 kHz interleaved stereo
	enabled atomic.Bool

	done      chan struct{}
	closeOnce sync.Once

	// disconnectVC tears down the voice connection during Stop.
	// Defaults to vc.Disconnect; overridden in tests.
	disconnectVC func() error
}

// newCapture initialises a Capture for an already-joined voice channel and
// starts its receive and send loops.
func newCapture(vc *discordgo.VoiceConnection) *Capture {
	c := &Capture{
		vc:           vc,
		frames:       make(chan audio.Frame, frameChannelBuffer),
		output:       make(chan []int16, outputChannelBuffer),
		done:         make(chan struct{}),
		disconnectVC: vc.Disconnect,
	}
	c.enabled.Store(true)

	go c.recvLoop()
	go c.sendLoop()

	return c
}

// Frames returns the mono PCM frame stream. The channel is closed by Stop.
func (c *Capture) Frames() <-chan audio.Frame {
	return c.frames
}

// SetTrackEnabled records the microphone transmit gate.
func (c *Capture) SetTrackEnabled(enabled bool) error {
	c.enabled.Store(enabled)
	return nil
}

// TrackEnabled reports the microphone transmit gate.
func (c *Capture) TrackEnabled() bool {
	return c.enabled.Load()
}

// Play queues mono PCM at the given sample rate for transmission. It returns
// [ErrCaptureStopped] once Stop has been called.
func (c *Capture) Play(pcm []int16, sampleRate int) error {
	stereo := upmix(resample(pcm, sampleRate, opusSampleRate))
	select {
	case c.output <- stereo:
		return nil
	case <-c.done:
		return ErrCaptureStopped
	}
}

// Stop tears down the voice connection and stops the background loops.
// Safe to call more than once; subsequent calls return nil.
func (c *Capture) Stop() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		if c.disconnectVC != nil {
			err = c.disconnectVC()
		}
	})
	return err
}

// recvLoop reads Opus packets from the voice connection, decodes them with a
// per-SSRC decoder, downmixes to mono and delivers frames. It owns the frames
// channel and closes it on exit.
func (c *Capture) recvLoop() {
	defer close(c.frames)

	decoders := make(map[uint32]*opusDecoder)

	for {
		select {
		case <-c.done:
			return
		case pkt, ok := <-c.vc.OpusRecv:
			if !ok {
				return
			}
			if pkt == nil {
				continue
			}

			dec, exists := decoders[pkt.SSRC]
			if !exists {
				var err error
				dec, err = newOpusDecoder()
				if err != nil {
					slog.Error("discord: failed to create opus decoder", "ssrc", pkt.SSRC, "error", err)
					continue
				}
				decoders[pkt.SSRC] = dec
			}

			stereo, err := dec.decode(pkt.Opus)
			if err != nil {
				slog.Warn("discord: opus decode error", "ssrc", pkt.SSRC, "error", err)
				continue
			}

			frame := audio.Frame{
				PCM:        downmix(stereo),
				SampleRate: opusSampleRate,
				Timestamp:  time.Duration(pkt.Timestamp) * time.Second / time.Duration(opusSampleRate),
			}

			select {
			case c.frames <- frame:
			default:
				// Channel full. Drop the frame rather than block.
			}
		}
	}
}

// sendLoop reads stereo PCM from the output channel, slices it into exact
// 20 ms Opus frames, encodes and transmits them.
func (c *Capture) sendLoop() {
	enc, err := newOpusEncoder()
	if err != nil {
		slog.Error("discord: failed to create opus encoder", "error", err)
		return
	}

	const frameSamples = opusFrameSize * opusChannels

	speakingSet := false
	var buf []int16

	for {
		select {
		case <-c.done:
			if speakingSet {
				c.setSpeaking(false)
			}
			return
		case pcm, ok := <-c.output:
			if !ok {
				return
			}

			if !speakingSet {
				c.setSpeaking(true)
				speakingSet = true
			}

			buf = append(buf, pcm...)

			for len(buf) >= frameSamples {
				opus, eErr := enc.encode(buf[:frameSamples])
				buf = buf[frameSamples:]
				if eErr != nil {
					slog.Warn("discord: opus encode error", "error", eErr)
					continue
				}

				select {
				case c.vc.OpusSend <- opus:
				case <-c.done:
					return
				}
			}
		}
	}
}

// setSpeaking sends a speaking notification to Discord, logging any errors.
func (c *Capture) setSpeaking(b bool) {
	if err := c.vc.Speaking(b); err != nil {
		slog.Warn("discord: speaking notification error", "speaking", b, "error", err)
	}
}

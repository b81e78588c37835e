// Package discord provides an [audio.Source] implementation backed by a
// Discord voice channel via the bwmarrin/discordgo library. It bridges
// Discord's Opus-based voice transport with Standvox's PCM [audio.Frame]
// pipeline: incoming participant audio is decoded and downmixed to mono
// frames for the detection pipeline, and interviewer speech played back
// through [Capture.Play] is resampled and encoded for transmission.
//
// The source requires an active *discordgo.Session (owned by the bot layer),
// a guild ID and a voice channel ID. Each call to [Source.Open] joins the
// channel and returns a live [Capture].
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/standvox/standvox/pkg/audio"
)

// Compile-time interface assertion.
var _ audio.Source = (*Source)(nil)

// Source implements [audio.Source] for a fixed Discord voice channel.
//
// Source is safe for concurrent use.
type Source struct {
	session   *discordgo.Session
	guildID   string
	channelID string
}

// New creates a Source for the given session, guild and voice channel.
func New(session *discordgo.Session, guildID, channelID string) *Source {
	return &Source{
		session:   session,
		guildID:   guildID,
		channelID: channelID,
	}
}

// Open joins the voice channel and returns an active [Capture]. The supplied
// ctx governs the join phase only; once the Capture is returned it lives
// until [Capture.Stop] is called.
func (s *Source) Open(_ context.Context) (audio.Capture, error) {
	// mute=false (we send audio), deaf=false (we receive audio).
	vc, err := s.session.ChannelVoiceJoin(s.guildID, s.channelID, false, false)
	if err != nil {
		return nil, fmt.Errorf("discord: join voice channel %q: %w", s.channelID, err)
	}
	return newCapture(vc), nil
}

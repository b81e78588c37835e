package discord

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// ephemeralReply answers an interaction with a message only the invoking
// user can see. Delivery failures are logged, not returned; there is nobody
// upstream who could retry an interaction response.
func ephemeralReply(s *discordgo.Session, i *discordgo.InteractionCreate, data *discordgo.InteractionResponseData) {
	data.Flags |= discordgo.MessageFlagsEphemeral
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		slog.Warn("discord: interaction response failed", "err", err)
	}
}

// RespondEphemeral replies to an interaction with plain text.
func RespondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	ephemeralReply(s, i, &discordgo.InteractionResponseData{Content: content})
}

// RespondEmbed replies to an interaction with a single embed.
func RespondEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	ephemeralReply(s, i, &discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{embed},
	})
}

package discord

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/standvox/standvox/internal/standup"
)

// embedColorGreen is the embed sidebar color while the interview is running.
const embedColorGreen = 0x2ECC71

// embedColorRed is the embed sidebar color once the interview has completed.
const embedColorRed = 0xE74C3C

// buildStatusEmbed renders the per-participant answers recorded so far.
func buildStatusEmbed(roster []standup.Participant, completed bool) *discordgo.MessageEmbed {
	fields := make([]*discordgo.MessageEmbedField, 0, len(roster))
	answered := 0
	for _, p := range roster {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  p.Name,
			Value: formatAnswers(p),
		})
		if p.Responses[standup.Blockers] != "" {
			answered++
		}
	}

	color := embedColorGreen
	footer := fmt.Sprintf("In progress — %d/%d participants done", answered, len(roster))
	if completed {
		color = embedColorRed
		footer = "Interview completed"
	}

	return &discordgo.MessageEmbed{
		Title:  "Standup Status",
		Color:  color,
		Fields: fields,
		Footer: &discordgo.MessageEmbedFooter{
			Text: footer,
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// formatAnswers renders one participant's answers as a compact block,
// substituting a dash for questions not yet answered.
func formatAnswers(p standup.Participant) string {
	var b strings.Builder
	for _, kind := range []standup.QuestionKind{standup.Yesterday, standup.Today, standup.Blockers} {
		answer := p.Responses[kind]
		if answer == "" {
			answer = "—"
		}
		fmt.Fprintf(&b, "**%s:** %s\n", kind.String(), answer)
	}
	return b.String()
}

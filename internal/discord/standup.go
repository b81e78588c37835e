package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/standvox/standvox/internal/standup"
)

// InterviewControl is the subset of the live session the slash commands
// operate on.
type InterviewControl interface {
	ToggleMic()
	Advance()
	Stop()
	Responses() *standup.ResponseStore
	Completed() bool
}

// StandupCommands holds the dependencies for the /standup slash command
// group. The control lookup returns nil while no interview is running.
type StandupCommands struct {
	control func() InterviewControl
	perms   *PermissionChecker
}

// NewStandupCommands creates a StandupCommands and registers its handlers
// with the bot's router.
func NewStandupCommands(bot *Bot, control func() InterviewControl) *StandupCommands {
	sc := &StandupCommands{
		control: control,
		perms:   bot.Permissions(),
	}
	sc.Register(bot.Router())
	return sc
}

// Register registers the /standup command group with the router.
func (sc *StandupCommands) Register(router *CommandRouter) {
	router.RegisterCommand("standup", sc.Definition(), func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		RespondEphemeral(s, i, "Please use a subcommand: `/standup status`, `/standup mic`, `/standup skip` or `/standup stop`.")
	})
	router.RegisterHandler("standup/status", sc.handleStatus)
	router.RegisterHandler("standup/mic", sc.handleMic)
	router.RegisterHandler("standup/skip", sc.handleSkip)
	router.RegisterHandler("standup/stop", sc.handleStop)
}

// Definition returns the ApplicationCommand definition for Discord.
func (sc *StandupCommands) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "standup",
		Description: "Control the voice standup interview",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "status",
				Description: "Show the answers recorded so far",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "mic",
				Description: "Toggle the interviewee microphone",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "skip",
				Description: "Skip to the next participant",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "stop",
				Description: "End the interview session",
			},
		},
	}
}

// activeControl resolves the live session, replying with an ephemeral notice
// when none is running.
func (sc *StandupCommands) activeControl(s *discordgo.Session, i *discordgo.InteractionCreate) InterviewControl {
	ctl := sc.control()
	if ctl == nil {
		RespondEphemeral(s, i, "No interview is running.")
		return nil
	}
	return ctl
}

// checkControl verifies the author may run control commands.
func (sc *StandupCommands) checkControl(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	if !sc.perms.CanControl(i) {
		RespondEphemeral(s, i, "You need the facilitator role to control the interview.")
		return false
	}
	return true
}

func (sc *StandupCommands) handleStatus(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctl := sc.activeControl(s, i)
	if ctl == nil {
		return
	}
	RespondEmbed(s, i, buildStatusEmbed(ctl.Responses().Participants(), ctl.Completed()))
}

func (sc *StandupCommands) handleMic(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !sc.checkControl(s, i) {
		return
	}
	ctl := sc.activeControl(s, i)
	if ctl == nil {
		return
	}
	ctl.ToggleMic()
	RespondEphemeral(s, i, "Microphone toggled.")
}

func (sc *StandupCommands) handleSkip(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !sc.checkControl(s, i) {
		return
	}
	ctl := sc.activeControl(s, i)
	if ctl == nil {
		return
	}
	ctl.Advance()
	RespondEphemeral(s, i, "Skipping to the next participant.")
}

func (sc *StandupCommands) handleStop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !sc.checkControl(s, i) {
		return
	}
	ctl := sc.activeControl(s, i)
	if ctl == nil {
		return
	}
	ctl.Stop()
	RespondEphemeral(s, i, "Interview stopped.")
}

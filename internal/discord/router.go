package discord

import (
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// HandlerFunc handles one slash command interaction.
type HandlerFunc func(s *discordgo.Session, i *discordgo.InteractionCreate)

// CommandRouter maps slash command interactions onto handlers. Keys are the
// command name, or "command/subcommand" for nested commands such as
// "standup/skip".
type CommandRouter struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	defs     []*discordgo.ApplicationCommand
}

// NewCommandRouter creates an empty router.
func NewCommandRouter() *CommandRouter {
	return &CommandRouter{handlers: make(map[string]HandlerFunc)}
}

// RegisterCommand registers a top-level slash command: its definition, which
// is later pushed to the Discord API, and the handler invoked when the
// command arrives without a recognised subcommand.
func (r *CommandRouter) RegisterCommand(key string, cmd *discordgo.ApplicationCommand, handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[key] = handler
	if cmd != nil {
		r.defs = append(r.defs, cmd)
	}
}

// RegisterHandler registers a handler for a "command/subcommand" key. The
// subcommand's definition is nested inside the parent command's, so none is
// taken here.
func (r *CommandRouter) RegisterHandler(key string, handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[key] = handler
}

// ApplicationCommands returns the command definitions to push to Discord.
func (r *CommandRouter) ApplicationCommands() []*discordgo.ApplicationCommand {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*discordgo.ApplicationCommand, len(r.defs))
	copy(out, r.defs)
	return out
}

// Handle dispatches an interaction to its handler. Unknown commands get an
// ephemeral notice; non-command interactions are dropped.
func (r *CommandRouter) Handle(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		slog.Debug("discord: ignoring interaction type", "type", i.Type)
		return
	}

	data := i.ApplicationCommandData()
	key := data.Name
	if len(data.Options) > 0 && data.Options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		key += "/" + data.Options[0].Name
	}

	r.mu.RLock()
	handler := r.handlers[key]
	r.mu.RUnlock()

	if handler == nil {
		slog.Warn("discord: unknown command", "key", key)
		RespondEphemeral(s, i, "Unknown command.")
		return
	}
	handler(s, i)
}

// Package discord provides the Discord-facing layer of Standvox: the gateway
// session lifecycle, slash command routing, and the facilitator role check
// guarding interview control commands.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// Config holds the bot's connection settings.
type Config struct {
	// Token is the bot token, without the "Bot " prefix.
	Token string

	// GuildID is the single guild the bot serves.
	GuildID string

	// ControlRoleID gates interview control commands. Empty opens them to
	// everyone.
	ControlRoleID string
}

// Bot owns the gateway connection. Handlers register through Router before
// Run pushes the command definitions to Discord.
type Bot struct {
	gateway *discordgo.Session
	router  *CommandRouter
	perms   *PermissionChecker
	guildID string

	mu         sync.Mutex
	registered []*discordgo.ApplicationCommand
	closeOnce  sync.Once
}

// New connects to the Discord gateway and wires interaction dispatch. The
// caller must Close the returned bot.
func New(cfg Config) (*Bot, error) {
	gw, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	gw.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	if err := gw.Open(); err != nil {
		return nil, fmt.Errorf("discord: open session: %w", err)
	}

	b := &Bot{
		gateway: gw,
		router:  NewCommandRouter(),
		perms:   NewPermissionChecker(cfg.ControlRoleID),
		guildID: cfg.GuildID,
	}
	gw.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.router.Handle(s, i)
	})
	return b, nil
}

// Session exposes the gateway session for the voice capture adapter.
func (b *Bot) Session() *discordgo.Session { return b.gateway }

// GuildID returns the guild the bot serves.
func (b *Bot) GuildID() string { return b.guildID }

// Router returns the command router for registering handlers.
func (b *Bot) Router() *CommandRouter { return b.router }

// Permissions returns the facilitator role checker.
func (b *Bot) Permissions() *PermissionChecker { return b.perms }

// Run pushes the registered slash commands to the guild and blocks until ctx
// is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.pushCommands(); err != nil {
		return err
	}
	<-ctx.Done()
	return ctx.Err()
}

func (b *Bot) pushCommands() error {
	defs := b.router.ApplicationCommands()
	if len(defs) == 0 {
		return nil
	}

	appID := b.gateway.State.User.ID
	registered, err := b.gateway.ApplicationCommandBulkOverwrite(appID, b.guildID, defs)
	if err != nil {
		return fmt.Errorf("discord: register commands: %w", err)
	}

	b.mu.Lock()
	b.registered = registered
	b.mu.Unlock()
	slog.Info("discord commands registered", "count", len(registered))
	return nil
}

// Close removes the guild commands and drops the gateway connection. Safe to
// call more than once.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		b.removeCommands()
		if err := b.gateway.Close(); err != nil {
			closeErr = fmt.Errorf("discord: close session: %w", err)
		}
		slog.Info("discord bot closed")
	})
	return closeErr
}

func (b *Bot) removeCommands() {
	b.mu.Lock()
	registered := b.registered
	b.registered = nil
	b.mu.Unlock()

	appID := b.gateway.State.User.ID
	for _, cmd := range registered {
		if err := b.gateway.ApplicationCommandDelete(appID, b.guildID, cmd.ID); err != nil {
			slog.Warn("discord: deleting command failed", "name", cmd.Name, "err", err)
		}
	}
}

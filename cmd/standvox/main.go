// Command standvox is the main entry point for the Standvox voice standup
// server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/standvox/standvox/internal/app"
	"github.com/standvox/standvox/internal/config"
	discordbot "github.com/standvox/standvox/internal/discord"
	"github.com/standvox/standvox/internal/observe"
	"github.com/standvox/standvox/pkg/audio"
	discordcap "github.com/standvox/standvox/pkg/audio/discord"
	"github.com/standvox/standvox/pkg/provider/realtime"
	"github.com/standvox/standvox/pkg/provider/realtime/openai"
	"github.com/standvox/standvox/pkg/provider/vad"
	"github.com/standvox/standvox/pkg/provider/vad/energy"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "standvox: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "standvox: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	lvl := new(slog.LevelVar)
	lvl.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	slog.Info("standvox starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Discord bot (optional) ────────────────────────────────────────────────
	var bot *discordbot.Bot
	if cfg.Capture.BotToken != "" {
		bot, err = discordbot.New(discordbot.Config{
			Token:         cfg.Capture.BotToken,
			GuildID:       cfg.Capture.GuildID,
			ControlRoleID: cfg.Capture.ControlRoleID,
		})
		if err != nil {
			slog.Error("failed to create Discord bot", "err", err)
			return 1
		}
		slog.Info("discord bot connected", "guild_id", cfg.Capture.GuildID)
	}

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg, bot)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Application ───────────────────────────────────────────────────────────
	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Slash commands ────────────────────────────────────────────────────────
	if bot != nil {
		discordbot.NewStandupCommands(bot, func() discordbot.InterviewControl {
			if m := application.Session(); m != nil {
				return m
			}
			return nil
		})
		go func() {
			if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("discord bot error", "err", err)
			}
		}()
	}

	// ── Config watcher ────────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(oldCfg, newCfg *config.Config) {
		diff := config.Diff(oldCfg, newCfg)
		if diff.LogLevelChanged {
			lvl.Set(slogLevel(diff.NewLogLevel))
			slog.Info("log level changed", "level", diff.NewLogLevel)
		}
		for _, change := range diff.RosterChanges {
			switch {
			case change.Added:
				slog.Info("roster change takes effect next session", "added", change.Name)
			case change.Removed:
				slog.Info("roster change takes effect next session", "removed", change.Name)
			}
		}
		if diff.VoiceChanged {
			slog.Info("voice change takes effect next session")
		}
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	// Close the Discord bot first (unregister commands, disconnect).
	if bot != nil {
		if err := bot.Close(); err != nil {
			slog.Warn("discord bot close error", "err", err)
		}
	}

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires the provider factories that ship with
// Standvox into reg. The Discord capture factory needs the live bot session;
// when none is connected it reports the capture as unavailable.
func registerBuiltinProviders(reg *config.Registry, bot *discordbot.Bot) {
	reg.RegisterRealtime("openai", func(entry config.RealtimeConfig) (realtime.Provider, error) {
		var opts []openai.Option
		if entry.Model != "" {
			opts = append(opts, openai.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		return openai.New(entry.APIKey, opts...), nil
	})

	reg.RegisterVAD("energy", func(config.VADConfig) (vad.Engine, error) {
		return energy.New(), nil
	})

	reg.RegisterCapture("discord", func(entry config.CaptureConfig) (audio.Source, error) {
		if bot == nil {
			return nil, errors.New("discord capture requires a connected bot session")
		}
		return discordcap.New(bot.Session(), entry.GuildID, entry.ChannelID), nil
	})
}

// buildProviders instantiates the providers named in cfg. The realtime and
// VAD slots are required for a live session; capture is optional and the
// application falls back to record-server-only mode without it.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	if name := cfg.Realtime.Name; name != "" && cfg.Realtime.APIKey != "" {
		p, err := reg.CreateRealtime(cfg.Realtime)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("provider not registered — skipping", "kind", "realtime", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create realtime provider %q: %w", name, err)
		} else {
			ps.Realtime = p
			slog.Info("provider created", "kind", "realtime", "name", name)
		}
	}

	if name := cfg.VAD.Name; name != "" {
		p, err := reg.CreateVAD(cfg.VAD)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("provider not registered — skipping", "kind", "vad", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create vad provider %q: %w", name, err)
		} else {
			ps.VAD = p
			slog.Info("provider created", "kind", "vad", "name", name)
		}
	}

	if name := cfg.Capture.Name; name != "" && cfg.Capture.BotToken != "" {
		p, err := reg.CreateCapture(cfg.Capture)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("provider not registered — skipping", "kind", "capture", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create capture provider %q: %w", name, err)
		} else {
			ps.Capture = p
			slog.Info("provider created", "kind", "capture", "name", name)
		}
	}

	return ps, nil
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"realtime": {"openai"},
	"vad":      {"energy"},
	"capture":  {"discord"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero-valued fields with their documented defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Realtime.Name == "" {
		cfg.Realtime.Name = "openai"
	}
	if cfg.Realtime.Model == "" {
		cfg.Realtime.Model = "gpt-4o-realtime-preview-2024-12-17"
	}
	if cfg.Realtime.Voice == "" {
		cfg.Realtime.Voice = "alloy"
	}
	if cfg.Realtime.Speed == 0 {
		cfg.Realtime.Speed = 1.0
	}
	if cfg.Realtime.TranscriptionModel == "" {
		cfg.Realtime.TranscriptionModel = "whisper-1"
	}
	if cfg.Realtime.TranscriptionLanguage == "" {
		cfg.Realtime.TranscriptionLanguage = "en"
	}
	if cfg.VAD.Name == "" {
		cfg.VAD.Name = "energy"
	}
	if cfg.VAD.SampleRate == 0 {
		cfg.VAD.SampleRate = 48000
	}
	if cfg.VAD.CalibrationFrames == 0 {
		cfg.VAD.CalibrationFrames = 60
	}
	if cfg.VAD.MarginDb == 0 {
		cfg.VAD.MarginDb = 12
	}
	if cfg.VAD.FloorDb == 0 {
		cfg.VAD.FloorDb = -50
	}
	if cfg.VAD.HoldMs == 0 {
		cfg.VAD.HoldMs = 1800
	}
	if cfg.Persistence.Backend == "" {
		cfg.Persistence.Backend = BackendFile
	}
	if cfg.Persistence.DataDir == "" {
		cfg.Persistence.DataDir = "data"
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("realtime", cfg.Realtime.Name)
	validateProviderName("vad", cfg.VAD.Name)
	validateProviderName("capture", cfg.Capture.Name)

	// Realtime
	if cfg.Realtime.Speed != 0 {
		if cfg.Realtime.Speed < 0.25 || cfg.Realtime.Speed > 1.5 {
			errs = append(errs, fmt.Errorf("realtime.speed %.2f is out of range [0.25, 1.5]", cfg.Realtime.Speed))
		}
	}
	if cfg.Realtime.APIKey == "" {
		slog.Warn("realtime.api_key is empty; live interview sessions will not be able to connect")
	}

	// VAD
	if cfg.VAD.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("vad.sample_rate %d must be positive", cfg.VAD.SampleRate))
	}
	if cfg.VAD.CalibrationFrames < 0 {
		errs = append(errs, fmt.Errorf("vad.calibration_frames %d must be positive", cfg.VAD.CalibrationFrames))
	}
	if cfg.VAD.HoldMs < 0 {
		errs = append(errs, fmt.Errorf("vad.hold_ms %d must be positive", cfg.VAD.HoldMs))
	}

	// Capture
	if cfg.Capture.Name == "discord" {
		if cfg.Capture.BotToken == "" {
			errs = append(errs, errors.New("capture.bot_token is required for the discord adapter"))
		}
		if cfg.Capture.GuildID == "" || cfg.Capture.ChannelID == "" {
			errs = append(errs, errors.New("capture.guild_id and capture.channel_id are required for the discord adapter"))
		}
	}

	// Roster duplicate detection
	seen := make(map[string]int, len(cfg.Roster))
	for i, name := range cfg.Roster {
		if name == "" {
			errs = append(errs, fmt.Errorf("roster[%d] is empty", i))
			continue
		}
		if prev, ok := seen[name]; ok {
			errs = append(errs, fmt.Errorf("roster[%d] %q is a duplicate of roster[%d]", i, name, prev))
		}
		seen[name] = i
	}

	// Persistence
	if cfg.Persistence.Backend != "" && !cfg.Persistence.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("persistence.backend %q is invalid; valid values: file, postgres", cfg.Persistence.Backend))
	}
	if cfg.Persistence.Backend == BackendPostgres && cfg.Persistence.PostgresDSN == "" {
		errs = append(errs, errors.New("persistence.postgres_dsn is required when persistence.backend is postgres"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}

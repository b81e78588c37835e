package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	RosterChanged   bool         // true if any roster member was added or removed
	RosterChanges   []RosterDiff // per-member diffs
	LogLevelChanged bool
	NewLogLevel     LogLevel
	VoiceChanged    bool // realtime voice or speed changed; applies to the next session
}

// RosterDiff describes a single roster membership change between two configs.
type RosterDiff struct {
	Name    string
	Added   bool
	Removed bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	// Realtime voice tuning
	if old.Realtime.Voice != new.Realtime.Voice || old.Realtime.Speed != new.Realtime.Speed {
		d.VoiceChanged = true
	}

	// Roster membership, keyed by name.
	oldNames := make(map[string]bool, len(old.Roster))
	for _, name := range old.Roster {
		oldNames[name] = true
	}
	newNames := make(map[string]bool, len(new.Roster))
	for _, name := range new.Roster {
		newNames[name] = true
	}

	for _, name := range new.Roster {
		if !oldNames[name] {
			d.RosterChanged = true
			d.RosterChanges = append(d.RosterChanges, RosterDiff{Name: name, Added: true})
		}
	}
	for _, name := range old.Roster {
		if !newNames[name] {
			d.RosterChanged = true
			d.RosterChanges = append(d.RosterChanges, RosterDiff{Name: name, Removed: true})
		}
	}

	return d
}

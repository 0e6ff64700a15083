package config

// ConfigDiff describes what changed between two configs. Only changes that
// can be applied to a running process are tracked individually; everything
// touching the live session is summarised by SessionChanged.
type ConfigDiff struct {
	// LogLevelChanged is true when the log verbosity differs. The new level
	// can be applied without restarting.
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// SessionChanged is true when instructions, voice, model or VAD tuning
	// differ. Applying these requires reconnecting the realtime session.
	SessionChanged bool

	// AudioChanged is true when the capture device settings differ.
	// Applying these requires reopening the input device.
	AudioChanged bool
}

// Empty reports whether the diff carries no changes.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.SessionChanged && !d.AudioChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.OpenAI != new.OpenAI || old.Session != new.Session {
		d.SessionChanged = true
	}

	if old.Audio != new.Audio {
		d.AudioChanged = true
	}

	return d
}

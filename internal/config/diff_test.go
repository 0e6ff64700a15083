package config_test

import (
	"testing"

	"github.com/careercompass/vector/internal/config"
)

func baseConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.ListenAddr = ":8080"
	cfg.Server.LogLevel = config.LogInfo
	cfg.OpenAI.APIKey = "sk-test"
	cfg.OpenAI.Voice = "alloy"
	cfg.Session.Instructions = "be helpful"
	cfg.Session.VAD.Threshold = 0.5
	cfg.Audio.InputDevice = "default"
	return cfg
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()

	old := baseConfig()
	new := baseConfig()

	d := config.Diff(old, new)
	if !d.Empty() {
		t.Errorf("Diff of identical configs = %+v; want empty", d)
	}
}

func TestDiff_LogLevel(t *testing.T) {
	t.Parallel()

	old := baseConfig()
	new := baseConfig()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("LogLevelChanged = false; want true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("NewLogLevel = %q; want debug", d.NewLogLevel)
	}
	if d.SessionChanged || d.AudioChanged {
		t.Errorf("unrelated flags set: %+v", d)
	}
}

func TestDiff_SessionFields(t *testing.T) {
	t.Parallel()

	for name, mutate := range map[string]func(*config.Config){
		"instructions": func(c *config.Config) { c.Session.Instructions = "be terse" },
		"voice":        func(c *config.Config) { c.OpenAI.Voice = "echo" },
		"model":        func(c *config.Config) { c.OpenAI.Model = "other" },
		"vad":          func(c *config.Config) { c.Session.VAD.SilenceDurationMs = 900 },
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			old := baseConfig()
			new := baseConfig()
			mutate(new)

			d := config.Diff(old, new)
			if !d.SessionChanged {
				t.Error("SessionChanged = false; want true")
			}
		})
	}
}

func TestDiff_Audio(t *testing.T) {
	t.Parallel()

	old := baseConfig()
	new := baseConfig()
	new.Audio.InputDevice = ":0"

	d := config.Diff(old, new)
	if !d.AudioChanged {
		t.Error("AudioChanged = false; want true")
	}
	if d.SessionChanged {
		t.Error("SessionChanged = true; want false")
	}
}

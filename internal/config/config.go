// Package config provides the configuration schema and loader for the Vector
// voice assistant.
package config

// LogLevel controls log verbosity for the Vector process.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Vector.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	OpenAI  OpenAIConfig  `yaml:"openai"`
	Session SessionConfig `yaml:"session"`
	Audio   AudioConfig   `yaml:"audio"`
}

// ServerConfig holds the diagnostics endpoint and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the diagnostics server (metrics, health)
	// listens on (e.g., ":8080"). Empty disables the server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// OpenAIConfig holds credentials and model selection for the Realtime API.
type OpenAIConfig struct {
	// APIKey authenticates against the Realtime endpoint. When empty, the
	// OPENAI_API_KEY environment variable is used instead.
	APIKey string `yaml:"api_key"`

	// Model selects the realtime model. Empty uses the client's pinned
	// default.
	Model string `yaml:"model"`

	// BaseURL overrides the WebSocket endpoint. Leave empty for the
	// production endpoint.
	BaseURL string `yaml:"base_url" validate:"omitempty,uri"`

	// Voice selects the synthesis voice (e.g., "alloy").
	Voice string `yaml:"voice"`
}

// SessionConfig shapes the conversation itself.
type SessionConfig struct {
	// Instructions is the system prompt applied to the session.
	Instructions string `yaml:"instructions"`

	// OpeningInstructions seeds the assistant's first utterance.
	OpeningInstructions string `yaml:"opening_instructions"`

	// ResponseDelayMs is the pause between session acknowledgement and the
	// opening response request. 0 uses the client default.
	ResponseDelayMs int `yaml:"response_delay_ms" validate:"gte=0,lte=10000"`

	// VAD tunes server-side voice activity detection.
	VAD VADConfig `yaml:"vad"`
}

// VADConfig tunes server-side turn detection. Zero values use the client
// defaults.
type VADConfig struct {
	Threshold         float64 `yaml:"threshold" validate:"gte=0,lte=1"`
	PrefixPaddingMs   int     `yaml:"prefix_padding_ms" validate:"gte=0,lte=5000"`
	SilenceDurationMs int     `yaml:"silence_duration_ms" validate:"gte=0,lte=30000"`
}

// AudioConfig selects the microphone input device.
type AudioConfig struct {
	// InputDevice names the capture device handed to ffmpeg. The format is
	// platform dependent ("default" for ALSA, ":0" for avfoundation).
	InputDevice string `yaml:"input_device"`

	// FFmpegPath overrides the ffmpeg binary location. Empty searches PATH.
	FFmpegPath string `yaml:"ffmpeg_path"`

	// BlockSize is the number of samples per captured frame. 0 uses the
	// capture default.
	BlockSize int `yaml:"block_size" validate:"omitempty,gte=256,lte=65536"`
}

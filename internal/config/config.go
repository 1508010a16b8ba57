// Package config provides the configuration schema, loader, and file watcher
// for the Inkwell writing assistant.
package config

import "time"

// LogLevel controls log verbosity for the Inkwell server.
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

// EnvAPIKey names the environment variable that supplies the Gemini API key.
// When set and non-empty it overrides gemini.api_key.
const EnvAPIKey = "GEMINI_API_KEY"

// Config is the root configuration structure for Inkwell.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Gemini  GeminiConfig  `yaml:"gemini"`
	IdeaPad IdeaPadConfig `yaml:"ideapad"`
	Assist  AssistConfig  `yaml:"assist"`
}

// ServerConfig holds network and logging settings for the HTTP server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// GeminiConfig selects the remote models and how to reach them.
type GeminiConfig struct {
	// APIKey authenticates every request. Overridden by GEMINI_API_KEY.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the generation API endpoint. Empty uses the SDK default.
	BaseURL string `yaml:"base_url"`

	// LiveURL overrides the live websocket endpoint.
	LiveURL string `yaml:"live_url"`

	// TextModel serves rephrase, continue, lookup, proofread, analyze, and review.
	TextModel string `yaml:"text_model"`

	// AudioModel serves dictation.
	AudioModel string `yaml:"audio_model"`

	// LiveModel serves the idea pad.
	LiveModel string `yaml:"live_model"`

	// Voice is the prebuilt voice of the idea pad. Empty uses the model's
	// default voice.
	Voice string `yaml:"voice"`

	// Breaker tunes the circuit breaker in front of both endpoints.
	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes a circuit breaker.
type BreakerConfig struct {
	// MaxFailures is the consecutive failure count that opens the breaker.
	MaxFailures int `yaml:"max_failures"`

	// Cooldown is how long an open breaker rejects calls.
	Cooldown time.Duration `yaml:"cooldown"`
}

// IdeaPadConfig tunes the live voice session.
type IdeaPadConfig struct {
	// Instructions is the persona system instruction. Empty uses the built-in
	// creative-partner persona.
	Instructions string `yaml:"instructions"`

	// FrameSize is the microphone frame length in samples.
	FrameSize int `yaml:"frame_size"`

	// SendQueue is the number of frames buffered toward the model before the
	// oldest is dropped.
	SendQueue int `yaml:"send_queue"`

	// Keepalive is the websocket ping interval.
	Keepalive time.Duration `yaml:"keepalive"`
}

// AssistConfig tunes the request-response writing tools. Nil temperatures use
// the built-in defaults.
type AssistConfig struct {
	LookupTemperature    *float32 `yaml:"lookup_temperature"`
	ProofreadTemperature *float32 `yaml:"proofread_temperature"`
	AnalyzeTemperature   *float32 `yaml:"analyze_temperature"`
	ReviewTemperature    *float32 `yaml:"review_temperature"`
	DictateTemperature   *float32 `yaml:"dictate_temperature"`

	// Timeout bounds each remote call.
	Timeout time.Duration `yaml:"timeout"`
}

// Defaults for zero-valued fields, applied by [ApplyDefaults].
const (
	DefaultListenAddr = ":8080"
	DefaultTextModel  = "gemini-3-flash-preview"
	DefaultLiveModel  = "gemini-live-2.5-flash-native-audio"
	DefaultFrameSize  = 4096
	DefaultSendQueue  = 32
	DefaultKeepalive  = 20 * time.Second
	DefaultTimeout    = 60 * time.Second

	DefaultBreakerFailures = 5
	DefaultBreakerCooldown = 30 * time.Second
)

// ApplyDefaults fills every unset field of cfg with its default.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	g := &cfg.Gemini
	if g.TextModel == "" {
		g.TextModel = DefaultTextModel
	}
	if g.AudioModel == "" {
		g.AudioModel = g.TextModel
	}
	if g.LiveModel == "" {
		g.LiveModel = DefaultLiveModel
	}
	if g.Breaker.MaxFailures == 0 {
		g.Breaker.MaxFailures = DefaultBreakerFailures
	}
	if g.Breaker.Cooldown == 0 {
		g.Breaker.Cooldown = DefaultBreakerCooldown
	}
	p := &cfg.IdeaPad
	if p.FrameSize == 0 {
		p.FrameSize = DefaultFrameSize
	}
	if p.SendQueue == 0 {
		p.SendQueue = DefaultSendQueue
	}
	if p.Keepalive == 0 {
		p.Keepalive = DefaultKeepalive
	}
	if cfg.Assist.Timeout == 0 {
		cfg.Assist.Timeout = DefaultTimeout
	}
}

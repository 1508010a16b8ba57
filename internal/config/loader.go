package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrMissingCredential is reported by [Validate] when no API key is
// configured in the file or the environment.
var ErrMissingCredential = errors.New("config: missing Gemini API key")

// Load reads the YAML configuration file at path and returns a validated [Config].
// An empty path loads the defaults, so a key in GEMINI_API_KEY is enough to
// run.
func Load(path string) (*Config, error) {
	if path == "" {
		return LoadFromReader(strings.NewReader(""))
	}
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

// LoadFromReader decodes a YAML config from r, applies the environment
// override and defaults, and validates the result.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if key := os.Getenv(EnvAPIKey); key != "" {
		cfg.Gemini.APIKey = key
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	if strings.TrimSpace(cfg.Gemini.APIKey) == "" {
		errs = append(errs, fmt.Errorf("%w: set gemini.api_key or %s", ErrMissingCredential, EnvAPIKey))
	}

	if cfg.Gemini.Breaker.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("gemini.breaker.max_failures %d must not be negative", cfg.Gemini.Breaker.MaxFailures))
	}
	if cfg.Gemini.Breaker.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("gemini.breaker.cooldown %s must not be negative", cfg.Gemini.Breaker.Cooldown))
	}

	if cfg.IdeaPad.FrameSize < 0 {
		errs = append(errs, fmt.Errorf("ideapad.frame_size %d must be positive", cfg.IdeaPad.FrameSize))
	}
	if cfg.IdeaPad.SendQueue < 0 {
		errs = append(errs, fmt.Errorf("ideapad.send_queue %d must be positive", cfg.IdeaPad.SendQueue))
	}
	if cfg.IdeaPad.Keepalive < 0 {
		errs = append(errs, fmt.Errorf("ideapad.keepalive %s must not be negative", cfg.IdeaPad.Keepalive))
	}

	temps := []struct {
		name string
		v    *float32
	}{
		{"lookup_temperature", cfg.Assist.LookupTemperature},
		{"proofread_temperature", cfg.Assist.ProofreadTemperature},
		{"analyze_temperature", cfg.Assist.AnalyzeTemperature},
		{"review_temperature", cfg.Assist.ReviewTemperature},
		{"dictate_temperature", cfg.Assist.DictateTemperature},
	}
	for _, tc := range temps {
		if tc.v != nil && (*tc.v < 0 || *tc.v > 2) {
			errs = append(errs, fmt.Errorf("assist.%s %.2f is out of range [0, 2]", tc.name, *tc.v))
		}
	}
	if cfg.Assist.Timeout < 0 {
		errs = append(errs, fmt.Errorf("assist.timeout %s must not be negative", cfg.Assist.Timeout))
	}

	return errors.Join(errs...)
}

package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are applied; the rest set
// RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// AssistChanged is true when models, temperatures, or the timeout of the
	// writing tools changed.
	AssistChanged bool

	// IdeaPadChanged is true when the persona, voice, live model, or session
	// tuning changed. Only sessions started afterwards pick it up.
	IdeaPadChanged bool

	// RestartRequired lists settings that changed but only take effect on
	// restart.
	RestartRequired []string
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Gemini.TextModel != new.Gemini.TextModel ||
		old.Gemini.AudioModel != new.Gemini.AudioModel ||
		!assistEqual(old.Assist, new.Assist) {
		d.AssistChanged = true
	}

	if old.IdeaPad != new.IdeaPad ||
		old.Gemini.LiveModel != new.Gemini.LiveModel ||
		old.Gemini.Voice != new.Gemini.Voice {
		d.IdeaPadChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if !tlsEqual(old.Server.TLS, new.Server.TLS) {
		d.RestartRequired = append(d.RestartRequired, "server.tls")
	}
	if old.Gemini.APIKey != new.Gemini.APIKey {
		d.RestartRequired = append(d.RestartRequired, "gemini.api_key")
	}
	if old.Gemini.BaseURL != new.Gemini.BaseURL || old.Gemini.LiveURL != new.Gemini.LiveURL {
		d.RestartRequired = append(d.RestartRequired, "gemini endpoints")
	}
	if old.Gemini.Breaker != new.Gemini.Breaker {
		d.RestartRequired = append(d.RestartRequired, "gemini.breaker")
	}

	return d
}

func assistEqual(a, b AssistConfig) bool {
	return floatEqual(a.LookupTemperature, b.LookupTemperature) &&
		floatEqual(a.ProofreadTemperature, b.ProofreadTemperature) &&
		floatEqual(a.AnalyzeTemperature, b.AnalyzeTemperature) &&
		floatEqual(a.ReviewTemperature, b.ReviewTemperature) &&
		floatEqual(a.DictateTemperature, b.DictateTemperature) &&
		a.Timeout == b.Timeout
}

func floatEqual(a, b *float32) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func tlsEqual(a, b *TLSConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

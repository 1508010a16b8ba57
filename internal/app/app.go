// Package app wires the Inkwell subsystems into a running server.
//
// The App struct owns the full lifecycle: New builds the providers, the
// writing assistant, the idea pad, and the HTTP front end; Run serves until
// the context is cancelled; Shutdown tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithLLM, WithLive, WithDevices). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/inkwell/internal/assist"
	"github.com/MrWong99/inkwell/internal/config"
	"github.com/MrWong99/inkwell/internal/health"
	"github.com/MrWong99/inkwell/internal/httpapi"
	"github.com/MrWong99/inkwell/internal/ideapad"
	"github.com/MrWong99/inkwell/internal/observe"
	"github.com/MrWong99/inkwell/internal/resilience"
	"github.com/MrWong99/inkwell/pkg/audio"
	"github.com/MrWong99/inkwell/pkg/audio/portaudio"
	"github.com/MrWong99/inkwell/pkg/provider/live"
	geminilive "github.com/MrWong99/inkwell/pkg/provider/live/gemini"
	"github.com/MrWong99/inkwell/pkg/provider/llm"
	geminillm "github.com/MrWong99/inkwell/pkg/provider/llm/gemini"
)

// shutdownGrace bounds how long in-flight requests may finish once Run's
// context is cancelled.
const shutdownGrace = 10 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	mu  sync.Mutex
	cfg *config.Config

	level          *slog.LevelVar
	metrics        *observe.Metrics
	metricsHandler http.Handler

	llm     llm.Provider
	live    live.Provider
	devices audio.Devices

	// ownLive is set when New built the live provider, so a reload may
	// rebuild it for a new model.
	ownLive bool

	llmBreaker  *resilience.Breaker
	liveBreaker *resilience.Breaker

	assistant *assist.Assistant
	ideas     *ideapad.Manager
	handler   http.Handler
	server    *http.Server
	listener  net.Listener
	watcher   *config.Watcher

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithLLM injects the generation provider instead of dialing Gemini.
func WithLLM(p llm.Provider) Option {
	return func(a *App) { a.llm = p }
}

// WithLive injects the live provider instead of creating a Gemini one.
func WithLive(p live.Provider) Option {
	return func(a *App) { a.live = p }
}

// WithDevices injects the audio devices instead of opening PortAudio.
func WithDevices(d audio.Devices) Option {
	return func(a *App) { a.devices = d }
}

// WithMetrics overrides the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler mounts h at /metrics. Defaults to
// [observe.MetricsHandler].
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// WithLevelVar lets a config reload adjust the log level of the handler that
// reads lv.
func WithLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.level = lv }
}

// WithListener serves on l instead of listening on cfg.Server.ListenAddr.
func WithListener(l net.Listener) Option {
	return func(a *App) { a.listener = l }
}

// New creates an App by wiring all subsystems together. cfg must already be
// validated, as [config.Load] does.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.metricsHandler == nil {
		a.metricsHandler = observe.MetricsHandler()
	}
	if a.level == nil {
		a.level = new(slog.LevelVar)
		a.level.Set(SlogLevel(cfg.Server.LogLevel))
	}

	if a.llm == nil {
		var llmOpts []geminillm.Option
		llmOpts = append(llmOpts, geminillm.WithModel(cfg.Gemini.TextModel))
		if cfg.Gemini.BaseURL != "" {
			llmOpts = append(llmOpts, geminillm.WithBaseURL(cfg.Gemini.BaseURL))
		}
		p, err := geminillm.New(ctx, cfg.Gemini.APIKey, llmOpts...)
		if err != nil {
			return nil, fmt.Errorf("app: init llm: %w", err)
		}
		a.llm = p
	}
	if a.live == nil {
		a.live = NewLiveProvider(cfg)
		a.ownLive = true
	}
	if a.devices == nil {
		a.devices = portaudio.New()
	}

	a.llmBreaker = newBreaker("gemini", cfg.Gemini.Breaker)
	a.liveBreaker = newBreaker("gemini-live", cfg.Gemini.Breaker)

	a.assistant = assist.New(resilience.LLM(a.llm, a.llmBreaker), AssistSettings(cfg), assist.WithMetrics(a.metrics))
	a.ideas = ideapad.NewManager(IdeaPadConfig(cfg, a.devices, resilience.Live(a.live, a.liveBreaker), a.metrics))

	checks := health.New(
		health.Credential(func() string { return a.config().Gemini.APIKey }),
		health.Optional("gemini", a.llmBreaker.Check),
		health.Optional("gemini-live", a.liveBreaker.Check),
		health.Optional("ideapad", a.checkIdeaPad),
	)
	a.handler = httpapi.New(httpapi.Config{
		Assistant:      a.assistant,
		IdeaPad:        a.ideas,
		Health:         checks,
		Metrics:        a.metrics,
		MetricsHandler: a.metricsHandler,
	}).Handler()

	a.server = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

func newBreaker(name string, c config.BreakerConfig) *resilience.Breaker {
	return resilience.New(resilience.Config{Name: name, MaxFailures: c.MaxFailures, Cooldown: c.Cooldown})
}

// NewLiveProvider builds the Gemini live provider for cfg.
func NewLiveProvider(cfg *config.Config) *geminilive.Provider {
	opts := []geminilive.Option{
		geminilive.WithModel(cfg.Gemini.LiveModel),
		geminilive.WithKeepalive(cfg.IdeaPad.Keepalive),
	}
	if cfg.Gemini.LiveURL != "" {
		opts = append(opts, geminilive.WithBaseURL(cfg.Gemini.LiveURL))
	}
	return geminilive.New(cfg.Gemini.APIKey, opts...)
}

// AssistSettings maps the assist section of cfg onto adapter settings.
func AssistSettings(cfg *config.Config) assist.Settings {
	s := assist.DefaultSettings()
	s.TextModel = cfg.Gemini.TextModel
	s.AudioModel = cfg.Gemini.AudioModel
	c := cfg.Assist
	set := func(dst *float32, v *float32) {
		if v != nil {
			*dst = *v
		}
	}
	set(&s.LookupTemperature, c.LookupTemperature)
	set(&s.ProofreadTemperature, c.ProofreadTemperature)
	set(&s.AnalyzeTemperature, c.AnalyzeTemperature)
	set(&s.ReviewTemperature, c.ReviewTemperature)
	set(&s.DictateTemperature, c.DictateTemperature)
	if c.Timeout > 0 {
		s.Timeout = c.Timeout
	}
	return s
}

// IdeaPadConfig maps cfg onto the idea pad session config.
func IdeaPadConfig(cfg *config.Config, devices audio.Devices, p live.Provider, m *observe.Metrics) ideapad.Config {
	instructions := cfg.IdeaPad.Instructions
	if instructions == "" {
		instructions = assist.DefaultPersona
	}
	return ideapad.Config{
		Devices:      devices,
		Live:         p,
		Instructions: instructions,
		Voice:        cfg.Gemini.Voice,
		FrameSize:    cfg.IdeaPad.FrameSize,
		SendQueue:    cfg.IdeaPad.SendQueue,
		Metrics:      m,
	}
}

// SlogLevel converts a config log level to its slog equivalent.
func SlogLevel(level config.LogLevel) slog.Level {
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

// Handler returns the routed HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

func (a *App) config() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

func (a *App) checkIdeaPad(context.Context) error {
	cur := a.ideas.Current()
	if cur == nil || cur.State() != ideapad.StateFailed {
		return nil
	}
	if err := cur.Err(); err != nil {
		return fmt.Errorf("live session failed: %w", err)
	}
	return errors.New("live session failed")
}

// Watch starts hot-reloading path. Changes the running server cannot take
// are logged and otherwise ignored.
func (a *App) Watch(path string, opts ...config.WatcherOption) error {
	w, err := config.NewWatcher(path, a.Reload, opts...)
	if err != nil {
		return fmt.Errorf("app: watch config: %w", err)
	}
	a.mu.Lock()
	a.watcher = w
	a.mu.Unlock()
	return nil
}

// Reload applies the hot-reloadable differences between old and next.
func (a *App) Reload(old, next *config.Config) {
	d := config.Diff(old, next)

	a.mu.Lock()
	a.cfg = next
	a.mu.Unlock()

	if d.LogLevelChanged {
		a.level.Set(SlogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.AssistChanged {
		a.assistant.SetSettings(AssistSettings(next))
		slog.Info("assist settings reloaded")
	}
	if d.IdeaPadChanged {
		a.mu.Lock()
		if a.ownLive {
			a.live = NewLiveProvider(next)
		}
		p := resilience.Live(a.live, a.liveBreaker)
		a.mu.Unlock()
		a.ideas.SetConfig(IdeaPadConfig(next, a.devices, p, a.metrics))
		slog.Info("idea pad settings reloaded; applies to the next session")
	}
	for _, field := range d.RestartRequired {
		slog.Warn("config change requires a restart", "field", field)
	}
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	cfg := a.config()
	ln := a.listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", cfg.Server.ListenAddr)
		if err != nil {
			return fmt.Errorf("app: listen %s: %w", cfg.Server.ListenAddr, err)
		}
	}
	if t := cfg.Server.TLS; t != nil {
		cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
		if err != nil {
			ln.Close()
			return fmt.Errorf("app: load tls key pair: %w", err)
		}
		ln = tls.NewListener(ln, &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12})
	}

	slog.Info("http server listening", "addr", ln.Addr().String(), "tls", cfg.Server.TLS != nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Shutdown tears down all subsystems: the config watcher first, then the
// live session, then the HTTP server. It respects the context deadline.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down")

		a.mu.Lock()
		w := a.watcher
		a.mu.Unlock()
		if w != nil {
			w.Stop()
		}

		if err := a.ideas.Close(); err != nil {
			slog.Warn("idea pad close error", "err", err)
		}

		if err := a.server.Shutdown(ctx); err != nil {
			slog.Warn("http server shutdown", "err", err)
			shutdownErr = err
			return
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/inkwell/internal/app"
	"github.com/MrWong99/inkwell/internal/assist"
	"github.com/MrWong99/inkwell/internal/config"
	"github.com/MrWong99/inkwell/internal/observe"
	audiomock "github.com/MrWong99/inkwell/pkg/audio/mock"
	"github.com/MrWong99/inkwell/pkg/provider/llm"
	llmmock "github.com/MrWong99/inkwell/pkg/provider/llm/mock"
	livemock "github.com/MrWong99/inkwell/pkg/provider/live/mock"
)

// testConfig returns a validated minimal config.
func testConfig() *config.Config {
	cfg := &config.Config{
		Server: config.ServerConfig{ListenAddr: "127.0.0.1:0", LogLevel: config.LogInfo},
		Gemini: config.GeminiConfig{APIKey: "test-key"},
	}
	config.ApplyDefaults(cfg)
	return cfg
}

type mocks struct {
	llm    *llmmock.Provider
	live   *livemock.Provider
	level  *slog.LevelVar
	remote *livemock.Session
}

func newApp(t *testing.T, cfg *config.Config, extra ...app.Option) (*app.App, *mocks) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	mk := &mocks{
		llm:    &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "Solid draft."}},
		remote: livemock.NewSession(),
		level:  new(slog.LevelVar),
	}
	mk.live = &livemock.Provider{Session: mk.remote}
	opts := append([]app.Option{
		app.WithLLM(mk.llm),
		app.WithLive(mk.live),
		app.WithDevices(&audiomock.Devices{}),
		app.WithMetrics(m),
		app.WithLevelVar(mk.level),
	}, extra...)

	a, err := app.New(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = a.Shutdown(ctx)
	})
	return a, mk
}

func TestNew_WithMocks(t *testing.T) {
	t.Parallel()
	a, _ := newApp(t, testConfig())

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()
	for _, path := range []string{"/healthz", "/readyz", "/v1/live"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d; want 200", path, resp.StatusCode)
		}
	}
}

func TestNew_MountsMetricsHandler(t *testing.T) {
	t.Parallel()
	scrape := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("inkwell_up 1\n"))
	})
	a, _ := newApp(t, testConfig(), app.WithMetricsHandler(scrape))

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "inkwell_up 1") {
		t.Errorf("GET /metrics = %d %q", rec.Code, rec.Body.String())
	}
}

func TestReload_AppliesAssistAndLogLevel(t *testing.T) {
	t.Parallel()
	old := testConfig()
	a, mk := newApp(t, old)

	next := testConfig()
	next.Server.LogLevel = config.LogDebug
	next.Gemini.TextModel = "gemini-2.5-pro"
	temp := float32(1.1)
	next.Assist.ReviewTemperature = &temp
	a.Reload(old, next)

	if mk.level.Level() != slog.LevelDebug {
		t.Errorf("level = %v; want debug", mk.level.Level())
	}

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()
	resp, err := http.Post(srv.URL+"/v1/review", "application/json", strings.NewReader(`{"text":"Draft."}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()

	calls := mk.llm.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d; want 1", len(calls))
	}
	req := calls[0].Req
	if req.Model != "gemini-2.5-pro" {
		t.Errorf("model = %q", req.Model)
	}
	if req.Temperature == nil || *req.Temperature != 1.1 {
		t.Errorf("temperature = %v; want 1.1", req.Temperature)
	}
}

func TestReload_IdeaPadAppliesToNextSession(t *testing.T) {
	t.Parallel()
	old := testConfig()
	a, mk := newApp(t, old)

	next := testConfig()
	next.Gemini.Voice = "Kore"
	next.IdeaPad.Instructions = "Be a pirate."
	a.Reload(old, next)

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()
	resp, err := http.Post(srv.URL+"/v1/live/start", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()

	calls := mk.live.Calls()
	if len(calls) != 1 {
		t.Fatalf("connects = %d; want 1", len(calls))
	}
	if calls[0].Voice != "Kore" || calls[0].Instructions != "Be a pirate." {
		t.Errorf("live config = %+v", calls[0])
	}
}

func TestRun_ServesUntilCancelled(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	a, _ := newApp(t, testConfig(), app.WithListener(ln))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	var resp *http.Response
	for range 50 {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v; want context.Canceled", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	t.Parallel()
	a, mk := newApp(t, testConfig())

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()
	resp, err := http.Post(srv.URL+"/v1/live/start", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()

	ctx := context.Background()
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("first Shutdown: %v", err)
	}
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
	if mk.remote.Closes() != 1 {
		t.Errorf("live session closes = %d; want 1", mk.remote.Closes())
	}
}

func TestWatch_ReloadsLogLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inkwell.yaml")
	write := func(level string) {
		t.Helper()
		body := "server:\n  log_level: " + level + "\ngemini:\n  api_key: test-key\n"
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
	}
	write("info")
	t.Setenv(config.EnvAPIKey, "")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	a, mk := newApp(t, cfg)
	if err := a.Watch(path, config.WithDebounce(20*time.Millisecond)); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	write("warn")
	deadline := time.Now().Add(3 * time.Second)
	for mk.level.Level() != slog.LevelWarn {
		if time.Now().After(deadline) {
			t.Fatalf("level = %v; want warn after reload", mk.level.Level())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAssistSettings(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	temp := float32(0.9)
	cfg.Assist.LookupTemperature = &temp
	cfg.Assist.Timeout = 5 * time.Second

	s := app.AssistSettings(cfg)
	want := assist.DefaultSettings()
	want.LookupTemperature = 0.9
	want.Timeout = 5 * time.Second
	if s != want {
		t.Errorf("AssistSettings = %+v; want %+v", s, want)
	}
}

func TestIdeaPadConfig_DefaultPersona(t *testing.T) {
	t.Parallel()
	got := app.IdeaPadConfig(testConfig(), &audiomock.Devices{}, &livemock.Provider{}, nil)
	if got.Instructions != assist.DefaultPersona {
		t.Errorf("Instructions = %q; want the default persona", got.Instructions)
	}
	if got.FrameSize != config.DefaultFrameSize {
		t.Errorf("FrameSize = %d", got.FrameSize)
	}
}

func TestReadyz_DegradedWhileBreakerOpen(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Gemini.Breaker.MaxFailures = 2
	a, mk := newApp(t, cfg)
	mk.llm.CompleteErr = errors.New("503 unavailable")

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()
	for range 3 {
		resp, err := http.Post(srv.URL+"/v1/continue", "application/json", strings.NewReader(`{"text":"Once"}`))
		if err != nil {
			t.Fatalf("POST: %v", err)
		}
		resp.Body.Close()
	}
	if n := len(mk.llm.Calls()); n != 2 {
		t.Errorf("remote calls = %d; want 2 before the breaker opened", n)
	}

	resp, err := http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz: %v", err)
	}
	defer resp.Body.Close()
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StatusCode != http.StatusOK || body.Status != "degraded" {
		t.Errorf("/readyz = %d %+v; want 200 degraded", resp.StatusCode, body)
	}
	if body.Checks["gemini"] == "ok" {
		t.Errorf("gemini check = %q; want failure", body.Checks["gemini"])
	}
}

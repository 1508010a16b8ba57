package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/inkwell/internal/assist"
	"github.com/MrWong99/inkwell/internal/health"
	"github.com/MrWong99/inkwell/internal/httpapi"
	"github.com/MrWong99/inkwell/internal/ideapad"
	"github.com/MrWong99/inkwell/internal/observe"
	audiomock "github.com/MrWong99/inkwell/pkg/audio/mock"
	"github.com/MrWong99/inkwell/pkg/provider/llm"
	llmmock "github.com/MrWong99/inkwell/pkg/provider/llm/mock"
	livemock "github.com/MrWong99/inkwell/pkg/provider/live/mock"
)

type harness struct {
	srv     *httptest.Server
	model   *llmmock.Provider
	remote  *livemock.Session
	dialer  *livemock.Provider
	manager *ideapad.Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	h := &harness{model: &llmmock.Provider{}, remote: livemock.NewSession()}
	h.dialer = &livemock.Provider{Session: h.remote}
	h.manager = ideapad.NewManager(ideapad.Config{
		Devices: &audiomock.Devices{},
		Live:    h.dialer,
		Metrics: m,
	})
	t.Cleanup(func() { _ = h.manager.Close() })

	api := httpapi.New(httpapi.Config{
		Assistant: assist.New(h.model, assist.DefaultSettings(), assist.WithMetrics(m)),
		IdeaPad:   h.manager,
		Health:    health.New(health.Credential(func() string { return "key" })),
		Metrics:   m,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics\n"))
		}),
	})
	h.srv = httptest.NewServer(api.Handler())
	t.Cleanup(h.srv.Close)
	return h
}

func (h *harness) reply(content string) {
	h.model.CompleteResponse = &llm.CompletionResponse{Content: content}
}

// post sends body as JSON and decodes the response into out when non-nil.
func (h *harness) post(t *testing.T, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	resp, err := http.Post(h.srv.URL+path, "application/json", &buf)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s response: %v", path, err)
		}
	}
	return resp.StatusCode
}

func (h *harness) get(t *testing.T, path string, out any) int {
	t.Helper()
	resp, err := http.Get(h.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s response: %v", path, err)
		}
	}
	return resp.StatusCode
}

type textBody struct {
	Text  string `json:"text"`
	Error string `json:"error"`
}

func TestRephrase(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.reply("1. Hi.\n2. Hey.\n3. Greetings.")

	var got textBody
	status := h.post(t, "/v1/rephrase", map[string]string{"text": "Hello", "instruction": "friendlier"}, &got)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if got.Text != "1. Hi.\n2. Hey.\n3. Greetings." || got.Error != "" {
		t.Errorf("body = %+v", got)
	}
	calls := h.model.Calls()
	if len(calls) != 1 || !strings.Contains(calls[0].Req.Parts[0].Text, `"friendlier"`) {
		t.Errorf("instruction not forwarded: %+v", calls)
	}
}

func TestRemoteFailureIsReportedInBody(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.model.CompleteErr = context.DeadlineExceeded

	var got textBody
	if status := h.post(t, "/v1/continue", map[string]string{"text": "Once"}, &got); status != http.StatusOK {
		t.Fatalf("status = %d; want 200", status)
	}
	if got.Error == "" || got.Text != "" {
		t.Errorf("body = %+v; want error only", got)
	}
}

func TestEmptyInputSkipsRemote(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	var got struct {
		Suggestions []json.RawMessage `json:"suggestions"`
		Error       string            `json:"error"`
	}
	if status := h.post(t, "/v1/proofread", map[string]string{"text": "   "}, &got); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if got.Error != "Please enter some text to proofread." {
		t.Errorf("error = %q", got.Error)
	}
	if n := len(h.model.Calls()); n != 0 {
		t.Errorf("remote called %d times", n)
	}
}

func TestMalformedRequests(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	tests := []struct {
		name, path, body string
	}{
		{"not json", "/v1/rephrase", "{"},
		{"empty body", "/v1/review", ""},
		{"wrong type", "/v1/proofread", `{"text": 4}`},
		{"trailing object", "/v1/continue", `{"text":"a"}{"text":"b"}`},
		{"bad base64", "/v1/dictation", `{"audio":"!!"}`},
		{"unknown lookup kind", "/v1/lookup", `{"word":"dog","kind":"rhymes"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got struct {
				Error string `json:"error"`
			}
			if status := h.post(t, tc.path, tc.body, &got); status != http.StatusBadRequest {
				t.Errorf("status = %d; want 400", status)
			}
			if got.Error == "" {
				t.Error("missing error message")
			}
		})
	}
	if n := len(h.model.Calls()); n != 0 {
		t.Errorf("remote called %d times", n)
	}
}

func TestLookup_FromSelection(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.reply(`{"synonyms":["glad","cheerful"]}`)

	var got struct {
		Kind     string   `json:"kind"`
		Synonyms []string `json:"synonyms"`
		Error    string   `json:"error"`
	}
	req := map[string]any{
		"text":      "the happy dog",
		"selection": map[string]int{"start": 3, "end": 10},
		"kind":      "synonyms",
	}
	if status := h.post(t, "/v1/lookup", req, &got); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if got.Kind != "synonyms" || len(got.Synonyms) != 2 || got.Error != "" {
		t.Errorf("body = %+v", got)
	}
	if p := h.model.Calls()[0].Req.Parts[0].Text; !strings.Contains(p, `"happy"`) {
		t.Errorf("prompt = %q; want the trimmed word", p)
	}
}

func TestLookup_MultiWordSelection(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	var got textBody
	req := map[string]any{
		"text":      "the happy dog",
		"selection": map[string]int{"start": 0, "end": 9},
		"kind":      "definition",
	}
	h.post(t, "/v1/lookup", req, &got)
	if got.Error != "Please select a single word to look up." {
		t.Errorf("error = %q", got.Error)
	}
	if n := len(h.model.Calls()); n != 0 {
		t.Errorf("remote called %d times", n)
	}
}

func TestDictation(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.reply("and then she left.")

	var got textBody
	body := map[string]any{"audio": []byte{1, 2, 3}, "mimeType": "audio/webm", "context": "Mara waited."}
	if status := h.post(t, "/v1/dictation", body, &got); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if got.Text != "and then she left." {
		t.Errorf("text = %q", got.Text)
	}
	part := h.model.Calls()[0].Req.Parts[0]
	if part.MIMEType != "audio/webm" || !bytes.Equal(part.Data, []byte{1, 2, 3}) {
		t.Errorf("audio part = %+v", part)
	}
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	if status := h.get(t, "/healthz", nil); status != http.StatusOK {
		t.Errorf("/healthz = %d", status)
	}
	var ready struct {
		Status string `json:"status"`
	}
	if status := h.get(t, "/readyz", &ready); status != http.StatusOK || ready.Status != "ok" {
		t.Errorf("/readyz = %d %+v", status, ready)
	}
	if status := h.get(t, "/metrics", nil); status != http.StatusOK {
		t.Errorf("/metrics = %d", status)
	}
}

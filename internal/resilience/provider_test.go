package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/inkwell/internal/resilience"
	"github.com/MrWong99/inkwell/pkg/provider/live"
	livemock "github.com/MrWong99/inkwell/pkg/provider/live/mock"
	"github.com/MrWong99/inkwell/pkg/provider/llm"
	llmmock "github.com/MrWong99/inkwell/pkg/provider/llm/mock"
)

func TestLLM_OpensOnRepeatedFailures(t *testing.T) {
	t.Parallel()
	inner := &llmmock.Provider{CompleteErr: errors.New("503 unavailable")}
	b := resilience.New(resilience.Config{Name: "gemini", MaxFailures: 2, Cooldown: time.Hour})
	p := resilience.LLM(inner, b)
	ctx := context.Background()

	for range 2 {
		if _, err := p.Complete(ctx, llm.CompletionRequest{}); err == nil {
			t.Fatal("expected remote error")
		}
	}
	if _, err := p.Complete(ctx, llm.CompletionRequest{}); !errors.Is(err, resilience.ErrOpen) {
		t.Fatalf("err = %v; want ErrOpen", err)
	}
	if n := len(inner.Calls()); n != 2 {
		t.Errorf("inner calls = %d; want 2", n)
	}
}

func TestLLM_PassesResponseThrough(t *testing.T) {
	t.Parallel()
	inner := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "ok"}}
	p := resilience.LLM(inner, resilience.New(resilience.Config{}))
	resp, err := p.Complete(context.Background(), llm.CompletionRequest{Model: "m"})
	if err != nil || resp.Content != "ok" {
		t.Fatalf("Complete = %+v, %v", resp, err)
	}
	if inner.Calls()[0].Req.Model != "m" {
		t.Error("request not forwarded")
	}
}

func TestLive_GuardsConnect(t *testing.T) {
	t.Parallel()
	inner := &livemock.Provider{ConnectErr: errors.New("handshake refused")}
	b := resilience.New(resilience.Config{Name: "gemini-live", MaxFailures: 1, Cooldown: time.Hour})
	p := resilience.Live(inner, b)

	if _, err := p.Connect(context.Background(), live.Config{}); err == nil {
		t.Fatal("expected dial error")
	}
	if _, err := p.Connect(context.Background(), live.Config{}); !errors.Is(err, resilience.ErrOpen) {
		t.Fatalf("err = %v; want ErrOpen", err)
	}
	if n := len(inner.Calls()); n != 1 {
		t.Errorf("inner dials = %d; want 1", n)
	}
}

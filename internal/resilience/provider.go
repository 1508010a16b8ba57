package resilience

import (
	"context"

	"github.com/MrWong99/inkwell/pkg/provider/live"
	"github.com/MrWong99/inkwell/pkg/provider/llm"
)

type guardedLLM struct {
	p llm.Provider
	b *Breaker
}

// LLM returns p with every Complete call run through b.
func LLM(p llm.Provider, b *Breaker) llm.Provider { return &guardedLLM{p: p, b: b} }

func (g *guardedLLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	var resp *llm.CompletionResponse
	err := g.b.Do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = g.p.Complete(ctx, req)
		return err
	})
	return resp, err
}

type guardedLive struct {
	p live.Provider
	b *Breaker
}

// Live returns p with every Connect call run through b. Failures of an
// established session do not count.
func Live(p live.Provider, b *Breaker) live.Provider { return &guardedLive{p: p, b: b} }

func (g *guardedLive) Connect(ctx context.Context, cfg live.Config) (live.Session, error) {
	var s live.Session
	err := g.b.Do(ctx, func(ctx context.Context) error {
		var err error
		s, err = g.p.Connect(ctx, cfg)
		return err
	})
	return s, err
}

// Package gemini implements llm.Provider on the Google Gen AI SDK against
// the Gemini API backend.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/genai"

	"github.com/MrWong99/inkwell/pkg/provider/llm"
)

// Compile-time interface assertion.
var _ llm.Provider = (*Provider)(nil)

const defaultModel = "gemini-3-flash-preview"

// ErrNoCandidates is returned when the API answers without any candidate.
var ErrNoCandidates = errors.New("gemini: no candidates")

// ErrBlocked is returned when the response was withheld by safety filters.
var ErrBlocked = errors.New("gemini: response blocked")

// ── Options ────────────────────────────────────────────────────────────────────

// Option is a functional option for configuring a Provider.
type Option func(*options)

type options struct {
	model   string
	baseURL string
}

// WithModel sets the default model. Model names must not start with
// "models/".
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// WithBaseURL overrides the API endpoint. Primarily used in tests to point at
// a local server.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// ── Provider ───────────────────────────────────────────────────────────────────

// Provider implements llm.Provider for the Gemini API.
type Provider struct {
	client *genai.Client
	model  string
}

// New creates a Provider with the given API key.
func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	o := options{model: defaultModel}
	for _, fn := range opts {
		fn(&o)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: o.baseURL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	return &Provider{client: client, model: o.model}, nil
}

// Model returns the default model.
func (p *Provider) Model() string { return p.model }

// Complete sends req as a single user turn and returns the text of the first
// candidate. A reply cut short by the output token limit is returned as is.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if len(req.Parts) == 0 {
		return nil, errors.New("gemini: request has no content")
	}
	model := req.Model
	if model == "" {
		model = p.model
	}

	parts := make([]*genai.Part, 0, len(req.Parts))
	for _, pt := range req.Parts {
		if pt.Data != nil {
			parts = append(parts, genai.NewPartFromBytes(pt.Data, pt.MIMEType))
			continue
		}
		parts = append(parts, genai.NewPartFromText(pt.Text))
	}
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	cfg := &genai.GenerateContentConfig{Temperature: req.Temperature}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(req.SystemInstruction)}}
	}
	if req.ResponseFormat == llm.FormatJSON {
		cfg.ResponseMIMEType = string(llm.FormatJSON)
		cfg.ResponseSchema = convSchema(req.ResponseSchema)
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		var ae *apierror.APIError
		if errors.As(err, &ae) && ae.Unwrap() != nil {
			err = ae.Unwrap()
		}
		return nil, fmt.Errorf("gemini: generate content: %w", err)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("%w: %s", ErrBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil, ErrNoCandidates
	}
	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonSafety {
		return nil, fmt.Errorf("%w: safety", ErrBlocked)
	}

	var sb strings.Builder
	if cand.Content != nil {
		for _, pt := range cand.Content.Parts {
			if pt.Text != "" && !pt.Thought {
				sb.WriteString(pt.Text)
			}
		}
	}
	return &llm.CompletionResponse{
		Content: sb.String(),
		Usage:   convUsage(resp.UsageMetadata),
	}, nil
}

// convSchema converts a JSON Schema to the Gemini schema subset.
func convSchema(schema *jsonschema.Schema) *genai.Schema {
	if schema == nil {
		return nil
	}

	enums := make([]string, 0, len(schema.Enum))
	for _, v := range schema.Enum {
		enums = append(enums, fmt.Sprintf("%v", v))
	}

	gs := genai.Schema{
		Format:      schema.Format,
		Description: schema.Description,
		Enum:        enums,
		Items:       convSchema(schema.Items),
		Required:    schema.Required,
		Minimum:     schema.Minimum,
		Maximum:     schema.Maximum,
	}
	if n := len(schema.Properties); n > 0 {
		gs.Properties = make(map[string]*genai.Schema, n)
		for k, prop := range schema.Properties {
			gs.Properties[k] = convSchema(prop)
		}
	}
	switch schema.Type {
	case "object":
		gs.Type = genai.TypeObject
	case "array":
		gs.Type = genai.TypeArray
	case "string":
		gs.Type = genai.TypeString
	case "number":
		gs.Type = genai.TypeNumber
	case "integer":
		gs.Type = genai.TypeInteger
	case "boolean":
		gs.Type = genai.TypeBoolean
	}
	return &gs
}

func convUsage(u *genai.GenerateContentResponseUsageMetadata) llm.Usage {
	if u == nil {
		return llm.Usage{}
	}
	return llm.Usage{
		PromptTokens:     int(u.PromptTokenCount),
		CompletionTokens: int(u.CandidatesTokenCount),
		TotalTokens:      int(u.TotalTokenCount),
	}
}

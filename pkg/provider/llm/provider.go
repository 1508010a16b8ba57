// Package llm defines the Provider interface for non-streaming generation
// backends.
//
// A provider takes one fully-specified request (model, user content parts,
// optional system instruction, optional JSON response schema, optional
// temperature) and returns the concatenated text of the model's reply. It does
// no retrying and no interpretation of the reply; callers decode and validate
// structured output themselves.
//
// Implementors must be safe for concurrent use.
package llm

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
)

// Format selects how the model should shape its reply.
type Format string

const (
	// FormatText asks for free-form text.
	FormatText Format = ""

	// FormatJSON asks for a JSON document, optionally constrained by
	// [CompletionRequest.ResponseSchema].
	FormatJSON Format = "application/json"
)

// Usage holds token accounting information returned by the backend.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the input.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the response.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens.
	TotalTokens int
}

// Part is one piece of user content: either text or an inline binary blob.
type Part struct {
	// Text is the text content. Ignored when Data is set.
	Text string

	// Data is an inline payload such as recorded audio.
	Data []byte

	// MIMEType describes Data, e.g. "audio/webm" or "audio/wav".
	MIMEType string
}

// Text returns a text part.
func Text(s string) Part { return Part{Text: s} }

// Blob returns an inline data part.
func Blob(data []byte, mimeType string) Part { return Part{Data: data, MIMEType: mimeType} }

// CompletionRequest carries everything the model needs to produce a reply.
// At minimum Parts must be non-empty.
type CompletionRequest struct {
	// Model overrides the provider's default model. Empty uses the default.
	Model string

	// Parts is the single user turn sent to the model.
	Parts []Part

	// SystemInstruction is an optional high-priority instruction.
	SystemInstruction string

	// ResponseFormat selects text or JSON output.
	ResponseFormat Format

	// ResponseSchema constrains JSON output. Only used with FormatJSON.
	ResponseSchema *jsonschema.Schema

	// Temperature controls output randomness. Nil uses the model default.
	Temperature *float32
}

// CompletionResponse is the model's full reply.
type CompletionResponse struct {
	// Content is the concatenated text of every text part of the first
	// candidate.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over a generation backend.
//
// Each call should propagate context cancellation promptly.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// Returns an error if the request fails or if ctx is cancelled before the
	// completion arrives.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// Temp returns a pointer to t, for [CompletionRequest.Temperature].
func Temp(t float32) *float32 { return &t }

// Package assist implements the request-response writing adapters: rephrase,
// continue, word lookup, proofread, style analysis, review, and dictation.
//
// Every adapter returns a result value whose Error field carries a
// user-facing message. Nothing panics and raw errors never reach the caller
// except through the result's Err field, which lets callers branch on
// [ErrEmptyInput], [ErrTransport], and [ErrMalformedResponse] with errors.Is.
// There are no automatic retries.
package assist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	"unicode"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/inkwell/internal/observe"
	"github.com/MrWong99/inkwell/pkg/provider/llm"
	"github.com/MrWong99/inkwell/pkg/suggest"
)

var (
	// ErrEmptyInput is returned when an adapter is called without usable input.
	// The remote model is not contacted.
	ErrEmptyInput = errors.New("assist: empty input")

	// ErrTransport wraps any failure of the remote call itself.
	ErrTransport = errors.New("assist: transport error")

	// ErrMalformedResponse is returned when structured output does not parse
	// or does not match its schema.
	ErrMalformedResponse = errors.New("assist: malformed response")
)

// Operation names, used as the "operation" attribute on spans and metrics.
const (
	OpRephrase  = "rephrase"
	OpContinue  = "continue"
	OpLookup    = "lookup"
	OpProofread = "proofread"
	OpAnalyze   = "analyze"
	OpReview    = "review"
	OpDictate   = "dictate"
)

// Settings holds the tunable parameters of the adapters. A zero temperature
// is sent as zero; use [DefaultSettings] for the stock values.
type Settings struct {
	// TextModel is used by every text adapter. Empty uses the provider default.
	TextModel string

	// AudioModel is used for dictation. Empty falls back to TextModel.
	AudioModel string

	LookupTemperature    float32
	ProofreadTemperature float32
	AnalyzeTemperature   float32
	ReviewTemperature    float32
	DictateTemperature   float32

	// Timeout bounds each remote call. Zero means no limit beyond the
	// caller's context.
	Timeout time.Duration
}

// DefaultSettings returns the stock adapter settings.
func DefaultSettings() Settings {
	return Settings{
		TextModel:            "gemini-3-flash-preview",
		AudioModel:           "gemini-3-flash-preview",
		LookupTemperature:    0.2,
		ProofreadTemperature: 0.3,
		AnalyzeTemperature:   0.5,
		ReviewTemperature:    0.7,
		DictateTemperature:   0.2,
		Timeout:              60 * time.Second,
	}
}

// Option configures an [Assistant].
type Option func(*Assistant)

// WithMetrics overrides the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *Assistant) { a.metrics = m }
}

// Assistant runs the writing adapters against one [llm.Provider].
// It is safe for concurrent use; settings can be swapped at runtime.
type Assistant struct {
	provider llm.Provider
	metrics  *observe.Metrics
	settings atomic.Pointer[Settings]
}

// New creates an Assistant.
func New(p llm.Provider, s Settings, opts ...Option) *Assistant {
	a := &Assistant{provider: p}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	a.settings.Store(&s)
	return a
}

// Settings returns the current settings.
func (a *Assistant) Settings() Settings { return *a.settings.Load() }

// SetSettings replaces the settings used by subsequent calls.
func (a *Assistant) SetSettings(s Settings) { a.settings.Store(&s) }

// TextResult is the outcome of a free-text adapter.
type TextResult struct {
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
	Err   error  `json:"-"`
}

// LookupKind selects the lookup flavour.
type LookupKind string

const (
	LookupSynonyms   LookupKind = "synonyms"
	LookupDefinition LookupKind = "definition"
)

// LookupResult is the outcome of [Assistant.Lookup]. Synonyms is non-nil on a
// successful synonyms lookup, even when empty.
type LookupResult struct {
	Kind       LookupKind `json:"kind"`
	Synonyms   []string   `json:"synonyms,omitzero"`
	Definition string     `json:"definition,omitempty"`
	Error      string     `json:"error,omitempty"`
	Err        error      `json:"-"`
}

// SuggestionsResult is the outcome of [Assistant.Proofread] and
// [Assistant.Analyze]. Suggestions is non-nil on success, even when empty.
type SuggestionsResult struct {
	Suggestions []suggest.Suggestion `json:"suggestions,omitzero"`
	Error       string               `json:"error,omitempty"`
	Err         error                `json:"-"`
}

// FeedbackResult is the outcome of [Assistant.Review].
type FeedbackResult struct {
	Feedback string `json:"feedback,omitempty"`
	Error    string `json:"error,omitempty"`
	Err      error  `json:"-"`
}

// Rephrase asks for three alternative phrasings of text, optionally steered
// by a free-form instruction such as "make it more formal".
func (a *Assistant) Rephrase(ctx context.Context, text, instruction string) TextResult {
	if blank(text) {
		return textFailure(emptyInput("Please enter some text to work with."))
	}
	s := a.Settings()
	out, err := call(ctx, a, OpRephrase, llm.CompletionRequest{
		Model: s.TextModel,
		Parts: []llm.Part{llm.Text(rephrasePrompt(text, strings.TrimSpace(instruction)))},
	}, decodeText)
	if err != nil {
		return textFailure(err)
	}
	return TextResult{Text: out}
}

// Continue asks for ideas on how to carry the draft forward.
func (a *Assistant) Continue(ctx context.Context, text string) TextResult {
	if blank(text) {
		return textFailure(emptyInput("Please enter some text to work with."))
	}
	s := a.Settings()
	out, err := call(ctx, a, OpContinue, llm.CompletionRequest{
		Model: s.TextModel,
		Parts: []llm.Part{llm.Text(continuePrompt(text))},
	}, decodeText)
	if err != nil {
		return textFailure(err)
	}
	return TextResult{Text: out}
}

// Lookup fetches synonyms or a one-sentence definition for a single word.
func (a *Assistant) Lookup(ctx context.Context, word string, kind LookupKind) LookupResult {
	word = strings.TrimSpace(word)
	res := LookupResult{Kind: kind}
	if word == "" || strings.IndexFunc(word, unicode.IsSpace) >= 0 ||
		utf8.RuneCountInString(word) >= suggest.MaxLookupLen {
		return res.fail(emptyInput("Please select a single word to look up."))
	}
	s := a.Settings()
	req := llm.CompletionRequest{
		Model:          s.TextModel,
		ResponseFormat: llm.FormatJSON,
		Temperature:    llm.Temp(s.LookupTemperature),
	}

	switch kind {
	case LookupSynonyms:
		req.Parts = []llm.Part{llm.Text(synonymsPrompt(word))}
		req.ResponseSchema = synonymsSchema
		out, err := call(ctx, a, OpLookup, req, func(raw string) ([]string, error) {
			var v struct {
				Synonyms []string `json:"synonyms"`
			}
			if err := decodeJSON(raw, synonymsResolved, &v); err != nil {
				return nil, err
			}
			if v.Synonyms == nil {
				v.Synonyms = []string{}
			}
			return v.Synonyms, nil
		})
		if err != nil {
			return res.fail(err)
		}
		res.Synonyms = out
	case LookupDefinition:
		req.Parts = []llm.Part{llm.Text(definitionPrompt(word))}
		req.ResponseSchema = definitionSchema
		out, err := call(ctx, a, OpLookup, req, func(raw string) (string, error) {
			var v struct {
				Definition string `json:"definition"`
			}
			if err := decodeJSON(raw, definitionResolved, &v); err != nil {
				return "", err
			}
			return v.Definition, nil
		})
		if err != nil {
			return res.fail(err)
		}
		res.Definition = out
	default:
		return res.fail(fmt.Errorf("assist: lookup: unknown kind %q", kind))
	}
	return res
}

func (r LookupResult) fail(err error) LookupResult {
	r.Synonyms, r.Definition = nil, ""
	r.Err, r.Error = err, message(err)
	return r
}

// Proofread checks text for grammar, spelling, and punctuation errors.
func (a *Assistant) Proofread(ctx context.Context, text string) SuggestionsResult {
	if blank(text) {
		return suggestionsFailure(emptyInput("Please enter some text to proofread."))
	}
	s := a.Settings()
	return a.suggestions(ctx, OpProofread, text, proofreadInstruction, s.ProofreadTemperature)
}

// Analyze looks for tone, style, and clarity improvements in text.
func (a *Assistant) Analyze(ctx context.Context, text string) SuggestionsResult {
	if blank(text) {
		return suggestionsFailure(emptyInput("Please enter some text to analyze."))
	}
	s := a.Settings()
	return a.suggestions(ctx, OpAnalyze, text, analyzeInstruction, s.AnalyzeTemperature)
}

func (a *Assistant) suggestions(ctx context.Context, op, text, instruction string, temp float32) SuggestionsResult {
	s := a.Settings()
	out, err := call(ctx, a, op, llm.CompletionRequest{
		Model:             s.TextModel,
		Parts:             []llm.Part{llm.Text(text)},
		SystemInstruction: instruction,
		ResponseFormat:    llm.FormatJSON,
		ResponseSchema:    suggestionsSchema,
		Temperature:       llm.Temp(temp),
	}, decodeSuggestions)
	if err != nil {
		return suggestionsFailure(err)
	}
	return SuggestionsResult{Suggestions: out}
}

// decodeSuggestions drops no-op edits the model was told not to produce.
// An empty original is an insertion and is kept.
func decodeSuggestions(raw string) ([]suggest.Suggestion, error) {
	var all []suggest.Suggestion
	if err := decodeJSON(raw, suggestionsResolved, &all); err != nil {
		return nil, err
	}
	out := make([]suggest.Suggestion, 0, len(all))
	for _, s := range all {
		if s.Original == s.Corrected {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// Review returns reader-perspective feedback on flow, clarity, and engagement.
func (a *Assistant) Review(ctx context.Context, text string) FeedbackResult {
	if blank(text) {
		err := emptyInput("Please enter some text to review.")
		return FeedbackResult{Error: message(err), Err: err}
	}
	s := a.Settings()
	out, err := call(ctx, a, OpReview, llm.CompletionRequest{
		Model:             s.TextModel,
		Parts:             []llm.Part{llm.Text(text)},
		SystemInstruction: reviewInstruction,
		Temperature:       llm.Temp(s.ReviewTemperature),
	}, decodeText)
	if err != nil {
		return FeedbackResult{Error: message(err), Err: err}
	}
	return FeedbackResult{Feedback: out}
}

// DefaultDictationMIME is assumed when a recording arrives without a type.
const DefaultDictationMIME = "audio/wav"

// Dictate transcribes and cleans up a recording. previous is the text already
// in the dictation buffer and is passed as context for names and tone.
func (a *Assistant) Dictate(ctx context.Context, recording []byte, mimeType, previous string) TextResult {
	if len(recording) == 0 {
		return textFailure(emptyInput("No audio was recorded."))
	}
	if mimeType == "" {
		mimeType = DefaultDictationMIME
	}
	s := a.Settings()
	model := s.AudioModel
	if model == "" {
		model = s.TextModel
	}
	out, err := call(ctx, a, OpDictate, llm.CompletionRequest{
		Model: model,
		Parts: []llm.Part{
			llm.Blob(recording, mimeType),
			llm.Text(dictationContext(strings.TrimSpace(previous))),
		},
		SystemInstruction: dictationInstruction,
		Temperature:       llm.Temp(s.DictateTemperature),
	}, decodeText)
	if err != nil {
		return textFailure(err)
	}
	return TextResult{Text: out}
}

// AppendDictation appends a new transcription to the dictation buffer,
// separated by a blank line.
func AppendDictation(buffer, addition string) string {
	switch {
	case addition == "":
		return buffer
	case buffer == "":
		return addition
	default:
		return buffer + "\n\n" + addition
	}
}

// call runs one remote request with the assistant's timeout, a span, metrics,
// and logging, then decodes the reply.
func call[T any](ctx context.Context, a *Assistant, op string, req llm.CompletionRequest, decode func(string) (T, error)) (T, error) {
	var zero T
	if t := a.Settings().Timeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	ctx, span := observe.StartSpan(ctx, "assist."+op, trace.WithAttributes(
		attribute.String("operation", op),
		attribute.String("model", req.Model),
	))
	start := time.Now()

	out, err := func() (T, error) {
		resp, err := a.provider.Complete(ctx, req)
		if err != nil {
			return zero, fmt.Errorf("%w: %w", ErrTransport, err)
		}
		return decode(resp.Content)
	}()
	observe.EndSpan(span, err)

	status := "ok"
	if err != nil {
		status = "error"
		kind := "transport"
		if errors.Is(err, ErrMalformedResponse) {
			kind = "malformed"
		}
		a.metrics.RecordAssistError(ctx, op, kind)
		observe.Logger(ctx).Warn("assist: request failed", "operation", op, "kind", kind, "err", err)
	} else {
		observe.Logger(ctx).Debug("assist: request done", "operation", op, "duration", time.Since(start))
	}
	a.metrics.RecordAssist(ctx, op, status, time.Since(start))
	if err != nil {
		return zero, err
	}
	return out, nil
}

func decodeText(raw string) (string, error) { return strings.TrimSpace(raw), nil }

func blank(s string) bool { return strings.TrimSpace(s) == "" }

// inputError carries a message meant for the writer verbatim.
type inputError struct{ msg string }

func (e *inputError) Error() string { return e.msg }
func (e *inputError) Unwrap() error { return ErrEmptyInput }

func emptyInput(msg string) error { return &inputError{msg: msg} }

// message renders err for the Error field of a result.
func message(err error) string {
	var in *inputError
	if errors.As(err, &in) {
		return in.msg
	}
	return err.Error()
}

func textFailure(err error) TextResult {
	return TextResult{Error: message(err), Err: err}
}

func suggestionsFailure(err error) SuggestionsResult {
	return SuggestionsResult{Error: message(err), Err: err}
}

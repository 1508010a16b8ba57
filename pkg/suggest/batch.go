package suggest

import (
	"slices"
	"sync"
)

// Kind names the analysis that produced a batch.
type Kind string

const (
	// KindProofread is a grammar, spelling, and punctuation pass.
	KindProofread Kind = "proofread"

	// KindAnalysis is a tone, style, and clarity pass.
	KindAnalysis Kind = "analysis"
)

// Batch is one set of suggestions returned by a single analysis call together
// with the text it currently applies to. Accepting a suggestion advances the
// text and rebases the rest; rejecting only shrinks the pending list.
//
// A Batch belongs to exactly one text. When the draft changes outside the
// batch, [Batch.Valid] reports false and the batch should be discarded.
//
// All methods are safe for concurrent use.
type Batch struct {
	mu      sync.Mutex
	kind    Kind
	text    string
	pending []Suggestion
}

// NewBatch creates a batch for text. The suggestions slice is copied.
func NewBatch(kind Kind, text string, suggestions []Suggestion) *Batch {
	return &Batch{
		kind:    kind,
		text:    text,
		pending: slices.Clone(suggestions),
	}
}

// Kind returns the analysis kind that produced the batch.
func (b *Batch) Kind() Kind { return b.kind }

// Text returns the current text, including every accepted suggestion.
func (b *Batch) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

// Pending returns a copy of the suggestions not yet accepted or rejected.
func (b *Batch) Pending() []Suggestion {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.pending)
}

// Len returns the number of pending suggestions.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Valid reports whether the batch still describes text.
func (b *Batch) Valid(text string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text == text
}

// Accept applies the pending suggestion at index i. A stale suggestion is
// dropped and the error wraps [ErrStaleSuggestion]; the text is unchanged.
func (b *Batch) Accept(i int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	text, rest, err := Accept(b.text, b.pending, i)
	b.text, b.pending = text, rest
	return err
}

// Reject drops the pending suggestion at index i.
func (b *Batch) Reject(i int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	rest, err := Reject(b.pending, i)
	if err != nil {
		return err
	}
	b.pending = rest
	return nil
}

// AcceptAll applies every pending suggestion with [AcceptAll] and empties the
// pending list.
func (b *Batch) AcceptAll() AcceptReport {
	b.mu.Lock()
	defer b.mu.Unlock()
	text, report := AcceptAll(b.text, b.pending)
	b.text, b.pending = text, nil
	return report
}

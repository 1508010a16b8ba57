// Package suggest applies model-proposed edits to a draft.
//
// A [Suggestion] names a span of the draft (by start offset and original text)
// and the text that should replace it. Offsets and lengths are counted in
// Unicode code points, so a suggestion produced against "café au lait" points
// at the same characters a reader sees, independent of UTF-8 byte widths.
//
// Every function in this package treats its text argument as immutable and
// returns a new string. Span validation is the only defence against stale or
// overlapping input: a suggestion whose original text is not found at its
// offset is skipped with [ErrStaleSuggestion] and the draft is left untouched.
package suggest

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"unicode/utf8"
)

// ErrStaleSuggestion is returned when a suggestion's original span no longer
// matches the text at its start offset.
var ErrStaleSuggestion = errors.New("suggest: stale suggestion")

// ErrOverlap is reported by [AcceptAll] for a suggestion whose span reaches
// into a span that was already rewritten in the same pass.
var ErrOverlap = errors.New("suggest: overlapping suggestion")

// ErrIndex is returned when a caller addresses a suggestion that does not exist.
var ErrIndex = errors.New("suggest: suggestion index out of range")

// Suggestion is a single proposed edit. The JSON field names are the wire
// contract with the remote model and must not change.
type Suggestion struct {
	// Kind is the category of the edit (e.g. "Spelling", "Clarity").
	Kind string `json:"type"`

	// Original is the text the edit replaces.
	Original string `json:"original"`

	// Corrected is the replacement text.
	Corrected string `json:"corrected"`

	// Explanation is a short human-readable rationale.
	Explanation string `json:"explanation"`

	// StartIndex is the code-point offset of Original within the text the
	// suggestion was generated against.
	StartIndex int `json:"startIndex"`
}

// Len returns the length of the original span in code points.
func (s Suggestion) Len() int { return utf8.RuneCountInString(s.Original) }

// End returns the exclusive end offset of the original span.
func (s Suggestion) End() int { return s.StartIndex + s.Len() }

// Delta is the change in text length, in code points, caused by applying s.
func (s Suggestion) Delta() int {
	return utf8.RuneCountInString(s.Corrected) - s.Len()
}

// matches reports whether s.Original sits at s.StartIndex in runes.
func (s Suggestion) matches(runes []rune) bool {
	end := s.End()
	if s.StartIndex < 0 || end > len(runes) {
		return false
	}
	return string(runes[s.StartIndex:end]) == s.Original
}

// splice returns runes with s applied. The caller must have validated s.
func (s Suggestion) splice(runes []rune) []rune {
	out := make([]rune, 0, len(runes)+s.Delta())
	out = append(out, runes[:s.StartIndex]...)
	out = append(out, []rune(s.Corrected)...)
	return append(out, runes[s.End():]...)
}

// ApplyOne returns text with s applied. If the original span does not match,
// text is returned unchanged together with an error wrapping
// [ErrStaleSuggestion].
func ApplyOne(text string, s Suggestion) (string, error) {
	runes := []rune(text)
	if !s.matches(runes) {
		return text, fmt.Errorf("%w: %q not found at offset %d", ErrStaleSuggestion, s.Original, s.StartIndex)
	}
	return string(s.splice(runes)), nil
}

// AcceptAndRebase removes the suggestion at index accepted and shifts every
// remaining suggestion that starts strictly after it by the accepted
// suggestion's [Suggestion.Delta]. Suggestions at or before the accepted
// offset are returned unchanged. The input slice is not modified.
func AcceptAndRebase(suggestions []Suggestion, accepted int) ([]Suggestion, error) {
	if accepted < 0 || accepted >= len(suggestions) {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndex, accepted, len(suggestions))
	}
	a := suggestions[accepted]
	delta := a.Delta()
	out := make([]Suggestion, 0, len(suggestions)-1)
	for i, s := range suggestions {
		if i == accepted {
			continue
		}
		if s.StartIndex > a.StartIndex {
			s.StartIndex += delta
		}
		out = append(out, s)
	}
	return out, nil
}

// Accept applies the suggestion at index i to text and rebases the rest.
// When the suggestion is stale the text is returned unchanged, the stale
// suggestion is dropped from the list, and the error wraps
// [ErrStaleSuggestion].
func Accept(text string, suggestions []Suggestion, i int) (string, []Suggestion, error) {
	if i < 0 || i >= len(suggestions) {
		return text, suggestions, fmt.Errorf("%w: %d of %d", ErrIndex, i, len(suggestions))
	}
	next, err := ApplyOne(text, suggestions[i])
	if err != nil {
		rest, _ := Reject(suggestions, i)
		return text, rest, err
	}
	rest, err := AcceptAndRebase(suggestions, i)
	if err != nil {
		return text, suggestions, err
	}
	return next, rest, nil
}

// Reject removes the suggestion at index i. Offsets are not touched because
// the text does not change.
func Reject(suggestions []Suggestion, i int) ([]Suggestion, error) {
	if i < 0 || i >= len(suggestions) {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndex, i, len(suggestions))
	}
	out := make([]Suggestion, 0, len(suggestions)-1)
	out = append(out, suggestions[:i]...)
	return append(out, suggestions[i+1:]...), nil
}

// Skipped records a suggestion that [AcceptAll] declined to apply.
type Skipped struct {
	Suggestion Suggestion
	Err        error
}

// AcceptReport summarises an [AcceptAll] pass.
type AcceptReport struct {
	// Applied lists the suggestions that were written, in application order
	// (descending start offset).
	Applied []Suggestion

	// Skipped lists stale or overlapping suggestions.
	Skipped []Skipped
}

// AcceptAll applies every suggestion in one pass. Suggestions are sorted by
// start offset, highest first, and applied back to front; an edit never moves
// the text in front of it, so no rebasing is needed between steps. Ties keep
// response order: of two suggestions sharing a start offset the earlier one
// wins and the later one is treated as overlapping.
//
// A suggestion whose span reaches into an already rewritten region is skipped
// with [ErrOverlap]; one whose span does not match is skipped with
// [ErrStaleSuggestion]. Skipping never aborts the batch.
func AcceptAll(text string, suggestions []Suggestion) (string, AcceptReport) {
	ordered := slices.Clone(suggestions)
	slices.SortStableFunc(ordered, func(a, b Suggestion) int {
		return cmp.Compare(b.StartIndex, a.StartIndex)
	})

	var report AcceptReport
	runes := []rune(text)
	wrote, floor := false, 0 // floor is the lowest start offset written so far
	for _, s := range ordered {
		switch {
		case wrote && (s.End() > floor || s.StartIndex == floor):
			report.Skipped = append(report.Skipped, Skipped{Suggestion: s, Err: ErrOverlap})
		case !s.matches(runes):
			report.Skipped = append(report.Skipped, Skipped{Suggestion: s, Err: ErrStaleSuggestion})
		default:
			runes = s.splice(runes)
			wrote, floor = true, s.StartIndex
			report.Applied = append(report.Applied, s)
		}
	}
	return string(runes), report
}

// Conflict names two suggestions, by index, whose spans intersect.
type Conflict struct {
	First  int `json:"first"`
	Second int `json:"second"`
}

// Overlaps returns every pair of suggestions whose original spans intersect.
// A batch produced against one snapshot should never contain any; callers that
// prefer to reject such a batch outright can check this before accepting.
func Overlaps(suggestions []Suggestion) []Conflict {
	idx := make([]int, len(suggestions))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return cmp.Compare(suggestions[a].StartIndex, suggestions[b].StartIndex)
	})

	var out []Conflict
	for i, a := range idx {
		sa := suggestions[a]
		for _, b := range idx[i+1:] {
			sb := suggestions[b]
			if sb.StartIndex >= sa.End() && sb.StartIndex != sa.StartIndex {
				break
			}
			first, second := min(a, b), max(a, b)
			out = append(out, Conflict{First: first, Second: second})
		}
	}
	return out
}

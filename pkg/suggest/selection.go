package suggest

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxLookupLen is the exclusive upper bound, in code points, on a word that
// may be sent for a synonym or definition lookup.
const MaxLookupLen = 50

// ErrSpan is returned for a selection span that does not fit the text.
var ErrSpan = errors.New("suggest: invalid selection span")

// Span is a half-open code-point range [Start, End) within a text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Empty reports whether the span selects nothing.
func (s Span) Empty() bool { return s.Start == s.End }

func (s Span) check(runes []rune) error {
	if s.Start < 0 || s.End < s.Start || s.End > len(runes) {
		return fmt.Errorf("%w: [%d,%d) in text of length %d", ErrSpan, s.Start, s.End, len(runes))
	}
	return nil
}

// SelectedWord returns the word covered by sel when the selection, once
// trimmed, is a single word short enough to look up. ok is false for empty
// selections, multi-word selections, and anything of 50 or more characters.
func SelectedWord(text string, sel Span) (word string, ok bool) {
	runes := []rune(text)
	if sel.check(runes) != nil || sel.Empty() {
		return "", false
	}
	word = strings.TrimSpace(string(runes[sel.Start:sel.End]))
	if word == "" || strings.IndexFunc(word, unicode.IsSpace) >= 0 {
		return "", false
	}
	if utf8.RuneCountInString(word) >= MaxLookupLen {
		return "", false
	}
	return word, true
}

// ReplaceSelection substitutes replacement for the selected range and returns
// the new text together with the cursor offset just past the replacement.
func ReplaceSelection(text string, sel Span, replacement string) (string, int, error) {
	runes := []rune(text)
	if err := sel.check(runes); err != nil {
		return text, 0, err
	}
	var b strings.Builder
	b.Grow(len(text) + len(replacement))
	b.WriteString(string(runes[:sel.Start]))
	b.WriteString(replacement)
	b.WriteString(string(runes[sel.End:]))
	return b.String(), sel.Start + utf8.RuneCountInString(replacement), nil
}

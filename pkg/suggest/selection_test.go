package suggest_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/inkwell/pkg/suggest"
)

func TestSelectedWord(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("a", 50)

	tests := []struct {
		name   string
		text   string
		sel    suggest.Span
		want   string
		wantOK bool
	}{
		{"single word", "the happy dog", suggest.Span{Start: 4, End: 9}, "happy", true},
		{"trims surrounding space", "the happy dog", suggest.Span{Start: 3, End: 10}, "happy", true},
		{"empty selection", "the happy dog", suggest.Span{Start: 4, End: 4}, "", false},
		{"two words", "the happy dog", suggest.Span{Start: 0, End: 9}, "", false},
		{"only whitespace", "a   b", suggest.Span{Start: 1, End: 4}, "", false},
		{"too long", long, suggest.Span{Start: 0, End: 50}, "", false},
		{"out of range", "abc", suggest.Span{Start: 1, End: 9}, "", false},
		{"non-ascii", "un café noir", suggest.Span{Start: 3, End: 7}, "café", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := suggest.SelectedWord(tc.text, tc.sel)
			if got != tc.want || ok != tc.wantOK {
				t.Errorf("SelectedWord = (%q, %v); want (%q, %v)", got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestReplaceSelection(t *testing.T) {
	t.Parallel()
	got, cursor, err := suggest.ReplaceSelection("the happy dog", suggest.Span{Start: 4, End: 9}, "joyful")
	if err != nil {
		t.Fatalf("ReplaceSelection: %v", err)
	}
	if got != "the joyful dog" {
		t.Errorf("text = %q", got)
	}
	if cursor != 10 {
		t.Errorf("cursor = %d; want 10", cursor)
	}
}

func TestReplaceSelection_InvalidSpan(t *testing.T) {
	t.Parallel()
	got, _, err := suggest.ReplaceSelection("abc", suggest.Span{Start: 2, End: 1}, "x")
	if !errors.Is(err, suggest.ErrSpan) {
		t.Fatalf("err = %v; want ErrSpan", err)
	}
	if got != "abc" {
		t.Errorf("text = %q; want unchanged", got)
	}
}

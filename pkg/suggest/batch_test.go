package suggest_test

import (
	"errors"
	"testing"

	"github.com/MrWong99/inkwell/pkg/suggest"
)

func TestBatch_AcceptThenReject(t *testing.T) {
	t.Parallel()
	text, a, b := quickBrownFox()
	c := suggest.Suggestion{Original: "The", Corrected: "A", StartIndex: 0}

	batch := suggest.NewBatch(suggest.KindAnalysis, text, []suggest.Suggestion{a, b, c})
	if batch.Kind() != suggest.KindAnalysis {
		t.Errorf("Kind = %q", batch.Kind())
	}
	if !batch.Valid(text) {
		t.Fatal("new batch should be valid for its own text")
	}

	if err := batch.Accept(0); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if got := batch.Text(); got != "The slow brown fox" {
		t.Errorf("Text = %q", got)
	}
	if batch.Valid(text) {
		t.Error("batch should no longer match the original text")
	}

	before := batch.Text()
	if err := batch.Reject(1); err != nil { // the "The" suggestion
		t.Fatalf("Reject: %v", err)
	}
	if batch.Text() != before {
		t.Error("Reject changed the text")
	}

	pending := batch.Pending()
	if len(pending) != 1 || pending[0].StartIndex != 15 {
		t.Fatalf("pending = %+v; want rebased fox suggestion", pending)
	}
	if err := batch.Accept(0); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if got := batch.Text(); got != "The slow brown cat" {
		t.Errorf("Text = %q", got)
	}
	if batch.Len() != 0 {
		t.Errorf("Len = %d; want 0", batch.Len())
	}
}

func TestBatch_AcceptStale(t *testing.T) {
	t.Parallel()
	batch := suggest.NewBatch(suggest.KindProofread, "hello", []suggest.Suggestion{
		{Original: "jello", Corrected: "yellow", StartIndex: 0},
	})
	if err := batch.Accept(0); !errors.Is(err, suggest.ErrStaleSuggestion) {
		t.Fatalf("err = %v; want ErrStaleSuggestion", err)
	}
	if batch.Text() != "hello" || batch.Len() != 0 {
		t.Errorf("text=%q len=%d; want unchanged text and empty batch", batch.Text(), batch.Len())
	}
}

func TestBatch_AcceptAll(t *testing.T) {
	t.Parallel()
	text, a, b := quickBrownFox()
	batch := suggest.NewBatch(suggest.KindProofread, text, []suggest.Suggestion{a, b})
	report := batch.AcceptAll()
	if len(report.Applied) != 2 {
		t.Errorf("applied = %d; want 2", len(report.Applied))
	}
	if batch.Text() != "The slow brown cat" || batch.Len() != 0 {
		t.Errorf("text=%q len=%d", batch.Text(), batch.Len())
	}
}

func TestBatch_RejectOutOfRange(t *testing.T) {
	t.Parallel()
	batch := suggest.NewBatch(suggest.KindProofread, "x", nil)
	if err := batch.Reject(3); !errors.Is(err, suggest.ErrIndex) {
		t.Errorf("err = %v; want ErrIndex", err)
	}
}

package httpapi_test

import (
	"net/http"
	"testing"

	"github.com/MrWong99/inkwell/pkg/suggest"
)

type suggestionsBody struct {
	Text        string               `json:"text"`
	Suggestions []suggest.Suggestion `json:"suggestions"`
	Error       string               `json:"error"`
}

func fox() (string, []suggest.Suggestion) {
	return "The quick brown fox", []suggest.Suggestion{
		{Kind: "Style", Original: "quick", Corrected: "slow", StartIndex: 4},
		{Kind: "Style", Original: "fox", Corrected: "cat", StartIndex: 16},
	}
}

func TestApply_RebasesRemaining(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	text, list := fox()

	var got suggestionsBody
	status := h.post(t, "/v1/suggestions/apply", map[string]any{"text": text, "suggestions": list, "index": 0}, &got)
	if status != http.StatusOK {
		t.Fatalf("status = %d; body %+v", status, got)
	}
	if got.Text != "The slow brown fox" {
		t.Errorf("text = %q", got.Text)
	}
	if len(got.Suggestions) != 1 || got.Suggestions[0].StartIndex != 15 {
		t.Errorf("suggestions = %+v; want fox rebased to 15", got.Suggestions)
	}
}

func TestApply_StaleIsConflict(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	_, list := fox()

	var got suggestionsBody
	status := h.post(t, "/v1/suggestions/apply", map[string]any{"text": "A lazy dog", "suggestions": list, "index": 0}, &got)
	if status != http.StatusConflict {
		t.Fatalf("status = %d; want 409", status)
	}
	if got.Text != "A lazy dog" || got.Error == "" {
		t.Errorf("body = %+v", got)
	}
	if len(got.Suggestions) != 1 || got.Suggestions[0].Original != "fox" {
		t.Errorf("suggestions = %+v; want the stale one dropped", got.Suggestions)
	}
}

func TestApply_BadIndex(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	text, list := fox()
	if status := h.post(t, "/v1/suggestions/apply", map[string]any{"text": text, "suggestions": list, "index": 5}, nil); status != http.StatusBadRequest {
		t.Errorf("status = %d; want 400", status)
	}
}

func TestApplyAll_ReportsSkipped(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	text, list := fox()
	list = append(list,
		suggest.Suggestion{Original: "quick brown", Corrected: "fast", StartIndex: 4},
		suggest.Suggestion{Original: "Teh", Corrected: "The", StartIndex: 0},
	)

	var got struct {
		Text    string               `json:"text"`
		Applied []suggest.Suggestion `json:"applied"`
		Skipped []struct {
			Suggestion suggest.Suggestion `json:"suggestion"`
			Reason     string             `json:"reason"`
		} `json:"skipped"`
		Conflicts []suggest.Conflict `json:"conflicts"`
	}
	if status := h.post(t, "/v1/suggestions/apply-all", map[string]any{"text": text, "suggestions": list}, &got); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if got.Text != "The slow brown cat" {
		t.Errorf("text = %q", got.Text)
	}
	if len(got.Applied) != 2 {
		t.Errorf("applied = %d; want 2", len(got.Applied))
	}
	reasons := map[string]string{}
	for _, s := range got.Skipped {
		reasons[s.Suggestion.Original] = s.Reason
	}
	if reasons["quick brown"] != "overlap" || reasons["Teh"] != "stale" || len(reasons) != 2 {
		t.Errorf("skipped = %+v", got.Skipped)
	}
	if len(got.Conflicts) != 1 || got.Conflicts[0] != (suggest.Conflict{First: 0, Second: 2}) {
		t.Errorf("conflicts = %+v; want quick and quick brown", got.Conflicts)
	}
}

func TestReject(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	_, list := fox()

	var got suggestionsBody
	if status := h.post(t, "/v1/suggestions/reject", map[string]any{"suggestions": list, "index": 1}, &got); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if len(got.Suggestions) != 1 || got.Suggestions[0].Original != "quick" {
		t.Errorf("suggestions = %+v", got.Suggestions)
	}

	if status := h.post(t, "/v1/suggestions/reject", map[string]any{"suggestions": []suggest.Suggestion{}, "index": 0}, nil); status != http.StatusBadRequest {
		t.Errorf("empty list status = %d; want 400", status)
	}
}

func TestReplaceSelection(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	var got struct {
		Text   string `json:"text"`
		Cursor int    `json:"cursor"`
	}
	body := map[string]any{"text": "un café noir", "start": 3, "end": 7, "word": "thé"}
	if status := h.post(t, "/v1/selection/replace", body, &got); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if got.Text != "un thé noir" || got.Cursor != 6 {
		t.Errorf("got %+v", got)
	}

	body["end"] = 40
	if status := h.post(t, "/v1/selection/replace", body, nil); status != http.StatusBadRequest {
		t.Errorf("out of range status = %d; want 400", status)
	}
}

package httpapi

import (
	"errors"
	"net/http"

	"github.com/MrWong99/inkwell/pkg/suggest"
)

type applyRequest struct {
	Text        string               `json:"text"`
	Suggestions []suggest.Suggestion `json:"suggestions"`
	Index       int                  `json:"index"`
}

type applyResponse struct {
	Text        string               `json:"text"`
	Suggestions []suggest.Suggestion `json:"suggestions"`
	Error       string               `json:"error,omitempty"`
}

type applyAllRequest struct {
	Text        string               `json:"text"`
	Suggestions []suggest.Suggestion `json:"suggestions"`
}

type skippedSuggestion struct {
	Suggestion suggest.Suggestion `json:"suggestion"`
	Reason     string             `json:"reason"`
}

type applyAllResponse struct {
	Text    string               `json:"text"`
	Applied []suggest.Suggestion `json:"applied"`
	Skipped []skippedSuggestion  `json:"skipped"`

	// Conflicts lists, by request index, the pairs of suggestions whose
	// spans intersect.
	Conflicts []suggest.Conflict `json:"conflicts,omitempty"`
}

type rejectRequest struct {
	Suggestions []suggest.Suggestion `json:"suggestions"`
	Index       int                  `json:"index"`
}

type rejectResponse struct {
	Suggestions []suggest.Suggestion `json:"suggestions"`
}

type replaceRequest struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Word  string `json:"word"`
}

type replaceResponse struct {
	Text   string `json:"text"`
	Cursor int    `json:"cursor"`
}

// handleApply accepts one suggestion. A stale suggestion is removed from the
// returned list and reported with 409; the text comes back unchanged.
func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if !decode(w, r, &req) {
		return
	}
	text, rest, err := suggest.Accept(req.Text, req.Suggestions, req.Index)
	switch {
	case errors.Is(err, suggest.ErrIndex):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, suggest.ErrStaleSuggestion):
		s.metrics.RecordSuggestions(r.Context(), 0, 1, 0)
		writeJSON(w, http.StatusConflict, applyResponse{Text: text, Suggestions: nonNil(rest), Error: err.Error()})
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.metrics.RecordSuggestions(r.Context(), 1, 0, 0)
	writeJSON(w, http.StatusOK, applyResponse{Text: text, Suggestions: nonNil(rest)})
}

func (s *Server) handleApplyAll(w http.ResponseWriter, r *http.Request) {
	var req applyAllRequest
	if !decode(w, r, &req) {
		return
	}
	conflicts := suggest.Overlaps(req.Suggestions)
	text, report := suggest.AcceptAll(req.Text, req.Suggestions)

	resp := applyAllResponse{
		Text:      text,
		Applied:   nonNil(report.Applied),
		Skipped:   make([]skippedSuggestion, 0, len(report.Skipped)),
		Conflicts: conflicts,
	}
	var stale, overlapping int
	for _, sk := range report.Skipped {
		reason := "stale"
		if errors.Is(sk.Err, suggest.ErrOverlap) {
			reason = "overlap"
			overlapping++
		} else {
			stale++
		}
		resp.Skipped = append(resp.Skipped, skippedSuggestion{Suggestion: sk.Suggestion, Reason: reason})
	}
	s.metrics.RecordSuggestions(r.Context(), len(report.Applied), stale, overlapping)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if !decode(w, r, &req) {
		return
	}
	rest, err := suggest.Reject(req.Suggestions, req.Index)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rejectResponse{Suggestions: nonNil(rest)})
}

func (s *Server) handleReplaceSelection(w http.ResponseWriter, r *http.Request) {
	var req replaceRequest
	if !decode(w, r, &req) {
		return
	}
	text, cursor, err := suggest.ReplaceSelection(req.Text, suggest.Span{Start: req.Start, End: req.End}, req.Word)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, replaceResponse{Text: text, Cursor: cursor})
}

func nonNil(s []suggest.Suggestion) []suggest.Suggestion {
	if s == nil {
		return []suggest.Suggestion{}
	}
	return s
}

package httpapi

import (
	"net/http"

	"github.com/MrWong99/inkwell/internal/assist"
	"github.com/MrWong99/inkwell/pkg/suggest"
)

type textRequest struct {
	Text string `json:"text"`
}

type rephraseRequest struct {
	Text        string `json:"text"`
	Instruction string `json:"instruction"`
}

// lookupRequest names the word directly or as a selection within text.
// Selection wins when both are given.
type lookupRequest struct {
	Word      string            `json:"word"`
	Text      string            `json:"text"`
	Selection *suggest.Span     `json:"selection"`
	Kind      assist.LookupKind `json:"kind"`
}

type dictationRequest struct {
	Audio    []byte `json:"audio"`
	MIMEType string `json:"mimeType"`
	Context  string `json:"context"`
}

// Adapter results are always written with 200; a remote failure is carried
// in the body's error field.

func (s *Server) handleRephrase(w http.ResponseWriter, r *http.Request) {
	var req rephraseRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.cfg.Assistant.Rephrase(r.Context(), req.Text, req.Instruction))
}

func (s *Server) handleContinue(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.cfg.Assistant.Continue(r.Context(), req.Text))
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	var req lookupRequest
	if !decode(w, r, &req) {
		return
	}
	switch req.Kind {
	case assist.LookupSynonyms, assist.LookupDefinition:
	default:
		writeError(w, http.StatusBadRequest, `kind must be "synonyms" or "definition"`)
		return
	}
	word := req.Word
	if req.Selection != nil {
		// An unusable selection becomes an empty word, which the assistant
		// reports with its own message.
		word, _ = suggest.SelectedWord(req.Text, *req.Selection)
	}
	writeJSON(w, http.StatusOK, s.cfg.Assistant.Lookup(r.Context(), word, req.Kind))
}

func (s *Server) handleProofread(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.cfg.Assistant.Proofread(r.Context(), req.Text))
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.cfg.Assistant.Analyze(r.Context(), req.Text))
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.cfg.Assistant.Review(r.Context(), req.Text))
}

func (s *Server) handleDictation(w http.ResponseWriter, r *http.Request) {
	var req dictationRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.cfg.Assistant.Dictate(r.Context(), req.Audio, req.MIMEType, req.Context))
}

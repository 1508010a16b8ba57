package assist

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/kaptinlin/jsonrepair"
)

func ptr[T any](v T) *T { return &v }

var (
	synonymsSchema = &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"synonyms": {
				Type:        "array",
				Description: "A list of synonyms for the given word.",
				Items:       &jsonschema.Schema{Type: "string"},
			},
		},
		Required: []string{"synonyms"},
	}

	definitionSchema = &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"definition": {
				Type:        "string",
				Description: "A concise definition of the word.",
			},
		},
		Required: []string{"definition"},
	}

	suggestionsSchema = &jsonschema.Schema{
		Type: "array",
		Items: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"type":        {Type: "string", Description: "The category of the suggestion."},
				"original":    {Type: "string", Description: "The original snippet of text."},
				"corrected":   {Type: "string", Description: "The replacement snippet."},
				"explanation": {Type: "string", Description: "A brief explanation of the change."},
				"startIndex": {
					Type:        "integer",
					Description: "The starting character index of the original text.",
					Minimum:     ptr(0.0),
				},
			},
			Required: []string{"type", "original", "corrected", "explanation", "startIndex"},
		},
	}
)

var (
	synonymsResolved    = mustResolve(synonymsSchema)
	definitionResolved  = mustResolve(definitionSchema)
	suggestionsResolved = mustResolve(suggestionsSchema)
)

func mustResolve(s *jsonschema.Schema) *jsonschema.Resolved {
	r, err := s.Resolve(nil)
	if err != nil {
		panic(fmt.Sprintf("assist: resolve schema: %v", err))
	}
	return r
}

// decodeJSON parses a model response, validates it against schema, and
// stores the result in v. Any failure wraps [ErrMalformedResponse].
func decodeJSON(raw string, schema *jsonschema.Resolved, v any) error {
	data := []byte(stripFence(raw))
	var doc any
	if err := unmarshalJSON(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	// Re-encode the validated document so v never sees the unrepaired bytes.
	clean, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := json.Unmarshal(clean, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// unmarshalJSON retries a syntactically broken document once after running it
// through jsonrepair.
func unmarshalJSON(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	var syn *json.SyntaxError
	if !errors.As(err, &syn) {
		return err
	}
	fixed, rerr := jsonrepair.JSONRepair(string(data))
	if rerr != nil {
		return err
	}
	return json.Unmarshal([]byte(fixed), v)
}

// stripFence removes a surrounding markdown code fence, with or without a
// language tag.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

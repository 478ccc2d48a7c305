package detect

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/xavierjflanagan/Guardian-sub001/internal/model"
)

// ContractError marks a completion response that violated the structured
// output contract. Retryable up to a bounded count, then terminal with
// retry_recommended set.
type ContractError struct {
	Reason string
}

func (e *ContractError) Error() string {
	return "detect: response contract violation: " + e.Reason
}

// IsContractError reports whether err is a response contract violation.
func IsContractError(err error) bool {
	var ce *ContractError
	return eris.As(err, &ce)
}

// ParseResponse decodes the completion text into the strict response shape.
// Markdown code fences around the JSON are tolerated; anything else that
// fails to decode, or decodes into the wrong top-level shape, is a
// ContractError.
func ParseResponse(text string) (*model.AIResponse, error) {
	trimmed := stripCodeFence(strings.TrimSpace(text))
	if trimmed == "" {
		return nil, eris.Wrap(&ContractError{Reason: "empty response body"}, "detect: parse")
	}

	dec := json.NewDecoder(strings.NewReader(trimmed))
	var resp model.AIResponse
	if err := dec.Decode(&resp); err != nil {
		return nil, eris.Wrap(&ContractError{Reason: "not valid JSON: " + err.Error()}, "detect: parse")
	}

	// Top-level shape checks. A response with a missing entities key (as
	// opposed to an empty array) decodes to nil and is a contract error.
	var shape map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &shape); err != nil {
		return nil, eris.Wrap(&ContractError{Reason: "not a JSON object"}, "detect: parse")
	}
	for _, key := range []string{
		"entities", "processing_metadata", "document_coverage",
		"cross_validation_results", "quality_assessment", "profile_safety",
	} {
		if _, ok := shape[key]; !ok {
			return nil, eris.Wrap(&ContractError{Reason: "missing top-level key " + key}, "detect: parse")
		}
	}

	for i, ent := range resp.Entities {
		if ent.EntityID == "" {
			return nil, eris.Wrapf(&ContractError{Reason: "entity missing entity_id"}, "detect: parse entity %d", i)
		}
		if ent.Classification.Category == "" || ent.Classification.Subtype == "" {
			return nil, eris.Wrapf(&ContractError{Reason: "entity missing classification"}, "detect: parse entity %s", ent.EntityID)
		}
	}
	return &resp, nil
}

// stripCodeFence removes a ```json ... ``` wrapper if present. Models
// occasionally fence the output despite instructions not to.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

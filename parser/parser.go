// Package parser turns raw LLM output into validated check results. Every
// checker's response passes through one of the typed parse functions here;
// a response that does not carry its schema's required fields is rejected so
// the caller can degrade the verdict instead of silently defaulting.
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"event-review-pipeline/models"
)

// SensitiveResult is the structured output contract of the sensitive-content check.
type SensitiveResult struct {
	HasSensitiveContent bool             `json:"has_sensitive_content"`
	MatchedTerms        []string         `json:"matched_terms"`
	Findings            []models.Finding `json:"findings"`
	Summary             string           `json:"summary"`
}

// Violation is one regulatory violation reported by the model.
type Violation struct {
	Category   string `json:"category"`
	Content    string `json:"content"`
	Law        string `json:"law"`
	Suggestion string `json:"suggestion"`
}

// RegulatoryResult is the structured output contract of the regulatory check.
type RegulatoryResult struct {
	HasViolation       bool        `json:"has_violation"`
	Violations         []Violation `json:"violations"`
	MissingDisclosures []string    `json:"missing_disclosures"`
	Summary            string      `json:"summary"`
}

// ImageTextResult is the structured output contract of the image-description check.
type ImageTextResult struct {
	HasIssue bool             `json:"has_issue"`
	Issues   []models.Finding `json:"issues"`
	Summary  string           `json:"summary"`
}

// RiskDetail is one per-image risk reported by the risk summarizer.
type RiskDetail struct {
	Type       string `json:"type"`
	URL        string `json:"url"`
	Issue      string `json:"issue"`
	Suggestion string `json:"suggestion"`
}

// RiskSummaryResult is the structured output contract of the risk summarizer.
type RiskSummaryResult struct {
	HasRisk     bool         `json:"has_risk"`
	RiskDetails []RiskDetail `json:"risk_details"`
	Summary     string       `json:"summary"`
}

// FeedbackResult is the structured output contract of the feedback narrative.
type FeedbackResult struct {
	Feedback string `json:"feedback"`
}

// ExtractJSON extracts a JSON object from an LLM response, stripping markdown
// code fences when present.
func ExtractJSON(response string) string {
	response = strings.TrimSpace(response)

	startMarker := "```"
	startIdx := strings.Index(response, startMarker)
	if startIdx == -1 {
		// No code block, try to find the JSON object directly.
		objStart := strings.Index(response, "{")
		if objStart == -1 {
			return response
		}
		objEnd := strings.LastIndex(response, "}")
		if objEnd == -1 {
			return response
		}
		return strings.TrimSpace(response[objStart : objEnd+1])
	}

	endIdx := strings.Index(response[startIdx+len(startMarker):], startMarker)
	if endIdx == -1 {
		return response
	}
	endIdx += startIdx + len(startMarker)

	content := response[startIdx+len(startMarker) : endIdx]

	// Remove the language identifier if present (e.g., "json")
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) > 0 && (strings.TrimSpace(lines[0]) == "json" || strings.TrimSpace(lines[0]) == "") {
		content = strings.Join(lines[1:], "\n")
	}

	return strings.TrimSpace(content)
}

// decode unmarshals the extracted JSON into both a key map (for required-field
// presence checks) and the typed result.
func decode(response string, v any, required ...string) error {
	jsonContent := ExtractJSON(response)

	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(jsonContent), &keys); err != nil {
		return fmt.Errorf("response is not a JSON object: %w", err)
	}
	for _, key := range required {
		if _, ok := keys[key]; !ok {
			return fmt.Errorf("required field %q is missing", key)
		}
	}

	if err := json.Unmarshal([]byte(jsonContent), v); err != nil {
		return fmt.Errorf("response does not match schema: %w", err)
	}
	return nil
}

// ParseSensitive parses and validates a sensitive-content check response.
func ParseSensitive(response string) (*SensitiveResult, error) {
	var result SensitiveResult
	if err := decode(response, &result, "has_sensitive_content", "summary"); err != nil {
		return nil, err
	}
	if result.Summary == "" {
		return nil, errors.New("summary is required")
	}
	return &result, nil
}

// ParseRegulatory parses and validates a regulatory check response.
func ParseRegulatory(response string) (*RegulatoryResult, error) {
	var result RegulatoryResult
	if err := decode(response, &result, "has_violation", "summary"); err != nil {
		return nil, err
	}
	if result.Summary == "" {
		return nil, errors.New("summary is required")
	}
	return &result, nil
}

// ParseImageText parses and validates an image-description check response.
func ParseImageText(response string) (*ImageTextResult, error) {
	var result ImageTextResult
	if err := decode(response, &result, "has_issue", "summary"); err != nil {
		return nil, err
	}
	if result.Summary == "" {
		return nil, errors.New("summary is required")
	}
	return &result, nil
}

// ParseFeedback parses and validates a feedback narrative response.
func ParseFeedback(response string) (*FeedbackResult, error) {
	var result FeedbackResult
	if err := decode(response, &result, "feedback"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(result.Feedback) == "" {
		return nil, errors.New("feedback is required")
	}
	return &result, nil
}

// ParseRiskSummary parses and validates a risk summarizer response.
func ParseRiskSummary(response string) (*RiskSummaryResult, error) {
	var result RiskSummaryResult
	if err := decode(response, &result, "has_risk", "summary"); err != nil {
		return nil, err
	}
	if result.Summary == "" {
		return nil, errors.New("summary is required")
	}
	return &result, nil
}

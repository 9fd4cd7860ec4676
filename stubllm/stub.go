// Package stubllm is a deterministic, no-network LLM stub for CI and local
// end-to-end tests. It returns schema-valid JSON per check kind so parsing
// and aggregation exercise the full pipeline, and records every call so
// tests can assert which checks actually hit the model.
package stubllm

import (
	"context"
	"strings"
	"sync"
)

// Check kinds recognized by the stub, detected from the schema field names
// embedded in each check's system instruction.
const (
	KindSensitive  = "sensitive"
	KindRegulatory = "regulatory"
	KindImageText  = "image_text"
	KindRiskSum    = "image_risk"
	KindFeedback   = "feedback"
)

const (
	defaultSensitive  = `{"has_sensitive_content": false, "matched_terms": [], "findings": [], "summary": "No disallowed content found."}`
	defaultRegulatory = `{"has_violation": false, "violations": [], "missing_disclosures": [], "summary": "No compliance issues found."}`
	defaultImageText  = `{"has_issue": false, "issues": [], "summary": "Captions are policy-compliant."}`
	defaultRiskSum    = `{"has_risk": false, "risk_details": [], "summary": "No image risks detected."}`
	defaultFeedback   = `{"feedback": "All checks passed. The listing is ready for publication."}`
)

// Call records one Complete invocation.
type Call struct {
	Kind   string
	System string
	User   string
}

type Client struct {
	mu        sync.Mutex
	calls     []Call
	responses map[string]string
	errs      map[string]error
}

func NewClient() *Client {
	return &Client{
		responses: map[string]string{
			KindSensitive:  defaultSensitive,
			KindRegulatory: defaultRegulatory,
			KindImageText:  defaultImageText,
			KindRiskSum:    defaultRiskSum,
			KindFeedback:   defaultFeedback,
		},
		errs: map[string]error{},
	}
}

func (c *Client) SourceName() string { return "Stub" }

// SetResponse overrides the canned response for one check kind.
func (c *Client) SetResponse(kind, response string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses[kind] = response
}

// SetError makes Complete fail for one check kind.
func (c *Client) SetError(kind string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs[kind] = err
}

// Calls returns a copy of all recorded calls.
func (c *Client) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Call, len(c.calls))
	copy(out, c.calls)
	return out
}

// CallCount returns how many times the given kind was invoked.
func (c *Client) CallCount(kind string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, call := range c.calls {
		if call.Kind == kind {
			n++
		}
	}
	return n
}

func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	kind := kindOf(system)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, Call{Kind: kind, System: system, User: user})

	if err := c.errs[kind]; err != nil {
		return "", err
	}
	return c.responses[kind], nil
}

func kindOf(system string) string {
	switch {
	case strings.Contains(system, "has_sensitive_content"):
		return KindSensitive
	case strings.Contains(system, "has_violation"):
		return KindRegulatory
	case strings.Contains(system, "has_issue"):
		return KindImageText
	case strings.Contains(system, "has_risk"):
		return KindRiskSum
	default:
		return KindFeedback
	}
}

package checks

import (
	"context"
	"encoding/json"
	"fmt"

	"event-review-pipeline/llm"
	"event-review-pipeline/models"
	"event-review-pipeline/parser"
)

const regulatoryPrompt = `
You are the Everforest regulatory compliance reviewer for outdoor event
listings. You receive the flattened event text plus the structured event
record (prices, plans, policies) and check the listing against the rule
checklist below. Cross-reference stated prices, claims and policies against
the required disclosure language.

########################################
# 1. RULE CHECKLIST
########################################
Check each category. Representative trigger phrases are examples, not an
exhaustive list.

* financial-claims      - "guaranteed profit", "earn money while camping",
                          investment or resale pitches. Maps to: false advertising.
* false-certification   - "government certified", "officially licensed guide"
                          without a verifiable license reference. Maps to:
                          certification fraud / false advertising.
* safety-guarantee      - "100% safe", "accident-free guaranteed", "no risk at all".
                          Absolute safety claims for outdoor activities.
                          Maps to: false advertising.
* disclosure            - missing cancellation policy, missing operator identity,
                          missing total price where a price is advertised.
                          Maps to: consumer disclosure requirements.
* promotional-urgency   - "today only", "last 3 spots" style pressure claims that
                          cannot be substantiated. Maps to: unfair commercial practice.
* medical-claims        - "cures insomnia", "heals chronic pain", therapeutic or
                          efficacy claims about the experience. Maps to:
                          unlicensed medical claims.

########################################
# 2. OUTPUT RULES
########################################
* Output a single valid JSON object and nothing else, no markdown wrapping.
* Quote the offending content verbatim in each violation.
* Name the regulation class each violation maps to in the "law" field.
* List required disclosures the listing omits in missing_disclosures.

########################################
# 3. OUTPUT SCHEMA
{
  "has_violation": <true | false>,
  "violations": [
    {
      "category": "<checklist category>",
      "content": "<verbatim offending content>",
      "law": "<regulation class>",
      "suggestion": "<how to bring the listing into compliance>"
    }
  ],
  "missing_disclosures": ["<required disclosure 1>", "<disclosure 2>"],
  "summary": "<1-3 sentence overview of the compliance result>"
}
########################################
`

// RegulatoryChecker checks the listing against the compliance rule checklist.
type RegulatoryChecker struct {
	llm llm.Client
}

func NewRegulatoryChecker(client llm.Client) *RegulatoryChecker {
	return &RegulatoryChecker{llm: client}
}

// Check runs the regulatory screening over the corpus plus the structured
// snapshot, so the model can cross-reference stated facts against
// disclosure language.
func (c *RegulatoryChecker) Check(ctx context.Context, corpus string, req *models.ReviewRequest) models.CheckVerdict {
	snapshot, err := json.Marshal(req)
	if err != nil {
		return degradedVerdict("regulatory", err)
	}

	user := fmt.Sprintf("EVENT TEXT:\n%s\n\nEVENT RECORD (JSON):\n%s", corpus, snapshot)

	response, err := c.llm.Complete(ctx, regulatoryPrompt, user)
	if err != nil {
		return degradedVerdict("regulatory", err)
	}

	result, err := parser.ParseRegulatory(response)
	if err != nil {
		return degradedVerdict("regulatory", err)
	}

	verdict := models.CheckVerdict{
		Status:  models.CheckPass,
		Summary: result.Summary,
	}
	for _, v := range result.Violations {
		verdict.Findings = append(verdict.Findings, models.Finding{
			Category:   v.Category,
			Detail:     fmt.Sprintf("%s (%s)", v.Content, v.Law),
			Suggestion: v.Suggestion,
		})
	}
	for _, d := range result.MissingDisclosures {
		verdict.Findings = append(verdict.Findings, models.Finding{
			Category:   "missing-disclosure",
			Detail:     d,
			Suggestion: "Add the missing disclosure to the listing.",
		})
	}
	if result.HasViolation {
		verdict.Status = models.CheckFail
	}
	return verdict
}

package checks

import (
	"context"
	"encoding/json"

	"event-review-pipeline/llm"
	"event-review-pipeline/models"
	"event-review-pipeline/parser"
)

const riskSummaryPrompt = `
You are the Everforest image risk assessor. You receive the machine
classification scores of every image uploaded to a camping event listing,
reduced to a fixed set of risk channels (nudity, violence, weapons, gore,
offensive, scam, alcohol, drugs, tobacco, gambling) with scores between 0.0
and 1.0. Some entries may carry an "error" field instead of scores when the
scan of that image failed; mention such images in the summary but do not
treat a failed scan as a detected risk on its own.

Aggregate the per-image scores into one overall verdict for the listing.
Scores above 0.6 on any channel normally indicate a real risk; use judgment
for channels like alcohol where context matters for an adults-only event.

########################################
# OUTPUT SCHEMA
Output a single valid JSON object and nothing else, no markdown wrapping:
{
  "has_risk": <true | false>,
  "risk_details": [
    {
      "type": "<risk channel>",
      "url": "<image url>",
      "issue": "<what the scores indicate>",
      "suggestion": "<replace, crop, or remove advice for the host>"
    }
  ],
  "summary": "<1-3 sentence overall assessment across all images>"
}
########################################
`

// RiskSummarizer aggregates per-image classifier scores into one verdict.
type RiskSummarizer struct {
	llm llm.Client
}

func NewRiskSummarizer(client llm.Client) *RiskSummarizer {
	return &RiskSummarizer{llm: client}
}

// Summarize feeds the reduced scan results to the model and returns the
// overall image-risk verdict. With no images the listing passes vacuously.
func (s *RiskSummarizer) Summarize(ctx context.Context, scans []models.ImageScanResult) models.CheckVerdict {
	if len(scans) == 0 {
		return models.CheckVerdict{
			Status:  models.CheckPass,
			Summary: "No images to assess.",
		}
	}

	payload, err := json.Marshal(scans)
	if err != nil {
		return degradedVerdict("image-risk", err)
	}

	response, err := s.llm.Complete(ctx, riskSummaryPrompt, string(payload))
	if err != nil {
		return degradedVerdict("image-risk", err)
	}

	result, err := parser.ParseRiskSummary(response)
	if err != nil {
		return degradedVerdict("image-risk", err)
	}

	verdict := models.CheckVerdict{
		Status:  models.CheckPass,
		Summary: result.Summary,
	}
	for _, d := range result.RiskDetails {
		verdict.Findings = append(verdict.Findings, models.Finding{
			Category:   d.Type,
			Detail:     d.URL + ": " + d.Issue,
			Suggestion: d.Suggestion,
		})
	}
	if result.HasRisk {
		verdict.Status = models.CheckFail
	}
	return verdict
}

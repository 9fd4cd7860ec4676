package review

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"event-review-pipeline/models"
	"event-review-pipeline/parser"

	"github.com/apex/log"
)

const feedbackPrompt = `
You are the Everforest review assistant. You receive the results of every
automated check run against a camping event listing (JSON: per-check status,
findings and summaries, and the overall result) and write the feedback shown
to the event host.

Rules:
* Write 2-5 sentences. No markdown, no lists.
* If the listing was approved, say so and mention anything worth tightening.
* If it was rejected, explain what failed and what the host should change,
  referring to concrete findings.
* If a check could not be completed, tell the host their listing needs a
  manual review and that no action is required from them yet.
* Address the host directly and stay constructive.

Respond with a JSON object:
{
  "feedback": "<the narrative>"
}
`

type feedbackPayload struct {
	Success  bool                  `json:"success"`
	Verdicts models.ReviewVerdicts `json:"verdicts"`
}

// buildFeedback asks the model for the host-facing narrative. When the model
// is unavailable the narrative is assembled from the verdict summaries so a
// review never completes without feedback.
func (p *Pipeline) buildFeedback(ctx context.Context, success bool, verdicts models.ReviewVerdicts) string {
	payload, err := json.Marshal(feedbackPayload{Success: success, Verdicts: verdicts})
	if err != nil {
		return fallbackFeedback(success, verdicts)
	}

	response, err := p.llm.Complete(ctx, feedbackPrompt, string(payload))
	if err != nil {
		log.WithError(err).Warn("feedback narrative request failed, assembling fallback")
		return fallbackFeedback(success, verdicts)
	}

	narrative, err := parser.ParseFeedback(response)
	if err != nil {
		log.WithError(err).Warn("feedback narrative response invalid, assembling fallback")
		return fallbackFeedback(success, verdicts)
	}
	return strings.TrimSpace(narrative.Feedback)
}

var checkLabels = map[string]string{
	"sensitive":  "sensitive content",
	"regulatory": "regulatory compliance",
	"image_text": "image captions",
	"image_risk": "image content",
}

func fallbackFeedback(success bool, verdicts models.ReviewVerdicts) string {
	if success {
		return "All automated checks passed. Your listing has been approved for publication."
	}

	var b strings.Builder
	b.WriteString("Your listing was not approved. ")
	all := verdicts.All()
	for _, name := range verdicts.FailedChecks() {
		v := all[name]
		if v.Degraded() {
			fmt.Fprintf(&b, "The %s check could not be completed and will be reviewed manually. ", checkLabels[name])
			continue
		}
		fmt.Fprintf(&b, "The %s check failed: %s ", checkLabels[name], v.Summary)
	}
	return strings.TrimSpace(b.String())
}

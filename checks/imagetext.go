package checks

import (
	"context"
	"fmt"
	"strings"

	"event-review-pipeline/llm"
	"event-review-pipeline/models"
	"event-review-pipeline/parser"
)

const imageTextPrompt = `
You are the Everforest image caption reviewer. You receive only the
human-written captions of images uploaded to a camping event listing and
screen them for policy violations. You do not see the images themselves.

########################################
# 1. RISK TAXONOMY
########################################
* nudity                 - sexual or explicit descriptions
* violence               - descriptions of violence, weapons, threats
* discrimination         - slurs or discriminatory language
* exaggerated-efficacy   - therapeutic or health claims about the experience
* brand-misuse           - implying sponsorship or endorsement by a brand
                           without authorization

########################################
# 2. OUTPUT RULES
########################################
* Output a single valid JSON object and nothing else, no markdown wrapping.
* Quote the offending caption text in each issue's detail.
* When nothing is found, issues is an empty array.

########################################
# 3. OUTPUT SCHEMA
{
  "has_issue": <true | false>,
  "issues": [
    {
      "category": "<taxonomy category>",
      "detail": "<what was found, quoting the caption>",
      "suggestion": "<how the host should fix it>"
    }
  ],
  "summary": "<1-2 sentence overview>"
}
########################################
`

// ImageTextChecker screens the human-written image captions of a listing.
type ImageTextChecker struct {
	llm llm.Client
}

func NewImageTextChecker(client llm.Client) *ImageTextChecker {
	return &ImageTextChecker{llm: client}
}

// Check screens the given captions. An event with no captions passes
// vacuously with no external call: absent captions are not an error.
func (c *ImageTextChecker) Check(ctx context.Context, captions []string) models.CheckVerdict {
	if len(captions) == 0 {
		return models.CheckVerdict{
			Status:  models.CheckPass,
			Summary: "No image captions to review.",
		}
	}

	var b strings.Builder
	for i, caption := range captions {
		fmt.Fprintf(&b, "Caption %d: %s\n", i+1, caption)
	}

	response, err := c.llm.Complete(ctx, imageTextPrompt, b.String())
	if err != nil {
		return degradedVerdict("image-caption", err)
	}

	result, err := parser.ParseImageText(response)
	if err != nil {
		return degradedVerdict("image-caption", err)
	}

	verdict := models.CheckVerdict{
		Status:   models.CheckPass,
		Findings: result.Issues,
		Summary:  result.Summary,
	}
	if result.HasIssue {
		verdict.Status = models.CheckFail
	}
	return verdict
}

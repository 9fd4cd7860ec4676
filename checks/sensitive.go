package checks

import (
	"context"

	"event-review-pipeline/llm"
	"event-review-pipeline/models"
	"event-review-pipeline/parser"
)

const sensitivePrompt = `
You are the Everforest content reviewer for outdoor event listings. You screen
the full text of a camping event (title, description, policies, host profile,
notices, image captions, plan contents) for sensitive or disallowed content
before the event may be published.

########################################
# 1. TAXONOMY OF DISALLOWED CONTENT
########################################
Flag content that falls into any of the following categories:

* violence          - weapons, fighting, threats, glorification of violence
* adult             - sexually explicit or suggestive content, nudity
* gambling          - poker, betting, lotteries, casino-style games, cash-prize wagers
* drugs             - narcotics, recreational drug use, drug paraphernalia
* alcohol-excess    - binge drinking events, all-you-can-drink promotions aimed broadly
                      (moderate alcohol service at an adults-only event is acceptable)
* hate              - slurs, discrimination by race, religion, gender, orientation, disability
* self-harm         - content encouraging self-harm or dangerous stunts without safeguards
* illegal-activity  - trespassing, poaching, unlicensed hunting, open fires where prohibited
* fraud             - pyramid schemes, fake giveaways, bait-and-switch offers
* profanity         - severe profanity or obscene language in customer-facing text

########################################
# 2. OUTPUT RULES
########################################
* Output a single valid JSON object and nothing else, no markdown wrapping.
* Quote the offending phrase verbatim in each finding's detail.
* Every finding needs a concrete, actionable suggestion for the host.
* When nothing is found, matched_terms and findings are empty arrays.

########################################
# 3. OUTPUT SCHEMA
{
  "has_sensitive_content": <true | false>,
  "matched_terms": ["<verbatim phrase 1>", "<phrase 2>"],
  "findings": [
    {
      "category": "<taxonomy category>",
      "detail": "<what was found, quoting the phrase>",
      "suggestion": "<how the host should fix it>"
    }
  ],
  "summary": "<1-3 sentence overview of the screening result>"
}
########################################
`

// SensitiveChecker screens the event corpus for disallowed terms and themes.
type SensitiveChecker struct {
	llm llm.Client
}

func NewSensitiveChecker(client llm.Client) *SensitiveChecker {
	return &SensitiveChecker{llm: client}
}

// Check runs the sensitive-content screening over the corpus.
func (c *SensitiveChecker) Check(ctx context.Context, corpus string) models.CheckVerdict {
	response, err := c.llm.Complete(ctx, sensitivePrompt, corpus)
	if err != nil {
		return degradedVerdict("sensitive-content", err)
	}

	result, err := parser.ParseSensitive(response)
	if err != nil {
		return degradedVerdict("sensitive-content", err)
	}

	verdict := models.CheckVerdict{
		Status:   models.CheckPass,
		Findings: result.Findings,
		Summary:  result.Summary,
	}
	if result.HasSensitiveContent {
		verdict.Status = models.CheckFail
	}
	return verdict
}

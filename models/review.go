package models

import "time"

// CheckStatus is the three-valued outcome of a single checker. Degraded means
// the check could not be completed (upstream error or malformed model output)
// and is distinct from both pass and fail so the admission controller can
// decide policy instead of each checker silently coercing the result.
type CheckStatus string

const (
	CheckPass     CheckStatus = "pass"
	CheckFail     CheckStatus = "fail"
	CheckDegraded CheckStatus = "degraded"
)

// Finding is the uniform shape every checker produces, regardless of the
// backing model, so the aggregator can treat them polymorphically.
type Finding struct {
	Category   string `json:"category"`
	Detail     string `json:"detail"`
	Suggestion string `json:"suggestion"`
}

// CheckVerdict is the result of one content check.
type CheckVerdict struct {
	Status   CheckStatus `json:"status"`
	Findings []Finding   `json:"findings,omitempty"`
	Summary  string      `json:"summary"`
}

// Pass reports whether the check completed and found nothing.
func (v CheckVerdict) Pass() bool { return v.Status == CheckPass }

// Degraded reports whether the check could not be completed.
func (v CheckVerdict) Degraded() bool { return v.Status == CheckDegraded }

// RiskChannels is the fixed set of named risk channels an image scan is
// reduced to. Everything else the classifier returns is dropped.
var RiskChannels = []string{
	"nudity", "violence", "weapons", "gore", "offensive",
	"scam", "alcohol", "drugs", "tobacco", "gambling",
}

// ImageScanResult holds the reduced per-image classifier scores, or the
// error that prevented scanning this image. Exactly one result is produced
// per image regardless of individual scan failures.
type ImageScanResult struct {
	URL    string             `json:"url"`
	Scores map[string]float64 `json:"scores,omitempty"`
	Err    string             `json:"error,omitempty"`
}

// ReviewVerdicts groups the four component verdicts of one review.
type ReviewVerdicts struct {
	Sensitive  CheckVerdict `json:"sensitive"`
	Regulatory CheckVerdict `json:"regulatory"`
	ImageText  CheckVerdict `json:"image_text"`
	ImageRisk  CheckVerdict `json:"image_risk"`
}

// All returns the verdicts keyed by check name, for iteration.
func (v ReviewVerdicts) All() map[string]CheckVerdict {
	return map[string]CheckVerdict{
		"sensitive":  v.Sensitive,
		"regulatory": v.Regulatory,
		"image_text": v.ImageText,
		"image_risk": v.ImageRisk,
	}
}

// FailedChecks returns the names of checks that did not pass, in a fixed order.
func (v ReviewVerdicts) FailedChecks() []string {
	var failed []string
	for _, name := range []string{"sensitive", "regulatory", "image_text", "image_risk"} {
		if !v.All()[name].Pass() {
			failed = append(failed, name)
		}
	}
	return failed
}

// ReviewOutcome is the final result of one review call. Success is the strict
// conjunction of all four verdicts: a degraded check never counts as a pass.
type ReviewOutcome struct {
	EventID   string         `json:"event_id"`
	Success   bool           `json:"success"`
	Degraded  bool           `json:"degraded"`
	Verdicts  ReviewVerdicts `json:"verdicts"`
	Feedback  string         `json:"feedback"`
	CreatedAt time.Time      `json:"created_at"`
}

// Package review orchestrates the event review pipeline: it fans out the
// independent content checks, scans every image, feeds the scan results to
// the risk summarizer, and combines all verdicts into one admission outcome.
package review

import (
	"context"
	"errors"
	"time"

	"event-review-pipeline/checks"
	"event-review-pipeline/corpus"
	"event-review-pipeline/imagescan"
	"event-review-pipeline/llm"
	"event-review-pipeline/metrics"
	"event-review-pipeline/models"

	"github.com/apex/log"
)

// Pipeline runs the full set of content checks for one event snapshot.
type Pipeline struct {
	llm     llm.Client
	scanner imagescan.Classifier
	timeout time.Duration

	sensitive  *checks.SensitiveChecker
	regulatory *checks.RegulatoryChecker
	imageText  *checks.ImageTextChecker
	riskSum    *checks.RiskSummarizer
}

// NewPipeline creates a review pipeline. The timeout is one deadline applied
// to the whole review, covering every external call.
func NewPipeline(client llm.Client, scanner imagescan.Classifier, timeout time.Duration) *Pipeline {
	return &Pipeline{
		llm:        client,
		scanner:    scanner,
		timeout:    timeout,
		sensitive:  checks.NewSensitiveChecker(client),
		regulatory: checks.NewRegulatoryChecker(client),
		imageText:  checks.NewImageTextChecker(client),
		riskSum:    checks.NewRiskSummarizer(client),
	}
}

type checkOutput struct {
	name    string
	verdict models.CheckVerdict
}

// ProcessEventCheck runs every check for the given snapshot and returns the
// combined outcome. Success is the strict conjunction of all four verdicts;
// a degraded check fails the conjunction and marks the outcome degraded so
// the admission controller can route the event to manual review instead of
// rejecting it outright.
func (p *Pipeline) ProcessEventCheck(ctx context.Context, req *models.ReviewRequest) (*models.ReviewOutcome, error) {
	if req == nil {
		return nil, errors.New("review request is nil")
	}

	start := time.Now()
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	text := corpus.Build(req)

	// The three text checks are independent of each other and of the image
	// branch; all four run concurrently. The risk summarizer only starts
	// once every image scan has reported.
	results := make(chan checkOutput, 4)
	run := func(name string, fn func() models.CheckVerdict) {
		go func() {
			t0 := time.Now()
			verdict := fn()
			metrics.CheckDurationSeconds.WithLabelValues(name).Observe(time.Since(t0).Seconds())
			if verdict.Degraded() {
				metrics.DegradedChecksTotal.WithLabelValues(name).Inc()
			}
			results <- checkOutput{name: name, verdict: verdict}
		}()
	}

	run("sensitive", func() models.CheckVerdict {
		return p.sensitive.Check(ctx, text)
	})
	run("regulatory", func() models.CheckVerdict {
		return p.regulatory.Check(ctx, text, req)
	})
	run("image_text", func() models.CheckVerdict {
		return p.imageText.Check(ctx, req.CaptionedImages())
	})
	run("image_risk", func() models.CheckVerdict {
		scans := imagescan.ScanAll(ctx, p.scanner, req.Images)
		for _, scan := range scans {
			if scan.Err != "" {
				metrics.ImageScansTotal.WithLabelValues("error").Inc()
			} else {
				metrics.ImageScansTotal.WithLabelValues("success").Inc()
			}
		}
		return p.riskSum.Summarize(ctx, scans)
	})

	var verdicts models.ReviewVerdicts
	for i := 0; i < 4; i++ {
		out := <-results
		switch out.name {
		case "sensitive":
			verdicts.Sensitive = out.verdict
		case "regulatory":
			verdicts.Regulatory = out.verdict
		case "image_text":
			verdicts.ImageText = out.verdict
		case "image_risk":
			verdicts.ImageRisk = out.verdict
		}
	}

	success := verdicts.Sensitive.Pass() &&
		verdicts.Regulatory.Pass() &&
		verdicts.ImageText.Pass() &&
		verdicts.ImageRisk.Pass()

	degraded := verdicts.Sensitive.Degraded() ||
		verdicts.Regulatory.Degraded() ||
		verdicts.ImageText.Degraded() ||
		verdicts.ImageRisk.Degraded()

	// Hosts need actionable feedback on rejection too, so the narrative is
	// requested regardless of the result.
	feedback := p.buildFeedback(ctx, success, verdicts)

	outcome := &models.ReviewOutcome{
		EventID:   req.EventID,
		Success:   success,
		Degraded:  degraded,
		Verdicts:  verdicts,
		Feedback:  feedback,
		CreatedAt: time.Now(),
	}

	metrics.ReviewDurationSeconds.Observe(time.Since(start).Seconds())
	switch {
	case degraded:
		metrics.ReviewsTotal.WithLabelValues("degraded").Inc()
	case success:
		metrics.ReviewsTotal.WithLabelValues("approved").Inc()
	default:
		metrics.ReviewsTotal.WithLabelValues("rejected").Inc()
	}

	log.Infof("review finished event=%s success=%t degraded=%t duration=%s",
		req.EventID, success, degraded, time.Since(start))

	return outcome, nil
}

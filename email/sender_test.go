package email

import (
	"strings"
	"testing"

	"event-review-pipeline/models"
)

func TestIsValidEmail(t *testing.T) {
	testCases := []struct {
		email string
		valid bool
	}{
		{"host@example.com", true},
		{"host.name+tag@sub.example.co.jp", true},
		{"", false},
		{"not-an-email", false},
		{"host@example", false},
		{"host@-example.com", false},
		{"host@", false},
		{"@example.com", false},
	}

	for _, testCase := range testCases {
		if got := IsValidEmail(testCase.email); got != testCase.valid {
			t.Errorf("IsValidEmail(%q) = %v, want %v", testCase.email, got, testCase.valid)
		}
	}
}

func TestResultTextApproved(t *testing.T) {
	outcome := &models.ReviewOutcome{
		EventID:  "evt-1",
		Success:  true,
		Feedback: "All automated checks passed.",
	}

	body := resultText("Riverside Family Camp", outcome)

	if !strings.Contains(body, "now published") {
		t.Errorf("approved body missing publication note: %q", body)
	}
	if !strings.Contains(body, "All automated checks passed.") {
		t.Error("approved body missing feedback narrative")
	}
	if strings.Contains(body, "REVIEW DETAILS") {
		t.Error("approved body should not list failed checks")
	}
}

func TestResultTextRejected(t *testing.T) {
	outcome := &models.ReviewOutcome{
		EventID: "evt-1",
		Success: false,
		Verdicts: models.ReviewVerdicts{
			Sensitive: models.CheckVerdict{
				Status:  models.CheckFail,
				Summary: "Gambling content detected.",
				Findings: []models.Finding{
					{Category: "gambling", Detail: "casino night with cash prizes", Suggestion: "Remove gambling activities."},
				},
			},
			Regulatory: models.CheckVerdict{Status: models.CheckPass, Summary: "ok"},
			ImageText:  models.CheckVerdict{Status: models.CheckPass, Summary: "ok"},
			ImageRisk:  models.CheckVerdict{Status: models.CheckPass, Summary: "ok"},
		},
		Feedback: "Your listing was not approved.",
	}

	body := resultText("Riverside Family Camp", outcome)

	if !strings.Contains(body, "returned to draft") {
		t.Errorf("rejected body missing draft note: %q", body)
	}
	if !strings.Contains(body, "REVIEW DETAILS") {
		t.Error("rejected body missing details section")
	}
	if !strings.Contains(body, "Content policy: Gambling content detected.") {
		t.Errorf("rejected body missing failed check summary: %q", body)
	}
	if !strings.Contains(body, "casino night with cash prizes (Remove gambling activities.)") {
		t.Errorf("rejected body missing finding detail: %q", body)
	}
}

func TestResultTextDegraded(t *testing.T) {
	outcome := &models.ReviewOutcome{
		EventID:  "evt-1",
		Success:  false,
		Degraded: true,
	}

	body := resultText("Riverside Family Camp", outcome)
	if !strings.Contains(body, "manual review") {
		t.Errorf("degraded body missing manual review note: %q", body)
	}
}

func TestResultHTMLEscapesContent(t *testing.T) {
	outcome := &models.ReviewOutcome{
		EventID:  "evt-1",
		Success:  true,
		Feedback: "Nice listing <script>alert(1)</script>",
	}

	body := resultHTML("Camp <b>2026</b>", outcome)

	if strings.Contains(body, "<script>") {
		t.Error("feedback must be HTML-escaped")
	}
	if strings.Contains(body, "Camp <b>2026</b>") {
		t.Error("event title must be HTML-escaped")
	}
	if !strings.Contains(body, "Camp &lt;b&gt;2026&lt;/b&gt;") {
		t.Errorf("escaped title missing from body: %q", body)
	}
}

// Package email sends the review result notifications to event hosts.
package email

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"event-review-pipeline/config"
	"event-review-pipeline/models"

	"github.com/apex/log"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]*[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]*[a-zA-Z0-9])?)*\.[a-zA-Z]{2,}$`)

// Sender delivers review notifications through SendGrid.
type Sender struct {
	config *config.Config
	client *sendgrid.Client
}

// NewSender creates a new notification sender
func NewSender(cfg *config.Config) *Sender {
	return &Sender{
		config: cfg,
		client: sendgrid.NewSendClient(cfg.SendGridAPIKey),
	}
}

// IsValidEmail checks if a string is a valid email address
func IsValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// SendReviewResult mails the review outcome to the event host. Events with
// no usable host address are skipped, not failed; the review result itself
// is already persisted.
func (s *Sender) SendReviewResult(recipient, eventTitle string, outcome *models.ReviewOutcome) error {
	if !IsValidEmail(recipient) {
		log.Warnf("Skipping notification for event %s: invalid recipient %q", outcome.EventID, recipient)
		return nil
	}

	from := mail.NewEmail(s.config.SendGridFromName, s.config.SendGridFromEmail)
	to := mail.NewEmail(recipient, recipient)

	subject := fmt.Sprintf("Your event %q was not approved", eventTitle)
	if outcome.Success {
		subject = fmt.Sprintf("Your event %q has been published", eventTitle)
	} else if outcome.Degraded {
		subject = fmt.Sprintf("Your event %q is under manual review", eventTitle)
	}

	message := mail.NewV3Mail()
	message.SetFrom(from)
	message.Subject = subject

	p := mail.NewPersonalization()
	p.AddTos(to)
	message.AddPersonalizations(p)

	message.AddContent(mail.NewContent("text/plain", resultText(eventTitle, outcome)))
	message.AddContent(mail.NewContent("text/html", resultHTML(eventTitle, outcome)))

	response, err := s.client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send notification to %s: %w", recipient, err)
	}

	log.Infof("Notification sent to %s for event %s, status: %d", recipient, outcome.EventID, response.StatusCode)
	return nil
}

// resultText returns the plain text body of the notification.
func resultText(eventTitle string, outcome *models.ReviewOutcome) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Hello,\n\n")
	switch {
	case outcome.Success:
		fmt.Fprintf(&b, "Good news: your event %q passed our content review and is now published.\n\n", eventTitle)
	case outcome.Degraded:
		fmt.Fprintf(&b, "Your event %q could not be fully checked automatically and has been queued for manual review. No action is needed from you.\n\n", eventTitle)
	default:
		fmt.Fprintf(&b, "Your event %q did not pass our content review and has been returned to draft.\n\n", eventTitle)
	}

	if outcome.Feedback != "" {
		fmt.Fprintf(&b, "%s\n\n", outcome.Feedback)
	}

	if failed := failedOutright(outcome); !outcome.Success && len(failed) > 0 {
		b.WriteString("REVIEW DETAILS:\n")
		all := outcome.Verdicts.All()
		for _, name := range failed {
			v := all[name]
			fmt.Fprintf(&b, "- %s: %s\n", checkTitles[name], v.Summary)
			for _, f := range v.Findings {
				if f.Suggestion != "" {
					fmt.Fprintf(&b, "  %s (%s)\n", f.Detail, f.Suggestion)
				} else {
					fmt.Fprintf(&b, "  %s\n", f.Detail)
				}
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("Best regards,\nThe Everforest Team")
	return b.String()
}

// resultHTML returns the HTML body of the notification.
func resultHTML(eventTitle string, outcome *models.ReviewOutcome) string {
	var status string
	switch {
	case outcome.Success:
		status = fmt.Sprintf("<p>Good news: your event <strong>%s</strong> passed our content review and is now published.</p>", html.EscapeString(eventTitle))
	case outcome.Degraded:
		status = fmt.Sprintf("<p>Your event <strong>%s</strong> could not be fully checked automatically and has been queued for manual review. No action is needed from you.</p>", html.EscapeString(eventTitle))
	default:
		status = fmt.Sprintf("<p>Your event <strong>%s</strong> did not pass our content review and has been returned to draft.</p>", html.EscapeString(eventTitle))
	}

	var details strings.Builder
	if failed := failedOutright(outcome); !outcome.Success && len(failed) > 0 {
		details.WriteString(`<div class="details"><h3>Review Details</h3><ul>`)
		all := outcome.Verdicts.All()
		for _, name := range failed {
			v := all[name]
			fmt.Fprintf(&details, "<li><strong>%s:</strong> %s", checkTitles[name], html.EscapeString(v.Summary))
			if len(v.Findings) > 0 {
				details.WriteString("<ul>")
				for _, f := range v.Findings {
					fmt.Fprintf(&details, "<li>%s", html.EscapeString(f.Detail))
					if f.Suggestion != "" {
						fmt.Fprintf(&details, " <em>%s</em>", html.EscapeString(f.Suggestion))
					}
					details.WriteString("</li>")
				}
				details.WriteString("</ul>")
			}
			details.WriteString("</li>")
		}
		details.WriteString("</ul></div>")
	}

	feedback := ""
	if outcome.Feedback != "" {
		feedback = fmt.Sprintf("<p>%s</p>", html.EscapeString(outcome.Feedback))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>Everforest Event Review</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .header { background-color: #f8f9fa; padding: 20px; border-radius: 5px; margin-bottom: 20px; }
        .details { background-color: #e9ecef; padding: 15px; border-radius: 5px; margin: 15px 0; }
    </style>
</head>
<body>
    <div class="header">
        <h2>Everforest Event Review</h2>
    </div>
    %s
    %s
    %s
    <p><em>Best regards,<br>The Everforest Team</em></p>
</body>
</html>`, status, feedback, details.String())
}

// failedOutright lists the checks that failed on content. Degraded checks
// are covered by the manual review note, not the details section.
func failedOutright(outcome *models.ReviewOutcome) []string {
	var failed []string
	all := outcome.Verdicts.All()
	for _, name := range outcome.Verdicts.FailedChecks() {
		if all[name].Degraded() {
			continue
		}
		failed = append(failed, name)
	}
	return failed
}

var checkTitles = map[string]string{
	"sensitive":  "Content policy",
	"regulatory": "Regulatory compliance",
	"image_text": "Image captions",
	"image_risk": "Image content",
}

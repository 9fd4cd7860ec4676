// Package corpus flattens an event's free-text fields into one labeled-line
// corpus string used as input to the text-based checks.
package corpus

import (
	"fmt"
	"strings"

	"event-review-pipeline/models"
)

// Build produces the ordered, labeled-line corpus for a review request.
// Field order is fixed: title, description, cancellation policy, host name,
// host bio, notices, image captions, then plans with their content lines and
// add-on names. Empty fields are skipped without emitting a labeled line.
// Pure function: identical input yields byte-identical output.
func Build(req *models.ReviewRequest) string {
	var b strings.Builder

	writeLine(&b, "Event title", req.Title)
	writeLine(&b, "Event description", req.Description)
	writeLine(&b, "Cancellation policy", req.CancellationPolicy)
	writeLine(&b, "Host name", req.HostName)
	writeLine(&b, "Host bio", req.HostBio)

	for i, notice := range req.Notices {
		writeLine(&b, fmt.Sprintf("Notice %d", i+1), notice)
	}

	for i, img := range req.Images {
		writeLine(&b, fmt.Sprintf("Image caption %d", i+1), img.Caption)
	}

	for i, plan := range req.Plans {
		writeLine(&b, fmt.Sprintf("Plan %d title", i+1), plan.Title)
		for j, content := range plan.Contents {
			writeLine(&b, fmt.Sprintf("Plan %d content %d", i+1, j+1), content)
		}
		for j, addOn := range plan.AddOns {
			writeLine(&b, fmt.Sprintf("Plan %d add-on %d", i+1, j+1), addOn)
		}
	}

	return b.String()
}

func writeLine(b *strings.Builder, label, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\n")
}

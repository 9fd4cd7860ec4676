// Package checks implements the individual content checks of the event
// review pipeline. Every checker returns a models.CheckVerdict; a checker
// never returns an error. When the upstream model is unreachable or its
// output fails schema validation, the verdict is Degraded with a summary
// describing what went wrong, and the admission controller decides policy.
package checks

import (
	"fmt"

	"event-review-pipeline/models"

	"github.com/apex/log"
)

func degradedVerdict(check string, err error) models.CheckVerdict {
	log.WithError(err).Warnf("%s check degraded", check)
	return models.CheckVerdict{
		Status:  models.CheckDegraded,
		Summary: fmt.Sprintf("The %s check could not be completed: %v", check, err),
	}
}

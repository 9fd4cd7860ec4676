// Package admission applies review outcomes to the event lifecycle. A
// pending event is published when every check passes, returned to draft
// with a rejection mark when a check fails, and held for manual review
// when a check could not complete.
package admission

import (
	"context"
	"fmt"

	"event-review-pipeline/metrics"
	"event-review-pipeline/models"

	"github.com/apex/log"
)

// EventStore is the persistence surface the controller needs.
type EventStore interface {
	GetEvent(ctx context.Context, eventID string) (*models.Event, error)
	UpdateEventStatus(ctx context.Context, eventID string, status models.EventStatus, rejected bool) error
	FlagManualReview(ctx context.Context, eventID string) error
	SaveReviewOutcome(ctx context.Context, outcome *models.ReviewOutcome) error
}

// Reviewer runs the content checks for one event snapshot.
type Reviewer interface {
	ProcessEventCheck(ctx context.Context, req *models.ReviewRequest) (*models.ReviewOutcome, error)
}

// Notifier delivers the review result to the event host.
type Notifier interface {
	SendReviewResult(recipient, eventTitle string, outcome *models.ReviewOutcome) error
}

// OutcomePublisher broadcasts completed reviews to downstream services.
type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, outcome *models.ReviewOutcome) error
}

// ValidationError marks failures caused by the request, not the pipeline.
// Handlers map it to a 4xx response and the queue worker does not retry it.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Controller drives one event through review and admission.
type Controller struct {
	store     EventStore
	reviewer  Reviewer
	notifier  Notifier
	publisher OutcomePublisher
}

// NewController creates an admission controller. notifier and publisher may
// be nil; notification and broadcast are then skipped.
func NewController(store EventStore, reviewer Reviewer, notifier Notifier, publisher OutcomePublisher) *Controller {
	return &Controller{
		store:     store,
		reviewer:  reviewer,
		notifier:  notifier,
		publisher: publisher,
	}
}

// ReviewEvent loads the event, runs the full review and applies the outcome.
// Only pending events are reviewable. The outcome is persisted before any
// notification goes out.
func (c *Controller) ReviewEvent(ctx context.Context, eventID string) (*models.ReviewOutcome, error) {
	if eventID == "" {
		return nil, &ValidationError{Reason: "event id is required"}
	}

	event, err := c.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("event %s not found", eventID)}
	}
	if event.Status != models.StatusPending {
		return nil, &ValidationError{Reason: fmt.Sprintf("event %s is %s, only pending events can be reviewed", eventID, event.Status)}
	}
	if event.HostEmail == "" {
		return nil, &ValidationError{Reason: fmt.Sprintf("event %s has no host contact email", eventID)}
	}

	outcome, err := c.reviewer.ProcessEventCheck(ctx, &event.ReviewRequest)
	if err != nil {
		return nil, fmt.Errorf("review failed for event %s: %w", eventID, err)
	}

	if err := c.applyOutcome(ctx, eventID, outcome); err != nil {
		return nil, err
	}

	if err := c.store.SaveReviewOutcome(ctx, outcome); err != nil {
		return nil, fmt.Errorf("failed to persist outcome for event %s: %w", eventID, err)
	}

	c.notify(event, outcome)
	c.publish(ctx, outcome)

	return outcome, nil
}

func (c *Controller) applyOutcome(ctx context.Context, eventID string, outcome *models.ReviewOutcome) error {
	switch {
	case outcome.Degraded:
		// The event stays pending; a human finishes the review.
		if err := c.store.FlagManualReview(ctx, eventID); err != nil {
			return fmt.Errorf("failed to flag event %s for manual review: %w", eventID, err)
		}
		log.Infof("event %s held for manual review", eventID)
	case outcome.Success:
		if err := c.store.UpdateEventStatus(ctx, eventID, models.StatusPublished, false); err != nil {
			return fmt.Errorf("failed to publish event %s: %w", eventID, err)
		}
		log.Infof("event %s published", eventID)
	default:
		if err := c.store.UpdateEventStatus(ctx, eventID, models.StatusDraft, true); err != nil {
			return fmt.Errorf("failed to return event %s to draft: %w", eventID, err)
		}
		log.Infof("event %s rejected, returned to draft", eventID)
	}
	return nil
}

// notify mails the host. Delivery failures never fail the review; the
// outcome is already persisted and queryable.
func (c *Controller) notify(event *models.Event, outcome *models.ReviewOutcome) {
	if c.notifier == nil {
		return
	}
	if event.HostEmail == "" {
		log.Warnf("event %s has no host email, skipping notification", event.EventID)
		return
	}
	if err := c.notifier.SendReviewResult(event.HostEmail, event.Title, outcome); err != nil {
		metrics.NotificationErrorsTotal.Inc()
		log.WithError(err).Errorf("failed to notify host of event %s", event.EventID)
	}
}

// publish broadcasts the outcome. Best effort, same as notify.
func (c *Controller) publish(ctx context.Context, outcome *models.ReviewOutcome) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.PublishOutcome(ctx, outcome); err != nil {
		log.WithError(err).Errorf("failed to publish outcome for event %s", outcome.EventID)
	}
}

package admission

import (
	"context"
	"errors"
	"testing"
	"time"

	"event-review-pipeline/models"
)

type fakeStore struct {
	events        map[string]*models.Event
	statusUpdates []statusUpdate
	manualFlags   []string
	savedOutcomes []*models.ReviewOutcome
	saveErr       error
}

type statusUpdate struct {
	eventID  string
	status   models.EventStatus
	rejected bool
}

func (f *fakeStore) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	event, ok := f.events[eventID]
	if !ok {
		return nil, errors.New("not found")
	}
	return event, nil
}

func (f *fakeStore) UpdateEventStatus(ctx context.Context, eventID string, status models.EventStatus, rejected bool) error {
	f.statusUpdates = append(f.statusUpdates, statusUpdate{eventID, status, rejected})
	return nil
}

func (f *fakeStore) FlagManualReview(ctx context.Context, eventID string) error {
	f.manualFlags = append(f.manualFlags, eventID)
	return nil
}

func (f *fakeStore) SaveReviewOutcome(ctx context.Context, outcome *models.ReviewOutcome) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.savedOutcomes = append(f.savedOutcomes, outcome)
	return nil
}

type fakeReviewer struct {
	outcome *models.ReviewOutcome
	err     error
	calls   int
}

func (f *fakeReviewer) ProcessEventCheck(ctx context.Context, req *models.ReviewRequest) (*models.ReviewOutcome, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := *f.outcome
	out.EventID = req.EventID
	return &out, nil
}

type fakeNotifier struct {
	recipients []string
	err        error
}

func (f *fakeNotifier) SendReviewResult(recipient, eventTitle string, outcome *models.ReviewOutcome) error {
	f.recipients = append(f.recipients, recipient)
	return f.err
}

type fakePublisher struct {
	published []*models.ReviewOutcome
	err       error
}

func (f *fakePublisher) PublishOutcome(ctx context.Context, outcome *models.ReviewOutcome) error {
	f.published = append(f.published, outcome)
	return f.err
}

func pendingEvent(id string) *models.Event {
	return &models.Event{
		ReviewRequest: models.ReviewRequest{
			EventID:   id,
			Title:     "Riverside Family Camp",
			HostEmail: "host@example.com",
		},
		Status:    models.StatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func TestReviewEventApproved(t *testing.T) {
	store := &fakeStore{events: map[string]*models.Event{"evt-1": pendingEvent("evt-1")}}
	reviewer := &fakeReviewer{outcome: &models.ReviewOutcome{Success: true}}
	notifier := &fakeNotifier{}
	publisher := &fakePublisher{}
	controller := NewController(store, reviewer, notifier, publisher)

	outcome, err := controller.ReviewEvent(context.Background(), "evt-1")
	if err != nil {
		t.Fatalf("ReviewEvent() error = %v", err)
	}
	if !outcome.Success {
		t.Error("Success = false, want true")
	}

	if len(store.statusUpdates) != 1 {
		t.Fatalf("status updates = %d, want 1", len(store.statusUpdates))
	}
	update := store.statusUpdates[0]
	if update.status != models.StatusPublished || update.rejected {
		t.Errorf("update = %+v, want published with rejected cleared", update)
	}
	if len(store.savedOutcomes) != 1 {
		t.Errorf("saved outcomes = %d, want 1", len(store.savedOutcomes))
	}
	if len(notifier.recipients) != 1 || notifier.recipients[0] != "host@example.com" {
		t.Errorf("notified = %v, want host", notifier.recipients)
	}
	if len(publisher.published) != 1 {
		t.Errorf("published = %d, want 1", len(publisher.published))
	}
}

func TestReviewEventRejected(t *testing.T) {
	store := &fakeStore{events: map[string]*models.Event{"evt-1": pendingEvent("evt-1")}}
	reviewer := &fakeReviewer{outcome: &models.ReviewOutcome{Success: false}}
	controller := NewController(store, reviewer, nil, nil)

	if _, err := controller.ReviewEvent(context.Background(), "evt-1"); err != nil {
		t.Fatalf("ReviewEvent() error = %v", err)
	}

	if len(store.statusUpdates) != 1 {
		t.Fatalf("status updates = %d, want 1", len(store.statusUpdates))
	}
	update := store.statusUpdates[0]
	if update.status != models.StatusDraft || !update.rejected {
		t.Errorf("update = %+v, want draft with rejected set", update)
	}
	if len(store.manualFlags) != 0 {
		t.Errorf("manual flags = %v, want none", store.manualFlags)
	}
}

func TestReviewEventDegradedStaysPending(t *testing.T) {
	store := &fakeStore{events: map[string]*models.Event{"evt-1": pendingEvent("evt-1")}}
	reviewer := &fakeReviewer{outcome: &models.ReviewOutcome{Success: false, Degraded: true}}
	controller := NewController(store, reviewer, nil, nil)

	if _, err := controller.ReviewEvent(context.Background(), "evt-1"); err != nil {
		t.Fatalf("ReviewEvent() error = %v", err)
	}

	if len(store.statusUpdates) != 0 {
		t.Errorf("status updates = %v, degraded events must keep their status", store.statusUpdates)
	}
	if len(store.manualFlags) != 1 || store.manualFlags[0] != "evt-1" {
		t.Errorf("manual flags = %v, want [evt-1]", store.manualFlags)
	}
}

func TestReviewEventValidation(t *testing.T) {
	published := pendingEvent("evt-2")
	published.Status = models.StatusPublished
	noHost := pendingEvent("evt-3")
	noHost.HostEmail = ""
	store := &fakeStore{events: map[string]*models.Event{"evt-2": published, "evt-3": noHost}}
	reviewer := &fakeReviewer{outcome: &models.ReviewOutcome{}}
	controller := NewController(store, reviewer, nil, nil)

	testCases := []struct {
		name    string
		eventID string
	}{
		{name: "empty id", eventID: ""},
		{name: "unknown event", eventID: "missing"},
		{name: "not pending", eventID: "evt-2"},
		{name: "no host email", eventID: "evt-3"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := controller.ReviewEvent(context.Background(), testCase.eventID)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("error = %v, want ValidationError", err)
			}
		})
	}
	if reviewer.calls != 0 {
		t.Errorf("reviewer ran %d times, validation failures must precede the pipeline", reviewer.calls)
	}
}

func TestReviewEventNotifierFailureDoesNotFailReview(t *testing.T) {
	store := &fakeStore{events: map[string]*models.Event{"evt-1": pendingEvent("evt-1")}}
	reviewer := &fakeReviewer{outcome: &models.ReviewOutcome{Success: true}}
	notifier := &fakeNotifier{err: errors.New("sendgrid down")}
	publisher := &fakePublisher{err: errors.New("broker down")}
	controller := NewController(store, reviewer, notifier, publisher)

	if _, err := controller.ReviewEvent(context.Background(), "evt-1"); err != nil {
		t.Fatalf("ReviewEvent() error = %v, delivery failures must not fail the review", err)
	}
	if len(store.savedOutcomes) != 1 {
		t.Errorf("saved outcomes = %d, want 1", len(store.savedOutcomes))
	}
}

func TestReviewEventSaveFailure(t *testing.T) {
	store := &fakeStore{
		events:  map[string]*models.Event{"evt-1": pendingEvent("evt-1")},
		saveErr: errors.New("db down"),
	}
	reviewer := &fakeReviewer{outcome: &models.ReviewOutcome{Success: true}}
	notifier := &fakeNotifier{}
	controller := NewController(store, reviewer, notifier, nil)

	if _, err := controller.ReviewEvent(context.Background(), "evt-1"); err == nil {
		t.Fatal("expected error when persisting the outcome fails")
	}
	if len(notifier.recipients) != 0 {
		t.Errorf("notified = %v, persistence must precede notification", notifier.recipients)
	}
}

func TestReviewEventReviewerFailure(t *testing.T) {
	store := &fakeStore{events: map[string]*models.Event{"evt-1": pendingEvent("evt-1")}}
	reviewer := &fakeReviewer{err: errors.New("pipeline crashed")}
	controller := NewController(store, reviewer, nil, nil)

	_, err := controller.ReviewEvent(context.Background(), "evt-1")
	if err == nil {
		t.Fatal("expected error from reviewer failure")
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		t.Error("pipeline failures must not be validation errors, they are retryable")
	}
}

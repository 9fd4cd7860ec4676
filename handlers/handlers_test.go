package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"event-review-pipeline/admission"
	"event-review-pipeline/database"
	"event-review-pipeline/models"
)

type fakeController struct {
	outcome *models.ReviewOutcome
	err     error
}

func (f *fakeController) ReviewEvent(ctx context.Context, eventID string) (*models.ReviewOutcome, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := *f.outcome
	out.EventID = eventID
	return &out, nil
}

type fakeOutcomeStore struct {
	outcome *models.ReviewOutcome
	stats   *database.ReviewStats
	err     error
}

func (f *fakeOutcomeStore) GetLatestOutcome(ctx context.Context, eventID string) (*models.ReviewOutcome, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.outcome, nil
}

func (f *fakeOutcomeStore) GetReviewStats(ctx context.Context) (*database.ReviewStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.stats, nil
}

type fakeBroker struct{ connected bool }

func (f *fakeBroker) IsConnected() bool { return f.connected }

func newRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", h.HealthCheck)
	router.POST("/api/v3/events/:id/review", h.ReviewEvent)
	router.GET("/api/v3/reviews/:id", h.GetReview)
	router.GET("/api/v3/stats", h.GetStats)
	return router
}

func TestHealthCheck(t *testing.T) {
	h := NewHandlers(&fakeController{}, &fakeOutcomeStore{}, &fakeBroker{connected: true})
	router := newRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", body["status"])
	}
	if body["rabbitmq_connected"] != true {
		t.Errorf("rabbitmq_connected = %v, want true", body["rabbitmq_connected"])
	}
}

func TestReviewEventSuccess(t *testing.T) {
	controller := &fakeController{outcome: &models.ReviewOutcome{Success: true, Feedback: "All checks passed."}}
	h := NewHandlers(controller, &fakeOutcomeStore{}, nil)
	router := newRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v3/events/evt-1/review", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}

	var outcome models.ReviewOutcome
	if err := json.Unmarshal(w.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if outcome.EventID != "evt-1" || !outcome.Success {
		t.Errorf("outcome = %+v", outcome)
	}
}

func TestReviewEventValidationError(t *testing.T) {
	controller := &fakeController{err: &admission.ValidationError{Reason: "event evt-9 not found"}}
	h := NewHandlers(controller, &fakeOutcomeStore{}, nil)
	router := newRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v3/events/evt-9/review", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422, body %s", w.Code, w.Body.String())
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if body["error"] != "event evt-9 not found" {
		t.Errorf("error = %q", body["error"])
	}
}

func TestReviewEventInternalError(t *testing.T) {
	controller := &fakeController{err: errors.New("db down")}
	h := NewHandlers(controller, &fakeOutcomeStore{}, nil)
	router := newRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v3/events/evt-1/review", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}

func TestGetReview(t *testing.T) {
	store := &fakeOutcomeStore{outcome: &models.ReviewOutcome{EventID: "evt-1", Success: false, Feedback: "Not approved."}}
	h := NewHandlers(&fakeController{}, store, nil)
	router := newRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v3/reviews/evt-1", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var outcome models.ReviewOutcome
	if err := json.Unmarshal(w.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if outcome.Feedback != "Not approved." {
		t.Errorf("Feedback = %q", outcome.Feedback)
	}
}

func TestGetReviewNotFound(t *testing.T) {
	store := &fakeOutcomeStore{err: errors.New("no review outcome for event evt-1")}
	h := NewHandlers(&fakeController{}, store, nil)
	router := newRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v3/reviews/evt-1", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestGetStats(t *testing.T) {
	store := &fakeOutcomeStore{stats: &database.ReviewStats{TotalReviews: 4, Approved: 2, Rejected: 1, Degraded: 1}}
	h := NewHandlers(&fakeController{}, store, nil)
	router := newRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v3/stats", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var stats database.ReviewStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if stats.TotalReviews != 4 || stats.Approved != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

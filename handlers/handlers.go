package handlers

import (
	"context"
	"errors"
	"net/http"

	"event-review-pipeline/admission"
	"event-review-pipeline/database"
	"event-review-pipeline/models"

	"github.com/gin-gonic/gin"
)

// Reviewable is the admission surface the HTTP layer drives.
type Reviewable interface {
	ReviewEvent(ctx context.Context, eventID string) (*models.ReviewOutcome, error)
}

// OutcomeStore reads persisted review results.
type OutcomeStore interface {
	GetLatestOutcome(ctx context.Context, eventID string) (*models.ReviewOutcome, error)
	GetReviewStats(ctx context.Context) (*database.ReviewStats, error)
}

// HealthReporter exposes broker connectivity for the health endpoint.
type HealthReporter interface {
	IsConnected() bool
}

// Handlers represents the HTTP handlers
type Handlers struct {
	controller Reviewable
	store      OutcomeStore
	broker     HealthReporter
}

// NewHandlers creates new HTTP handlers. broker may be nil when the service
// runs without a queue.
func NewHandlers(controller Reviewable, store OutcomeStore, broker HealthReporter) *Handlers {
	return &Handlers{controller: controller, store: store, broker: broker}
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := gin.H{
		"status":  "healthy",
		"service": "event-review-pipeline",
	}
	if h.broker != nil {
		resp["rabbitmq_connected"] = h.broker.IsConnected()
	}
	c.JSON(http.StatusOK, resp)
}

// ReviewEvent triggers a synchronous review of one pending event.
func (h *Handlers) ReviewEvent(c *gin.Context) {
	eventID := c.Param("id")

	outcome, err := h.controller.ReviewEvent(c.Request.Context(), eventID)
	if err != nil {
		var verr *admission.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error": verr.Reason,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to review event",
		})
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// GetReview returns the most recent review outcome for an event.
func (h *Handlers) GetReview(c *gin.Context) {
	eventID := c.Param("id")

	outcome, err := h.store.GetLatestOutcome(c.Request.Context(), eventID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Review not found",
		})
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// GetStats returns review counts broken down by outcome.
func (h *Handlers) GetStats(c *gin.Context) {
	stats, err := h.store.GetReviewStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get review stats",
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

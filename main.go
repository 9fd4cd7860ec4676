package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"event-review-pipeline/admission"
	"event-review-pipeline/config"
	"event-review-pipeline/database"
	"event-review-pipeline/email"
	"event-review-pipeline/gemini"
	"event-review-pipeline/handlers"
	"event-review-pipeline/imagescan"
	"event-review-pipeline/llm"
	"event-review-pipeline/metrics"
	"event-review-pipeline/openai"
	"event-review-pipeline/rabbitmq"
	"event-review-pipeline/review"
	"event-review-pipeline/stubllm"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()

	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	client := newLLMClient(cfg)

	db, err := database.NewDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := db.CreateTables(); err != nil {
		log.Fatalf("Failed to create tables: %v", err)
	}
	if err := db.MigrateEventsTable(); err != nil {
		log.Fatalf("Failed to migrate tables: %v", err)
	}

	metrics.Register()

	scanner := imagescan.NewClient(cfg.ImageScanEndpoint, cfg.ImageScanAPIUser, cfg.ImageScanAPISecret, cfg.ImageScanModels)
	pipeline := review.NewPipeline(client, scanner, cfg.ReviewTimeout)

	var notifier admission.Notifier
	if cfg.SendGridAPIKey != "" {
		notifier = email.NewSender(cfg)
	} else {
		log.Warn("SENDGRID_API_KEY not set, host notifications disabled")
	}

	var publisher *rabbitmq.Publisher
	publisher, err = rabbitmq.NewPublisher(
		cfg.RabbitMQ.GetAMQPURL(),
		cfg.RabbitMQ.Exchange,
		cfg.RabbitMQ.ReviewCompletedRoutingKey,
	)
	if err != nil {
		log.Warnf("Failed to initialize RabbitMQ publisher, outcomes will not be broadcast: %v", err)
		publisher = nil
	}

	var outcomePublisher admission.OutcomePublisher
	if publisher != nil {
		outcomePublisher = publisher
	}
	controller := admission.NewController(db, pipeline, notifier, outcomePublisher)

	subscriber, err := rabbitmq.NewSubscriber(
		cfg.RabbitMQ.GetAMQPURL(),
		cfg.RabbitMQ.Exchange,
		cfg.RabbitMQ.ReviewRequestedQueue,
		cfg.RabbitMQ.PrefetchCount,
	)
	if err != nil {
		log.Warnf("Failed to initialize RabbitMQ subscriber, reviews run over HTTP only: %v", err)
		subscriber = nil
	}

	if subscriber != nil {
		callbacks := map[string]rabbitmq.CallbackFunc{
			cfg.RabbitMQ.ReviewRequestedRoutingKey: reviewRequestedCallback(controller),
		}
		if err := subscriber.Start(callbacks); err != nil {
			log.Fatalf("Failed to start RabbitMQ subscriber: %v", err)
		}
	}

	var broker handlers.HealthReporter
	if subscriber != nil {
		broker = subscriber
	}
	h := handlers.NewHandlers(controller, db, broker)

	router := gin.Default()
	router.GET("/health", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v3")
	{
		api.GET("/health", h.HealthCheck)
		api.POST("/events/:id/review", h.ReviewEvent)
		api.GET("/reviews/:id", h.GetReview)
		api.GET("/stats", h.GetStats)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Infof("Starting HTTP server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	if subscriber != nil {
		if err := subscriber.Close(); err != nil {
			log.Warnf("Failed to close subscriber: %v", err)
		}
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			log.Warnf("Failed to close publisher: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}

// newLLMClient selects the model provider. The stub keeps local and CI runs
// off the network.
func newLLMClient(cfg *config.Config) llm.Client {
	var client llm.Client
	switch cfg.LLMProvider {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			log.Fatal("GEMINI_API_KEY environment variable is required")
		}
		client = gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel)
		log.Infof("Review LLM provider=%s model=%s", client.SourceName(), cfg.GeminiModel)
	case "stub":
		client = stubllm.NewClient()
		log.Warn("Review LLM provider=Stub, responses are canned")
	default:
		if cfg.OpenAIAPIKey == "" {
			log.Fatal("OPENAI_API_KEY environment variable is required")
		}
		client = openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		log.Infof("Review LLM provider=%s model=%s", client.SourceName(), cfg.OpenAIModel)
	}
	return client
}

// reviewRequestedCallback adapts the admission controller to the queue. A
// malformed payload or failed validation is permanent; anything else is
// retried by the broker.
func reviewRequestedCallback(controller *admission.Controller) rabbitmq.CallbackFunc {
	type reviewRequestedMessage struct {
		EventID string `json:"event_id"`
	}

	return func(msg *rabbitmq.Message) error {
		var payload reviewRequestedMessage
		if err := msg.UnmarshalTo(&payload); err != nil {
			return rabbitmq.Permanent(err)
		}

		outcome, err := controller.ReviewEvent(context.Background(), payload.EventID)
		if err != nil {
			var verr *admission.ValidationError
			if errors.As(err, &verr) {
				return rabbitmq.Permanent(err)
			}
			return err
		}

		log.Infof("queued review finished event=%s success=%t degraded=%t",
			outcome.EventID, outcome.Success, outcome.Degraded)
		return nil
	}
}

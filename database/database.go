package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"event-review-pipeline/config"
	"event-review-pipeline/models"

	"github.com/apex/log"
	_ "github.com/go-sql-driver/mysql"
)

// Database wraps the MySQL connection used by the review pipeline.
type Database struct {
	db *sql.DB
}

// NewDatabase opens the MySQL connection described by the config.
func NewDatabase(cfg *config.Config) (*Database, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection with exponential backoff retry
	var waitInterval time.Duration = 1 * time.Second
	for {
		if err := db.Ping(); err == nil {
			break
		} else {
			log.Warnf("Database connection failed, retrying in %v: %v", waitInterval, err)
		}
		time.Sleep(waitInterval)
		waitInterval *= 2
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Database{db: db}, nil
}

// NewFromDB wraps an existing connection. Used by tests.
func NewFromDB(db *sql.DB) *Database {
	return &Database{db: db}
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// GetDB returns the underlying sql.DB for direct queries
func (d *Database) GetDB() *sql.DB {
	return d.db
}

// CreateTables creates the events, event_images and event_review_results
// tables if they don't exist.
func (d *Database) CreateTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id VARCHAR(64) NOT NULL PRIMARY KEY,
			title VARCHAR(500) NOT NULL,
			description TEXT,
			cancellation_policy TEXT,
			host_name VARCHAR(255),
			host_bio TEXT,
			host_email VARCHAR(255),
			notices TEXT,
			plans TEXT,
			status ENUM('draft', 'pending', 'published') NOT NULL DEFAULT 'draft',
			rejected BOOLEAN NOT NULL DEFAULT FALSE,
			needs_manual_review BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			INDEX idx_events_status (status)
		)`,
		`CREATE TABLE IF NOT EXISTS event_images (
			id INT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			event_id VARCHAR(64) NOT NULL,
			url VARCHAR(2048) NOT NULL,
			type VARCHAR(32) NOT NULL DEFAULT '',
			caption TEXT,
			position INT NOT NULL DEFAULT 0,
			INDEX idx_event_images_event_id (event_id)
		)`,
		`CREATE TABLE IF NOT EXISTS event_review_results (
			id INT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			event_id VARCHAR(64) NOT NULL,
			success BOOLEAN NOT NULL,
			degraded BOOLEAN NOT NULL DEFAULT FALSE,
			verdicts TEXT,
			feedback TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_event_review_results_event_id (event_id)
		)`,
	}

	for _, query := range queries {
		if _, err := d.db.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	log.Info("review tables created/verified successfully")
	return nil
}

// columnExists checks if a column exists in a table
func (d *Database) columnExists(tableName, columnName string) (bool, error) {
	query := `
	SELECT COUNT(*)
	FROM INFORMATION_SCHEMA.COLUMNS
	WHERE TABLE_SCHEMA = DATABASE()
	AND TABLE_NAME = ?
	AND COLUMN_NAME = ?`

	var count int
	err := d.db.QueryRow(query, tableName, columnName).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check if column exists: %w", err)
	}

	return count > 0, nil
}

// MigrateEventsTable brings pre-existing events tables up to the current
// schema. Older deployments predate the manual review flag.
func (d *Database) MigrateEventsTable() error {
	exists, err := d.columnExists("events", "needs_manual_review")
	if err != nil {
		return fmt.Errorf("failed to check if needs_manual_review column exists: %w", err)
	}

	if !exists {
		log.Info("Adding needs_manual_review column to events table...")
		query := "ALTER TABLE events ADD COLUMN needs_manual_review BOOLEAN NOT NULL DEFAULT FALSE"
		if _, err = d.db.Exec(query); err != nil {
			return fmt.Errorf("failed to add needs_manual_review column: %w", err)
		}
		log.Info("Successfully added needs_manual_review column to events table")
	} else {
		log.Info("needs_manual_review column already exists in events table, skipping migration")
	}

	exists, err = d.columnExists("event_review_results", "degraded")
	if err != nil {
		return fmt.Errorf("failed to check if degraded column exists: %w", err)
	}

	if !exists {
		log.Info("Adding degraded column to event_review_results table...")
		query := "ALTER TABLE event_review_results ADD COLUMN degraded BOOLEAN NOT NULL DEFAULT FALSE"
		if _, err = d.db.Exec(query); err != nil {
			return fmt.Errorf("failed to add degraded column: %w", err)
		}
		log.Info("Successfully added degraded column to event_review_results table")
	} else {
		log.Info("degraded column already exists in event_review_results table, skipping migration")
	}

	return nil
}

// GetEvent loads the full event snapshot, images included.
func (d *Database) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	query := `
	SELECT id, title, description, cancellation_policy, host_name, host_bio,
	       host_email, notices, plans, status, rejected, needs_manual_review,
	       created_at, updated_at
	FROM events
	WHERE id = ?`

	var event models.Event
	var description, cancellationPolicy, hostName, hostBio, hostEmail sql.NullString
	var notices, plans sql.NullString

	err := d.db.QueryRowContext(ctx, query, eventID).Scan(
		&event.EventID,
		&event.Title,
		&description,
		&cancellationPolicy,
		&hostName,
		&hostBio,
		&hostEmail,
		&notices,
		&plans,
		&event.Status,
		&event.Rejected,
		&event.NeedsManualReview,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("event %s not found", eventID)
		}
		return nil, fmt.Errorf("failed to fetch event %s: %w", eventID, err)
	}

	event.Description = description.String
	event.CancellationPolicy = cancellationPolicy.String
	event.HostName = hostName.String
	event.HostBio = hostBio.String
	event.HostEmail = hostEmail.String

	if notices.Valid && notices.String != "" {
		if err := json.Unmarshal([]byte(notices.String), &event.Notices); err != nil {
			return nil, fmt.Errorf("failed to decode notices for event %s: %w", eventID, err)
		}
	}
	if plans.Valid && plans.String != "" {
		if err := json.Unmarshal([]byte(plans.String), &event.Plans); err != nil {
			return nil, fmt.Errorf("failed to decode plans for event %s: %w", eventID, err)
		}
	}

	images, err := d.getEventImages(ctx, eventID)
	if err != nil {
		return nil, err
	}
	event.Images = images

	return &event, nil
}

func (d *Database) getEventImages(ctx context.Context, eventID string) ([]models.EventImage, error) {
	query := `
	SELECT url, type, caption
	FROM event_images
	WHERE event_id = ?
	ORDER BY position ASC`

	rows, err := d.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query images for event %s: %w", eventID, err)
	}
	defer rows.Close()

	var images []models.EventImage
	for rows.Next() {
		var img models.EventImage
		var caption sql.NullString
		if err := rows.Scan(&img.URL, &img.Type, &caption); err != nil {
			return nil, fmt.Errorf("failed to scan event image: %w", err)
		}
		img.Caption = caption.String
		images = append(images, img)
	}

	return images, rows.Err()
}

// UpdateEventStatus moves an event to the given lifecycle state.
func (d *Database) UpdateEventStatus(ctx context.Context, eventID string, status models.EventStatus, rejected bool) error {
	query := `
	UPDATE events
	SET status = ?, rejected = ?, updated_at = NOW()
	WHERE id = ?`

	result, err := d.db.ExecContext(ctx, query, string(status), rejected, eventID)
	if err != nil {
		return fmt.Errorf("failed to update status for event %s: %w", eventID, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("event %s not found", eventID)
	}

	return nil
}

// FlagManualReview marks an event as needing a human pass. The event keeps
// its current status.
func (d *Database) FlagManualReview(ctx context.Context, eventID string) error {
	query := `
	UPDATE events
	SET needs_manual_review = TRUE, updated_at = NOW()
	WHERE id = ?`

	result, err := d.db.ExecContext(ctx, query, eventID)
	if err != nil {
		return fmt.Errorf("failed to flag event %s for manual review: %w", eventID, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("event %s not found", eventID)
	}

	return nil
}

// SaveReviewOutcome appends the outcome of one review run. Every run is
// kept so repeated submissions of the same event stay auditable.
func (d *Database) SaveReviewOutcome(ctx context.Context, outcome *models.ReviewOutcome) error {
	verdicts, err := json.Marshal(outcome.Verdicts)
	if err != nil {
		return fmt.Errorf("failed to encode verdicts: %w", err)
	}

	query := `
	INSERT INTO event_review_results (event_id, success, degraded, verdicts, feedback)
	VALUES (?, ?, ?, ?, ?)`

	if _, err := d.db.ExecContext(ctx, query,
		outcome.EventID,
		outcome.Success,
		outcome.Degraded,
		string(verdicts),
		outcome.Feedback,
	); err != nil {
		return fmt.Errorf("failed to save review outcome for event %s: %w", outcome.EventID, err)
	}

	return nil
}

// GetLatestOutcome returns the most recent review outcome for an event.
func (d *Database) GetLatestOutcome(ctx context.Context, eventID string) (*models.ReviewOutcome, error) {
	query := `
	SELECT event_id, success, degraded, verdicts, feedback, created_at
	FROM event_review_results
	WHERE event_id = ?
	ORDER BY id DESC
	LIMIT 1`

	var outcome models.ReviewOutcome
	var verdicts sql.NullString

	err := d.db.QueryRowContext(ctx, query, eventID).Scan(
		&outcome.EventID,
		&outcome.Success,
		&outcome.Degraded,
		&verdicts,
		&outcome.Feedback,
		&outcome.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no review outcome for event %s", eventID)
		}
		return nil, fmt.Errorf("failed to fetch review outcome for event %s: %w", eventID, err)
	}

	if verdicts.Valid && verdicts.String != "" {
		if err := json.Unmarshal([]byte(verdicts.String), &outcome.Verdicts); err != nil {
			return nil, fmt.Errorf("failed to decode verdicts for event %s: %w", eventID, err)
		}
	}

	return &outcome, nil
}

// ReviewStats aggregates review outcomes for the stats endpoint.
type ReviewStats struct {
	TotalReviews int `json:"total_reviews"`
	Approved     int `json:"approved"`
	Rejected     int `json:"rejected"`
	Degraded     int `json:"degraded"`
}

// GetReviewStats returns review counts broken down by outcome.
func (d *Database) GetReviewStats(ctx context.Context) (*ReviewStats, error) {
	query := `
	SELECT
		COUNT(*),
		COALESCE(SUM(success), 0),
		COALESCE(SUM(NOT success AND NOT degraded), 0),
		COALESCE(SUM(degraded), 0)
	FROM event_review_results`

	var stats ReviewStats
	err := d.db.QueryRowContext(ctx, query).Scan(
		&stats.TotalReviews,
		&stats.Approved,
		&stats.Rejected,
		&stats.Degraded,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch review stats: %w", err)
	}

	return &stats, nil
}

package database

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jknair0/beforeeach"

	"event-review-pipeline/models"
)

var (
	testDB *Database
	mock   sqlmock.Sqlmock
)

func setUp() {
	var db *sql.DB
	db, mock, _ = sqlmock.New()
	testDB = NewFromDB(db)
}

func tearDown() {
	testDB.Close()
}

var it = beforeeach.Create(setUp, tearDown)

func TestGetEvent(t *testing.T) {
	it(func() {
		now := time.Now()
		eventRows := sqlmock.NewRows([]string{
			"id", "title", "description", "cancellation_policy", "host_name",
			"host_bio", "host_email", "notices", "plans", "status", "rejected",
			"needs_manual_review", "created_at", "updated_at",
		}).AddRow(
			"evt-1", "Riverside Family Camp", "A weekend by the river.", "Full refund up to 7 days before.",
			"Mori Outdoors", "Guides since 2015.", "host@example.com",
			`["No open fires"]`,
			`[{"title":"Standard","contents":["Tent site"],"add_ons":["Firewood"]}]`,
			"pending", false, false, now, now,
		)
		imageRows := sqlmock.NewRows([]string{"url", "type", "caption"}).
			AddRow("https://cdn.example.com/a.jpg", "cover", "Camp at dusk").
			AddRow("https://cdn.example.com/b.jpg", "gallery", nil)

		mock.ExpectQuery("SELECT id, title, description, (.+) FROM events").
			WithArgs("evt-1").WillReturnRows(eventRows)
		mock.ExpectQuery("SELECT url, type, caption	FROM event_images").
			WithArgs("evt-1").WillReturnRows(imageRows)

		event, err := testDB.GetEvent(context.Background(), "evt-1")
		if err != nil {
			t.Fatalf("GetEvent() error = %v", err)
		}

		if event.Status != models.StatusPending {
			t.Errorf("Status = %q, want pending", event.Status)
		}
		if len(event.Notices) != 1 || event.Notices[0] != "No open fires" {
			t.Errorf("Notices = %v", event.Notices)
		}
		if len(event.Plans) != 1 || event.Plans[0].Title != "Standard" {
			t.Errorf("Plans = %+v", event.Plans)
		}
		if len(event.Images) != 2 {
			t.Fatalf("Images = %d, want 2", len(event.Images))
		}
		if event.Images[0].Caption != "Camp at dusk" || event.Images[1].Caption != "" {
			t.Errorf("image captions = %q, %q", event.Images[0].Caption, event.Images[1].Caption)
		}
	})
}

func TestGetEventNotFound(t *testing.T) {
	it(func() {
		mock.ExpectQuery("SELECT id, title, description, (.+) FROM events").
			WithArgs("missing").WillReturnError(sql.ErrNoRows)

		if _, err := testDB.GetEvent(context.Background(), "missing"); err == nil {
			t.Error("expected error for missing event")
		}
	})
}

func TestUpdateEventStatus(t *testing.T) {
	it(func() {
		testCases := []struct {
			name          string
			rowsAffected  int64
			execError     error
			errorExpected bool
		}{
			{name: "Published", rowsAffected: 1},
			{name: "Missing event", rowsAffected: 0, errorExpected: true},
			{name: "Exec error", execError: fmt.Errorf("test exec error"), errorExpected: true},
		}

		for _, testCase := range testCases {
			exp := mock.ExpectExec("UPDATE events	SET status = (.+), rejected = (.+), updated_at = NOW\\(\\)").
				WithArgs("published", false, "evt-1")
			if testCase.execError != nil {
				exp.WillReturnError(testCase.execError)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(0, testCase.rowsAffected))
			}

			err := testDB.UpdateEventStatus(context.Background(), "evt-1", models.StatusPublished, false)
			if testCase.errorExpected != (err != nil) {
				t.Errorf("%s: expected error: %v, got error: %v", testCase.name, testCase.errorExpected, err)
			}
		}
	})
}

func TestFlagManualReview(t *testing.T) {
	it(func() {
		mock.ExpectExec("UPDATE events	SET needs_manual_review = TRUE").
			WithArgs("evt-1").WillReturnResult(sqlmock.NewResult(0, 1))

		if err := testDB.FlagManualReview(context.Background(), "evt-1"); err != nil {
			t.Errorf("FlagManualReview() error = %v", err)
		}
	})
}

func TestSaveReviewOutcome(t *testing.T) {
	it(func() {
		outcome := &models.ReviewOutcome{
			EventID:  "evt-1",
			Success:  false,
			Degraded: false,
			Verdicts: models.ReviewVerdicts{
				Sensitive: models.CheckVerdict{Status: models.CheckFail, Summary: "Gambling content detected."},
			},
			Feedback: "Your listing was not approved.",
		}

		mock.ExpectExec("INSERT INTO event_review_results \\(event_id, success, degraded, verdicts, feedback\\)").
			WithArgs("evt-1", false, false, sqlmock.AnyArg(), "Your listing was not approved.").
			WillReturnResult(sqlmock.NewResult(1, 1))

		if err := testDB.SaveReviewOutcome(context.Background(), outcome); err != nil {
			t.Errorf("SaveReviewOutcome() error = %v", err)
		}
	})
}

func TestGetLatestOutcome(t *testing.T) {
	it(func() {
		rows := sqlmock.NewRows([]string{"event_id", "success", "degraded", "verdicts", "feedback", "created_at"}).
			AddRow("evt-1", true, false, `{"sensitive":{"status":"pass","summary":"ok"}}`, "All checks passed.", time.Now())

		mock.ExpectQuery("SELECT event_id, success, degraded, verdicts, feedback, created_at	FROM event_review_results").
			WithArgs("evt-1").WillReturnRows(rows)

		outcome, err := testDB.GetLatestOutcome(context.Background(), "evt-1")
		if err != nil {
			t.Fatalf("GetLatestOutcome() error = %v", err)
		}
		if !outcome.Success {
			t.Error("Success = false, want true")
		}
		if outcome.Verdicts.Sensitive.Summary != "ok" {
			t.Errorf("decoded verdicts = %+v", outcome.Verdicts)
		}
	})
}

func TestGetReviewStats(t *testing.T) {
	it(func() {
		rows := sqlmock.NewRows([]string{"total", "approved", "rejected", "degraded"}).
			AddRow(10, 6, 3, 1)

		mock.ExpectQuery("SELECT	.*COUNT\\(\\*\\)").WillReturnRows(rows)

		stats, err := testDB.GetReviewStats(context.Background())
		if err != nil {
			t.Fatalf("GetReviewStats() error = %v", err)
		}
		if stats.TotalReviews != 10 || stats.Approved != 6 || stats.Rejected != 3 || stats.Degraded != 1 {
			t.Errorf("stats = %+v", stats)
		}
	})
}

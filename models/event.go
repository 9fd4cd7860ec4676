package models

import (
	"time"
)

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	StatusDraft     EventStatus = "draft"
	StatusPending   EventStatus = "pending"
	StatusPublished EventStatus = "published"
)

// EventImage is one uploaded image attached to an event.
type EventImage struct {
	URL     string `json:"url"`
	Type    string `json:"type"`
	Caption string `json:"caption"`
}

// EventPlan is one purchasable plan of an event, with its content lines
// and optional add-on names.
type EventPlan struct {
	Title    string   `json:"title"`
	Contents []string `json:"contents"`
	AddOns   []string `json:"add_ons"`
}

// ReviewRequest is the immutable event snapshot submitted for review.
type ReviewRequest struct {
	EventID            string       `json:"event_id"`
	Title              string       `json:"title"`
	Description        string       `json:"description"`
	CancellationPolicy string       `json:"cancellation_policy"`
	HostName           string       `json:"host_name"`
	HostBio            string       `json:"host_bio"`
	HostEmail          string       `json:"host_email"`
	Notices            []string     `json:"notices"`
	Images             []EventImage `json:"images"`
	Plans              []EventPlan  `json:"plans"`
}

// Event is the persisted event record: the review snapshot plus its
// lifecycle state.
type Event struct {
	ReviewRequest
	Status            EventStatus `json:"status"`
	Rejected          bool        `json:"rejected"`
	NeedsManualReview bool        `json:"needs_manual_review"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// CaptionedImages returns the captions of images that have one, in array order.
func (r *ReviewRequest) CaptionedImages() []string {
	var captions []string
	for _, img := range r.Images {
		if img.Caption != "" {
			captions = append(captions, img.Caption)
		}
	}
	return captions
}

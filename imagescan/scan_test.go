package imagescan

import (
	"context"
	"errors"
	"testing"

	"event-review-pipeline/models"
)

// fakeClassifier fails for URLs listed in failing, scores everything else.
type fakeClassifier struct {
	failing map[string]error
}

func (f *fakeClassifier) ScanImage(ctx context.Context, imageURL string) (map[string]float64, error) {
	if err, ok := f.failing[imageURL]; ok {
		return nil, err
	}
	return map[string]float64{"nudity": 0.01, "violence": 0.02}, nil
}

func TestScanAllOneFailureAmongThree(t *testing.T) {
	images := []models.EventImage{
		{URL: "https://cdn.example.com/a.jpg"},
		{URL: "https://cdn.example.com/b.jpg"},
		{URL: "https://cdn.example.com/c.jpg"},
	}
	classifier := &fakeClassifier{failing: map[string]error{
		"https://cdn.example.com/b.jpg": errors.New("scan timeout"),
	}}

	results := ScanAll(context.Background(), classifier, images)

	if len(results) != 3 {
		t.Fatalf("expected exactly 3 results, got %d", len(results))
	}
	for i, img := range images {
		if results[i].URL != img.URL {
			t.Errorf("result %d URL = %q, want %q (input order must be preserved)", i, results[i].URL, img.URL)
		}
	}
	if results[0].Err != "" || results[2].Err != "" {
		t.Errorf("sibling scans must still succeed: %+v", results)
	}
	if results[1].Err == "" {
		t.Error("failed scan must carry its error")
	}
	if results[1].Scores != nil {
		t.Error("failed scan must not carry scores")
	}
	if results[0].Scores["violence"] != 0.02 {
		t.Errorf("unexpected scores for first image: %v", results[0].Scores)
	}
}

func TestScanAllEmpty(t *testing.T) {
	results := ScanAll(context.Background(), &fakeClassifier{}, nil)
	if len(results) != 0 {
		t.Errorf("expected no results for no images, got %d", len(results))
	}
}

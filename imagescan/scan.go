package imagescan

import (
	"context"
	"sync"

	"event-review-pipeline/models"

	"github.com/apex/log"
)

// ScanAll classifies every image concurrently and returns exactly one result
// per image, in input order. A failure on one image (network error, non-200,
// timeout) is captured in that image's Err field; sibling scans still run
// and report.
func ScanAll(ctx context.Context, c Classifier, images []models.EventImage) []models.ImageScanResult {
	results := make([]models.ImageScanResult, len(images))

	var wg sync.WaitGroup
	for i, img := range images {
		wg.Add(1)
		go func(i int, img models.EventImage) {
			defer wg.Done()
			results[i] = models.ImageScanResult{URL: img.URL}
			scores, err := c.ScanImage(ctx, img.URL)
			if err != nil {
				log.WithError(err).Warnf("image scan failed for %s", img.URL)
				results[i].Err = err.Error()
				return
			}
			results[i].Scores = scores
		}(i, img)
	}
	wg.Wait()

	return results
}

// Package imagescan calls the external image-classification service and
// reduces its raw per-category response to the fixed set of risk channels
// the risk summarizer consumes.
package imagescan

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Classifier abstracts the image-classification service so the pipeline can
// run against a deterministic fake in tests.
type Classifier interface {
	// ScanImage classifies one image URL and returns its scores reduced to
	// the named risk channels.
	ScanImage(ctx context.Context, imageURL string) (map[string]float64, error)
}

// Client handles communication with the image classification service.
type Client struct {
	endpoint   string
	apiUser    string
	apiSecret  string
	models     []string
	httpClient *http.Client
}

// NewClient creates a new image classification client. The models list is
// the fixed set of detection models requested for every image.
func NewClient(endpoint, apiUser, apiSecret string, models []string) *Client {
	return &Client{
		endpoint:  endpoint,
		apiUser:   apiUser,
		apiSecret: apiSecret,
		models:    models,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// checkResponse is the raw classifier response. Only the categories that map
// onto a named risk channel are decoded; everything else is dropped.
type checkResponse struct {
	Status string `json:"status"`
	Error  struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
	Nudity struct {
		Raw     float64 `json:"raw"`
		Partial float64 `json:"partial"`
	} `json:"nudity"`
	Weapon   float64 `json:"weapon"`
	Alcohol  float64 `json:"alcohol"`
	Drugs    float64 `json:"drugs"`
	Tobacco  float64 `json:"tobacco"`
	Gambling float64 `json:"gambling"`
	Offensive struct {
		Prob float64 `json:"prob"`
	} `json:"offensive"`
	Scam struct {
		Prob float64 `json:"prob"`
	} `json:"scam"`
	Gore struct {
		Prob float64 `json:"prob"`
	} `json:"gore"`
	Violence struct {
		Prob float64 `json:"prob"`
	} `json:"violence"`
}

// ScanImage sends one image URL to the classification service.
func (c *Client) ScanImage(ctx context.Context, imageURL string) (map[string]float64, error) {
	params := url.Values{}
	params.Set("url", imageURL)
	params.Set("models", strings.Join(c.models, ","))
	params.Set("api_user", c.apiUser)
	params.Set("api_secret", c.apiSecret)

	req, err := http.NewRequestWithContext(ctx, "GET", c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to image classification service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image classification service returned status %d", resp.StatusCode)
	}

	var response checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if response.Status != "success" {
		return nil, fmt.Errorf("image classification failed: %s (%s)", response.Error.Message, response.Error.Type)
	}

	return reduce(&response), nil
}

// reduce maps the raw classifier categories onto the fixed risk channels.
func reduce(r *checkResponse) map[string]float64 {
	nudity := r.Nudity.Raw
	if r.Nudity.Partial > nudity {
		nudity = r.Nudity.Partial
	}
	return map[string]float64{
		"nudity":    nudity,
		"violence":  r.Violence.Prob,
		"weapons":   r.Weapon,
		"gore":      r.Gore.Prob,
		"offensive": r.Offensive.Prob,
		"scam":      r.Scam.Prob,
		"alcohol":   r.Alcohol,
		"drugs":     r.Drugs,
		"tobacco":   r.Tobacco,
		"gambling":  r.Gambling,
	}
}

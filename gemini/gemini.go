package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type part struct {
	Text string `json:"text,omitempty"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string `json:"response_mime_type,omitempty"`
}

type geminiRequest struct {
	GenerationConfig  generationConfig `json:"generationConfig,omitempty"`
	SystemInstruction *content         `json:"system_instruction,omitempty"`
	Contents          []content        `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text,omitempty"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type Client struct {
	apiKey string
	model  string
	http   *http.Client
}

func NewClient(apiKey, model string) *Client {
	return &Client{
		apiKey: apiKey,
		model:  model,
		http:   &http.Client{},
	}
}

func (c *Client) SourceName() string {
	return "Gemini"
}

// Complete sends a generateContent request with the system instruction and
// user payload and returns the first text part of the first candidate.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	reqBody := geminiRequest{
		GenerationConfig: generationConfig{ResponseMimeType: "application/json"},
		SystemInstruction: &content{
			Parts: []part{{Text: system}},
		},
		Contents: []content{
			{
				Role:  "user",
				Parts: []part{{Text: user}},
			},
		},
	}
	return c.generateContent(ctx, reqBody)
}

func (c *Client) generateContent(ctx context.Context, body geminiRequest) (string, error) {
	// try v1beta first, then v1
	endpoints := []string{
		fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s", c.model, c.apiKey),
		fmt.Sprintf("https://generativelanguage.googleapis.com/v1/models/%s:generateContent?key=%s", c.model, c.apiKey),
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for _, ep := range endpoints {
		req, err := http.NewRequestWithContext(ctx, "POST", ep, bytes.NewBuffer(data))
		if err != nil {
			lastErr = fmt.Errorf("failed to create request: %w", err)
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("failed to send request: %w", err)
			continue
		}
		bodyBytes, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			lastErr = fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(bodyBytes))
			// retry next endpoint if available
			continue
		}
		var gr geminiResponse
		if err := json.Unmarshal(bodyBytes, &gr); err != nil {
			lastErr = fmt.Errorf("failed to parse response: %w", err)
			continue
		}
		if len(gr.Candidates) == 0 {
			lastErr = fmt.Errorf("no candidates in response")
			continue
		}
		for _, p := range gr.Candidates[0].Content.Parts {
			if p.Text != "" {
				return p.Text, nil
			}
		}
		lastErr = fmt.Errorf("no text part in response")
	}
	return "", lastErr
}

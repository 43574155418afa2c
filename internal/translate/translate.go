// Package translate holds the HTTP clients for the per-entry translation
// service and the AI summary service. Overload signals (HTTP 429) are
// surfaced as ErrRateLimited so the user sees a retryable message instead
// of a generic failure.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrRateLimited marks a translation request rejected for overload.
var ErrRateLimited = errors.New("translate: rate limited by service")

// Client talks to the translation and summary endpoints.
type Client struct {
	TranslateURL string
	SummaryURL   string
	httpClient   *http.Client
}

func New(translateURL, summaryURL string, timeout time.Duration) *Client {
	return &Client{
		TranslateURL: translateURL,
		SummaryURL:   summaryURL,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

type translateRequest struct {
	Text   string `json:"q"`
	Target string `json:"target"`
	Engine string `json:"engine"`
	APIKey string `json:"api_key,omitempty"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
}

// Translate sends one text fragment to the service. The engine id selects
// the backend on the service side; the API key is optional.
func (c *Client) Translate(ctx context.Context, text, target, engine, apiKey string) (string, error) {
	body, err := c.post(ctx, c.TranslateURL, translateRequest{
		Text: text, Target: target, Engine: engine, APIKey: apiKey,
	})
	if err != nil {
		return "", err
	}

	var res translateResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return "", fmt.Errorf("translate: decode response: %w", err)
	}
	return res.TranslatedText, nil
}

type summaryRequest struct {
	Text string `json:"text"`
}

type summaryResponse struct {
	Summary string `json:"summary"`
}

// Summarize asks the AI summary service for a short synopsis of the book
// text.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	body, err := c.post(ctx, c.SummaryURL, summaryRequest{Text: text})
	if err != nil {
		return "", err
	}

	var res summaryResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return "", fmt.Errorf("translate: decode summary response: %w", err)
	}
	return res.Summary, nil
}

func (c *Client) post(ctx context.Context, url string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("translate: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("translate: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("translate: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("translate: read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("translate: service returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return body, nil
}

// Package restprovider provides a client for a generic REST text-inference
// endpoint (POST /v1/analyze with a prompt, JSON text back).
package restprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/guardian-safety/guardian/internal/inference"
	"github.com/guardian-safety/guardian/internal/provider/resilience"
)

// ProviderName identifies this provider.
const ProviderName = "rest-inference"

// ClientConfig holds configuration for the REST inference client.
type ClientConfig struct {
	// BaseURL is the inference endpoint base URL (required).
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// HTTPClient is the HTTP client to use (must implement HTTPDoer).
	// If nil, a default resilient client will be created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 20s).
	Timeout time.Duration
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls a REST inference endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient HTTPDoer
}

// NewClient creates a new REST inference client.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 20 * time.Second
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName,
			Timeout:         timeout,
			MaxRetries:      2,
			InitialInterval: 250 * time.Millisecond,
			MaxInterval:     3 * time.Second,
		})
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}
}

type analyzeRequest struct {
	Prompt string `json:"prompt"`
}

type analyzeResponse struct {
	Text string `json:"text"`
}

// Analyze submits a prompt and returns the generated text.
func (c *Client) Analyze(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(analyzeRequest{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("encoding analyze request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/analyze", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", inference.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", inference.ErrProviderUnavailable, resp.StatusCode)
	}

	var parsed analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding analyze response: %w", err)
	}
	return parsed.Text, nil
}

// Name returns the provider identifier.
func (c *Client) Name() string { return ProviderName }

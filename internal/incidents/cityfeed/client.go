// Package cityfeed provides a client for a municipal open-data incident feed.
// The feed exposes recent incident reports and a directory of emergency
// services, both queried by point and radius.
package cityfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/guardian-safety/guardian/internal/geo"
	"github.com/guardian-safety/guardian/internal/incidents"
	"github.com/guardian-safety/guardian/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the base URL for the city feed API.
	DefaultBaseURL = "https://data.cityfeed.example.com/api"

	// ProviderName identifies this provider.
	ProviderName = "cityfeed"
)

// ClientConfig holds configuration for the city feed client.
type ClientConfig struct {
	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// HTTPClient is the HTTP client to use (must implement HTTPDoer).
	// If nil, a default resilient client will be created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a city feed API client. It implements both
// incidents.IncidentSource and incidents.PlacesSource.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient HTTPDoer
}

// NewClient creates a new city feed client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName,
			Timeout:         timeout,
			MaxRetries:      3,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		})
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}
}

// API response types (from the city feed API).

type incidentsResponse struct {
	Results []incidentData `json:"results"`
}

type incidentData struct {
	ID          string    `json:"id"`
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	Category    string    `json:"category"`
	Severity    string    `json:"severity"`
	Description string    `json:"description"`
	ReportedAt  time.Time `json:"reported_at"`
}

type placesResponse struct {
	Results []placeData `json:"results"`
}

type placeData struct {
	Name           string  `json:"name"`
	Kind           string  `json:"kind"`
	Lat            float64 `json:"lat"`
	Lng            float64 `json:"lng"`
	DistanceMeters float64 `json:"distance_m"`
}

// NearbyIncidents retrieves recent incident reports around the point.
func (c *Client) NearbyIncidents(ctx context.Context, loc geo.LatLng, radiusKm float64) ([]incidents.Incident, error) {
	url := fmt.Sprintf("%s/incidents?lat=%.6f&lng=%.6f&radius_km=%.1f", c.baseURL, loc.Lat, loc.Lng, radiusKm)

	var result incidentsResponse
	if err := c.get(ctx, url, &result); err != nil {
		return nil, fmt.Errorf("fetch incidents: %w", err)
	}

	items := make([]incidents.Incident, 0, len(result.Results))
	for _, d := range result.Results {
		items = append(items, incidents.Incident{
			ID:          d.ID,
			Location:    geo.LatLng{Lat: d.Lat, Lng: d.Lng},
			Category:    d.Category,
			Severity:    d.Severity,
			Description: d.Description,
			ReportedAt:  d.ReportedAt,
			Impact:      impactForSeverity(d.Severity),
		})
	}
	return items, nil
}

// NearbyEmergencyServices retrieves the emergency-service directory around
// the point.
func (c *Client) NearbyEmergencyServices(ctx context.Context, loc geo.LatLng, radiusKm float64) ([]incidents.EmergencyService, error) {
	url := fmt.Sprintf("%s/places/emergency?lat=%.6f&lng=%.6f&radius_km=%.1f", c.baseURL, loc.Lat, loc.Lng, radiusKm)

	var result placesResponse
	if err := c.get(ctx, url, &result); err != nil {
		return nil, fmt.Errorf("fetch emergency services: %w", err)
	}

	items := make([]incidents.EmergencyService, 0, len(result.Results))
	for _, d := range result.Results {
		items = append(items, incidents.EmergencyService{
			Name:           d.Name,
			Kind:           d.Kind,
			Location:       geo.LatLng{Lat: d.Lat, Lng: d.Lng},
			DistanceMeters: d.DistanceMeters,
		})
	}
	return items, nil
}

// get performs an authenticated GET and decodes the JSON body.
func (c *Client) get(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// impactForSeverity maps feed severity labels onto the [-1, 0] impact scale.
// Unknown labels get a mild default so a feed change does not zero them out.
func impactForSeverity(severity string) float64 {
	switch strings.ToLower(severity) {
	case "critical":
		return -1.0
	case "high":
		return -0.7
	case "medium":
		return -0.4
	case "low":
		return -0.15
	default:
		return -0.2
	}
}

package cityfeed_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardian-safety/guardian/internal/geo"
	"github.com/guardian-safety/guardian/internal/incidents/cityfeed"
)

var downtown = geo.LatLng{Lat: 40.7128, Lng: -74.0060}

func TestClient_NearbyIncidents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/incidents", r.URL.Path)
		assert.Equal(t, "40.712800", r.URL.Query().Get("lat"))
		assert.Equal(t, "2.0", r.URL.Query().Get("radius_km"))

		response := map[string]interface{}{
			"results": []map[string]interface{}{
				{
					"id":          "inc_001",
					"lat":         40.7130,
					"lng":         -74.0055,
					"category":    "theft",
					"severity":    "high",
					"description": "Reported theft near subway entrance",
					"reported_at": "2026-08-23T01:30:00Z",
				},
				{
					"id":          "inc_002",
					"lat":         40.7120,
					"lng":         -74.0070,
					"category":    "vandalism",
					"severity":    "low",
					"description": "Broken streetlight",
					"reported_at": "2026-08-22T22:10:00Z",
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := cityfeed.NewClient(cityfeed.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: http.DefaultClient,
	})

	items, err := client.NearbyIncidents(context.Background(), downtown, 2.0)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "inc_001", items[0].ID)
	assert.Equal(t, "theft", items[0].Category)
	assert.Equal(t, -0.7, items[0].Impact)
	assert.Equal(t, -0.15, items[1].Impact)
}

func TestClient_NearbyIncidents_UnknownSeverityGetsMildImpact(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		response := map[string]interface{}{
			"results": []map[string]interface{}{
				{
					"id":          "inc_003",
					"lat":         40.71,
					"lng":         -74.00,
					"category":    "other",
					"severity":    "unspecified",
					"reported_at": "2026-08-23T01:30:00Z",
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := cityfeed.NewClient(cityfeed.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: http.DefaultClient,
	})

	items, err := client.NearbyIncidents(context.Background(), downtown, 2.0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, -0.2, items[0].Impact)
}

func TestClient_NearbyEmergencyServices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/places/emergency", r.URL.Path)

		response := map[string]interface{}{
			"results": []map[string]interface{}{
				{
					"name":       "1st Precinct",
					"kind":       "police",
					"lat":        40.7202,
					"lng":        -74.0070,
					"distance_m": 830.0,
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := cityfeed.NewClient(cityfeed.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: http.DefaultClient,
	})

	services, err := client.NearbyEmergencyServices(context.Background(), downtown, 2.0)
	require.NoError(t, err)
	require.Len(t, services, 1)

	assert.Equal(t, "1st Precinct", services[0].Name)
	assert.Equal(t, "police", services[0].Kind)
	assert.Equal(t, 830.0, services[0].DistanceMeters)
}

func TestClient_SendsBearerToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"results": []interface{}{}})
	}))
	defer server.Close()

	client := cityfeed.NewClient(cityfeed.ClientConfig{
		BaseURL:    server.URL,
		APIKey:     "test-key",
		HTTPClient: http.DefaultClient,
	})

	_, err := client.NearbyIncidents(context.Background(), downtown, 2.0)
	require.NoError(t, err)
}

func TestClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := cityfeed.NewClient(cityfeed.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: http.DefaultClient,
	})

	_, err := client.NearbyIncidents(context.Background(), downtown, 2.0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := cityfeed.NewClient(cityfeed.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: http.DefaultClient,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.NearbyIncidents(ctx, downtown, 2.0)
	require.Error(t, err)
}

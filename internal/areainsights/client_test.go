package areainsights

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibrasaif1/topspots/internal/geo"
)

func testPolygon() geo.Polygon {
	return geo.BoundingBox{North: 33.0, South: 32.5, West: -117.3, East: -116.9}.Ring()
}

func newTestClient(url string, opts ...ClientOption) *Client {
	base := []ClientOption{
		WithInsightsBaseURL(url),
		WithPlacesBaseURL(url),
		WithRateLimit(1000),
	}
	return NewClient("test-key", append(base, opts...)...)
}

func TestCountParsesStringCount(t *testing.T) {
	var gotBody insightsRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1:computeInsights", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]string{"count": "350"})
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	count, err := client.Count(context.Background(), AreaFilter{
		Polygon:       testPolygon(),
		IncludedTypes: []string{"restaurant"},
		MinRating:     4.5,
		MaxRating:     5.0,
	})
	require.NoError(t, err)
	assert.Equal(t, 350, count)

	require.Equal(t, []string{"INSIGHT_COUNT"}, gotBody.Insights)
	require.NotNil(t, gotBody.Filter.TypeFilter)
	assert.Equal(t, []string{"restaurant"}, gotBody.Filter.TypeFilter.IncludedTypes)
	require.NotNil(t, gotBody.Filter.RatingFilter)
	assert.InDelta(t, 4.5, gotBody.Filter.RatingFilter.MinRating, 0.001)

	circle := gotBody.Filter.LocationFilter.Circle
	assert.InDelta(t, 32.75, circle.Center.LatLng.Latitude, 0.001)
	assert.InDelta(t, -117.1, circle.Center.LatLng.Longitude, 0.001)
	assert.Greater(t, circle.Radius, 0.0)
}

func TestCountEmptyResponseIsZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{}"))
	}))
	defer server.Close()

	count, err := newTestClient(server.URL).Count(context.Background(), AreaFilter{Polygon: testPolygon()})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestListPlaceIDsFallsBackToID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"places": []map[string]string{
				{"name": "places/abc"},
				{"id": "def"},
				{},
			},
		})
	}))
	defer server.Close()

	ids, err := newTestClient(server.URL).ListPlaceIDs(context.Background(), AreaFilter{Polygon: testPolygon()})
	require.NoError(t, err)
	assert.Equal(t, []string{"places/abc", "def"}, ids)
}

func TestPlaceDetailsSendsFieldMask(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/places/abc", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
		assert.Contains(t, r.Header.Get("X-Goog-FieldMask"), "userRatingCount")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":              "abc",
			"name":            "places/abc",
			"displayName":     map[string]string{"text": "Taco Stand"},
			"rating":          4.8,
			"userRatingCount": 1200,
			"location":        map[string]float64{"latitude": 32.8, "longitude": -117.1},
		})
	}))
	defer server.Close()

	record, err := newTestClient(server.URL).PlaceDetails(context.Background(), "places/abc")
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, "abc", record.ID)
	assert.Equal(t, "places/abc", record.ResourceName)
	assert.Equal(t, "Taco Stand", record.Name)
	assert.InDelta(t, 4.8, record.Rating, 0.001)
	assert.Equal(t, 1200, record.UserRatingCount)
	require.NotNil(t, record.Location)
	assert.InDelta(t, 32.8, record.Location.Latitude, 0.001)
	assert.False(t, record.HydratedAt.IsZero())
}

func TestPlaceDetailsGoneReturnsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()

	record, err := newTestClient(server.URL).PlaceDetails(context.Background(), "places/stale")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestPlaceDetailsRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).PlaceDetails(context.Background(), "places/abc")
	require.Error(t, err)

	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, 7*time.Second, rle.RetryAfter)
}

func TestCountSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Count(context.Background(), AreaFilter{Polygon: testPolygon()})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}

func TestCountRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "flaky", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"count": "12"})
	}))
	defer server.Close()

	policy := NewRetryPolicy()
	policy.InitialBackoff = time.Millisecond

	count, err := newTestClient(server.URL, WithRetryPolicy(policy)).
		Count(context.Background(), AreaFilter{Polygon: testPolygon()})
	require.NoError(t, err)
	assert.Equal(t, 12, count)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRetryPolicyNeverRetriesRateLimit(t *testing.T) {
	policy := NewRetryPolicy()
	err := &RateLimitError{RetryAfter: time.Second, Endpoint: "/v1:computeInsights"}
	assert.False(t, policy.ShouldRetry(0, http.StatusTooManyRequests, err))
}

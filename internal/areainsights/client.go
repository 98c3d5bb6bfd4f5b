package areainsights

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ibrasaif1/topspots/internal/models"
)

const (
	// DefaultInsightsBaseURL is the base URL for the Area Insights API.
	DefaultInsightsBaseURL = "https://areainsights.googleapis.com"

	// DefaultPlacesBaseURL is the base URL for the Places API v1.
	DefaultPlacesBaseURL = "https://places.googleapis.com"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 10

	// detailFieldMask limits the details call to the fields the record model
	// actually keeps. Adding fields raises the per-call billing tier.
	detailFieldMask = "id,name,displayName,googleMapsUri,primaryType,primaryTypeDisplayName,types,rating,userRatingCount,priceLevel,priceRange,location"
)

// Client is an Area Insights / Places API client. It holds no state between
// calls beyond its rate limiter.
type Client struct {
	insightsURL string
	placesURL   string
	apiKey      string
	httpClient  *http.Client
	logger      arbor.ILogger
	limiter     *rate.Limiter
	retry       *RetryPolicy
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithInsightsBaseURL sets a custom Area Insights base URL.
func WithInsightsBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.insightsURL = baseURL
	}
}

// WithPlacesBaseURL sets a custom Places API base URL.
func WithPlacesBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.placesURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithRetryPolicy enables transient-error retries (408/5xx and network
// timeouts) with exponential backoff. Disabled by default: the subdivision
// engine treats a failed count as a split signal, so surfacing the first
// error is the cheaper recovery path there.
func WithRetryPolicy(policy *RetryPolicy) ClientOption {
	return func(c *Client) {
		c.retry = policy
	}
}

// NewClient creates a new Area Insights API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		insightsURL: DefaultInsightsBaseURL,
		placesURL:   DefaultPlacesBaseURL,
		apiKey:      apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Count returns the number of places matching the filter inside the area.
func (c *Client) Count(ctx context.Context, filter AreaFilter) (int, error) {
	resp, err := c.computeInsights(ctx, "INSIGHT_COUNT", filter)
	if err != nil {
		return 0, err
	}

	if resp.Count == "" {
		return 0, nil
	}
	count, err := strconv.Atoi(resp.Count)
	if err != nil {
		return 0, fmt.Errorf("failed to parse count %q: %w", resp.Count, err)
	}
	return count, nil
}

// ListPlaceIDs enumerates the resource names of places matching the filter.
// The remote silently truncates beyond ListCap; the client cannot detect
// truncation, so callers must only enumerate areas whose count is ≤ ListCap.
func (c *Client) ListPlaceIDs(ctx context.Context, filter AreaFilter) ([]string, error) {
	resp, err := c.computeInsights(ctx, "INSIGHT_PLACES", filter)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(resp.Places))
	for _, p := range resp.Places {
		name := p.Name
		if name == "" {
			name = p.ID
		}
		if name != "" {
			ids = append(ids, name)
		}
	}
	return ids, nil
}

// PlaceDetails fetches the full detail record for one place resource name
// (e.g. "places/ChIJ..."). Returns (nil, nil) when the remote reports the
// place as gone; a stale ID is a valid empty result, not an error. A
// 429-class response surfaces as *RateLimitError.
func (c *Client) PlaceDetails(ctx context.Context, resourceName string) (*models.PlaceRecord, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := "/v1/" + resourceName
	reqURL := c.placesURL + endpoint

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", detailFieldMask)

	if c.logger != nil {
		// API key travels in a header, never in the URL, so the URL is safe to log.
		c.logger.Debug().Str("url", reqURL).Msg("Place details request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return nil, &RateLimitError{RetryAfter: retryAfter(resp), Endpoint: endpoint}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   endpoint,
		}
	}

	var detail placeDetailsResponse
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return detail.toRecord(), nil
}

// computeInsights performs one computeInsights call for the given insight kind.
func (c *Client) computeInsights(ctx context.Context, insight string, filter AreaFilter) (*insightsResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body := buildInsightsRequest(insight, filter)
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	const endpoint = "/v1:computeInsights"

	do := func() (*insightsResponse, int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.insightsURL+endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, 0, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Goog-Api-Key", c.apiKey)

		if c.logger != nil {
			c.logger.Debug().
				Str("insight", insight).
				Float64("radius_m", body.Filter.LocationFilter.Circle.Radius).
				Msg("Area insights request")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to execute request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			io.Copy(io.Discard, resp.Body)
			return nil, resp.StatusCode, &RateLimitError{RetryAfter: retryAfter(resp), Endpoint: endpoint}
		}
		if resp.StatusCode != http.StatusOK {
			raw, _ := io.ReadAll(resp.Body)
			return nil, resp.StatusCode, &APIError{
				StatusCode: resp.StatusCode,
				Message:    string(raw),
				Endpoint:   endpoint,
			}
		}

		var result insightsResponse
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
		return &result, resp.StatusCode, nil
	}

	if c.retry == nil {
		result, _, err := do()
		return result, err
	}

	var result *insightsResponse
	_, err = c.retry.ExecuteWithRetry(ctx, c.logger, func() (int, error) {
		var status int
		result, status, err = do()
		return status, err
	})
	return result, err
}

// buildInsightsRequest expresses the polygon as its covering circle: the
// bounding-box center with a half-diagonal radius. The remote filter API is
// circle-based, so the circle over-covers the box slightly; deduplication
// across overlapping sub-regions absorbs the overlap.
func buildInsightsRequest(insight string, filter AreaFilter) insightsRequest {
	bounds := filter.Polygon.Bounds()
	center := bounds.Center()

	req := insightsRequest{
		Insights: []string{insight},
		Filter: insightsFilter{
			LocationFilter: locationFilter{
				Circle: circleFilter{
					Center: circleCenter{
						LatLng: latLng{Latitude: center.Latitude, Longitude: center.Longitude},
					},
					Radius: bounds.CoverRadiusMeters(),
				},
			},
			OperatingStatus: filter.OperatingStatus,
		},
	}

	if len(filter.IncludedTypes) > 0 {
		req.Filter.TypeFilter = &typeFilter{IncludedTypes: filter.IncludedTypes}
	}
	if filter.MinRating > 0 || filter.MaxRating > 0 {
		req.Filter.RatingFilter = &ratingFilter{
			MinRating: filter.MinRating,
			MaxRating: filter.MaxRating,
		}
	}

	return req
}

// toRecord converts an API details response to the storage model.
func (d *placeDetailsResponse) toRecord() *models.PlaceRecord {
	rec := &models.PlaceRecord{
		ID:              d.ID,
		ResourceName:    d.Name,
		GoogleMapsURI:   d.GoogleMapsURI,
		PrimaryType:     d.PrimaryType,
		Types:           d.Types,
		Rating:          d.Rating,
		UserRatingCount: d.UserRatingCount,
		PriceLevel:      d.PriceLevel,
		HydratedAt:      time.Now().UTC(),
	}

	if d.DisplayName != nil {
		rec.Name = d.DisplayName.Text
	}
	if d.PrimaryTypeDisplayName != nil {
		rec.PrimaryTypeDisplayName = d.PrimaryTypeDisplayName.Text
	}
	if d.Location != nil {
		rec.Location = &models.LatLng{Latitude: d.Location.Latitude, Longitude: d.Location.Longitude}
	}
	if d.PriceRange != nil {
		pr := &models.PriceRange{}
		if d.PriceRange.StartPrice != nil {
			pr.StartPrice = &models.Money{
				CurrencyCode: d.PriceRange.StartPrice.CurrencyCode,
				Units:        d.PriceRange.StartPrice.Units,
				Nanos:        d.PriceRange.StartPrice.Nanos,
			}
		}
		if d.PriceRange.EndPrice != nil {
			pr.EndPrice = &models.Money{
				CurrencyCode: d.PriceRange.EndPrice.CurrencyCode,
				Units:        d.PriceRange.EndPrice.Units,
				Nanos:        d.PriceRange.EndPrice.Nanos,
			}
		}
		rec.PriceRange = pr
	}

	return rec
}

// retryAfter parses the Retry-After header, defaulting to one second.
func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Second
}

// Package geocode resolves city names to bounding polygons via the
// OpenStreetMap Nominatim search API.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ibrasaif1/topspots/internal/geo"
)

const (
	// DefaultBaseURL is the base URL for the Nominatim API.
	DefaultBaseURL = "https://nominatim.openstreetmap.org"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 10 * time.Second

	// DefaultUserAgent identifies the application to Nominatim, which
	// requires a real contact in the User-Agent.
	DefaultUserAgent = "topspots/1.0 (+contact@example.com)"
)

// ErrCityNotFound is returned when Nominatim has no match for the city name.
var ErrCityNotFound = errors.New("city not found")

// Client is a Nominatim geocoding client. Nominatim's usage policy caps
// anonymous use at one request per second, enforced by the limiter.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithUserAgent sets the identifying User-Agent.
func WithUserAgent(userAgent string) ClientOption {
	return func(c *Client) {
		c.userAgent = userAgent
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

// NewClient creates a new Nominatim client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		userAgent: DefaultUserAgent,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(1), 1),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// searchResult is a single Nominatim search hit. The bounding box arrives as
// four decimal strings in [south, north, west, east] order.
type searchResult struct {
	DisplayName string    `json:"display_name"`
	BoundingBox [4]string `json:"boundingbox"`
}

// ResolveCity resolves a city name to the rectangular ring of its bounding
// box, suitable as the root polygon of a discovery run.
func (c *Client) ResolveCity(ctx context.Context, city string) (geo.Polygon, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("format", "json")
	params.Set("limit", "1")
	params.Set("city", city)

	reqURL := fmt.Sprintf("%s/search?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	if c.logger != nil {
		c.logger.Debug().Str("city", city).Msg("Resolving city bounding box")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("nominatim returned status %d: %s", resp.StatusCode, string(body))
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCityNotFound, city)
	}

	box, err := parseBoundingBox(results[0].BoundingBox)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bounding box for %s: %w", city, err)
	}

	if c.logger != nil {
		c.logger.Info().
			Str("city", city).
			Float64("north", box.North).
			Float64("south", box.South).
			Float64("west", box.West).
			Float64("east", box.East).
			Msg("Resolved city bounding box")
	}

	return box.Ring(), nil
}

// parseBoundingBox converts Nominatim's [south, north, west, east] strings.
func parseBoundingBox(raw [4]string) (geo.BoundingBox, error) {
	vals := [4]float64{}
	for i, s := range raw {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return geo.BoundingBox{}, fmt.Errorf("invalid bound %q: %w", s, err)
		}
		vals[i] = v
	}
	return geo.BoundingBox{South: vals[0], North: vals[1], West: vals[2], East: vals[3]}, nil
}

// internal/geocode/nominatim.go - Nominatim reverse geocoding
package geocode

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/valpere/tilemani/internal"
	"github.com/valpere/tilemani/internal/tile"
	"golang.org/x/time/rate"
)

// DefaultDetailZoom asks for roughly suburb and city level addresses
const DefaultDetailZoom = 14

// Nominatim's usage policy allows one request per second
const requestsPerSecond = 1.0

// Reverser resolves a point to a human readable address
type Reverser interface {
	Reverse(ctx context.Context, at tile.LatLng) (string, error)
}

// Options configures a Client
type Options struct {
	URL        string
	UserAgent  string
	Language   string
	DetailZoom int
	Timeout    time.Duration
}

// Client is a rate limited Nominatim reverse geocoding client
type Client struct {
	http    *http.Client
	opts    Options
	limiter *rate.Limiter
	logger  zerolog.Logger
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

// NewClient creates a client. Zero options fall back to sensible defaults.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	if opts.DetailZoom <= 0 {
		opts.DetailZoom = DefaultDetailZoom
	}
	if opts.Language == "" {
		opts.Language = "en"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	return &Client{
		http:    &http.Client{Timeout: opts.Timeout},
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		logger:  logger.With().Str("component", "nominatim").Logger(),
	}
}

// Reverse returns the display name of the address at a point
func (c *Client) Reverse(ctx context.Context, at tile.LatLng) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", internal.NewError(internal.ErrorCodeRetrieval, "reverse geocoding cancelled", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(at), nil)
	if err != nil {
		return "", internal.NewError(internal.ErrorCodeRetrieval, "failed to build reverse request", err)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", internal.NewError(internal.ErrorCodeRetrieval, "reverse request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", internal.NewError(internal.ErrorCodeRetrieval,
			fmt.Sprintf("nominatim returned HTTP %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", internal.NewError(internal.ErrorCodeRetrieval, "failed to read reverse response", err)
	}

	var parsed reverseResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", internal.NewError(internal.ErrorCodeRetrieval, "failed to decode reverse response", err)
	}
	if parsed.Error != "" {
		return "", internal.NewError(internal.ErrorCodeNoData, parsed.Error, nil)
	}
	if parsed.DisplayName == "" {
		return "", internal.NewError(internal.ErrorCodeNoData, "no address at "+at.String(), nil)
	}

	c.logger.Debug().Str("at", at.String()).Str("address", parsed.DisplayName).Msg("Reverse geocoded")
	return parsed.DisplayName, nil
}

func (c *Client) requestURL(at tile.LatLng) string {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(at.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(at.Lng, 'f', -1, 64))
	q.Set("zoom", strconv.Itoa(c.opts.DetailZoom))
	q.Set("accept-language", c.opts.Language)

	sep := "?"
	if strings.Contains(c.opts.URL, "?") {
		sep = "&"
	}
	return c.opts.URL + sep + q.Encode()
}

// Country returns the last component of a comma separated address
func Country(address string) string {
	parts := strings.Split(address, ",")
	return strings.TrimSpace(parts[len(parts)-1])
}

package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/FACorreiaa/go-landmark-info/internal/types"
)

const (
	DefaultBaseURL = "https://nominatim.openstreetmap.org"

	// Nominatim's usage policy requires a contact-identifying user agent.
	DefaultUserAgent = "LandmarkInfoService/1.0 (contact@example.com)"
)

// Ensure implementation satisfies the interface
var _ Client = (*ClientImpl)(nil)

// Client reverse-geocodes a coordinate pair into country/city labels.
type Client interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (*types.Address, error)
}

type ClientImpl struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	logger     *slog.Logger
}

func NewClient(baseURL, userAgent string, timeout time.Duration, transport http.RoundTripper, logger *slog.Logger) *ClientImpl {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &ClientImpl{
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		baseURL:    baseURL,
		userAgent:  userAgent,
		logger:     logger,
	}
}

type reverseResponse struct {
	Address struct {
		Country *string `json:"country"`
		City    *string `json:"city"`
		Town    *string `json:"town"`
		Village *string `json:"village"`
	} `json:"address"`
}

func (c *ClientImpl) ReverseGeocode(ctx context.Context, lat, lon float64) (*types.Address, error) {
	ctx, span := otel.Tracer("GeocodeClient").Start(ctx, "ReverseGeocode")
	defer span.End()
	span.SetAttributes(
		attribute.Float64("geo.latitude", lat),
		attribute.Float64("geo.longitude", lon),
	)

	endpoint := fmt.Sprintf("%s/reverse?format=json&lat=%v&lon=%v", c.baseURL, lat, lon)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to build request")
		return nil, fmt.Errorf("reverse geocode request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "Geocoding failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Request failed")
		return nil, fmt.Errorf("reverse geocode fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.WarnContext(ctx, "Geocoding returned non-success", slog.Int("status", resp.StatusCode))
		span.SetStatus(codes.Error, "Non-success status")
		return nil, fmt.Errorf("reverse geocode: unexpected status %d", resp.StatusCode)
	}

	var payload reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Malformed payload")
		return nil, fmt.Errorf("reverse geocode decode: %w", err)
	}

	span.SetStatus(codes.Ok, "Coordinates resolved")
	return &types.Address{
		Country: nonEmpty(payload.Address.Country),
		// Priority order: city, then town, then village.
		City: firstPresent(payload.Address.City, payload.Address.Town, payload.Address.Village),
	}, nil
}

func firstPresent(candidates ...*string) *string {
	for _, c := range candidates {
		if v := nonEmpty(c); v != nil {
			return v
		}
	}
	return nil
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

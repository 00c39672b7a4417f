package wikipedia

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/FACorreiaa/go-landmark-info/internal/types"
)

const DefaultBaseURL = "https://en.wikipedia.org/api/rest_v1"

// Ensure implementation satisfies the interface
var _ Client = (*ClientImpl)(nil)

// Client fetches the short summary article for a landmark title. A fetch is
// attempted exactly once per request; callers degrade an error into an
// all-unknown summary rather than failing the enrichment.
type Client interface {
	FetchSummary(ctx context.Context, name string) (*types.WikipediaSummary, error)
}

type ClientImpl struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, transport http.RoundTripper, logger *slog.Logger) *ClientImpl {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &ClientImpl{
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		baseURL:    baseURL,
		logger:     logger,
	}
}

// summaryResponse mirrors the REST page-summary payload. Pointer fields keep
// "missing" distinguishable from "present but empty".
type summaryResponse struct {
	Extract      *string `json:"extract"`
	Description  *string `json:"description"`
	WikibaseItem *string `json:"wikibase_item"`
	ContentURLs  struct {
		Desktop struct {
			Page *string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

func (c *ClientImpl) FetchSummary(ctx context.Context, name string) (*types.WikipediaSummary, error) {
	ctx, span := otel.Tracer("WikipediaClient").Start(ctx, "FetchSummary")
	defer span.End()
	span.SetAttributes(attribute.String("landmark.name", name))

	endpoint := fmt.Sprintf("%s/page/summary/%s", c.baseURL, url.PathEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to build request")
		return nil, fmt.Errorf("wikipedia summary request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "Wikipedia query failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Request failed")
		return nil, fmt.Errorf("wikipedia summary fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("wikipedia summary: unexpected status %d", resp.StatusCode)
		c.logger.WarnContext(ctx, "Wikipedia query returned non-success", slog.Int("status", resp.StatusCode))
		span.SetStatus(codes.Error, "Non-success status")
		return nil, err
	}

	var payload summaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Malformed payload")
		return nil, fmt.Errorf("wikipedia summary decode: %w", err)
	}

	span.SetStatus(codes.Ok, "Summary fetched")
	return &types.WikipediaSummary{
		Extract:          nonEmpty(payload.Extract),
		ShortDescription: nonEmpty(payload.Description),
		WikibaseItem:     nonEmpty(payload.WikibaseItem),
		CanonicalURL:     nonEmpty(payload.ContentURLs.Desktop.Page),
	}, nil
}

// nonEmpty collapses a present-but-empty field to unknown so downstream
// merge logic only ever branches on nil.
func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

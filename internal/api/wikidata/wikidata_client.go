package wikidata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/FACorreiaa/go-landmark-info/internal/types"
)

const DefaultBaseURL = "https://www.wikidata.org/w/api.php"

// Wikidata property identifiers for the claims this service cares about.
const (
	propInception = "P571" // inception date
	propArchStyle = "P149" // architectural style (entity reference)
	propCountry   = "P17"  // country (entity reference)
	propWebsite   = "P856" // official website
)

// Ensure implementation satisfies the interface
var _ Client = (*ClientImpl)(nil)

// Client resolves a knowledge-graph entity into its structured claims.
//
// The protocol is two-phase: one request for the entity's claims,
// description and label, then exactly one batched follow-up request that
// resolves every referenced entity identifier to a display label. The
// batching bounds the round trips at two no matter how many references the
// claims carry.
type Client interface {
	FetchEntity(ctx context.Context, entityID string) (*types.WikidataEntity, error)
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

type entitiesResponse struct {
	Entities map[string]entityPayload `json:"entities"`
}

type entityPayload struct {
	Descriptions map[string]langValue `json:"descriptions"`
	Labels       map[string]langValue `json:"labels"`
	Claims       map[string][]claim   `json:"claims"`
}

type langValue struct {
	Value string `json:"value"`
}

// claim carries one property-value assertion. The datavalue is polymorphic
// (bare string, time object, or entity reference), so it stays raw until a
// typed accessor projects it.
type claim struct {
	Mainsnak struct {
		Datavalue struct {
			Value json.RawMessage `json:"value"`
		} `json:"datavalue"`
	} `json:"mainsnak"`
}

// StringValue returns the claim value when it is a bare JSON string, as with
// URL-valued properties.
func (c claim) StringValue() (string, bool) {
	var s string
	if err := json.Unmarshal(c.Mainsnak.Datavalue.Value, &s); err != nil || s == "" {
		return "", false
	}
	return s, true
}

// TimeValue returns the calendar date of a time-valued claim, with the
// leading plus sign and any time-of-day component stripped.
func (c claim) TimeValue() (string, bool) {
	var v struct {
		Time string `json:"time"`
	}
	if err := json.Unmarshal(c.Mainsnak.Datavalue.Value, &v); err != nil || v.Time == "" {
		return "", false
	}
	return projectDate(v.Time), true
}

// EntityID returns the referenced entity identifier when the claim value
// points at another entity.
func (c claim) EntityID() (string, bool) {
	var v struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(c.Mainsnak.Datavalue.Value, &v); err != nil || v.ID == "" {
		return "", false
	}
	return v.ID, true
}

// projectDate turns a Wikidata timestamp like "+1889-03-31T00:00:00Z" into
// "1889-03-31". A leading minus (BCE dates) is kept since stripping it would
// change the meaning.
func projectDate(raw string) string {
	raw = strings.TrimPrefix(raw, "+")
	if i := strings.IndexByte(raw, 'T'); i >= 0 {
		raw = raw[:i]
	}
	return raw
}

func (c *ClientImpl) FetchEntity(ctx context.Context, entityID string) (*types.WikidataEntity, error) {
	ctx, span := otel.Tracer("WikidataClient").Start(ctx, "FetchEntity")
	defer span.End()
	span.SetAttributes(attribute.String("wikidata.entity_id", entityID))

	// Phase 1: the entity itself.
	payload, err := c.getEntities(ctx, []string{entityID}, "claims|descriptions|labels")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Entity fetch failed")
		return nil, err
	}
	ent, ok := payload.Entities[entityID]
	if !ok {
		err := fmt.Errorf("wikidata: entity %s missing from response", entityID)
		span.SetStatus(codes.Error, "Entity missing")
		return nil, err
	}

	// Phase 2: one batched label lookup for every referenced entity.
	refs := collectEntityRefs(ent.Claims, propArchStyle, propCountry)
	labels, err := c.resolveLabels(ctx, refs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Label resolution failed")
		return nil, err
	}

	entity := &types.WikidataEntity{
		ArchitecturalStyles: labelSequence(ent.Claims[propArchStyle], labels),
		Countries:           labelSequence(ent.Claims[propCountry], labels),
	}
	if lv, ok := ent.Descriptions["en"]; ok && lv.Value != "" {
		entity.Description = &lv.Value
	}
	if cls := ent.Claims[propInception]; len(cls) > 0 {
		if date, ok := cls[0].TimeValue(); ok {
			entity.InceptionDate = &date
		}
	}
	if cls := ent.Claims[propWebsite]; len(cls) > 0 {
		if site, ok := cls[0].StringValue(); ok {
			entity.OfficialWebsite = &site
		}
	}

	span.SetStatus(codes.Ok, "Entity resolved")
	return entity, nil
}

// resolveLabels maps referenced entity IDs to their English labels in a
// single pipe-joined request. IDs missing from the response simply stay out
// of the map; callers fall back to the raw identifier.
func (c *ClientImpl) resolveLabels(ctx context.Context, ids []string) (map[string]string, error) {
	labels := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return labels, nil
	}

	payload, err := c.getEntities(ctx, ids, "labels")
	if err != nil {
		return nil, err
	}
	for id, ent := range payload.Entities {
		if lv, ok := ent.Labels["en"]; ok && lv.Value != "" {
			labels[id] = lv.Value
		}
	}
	return labels, nil
}

func (c *ClientImpl) getEntities(ctx context.Context, ids []string, props string) (*entitiesResponse, error) {
	q := url.Values{}
	q.Set("action", "wbgetentities")
	q.Set("ids", strings.Join(ids, "|"))
	q.Set("format", "json")
	q.Set("props", props)
	q.Set("languages", "en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("wikidata request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "Wikidata query failed", slog.Any("error", err))
		return nil, fmt.Errorf("wikidata fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.WarnContext(ctx, "Wikidata query returned non-success", slog.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("wikidata: unexpected status %d", resp.StatusCode)
	}

	var payload entitiesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("wikidata decode: %w", err)
	}
	return &payload, nil
}

// collectEntityRefs gathers the distinct referenced entity IDs across the
// given properties, preserving first-seen order.
func collectEntityRefs(claims map[string][]claim, props ...string) []string {
	var ids []string
	seen := make(map[string]struct{})
	for _, prop := range props {
		for _, cl := range claims[prop] {
			id, ok := cl.EntityID()
			if !ok {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// labelSequence projects one property's entity-reference claims into labels,
// de-duplicated and order-stable. An identifier without a resolved label
// maps to itself rather than being dropped.
func labelSequence(claims []claim, labels map[string]string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, cl := range claims {
		id, ok := cl.EntityID()
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if label, ok := labels[id]; ok {
			out = append(out, label)
		} else {
			out = append(out, id)
		}
	}
	return out
}

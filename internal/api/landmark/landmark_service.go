package landmark

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/go-landmark-info/app/observability/metrics"
	"github.com/FACorreiaa/go-landmark-info/internal/api/geocode"
	"github.com/FACorreiaa/go-landmark-info/internal/api/wikidata"
	"github.com/FACorreiaa/go-landmark-info/internal/api/wikipedia"
	"github.com/FACorreiaa/go-landmark-info/internal/types"
)

// NoDescription is the sentinel used when neither source yields a description.
const NoDescription = "No description available"

const wikidataPageURL = "https://www.wikidata.org/wiki/"

// Ensure implementation satisfies the interface
var _ Service = (*ServiceImpl)(nil)

// Service merges the three upstream sources into one enriched record.
//
// An upstream failure never fails the enrichment: each client error is
// degraded here into an all-unknown fragment, so the only error Enrich can
// return is the complete absence of a detection.
type Service interface {
	Enrich(ctx context.Context, detection *types.LandmarkDetection) (*types.EnrichedRecord, error)
}

type ServiceImpl struct {
	wikipedia wikipedia.Client
	wikidata  wikidata.Client
	geocoder  geocode.Client
	cache     *cache.Cache
	logger    *slog.Logger
}

func NewLandmarkService(wikipediaClient wikipedia.Client, wikidataClient wikidata.Client, geocoder geocode.Client, logger *slog.Logger) *ServiceImpl {
	// Matches the upstream cache window: identical detections within the
	// hour reuse the assembled record.
	recordCache := cache.New(1*time.Hour, 10*time.Minute)
	return &ServiceImpl{
		wikipedia: wikipediaClient,
		wikidata:  wikidataClient,
		geocoder:  geocoder,
		cache:     recordCache,
		logger:    logger,
	}
}

func (s *ServiceImpl) Enrich(ctx context.Context, detection *types.LandmarkDetection) (*types.EnrichedRecord, error) {
	ctx, span := otel.Tracer("LandmarkService").Start(ctx, "Enrich")
	defer span.End()

	if detection == nil || detection.Name == "" {
		err := fmt.Errorf("enrich: missing landmark detection")
		span.SetStatus(codes.Error, "Missing detection")
		return nil, err
	}

	span.SetAttributes(attribute.String("landmark.name", detection.Name))
	l := s.logger.With(slog.String("landmark", detection.Name))

	cacheKey := recordCacheKey(detection)
	if cached, found := s.cache.Get(cacheKey); found {
		if record, ok := cached.(*types.EnrichedRecord); ok {
			l.InfoContext(ctx, "Cache hit for enriched record", slog.String("cache_key", cacheKey))
			span.SetStatus(codes.Ok, "Served from cache")
			return record, nil
		}
	}

	// Fragments stay goroutine-owned until Wait; assembly is single-threaded.
	var (
		summary *types.WikipediaSummary
		entity  *types.WikidataEntity
		address *types.Address
	)

	g, gctx := errgroup.WithContext(ctx)

	// Branch 1: encyclopedia summary, then the knowledge-graph entity it
	// references. A summary without a knowledge-graph reference is an
	// expected branch, not a failure.
	g.Go(func() error {
		sum, err := s.wikipedia.FetchSummary(gctx, detection.Name)
		countUpstream(gctx, "wikipedia", err)
		if err != nil {
			l.WarnContext(gctx, "Wikipedia summary unavailable", slog.Any("error", err))
			return nil
		}
		summary = sum
		if summary.WikibaseItem == nil {
			return nil
		}
		ent, err := s.wikidata.FetchEntity(gctx, *summary.WikibaseItem)
		countUpstream(gctx, "wikidata", err)
		if err != nil {
			l.WarnContext(gctx, "Wikidata entity unavailable",
				slog.String("entity_id", *summary.WikibaseItem),
				slog.Any("error", err),
			)
			return nil
		}
		entity = ent
		return nil
	})

	// Branch 2: reverse-geocode the first candidate coordinate, if any.
	if len(detection.CandidateLocations) > 0 {
		coord := detection.CandidateLocations[0]
		g.Go(func() error {
			addr, err := s.geocoder.ReverseGeocode(gctx, coord.Latitude, coord.Longitude)
			countUpstream(gctx, "nominatim", err)
			if err != nil {
				l.WarnContext(gctx, "Reverse geocoding unavailable", slog.Any("error", err))
				return nil
			}
			address = addr
			return nil
		})
	}

	// Branches absorb their own failures, so Wait cannot return an error.
	_ = g.Wait()

	record := assemble(detection, summary, entity, address)
	s.cache.Set(cacheKey, record, cache.DefaultExpiration)

	span.SetStatus(codes.Ok, "Record assembled")
	return record, nil
}

// assemble merges the fragments under the precedence policy: the structured
// knowledge-graph description outranks the free-text extract, which outranks
// the sentinel.
func assemble(detection *types.LandmarkDetection, summary *types.WikipediaSummary, entity *types.WikidataEntity, address *types.Address) *types.EnrichedRecord {
	record := &types.EnrichedRecord{
		Name:        detection.Name,
		Description: NoDescription,
	}

	switch {
	case entity != nil && entity.Description != nil:
		record.Description = *entity.Description
	case summary != nil && summary.Extract != nil:
		record.Description = *summary.Extract
	}

	if summary != nil {
		record.HistoricalContext.Significance = summary.ShortDescription
		record.References.Wikipedia = summary.CanonicalURL
		if summary.WikibaseItem != nil {
			ref := wikidataPageURL + *summary.WikibaseItem
			record.References.Wikidata = &ref
		}
	}

	if entity != nil {
		record.HistoricalContext.InceptionDate = entity.InceptionDate
		record.HistoricalContext.ArchitecturalStyles = entity.ArchitecturalStyles
		record.OfficialWebsite = entity.OfficialWebsite
	}

	if len(detection.CandidateLocations) > 0 {
		coord := detection.CandidateLocations[0]
		location := &types.LocationInfo{
			Coordinates: coord,
			MapsLink:    MapsLink(coord),
		}
		if address != nil {
			location.Country = address.Country
			location.City = address.City
		}
		record.Location = location
		record.References.GoogleMaps = &location.MapsLink
	}

	return record
}

// MapsLink derives the Google Maps link for a coordinate pair. It depends
// only on the detection input, never on geocoding success.
func MapsLink(c types.Coordinates) string {
	return fmt.Sprintf("https://maps.google.com/?q=%v,%v", c.Latitude, c.Longitude)
}

func countUpstream(ctx context.Context, source string, err error) {
	m := metrics.Get()
	attrs := metric.WithAttributes(attribute.String("source", source))
	m.UpstreamRequestsTotal.Add(ctx, 1, attrs)
	if err != nil {
		m.UpstreamErrorsTotal.Add(ctx, 1, attrs)
	}
}

func recordCacheKey(d *types.LandmarkDetection) string {
	if len(d.CandidateLocations) == 0 {
		return fmt.Sprintf("landmark:%s", d.Name)
	}
	c := d.CandidateLocations[0]
	return fmt.Sprintf("landmark:%s:%v:%v", d.Name, c.Latitude, c.Longitude)
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/FACorreiaa/go-landmark-info/config"
	"github.com/FACorreiaa/go-landmark-info/internal/api/geocode"
	"github.com/FACorreiaa/go-landmark-info/internal/api/httpcache"
	"github.com/FACorreiaa/go-landmark-info/internal/api/landmark"
	"github.com/FACorreiaa/go-landmark-info/internal/api/wikidata"
	"github.com/FACorreiaa/go-landmark-info/internal/api/wikipedia"
	"github.com/FACorreiaa/go-landmark-info/internal/types"
)

var (
	name = flag.String("name", "", "landmark name to enrich, e.g. \"Eiffel Tower\"")
	lat  = flag.Float64("lat", 0, "candidate latitude")
	lon  = flag.Float64("lon", 0, "candidate longitude")
)

// Enriches a single landmark by name from the command line, without the HTTP
// server or the vision step. Useful for poking at the upstream sources.
func main() {
	flag.Parse()
	ctx := context.Background()

	if *name == "" {
		fmt.Println("Usage: go run scripts/enrich.go -name \"Eiffel Tower\" [-lat 48.8584 -lon 2.2945]")
		os.Exit(1)
	}

	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	transport := httpcache.New(cfg.Cache.TTL, cfg.Cache.Cleanup)
	wikipediaClient := wikipedia.NewClient(cfg.Upstreams.Wikipedia.BaseURL, cfg.Upstreams.Wikipedia.Timeout, transport, logger)
	wikidataClient := wikidata.NewClient(cfg.Upstreams.Wikidata.BaseURL, cfg.Upstreams.Wikidata.Timeout, transport, logger)
	geocodeClient := geocode.NewClient(cfg.Upstreams.Nominatim.BaseURL, cfg.Upstreams.Nominatim.UserAgent, cfg.Upstreams.Nominatim.Timeout, transport, logger)

	service := landmark.NewLandmarkService(wikipediaClient, wikidataClient, geocodeClient, logger)

	detection := &types.LandmarkDetection{Name: *name}
	if *lat != 0 || *lon != 0 {
		detection.CandidateLocations = []types.Coordinates{{Latitude: *lat, Longitude: *lon}}
	}

	record, err := service.Enrich(ctx, detection)
	if err != nil {
		logger.Error("Enrichment failed", slog.Any("error", err))
		os.Exit(1)
	}

	out, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal record: %v", err)
	}
	fmt.Println(string(out))
}

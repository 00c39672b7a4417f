package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/genai"

	"github.com/FACorreiaa/go-landmark-info/internal/types"
)

// ErrNoLandmark is returned when the model sees no recognizable landmark in
// the image. This is a defined outcome, not a fault.
var ErrNoLandmark = errors.New("no landmarks detected")

// Detector identifies a named landmark and candidate coordinates from raw
// image bytes. The enrichment pipeline treats it as an external collaborator
// and only depends on this interface.
type Detector interface {
	DetectLandmark(ctx context.Context, image []byte, mimeType string) (*types.LandmarkDetection, error)
}

// Ensure implementation satisfies the interface
var _ Detector = (*GeminiDetector)(nil)

// GeminiDetector asks a Gemini vision model for the landmark in an image.
type GeminiDetector struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

const detectionPrompt = `Identify the physical landmark shown in this image.
Respond with JSON only, shaped as:
{"name": "<landmark name>", "locations": [{"latitude": <deg>, "longitude": <deg>}]}
Order locations best guess first. If no recognizable landmark is visible,
respond with {"name": "", "locations": []}.`

func NewGeminiDetector(ctx context.Context, model string, logger *slog.Logger) (*GeminiDetector, error) {
	apiKey := os.Getenv("GOOGLE_GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_GEMINI_API_KEY environment variable is not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}

	return &GeminiDetector{
		client: client,
		model:  model,
		logger: logger,
	}, nil
}

func (d *GeminiDetector) DetectLandmark(ctx context.Context, image []byte, mimeType string) (*types.LandmarkDetection, error) {
	ctx, span := otel.Tracer("LandmarkDetector").Start(ctx, "DetectLandmark")
	defer span.End()
	span.SetAttributes(
		attribute.Int("image.bytes", len(image)),
		attribute.String("image.mime_type", mimeType),
	)

	parts := []*genai.Part{
		genai.NewPartFromText(detectionPrompt),
		genai.NewPartFromBytes(image, mimeType),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	result, err := d.client.Models.GenerateContent(ctx, d.model, contents, &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.1),
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		d.logger.ErrorContext(ctx, "Landmark detection call failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Model call failed")
		return nil, fmt.Errorf("landmark detection: %w", err)
	}

	detection, err := parseDetection([]byte(result.Text()))
	if err != nil {
		if errors.Is(err, ErrNoLandmark) {
			span.SetStatus(codes.Ok, "No landmark in image")
			return nil, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Unparseable model response")
		return nil, err
	}

	d.logger.InfoContext(ctx, "Landmark detected",
		slog.String("name", detection.Name),
		slog.Int("candidate_locations", len(detection.CandidateLocations)),
	)
	span.SetStatus(codes.Ok, "Landmark detected")
	return detection, nil
}

// parseDetection decodes the model's JSON answer into a detection. An empty
// name means the model saw nothing it could identify.
func parseDetection(raw []byte) (*types.LandmarkDetection, error) {
	var payload struct {
		Name      string `json:"name"`
		Locations []struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"locations"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("landmark detection decode: %w", err)
	}
	if payload.Name == "" {
		return nil, ErrNoLandmark
	}

	detection := &types.LandmarkDetection{Name: payload.Name}
	for _, loc := range payload.Locations {
		detection.CandidateLocations = append(detection.CandidateLocations, types.Coordinates{
			Latitude:  loc.Latitude,
			Longitude: loc.Longitude,
		})
	}
	return detection, nil
}

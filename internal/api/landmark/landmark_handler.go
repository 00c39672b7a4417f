package landmark

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-landmark-info/app/observability/metrics"
	api "github.com/FACorreiaa/go-landmark-info/internal/api"
	"github.com/FACorreiaa/go-landmark-info/internal/api/vision"
	"github.com/FACorreiaa/go-landmark-info/internal/types"
)

type Handler struct {
	logger        *slog.Logger
	service       Service
	detector      vision.Detector
	maxImageBytes int64
}

// NewLandmarkHandler wires the enrichment service and the detector. The
// detector may be nil when vision credentials are absent; the analyze
// endpoint then reports itself unavailable while /enrich keeps working.
func NewLandmarkHandler(service Service, detector vision.Detector, maxImageBytes int64, logger *slog.Logger) *Handler {
	return &Handler{
		logger:        logger,
		service:       service,
		detector:      detector,
		maxImageBytes: maxImageBytes,
	}
}

// AnalyzeImage handles POST /landmarks/analyze - multipart image upload,
// detection, enrichment.
func (h *Handler) AnalyzeImage(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("LandmarkHandler").Start(r.Context(), "AnalyzeImage")
	defer span.End()
	start := time.Now()

	analysisID := uuid.New().String()
	w.Header().Set("X-Analysis-ID", analysisID)
	l := h.logger.With(
		slog.String("method", "AnalyzeImage"),
		slog.String("analysis_id", analysisID),
	)

	if h.detector == nil {
		l.WarnContext(ctx, "Landmark detector is not configured")
		span.SetStatus(codes.Error, "Detector unavailable")
		api.ErrorResponse(w, r, http.StatusServiceUnavailable, "Landmark detection is unavailable")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxImageBytes)
	file, header, err := r.FormFile("image")
	if err != nil {
		l.WarnContext(ctx, "No image file provided", slog.Any("error", err))
		span.SetStatus(codes.Error, "Missing image")
		countEnrichment(ctx, "bad_request", start)
		api.ErrorResponse(w, r, http.StatusBadRequest, "No image file provided")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		l.ErrorContext(ctx, "Failed to read uploaded image", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Image read failed")
		countEnrichment(ctx, "error", start)
		api.ErrorResponse(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	span.SetAttributes(
		attribute.Int("image.bytes", len(data)),
		attribute.String("image.mime_type", mimeType),
	)

	detection, err := h.detector.DetectLandmark(ctx, data, mimeType)
	if err != nil {
		if errors.Is(err, vision.ErrNoLandmark) {
			l.InfoContext(ctx, "No landmarks detected in image")
			span.SetStatus(codes.Ok, "No landmark")
			countEnrichment(ctx, "not_found", start)
			api.ErrorResponse(w, r, http.StatusNotFound, "No landmarks detected")
			return
		}
		l.ErrorContext(ctx, "Landmark detection failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Detection failed")
		countEnrichment(ctx, "error", start)
		api.ErrorResponse(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	h.respondWithRecord(ctx, w, r, l, span, detection, start)
}

// EnrichDetection handles POST /landmarks/enrich - a JSON detection body,
// bypassing the vision step entirely.
func (h *Handler) EnrichDetection(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("LandmarkHandler").Start(r.Context(), "EnrichDetection")
	defer span.End()
	start := time.Now()

	l := h.logger.With(slog.String("method", "EnrichDetection"))

	var detection types.LandmarkDetection
	if err := api.DecodeJSONBody(w, r, &detection); err != nil {
		l.WarnContext(ctx, "Invalid detection payload", slog.Any("error", err))
		span.SetStatus(codes.Error, "Invalid payload")
		countEnrichment(ctx, "bad_request", start)
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if detection.Name == "" {
		l.WarnContext(ctx, "Detection payload missing name")
		span.SetStatus(codes.Error, "Missing name")
		countEnrichment(ctx, "bad_request", start)
		api.ErrorResponse(w, r, http.StatusBadRequest, "name is required")
		return
	}

	h.respondWithRecord(ctx, w, r, l, span, &detection, start)
}

func (h *Handler) respondWithRecord(ctx context.Context, w http.ResponseWriter, r *http.Request, l *slog.Logger, span trace.Span, detection *types.LandmarkDetection, start time.Time) {
	record, err := h.service.Enrich(ctx, detection)
	if err != nil {
		l.ErrorContext(ctx, "Enrichment failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Enrichment failed")
		countEnrichment(ctx, "error", start)
		api.ErrorResponse(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	l.InfoContext(ctx, "Landmark enriched",
		slog.String("landmark", record.Name),
		slog.Duration("latency", time.Since(start)),
	)
	span.SetStatus(codes.Ok, "Record returned")
	countEnrichment(ctx, "ok", start)
	api.WriteJSONResponse(w, r, http.StatusOK, record)
}

func countEnrichment(ctx context.Context, outcome string, start time.Time) {
	m := metrics.Get()
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.EnrichmentRequestsTotal.Add(ctx, 1, attrs)
	m.EnrichmentDurationSeconds.Record(ctx, time.Since(start).Seconds(), attrs)
}

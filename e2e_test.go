package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/FACorreiaa/go-landmark-info/internal/api/geocode"
	"github.com/FACorreiaa/go-landmark-info/internal/api/httpcache"
	"github.com/FACorreiaa/go-landmark-info/internal/api/landmark"
	"github.com/FACorreiaa/go-landmark-info/internal/api/wikidata"
	"github.com/FACorreiaa/go-landmark-info/internal/api/wikipedia"
	api "github.com/FACorreiaa/go-landmark-info/internal/router"
	"github.com/FACorreiaa/go-landmark-info/internal/types"
)

// E2ETestSuite exercises the whole enrichment pipeline against stubbed
// upstream knowledge sources, with only the vision step replaced.
type E2ETestSuite struct {
	suite.Suite
	wikiStub      *httptest.Server
	wikidataStub  *httptest.Server
	nominatimStub *httptest.Server
	server        *httptest.Server
	client        *http.Client
	detector      *scriptedDetector

	nominatimDown bool
}

// scriptedDetector lets each test choose the detection outcome.
type scriptedDetector struct {
	detection *types.LandmarkDetection
	err       error
}

func (s *scriptedDetector) DetectLandmark(ctx context.Context, image []byte, mimeType string) (*types.LandmarkDetection, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.detection, nil
}

func (suite *E2ETestSuite) SetupSuite() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	suite.wikiStub = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.EscapedPath(), "/Eiffel%20Tower"):
			w.Write([]byte(`{
				"extract": "The Eiffel Tower is a wrought-iron lattice tower on the Champ de Mars in Paris.",
				"description": "Tower in Paris, France",
				"wikibase_item": "Q243",
				"content_urls": {"desktop": {"page": "https://en.wikipedia.org/wiki/Eiffel_Tower"}}
			}`))
		case strings.HasSuffix(r.URL.EscapedPath(), "/Local%20Hill"):
			// No structured entity behind this page.
			w.Write([]byte(`{"extract": "A small local hill with a viewpoint."}`))
		default:
			http.Error(w, `{"title": "Not found"}`, http.StatusNotFound)
		}
	}))

	suite.wikidataStub = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("props") == "labels" {
			w.Write([]byte(`{"entities": {
				"Q54111": {"labels": {"en": {"value": "Structural expressionism"}}},
				"Q142": {"labels": {"en": {"value": "France"}}}
			}}`))
			return
		}
		w.Write([]byte(`{"entities": {"Q243": {
			"descriptions": {"en": {"value": "tower in Paris, France"}},
			"labels": {"en": {"value": "Eiffel Tower"}},
			"claims": {
				"P571": [{"mainsnak": {"datavalue": {"value": {"time": "+1889-03-31T00:00:00Z"}}}}],
				"P149": [{"mainsnak": {"datavalue": {"value": {"id": "Q54111"}}}}],
				"P17": [{"mainsnak": {"datavalue": {"value": {"id": "Q142"}}}}],
				"P856": [{"mainsnak": {"datavalue": {"value": "https://www.toureiffel.paris"}}}]
			}
		}}}`))
	}))

	suite.nominatimStub = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if suite.nominatimDown {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"address": {"country": "France", "city": "Paris"}}`))
	}))

	transport := httpcache.New(time.Minute, time.Minute)
	wikiClient := wikipedia.NewClient(suite.wikiStub.URL, 5*time.Second, transport, logger)
	wikidataClient := wikidata.NewClient(suite.wikidataStub.URL, 5*time.Second, transport, logger)
	// No cached transport for the geocoder: tests toggle its availability.
	geocodeClient := geocode.NewClient(suite.nominatimStub.URL, "LandmarkInfoService/1.0 (e2e@example.com)", 5*time.Second, nil, logger)

	suite.detector = &scriptedDetector{}
	service := landmark.NewLandmarkService(wikiClient, wikidataClient, geocodeClient, logger)
	handler := landmark.NewLandmarkHandler(service, suite.detector, 10<<20, logger)

	suite.server = httptest.NewServer(api.SetupRouter(&api.Config{LandmarkHandler: handler}))
	suite.client = &http.Client{Timeout: 30 * time.Second}
}

func (suite *E2ETestSuite) TearDownSuite() {
	suite.server.Close()
	suite.wikiStub.Close()
	suite.wikidataStub.Close()
	suite.nominatimStub.Close()
}

func (suite *E2ETestSuite) postImage() *http.Response {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", "landmark.jpg")
	require.NoError(suite.T(), err)
	part.Write([]byte("fake-jpeg-bytes"))
	require.NoError(suite.T(), writer.Close())

	req, err := http.NewRequest(http.MethodPost, suite.server.URL+"/api/v1/landmarks/analyze", body)
	require.NoError(suite.T(), err)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := suite.client.Do(req)
	require.NoError(suite.T(), err)
	return resp
}

func (suite *E2ETestSuite) decodeRecord(resp *http.Response) (types.EnrichedRecord, map[string]interface{}) {
	defer resp.Body.Close()
	var raw map[string]interface{}
	var record types.EnrichedRecord
	buf := new(bytes.Buffer)
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), json.Unmarshal(buf.Bytes(), &record))
	require.NoError(suite.T(), json.Unmarshal(buf.Bytes(), &raw))
	return record, raw
}

func (suite *E2ETestSuite) TestAnalyzeAllSourcesHealthy() {
	suite.nominatimDown = false
	suite.detector.err = nil
	suite.detector.detection = &types.LandmarkDetection{
		Name:               "Eiffel Tower",
		CandidateLocations: []types.Coordinates{{Latitude: 48.8584, Longitude: 2.2945}},
	}

	resp := suite.postImage()
	suite.Equal(http.StatusOK, resp.StatusCode)
	suite.NotEmpty(resp.Header.Get("X-Analysis-ID"))

	record, _ := suite.decodeRecord(resp)
	suite.Equal("Eiffel Tower", record.Name)
	suite.Equal("tower in Paris, France", record.Description)
	suite.Require().NotNil(record.HistoricalContext.InceptionDate)
	suite.Equal("1889-03-31", *record.HistoricalContext.InceptionDate)
	suite.Equal([]string{"Structural expressionism"}, record.HistoricalContext.ArchitecturalStyles)
	suite.Require().NotNil(record.Location)
	suite.Equal(48.8584, record.Location.Coordinates.Latitude)
	suite.Equal(2.2945, record.Location.Coordinates.Longitude)
	suite.Equal("https://maps.google.com/?q=48.8584,2.2945", record.Location.MapsLink)
	suite.Require().NotNil(record.Location.Country)
	suite.Equal("France", *record.Location.Country)
	suite.Require().NotNil(record.References.Wikidata)
	suite.Equal("https://www.wikidata.org/wiki/Q243", *record.References.Wikidata)
}

func (suite *E2ETestSuite) TestEnrichWithoutKnowledgeGraphEntity() {
	suite.nominatimDown = false

	payload := `{"name": "Local Hill"}`
	resp, err := suite.client.Post(suite.server.URL+"/api/v1/landmarks/enrich", "application/json", strings.NewReader(payload))
	suite.Require().NoError(err)
	suite.Equal(http.StatusOK, resp.StatusCode)

	record, raw := suite.decodeRecord(resp)
	suite.Equal("A small local hill with a viewpoint.", record.Description)
	suite.Nil(record.HistoricalContext.InceptionDate)
	suite.Empty(record.HistoricalContext.ArchitecturalStyles)
	suite.Nil(record.OfficialWebsite)

	refs := raw["references"].(map[string]interface{})
	suite.NotContains(refs, "wikidata")
	suite.NotContains(raw, "location")
}

func (suite *E2ETestSuite) TestAnalyzeGeocoderUnavailable() {
	suite.nominatimDown = true
	defer func() { suite.nominatimDown = false }()

	suite.detector.err = nil
	suite.detector.detection = &types.LandmarkDetection{
		// Distinct name so the record cache from the healthy test is not hit.
		Name:               "Arc de Triomphe",
		CandidateLocations: []types.Coordinates{{Latitude: 48.8738, Longitude: 2.295}},
	}

	resp := suite.postImage()
	suite.Equal(http.StatusOK, resp.StatusCode)

	record, raw := suite.decodeRecord(resp)
	suite.Require().NotNil(record.Location)
	suite.Equal(48.8738, record.Location.Coordinates.Latitude)
	suite.Equal("https://maps.google.com/?q=48.8738,2.295", record.Location.MapsLink)

	location := raw["location"].(map[string]interface{})
	suite.NotContains(location, "country")
	suite.NotContains(location, "city")
}

func (suite *E2ETestSuite) TestAnalyzeNoImage() {
	resp, err := suite.client.Post(suite.server.URL+"/api/v1/landmarks/analyze", "application/json", strings.NewReader("{}"))
	suite.Require().NoError(err)
	defer resp.Body.Close()
	suite.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (suite *E2ETestSuite) TestPing() {
	resp, err := suite.client.Get(suite.server.URL + "/ping")
	suite.Require().NoError(err)
	defer resp.Body.Close()
	suite.Equal(http.StatusOK, resp.StatusCode)
}

func TestE2ETestSuite(t *testing.T) {
	suite.Run(t, new(E2ETestSuite))
}

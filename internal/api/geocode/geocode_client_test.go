package geocode

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestReverseGeocodeSendsIdentifyingUserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "48.8584", r.URL.Query().Get("lat"))
		assert.Equal(t, "2.2945", r.URL.Query().Get("lon"))
		w.Write([]byte(`{"address": {"country": "France", "city": "Paris"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "LandmarkInfoService/1.0 (ops@example.org)", 5*time.Second, nil, newTestLogger())
	addr, err := client.ReverseGeocode(context.Background(), 48.8584, 2.2945)
	require.NoError(t, err)

	assert.Equal(t, "LandmarkInfoService/1.0 (ops@example.org)", gotUA)
	require.NotNil(t, addr.Country)
	assert.Equal(t, "France", *addr.Country)
	require.NotNil(t, addr.City)
	assert.Equal(t, "Paris", *addr.City)
}

func TestReverseGeocodeCityPriority(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"city wins", `{"address": {"city": "Paris", "town": "Montmartre", "village": "Hamlet"}}`, "Paris"},
		{"town next", `{"address": {"town": "Giverny", "village": "Hamlet"}}`, "Giverny"},
		{"village last", `{"address": {"village": "Gordes"}}`, "Gordes"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			}))
			defer server.Close()

			client := NewClient(server.URL, "", 5*time.Second, nil, newTestLogger())
			addr, err := client.ReverseGeocode(context.Background(), 1, 2)
			require.NoError(t, err)
			require.NotNil(t, addr.City)
			assert.Equal(t, tc.want, *addr.City)
		})
	}
}

func TestReverseGeocodeNoSettlement(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"address": {"country": "France"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 5*time.Second, nil, newTestLogger())
	addr, err := client.ReverseGeocode(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Nil(t, addr.City)
	require.NotNil(t, addr.Country)
}

func TestReverseGeocodeServiceUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 5*time.Second, nil, newTestLogger())
	addr, err := client.ReverseGeocode(context.Background(), 1, 2)
	assert.Error(t, err)
	assert.Nil(t, addr)
}

func TestReverseGeocodeMalformedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 5*time.Second, nil, newTestLogger())
	_, err := client.ReverseGeocode(context.Background(), 1, 2)
	assert.Error(t, err)
}

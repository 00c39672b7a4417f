package httpcache

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httputil"
	"time"

	"github.com/patrickmn/go-cache"
)

// Transport is an http.RoundTripper that caches successful GET responses in
// memory, keyed by the full request URL. It sits in front of each upstream
// client's transport so repeated lookups for the same landmark do not hit
// the public APIs again within the TTL. Correctness never depends on it:
// removing the transport only costs extra round trips.
type Transport struct {
	Base  http.RoundTripper
	TTL   time.Duration
	OnHit func() // optional hook, used for the cache-hit metric

	store *cache.Cache
}

func New(ttl, cleanup time.Duration) *Transport {
	return &Transport{
		TTL:   ttl,
		store: cache.New(ttl, cleanup),
	}
}

// Key derives the cache key for a request URL.
func Key(url string) string {
	sum := sha256.Sum256([]byte(url))
	return "landmarkinfo:v1:" + hex.EncodeToString(sum[:])
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return t.base().RoundTrip(req)
	}

	key := Key(req.URL.String())
	if raw, found := t.store.Get(key); found {
		if dump, ok := raw.([]byte); ok {
			resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(dump)), req)
			if err == nil {
				if t.OnHit != nil {
					t.OnHit()
				}
				return resp, nil
			}
			// Unreadable entry, evict and fall through to the network.
			t.store.Delete(key)
		}
	}

	resp, err := t.base().RoundTrip(req)
	if err != nil {
		return nil, err
	}

	// Only 200s are worth replaying; errors should stay fresh.
	if resp.StatusCode == http.StatusOK {
		dump, dumpErr := httputil.DumpResponse(resp, true)
		if dumpErr == nil {
			t.store.Set(key, dump, cache.DefaultExpiration)
			resp.Body.Close()
			return http.ReadResponse(bufio.NewReader(bytes.NewReader(dump)), req)
		}
	}
	return resp, nil
}

package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func keyGenerator() *rapid.Generator[string] {
	return rapid.StringMatching(`[a-z0-9.:]{4,24}`)
}

// Near-zero refill so the burst is the whole budget during a test.
func testLimiter_BurstIsExact(t *rapid.T) {
	burst := rapid.IntRange(1, 50).Draw(t, "burst")
	l := New(Config{RPS: 0.001, Burst: burst, CleanupInterval: time.Hour})
	defer l.Stop()

	key := keyGenerator().Draw(t, "key")
	for i := 0; i < burst; i++ {
		if !l.Allow(key) {
			t.Fatalf("request %d of burst %d was rejected", i+1, burst)
		}
	}
	if l.Allow(key) {
		t.Fatalf("request past burst %d was allowed", burst)
	}
}

func TestLimiter_BurstIsExact(t *testing.T) {
	rapid.Check(t, testLimiter_BurstIsExact)
}

func testLimiter_KeysAreIndependent(t *rapid.T) {
	l := New(Config{RPS: 0.001, Burst: 1, CleanupInterval: time.Hour})
	defer l.Stop()

	keys := rapid.SliceOfNDistinct(keyGenerator(), 2, 10, rapid.ID[string]).Draw(t, "keys")
	for _, key := range keys {
		if !l.Allow(key) {
			t.Fatalf("first request for %q was rejected", key)
		}
	}
	for _, key := range keys {
		if l.Allow(key) {
			t.Fatalf("second request for %q was allowed", key)
		}
	}
	if l.Len() != len(keys) {
		t.Fatalf("Len() = %d, want %d", l.Len(), len(keys))
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	rapid.Check(t, testLimiter_KeysAreIndependent)
}

func TestLimiter_CleanupDropsIdleKeys(t *testing.T) {
	l := New(Config{RPS: 1, Burst: 1, CleanupInterval: time.Millisecond})
	defer l.Stop()
	l.Allow("a")
	l.Allow("b")
	time.Sleep(5 * time.Millisecond)
	l.Cleanup()
	require.Equal(t, 0, l.Len())
}

func TestLimiter_ConcurrentAllowNeverExceedsBurst(t *testing.T) {
	const burst = 25
	l := New(Config{RPS: 0.001, Burst: burst, CleanupInterval: time.Hour})
	defer l.Stop()

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("shared") {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int64(burst), allowed.Load())
}

func TestLimiter_StopIsIdempotent(t *testing.T) {
	l := New(Config{RPS: 1, Burst: 1})
	l.Stop()
	l.Stop()
}

func TestMiddleware(t *testing.T) {
	l := New(Config{RPS: 0.001, Burst: 2, CleanupInterval: time.Hour})
	defer l.Stop()
	h := Middleware(l, ClientIP)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/signup", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusNoContent, do("10.0.0.1:1111").Code)
	require.Equal(t, http.StatusNoContent, do("10.0.0.1:2222").Code, "port is not part of the key")
	rec := do("10.0.0.1:3333")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "1", rec.Header().Get("Retry-After"))
	require.Equal(t, http.StatusNoContent, do("10.0.0.2:1111").Code)

	passthrough := Middleware(l, func(*http.Request) string { return "" })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		passthrough.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
	}
}

package proxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgegate-io/edgegate/internal/balancer"
	"github.com/edgegate-io/edgegate/internal/cache"
	"github.com/edgegate-io/edgegate/internal/config"
	"github.com/edgegate-io/edgegate/internal/health"
	"github.com/edgegate-io/edgegate/internal/logging"
	"github.com/edgegate-io/edgegate/internal/origin"
	"github.com/edgegate-io/edgegate/internal/retry"
)

// passingProbe marks every origin healthy without touching the network.
type passingProbe struct{}

func (passingProbe) Probe(ctx context.Context, target string) (health.ProbeResult, error) {
	return health.ProbeResult{StatusCode: http.StatusOK, Elapsed: 5 * time.Millisecond}, nil
}

type fixture struct {
	handler *Handler
	engine  *balancer.Engine
	prober  *health.Prober
}

// newFixture builds a handler over the given origin URLs. When probed is
// true the origins start with a passing probe round already recorded.
func newFixture(t *testing.T, urls []string, probed, failOpen, withCache bool) *fixture {
	t.Helper()
	logger := logging.NewNop()

	parsed := make([]*url.URL, len(urls))
	for i, raw := range urls {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		parsed[i] = u
	}
	origins := make([]*origin.Origin, len(parsed))
	for i, u := range parsed {
		origins[i] = origin.New(u, 1)
	}
	registry, err := origin.NewRegistry(origins)
	require.NoError(t, err)

	prober := health.NewProber(registry, passingProbe{}, config.HealthCheckConfig{
		Enabled:             true,
		Interval:            30,
		Timeout:             5,
		ResponseThresholdMS: 1000,
		Path:                "/health",
	}, nil, logger)
	if probed {
		prober.CheckAllOrigins(context.Background())
	}

	engine, err := balancer.NewEngine(registry, prober, balancer.Options{
		Algorithm: "round-robin",
		FailOpen:  failOpen,
		MaxHops:   3,
		Seed:      1,
	}, nil, logger)
	require.NoError(t, err)

	var c *cache.Cache
	if withCache {
		c = cache.New(cache.NewMemoryStore(), cache.DefaultPolicy(), nil, logger)
	}
	policy := retry.NewPolicy(3, 50, logger)
	handler := NewHandler(engine, prober, c, policy, 5*time.Second, nil, logger)

	return &fixture{handler: handler, engine: engine, prober: prober}
}

func TestForwardsToOrigin(t *testing.T) {
	var gotForwardedFor atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotForwardedFor.Store(r.Header.Get("X-Forwarded-For"))
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hello from origin"))
	}))
	defer srv.Close()

	f := newFixture(t, []string{srv.URL}, true, true, true)

	req := httptest.NewRequest(http.MethodGet, "http://edge.local/page", nil)
	req.RemoteAddr = "203.0.113.9:4321"
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello from origin", rec.Body.String())
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Contains(t, gotForwardedFor.Load().(string), "203.0.113.9")
}

func TestCacheHitSkipsOrigin(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Cache-Control", "max-age=60")
		_, _ = w.Write([]byte("<html>cached</html>"))
	}))
	defer srv.Close()

	f := newFixture(t, []string{srv.URL}, true, true, true)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "http://edge.local/page", nil)
		req.Header.Set("X-Edge-Colo", "SFO")
		req.Header.Set("X-Edge-Country", "us")
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		if i == 0 {
			assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
		} else {
			assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
			assert.Equal(t, "<html>cached</html>", rec.Body.String())
		}
	}
	assert.Equal(t, int64(1), atomic.LoadInt64(&hits))
}

func TestCacheVariesByCountry(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.Header().Set("Cache-Control", "max-age=60")
		_, _ = w.Write([]byte("body"))
	}))
	defer srv.Close()

	f := newFixture(t, []string{srv.URL}, true, true, true)

	for _, country := range []string{"US", "DE"} {
		req := httptest.NewRequest(http.MethodGet, "http://edge.local/page", nil)
		req.Header.Set("X-Edge-Country", country)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, int64(2), atomic.LoadInt64(&hits), "distinct countries must not share entries")
}

func TestFailoverToSecondOrigin(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("recovered"))
	}))
	defer good.Close()

	f := newFixture(t, []string{bad.URL, good.URL}, true, true, false)

	req := httptest.NewRequest(http.MethodGet, "http://edge.local/", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "recovered", rec.Body.String())
}

func TestFailoverToUnreachableOrigin(t *testing.T) {
	// A server that is shut down still has a routable URL.
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := dead.URL
	dead.Close()

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("alive"))
	}))
	defer good.Close()

	f := newFixture(t, []string{deadURL, good.URL}, true, true, false)

	req := httptest.NewRequest(http.MethodGet, "http://edge.local/", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alive", rec.Body.String())
}

func TestLatencyChargedPerAttempt(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer slow.Close()
	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("fast"))
	}))
	defer fast.Close()

	f := newFixture(t, []string{slow.URL, fast.URL}, true, true, false)

	req := httptest.NewRequest(http.MethodGet, "http://edge.local/", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// The rescuing origin must only be charged for its own forward, not
	// for the time burned on the failed one.
	for _, o := range f.engine.Stats().Origins {
		if o.URL == fast.URL {
			assert.Less(t, o.AvgLatencyMS, 100.0,
				"fast origin charged %.1fms, includes the slow origin's attempt", o.AvgLatencyMS)
		}
	}
}

func TestPostNeverFailsOver(t *testing.T) {
	var goodHits int64
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&goodHits, 1)
		_, _ = w.Write([]byte("ok"))
	}))
	defer good.Close()

	f := newFixture(t, []string{bad.URL, good.URL}, true, true, false)

	req := httptest.NewRequest(http.MethodPost, "http://edge.local/submit", strings.NewReader("data"))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, int64(0), atomic.LoadInt64(&goodHits))
}

func TestFailClosedWithNoHealthyOrigins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("unreachable by policy"))
	}))
	defer srv.Close()

	// Never probed: every origin reads unhealthy, and fail-closed refuses.
	f := newFixture(t, []string{srv.URL}, false, false, false)

	req := httptest.NewRequest(http.MethodGet, "http://edge.local/", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestFailOpenRoutesWithoutHealthData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("best effort"))
	}))
	defer srv.Close()

	f := newFixture(t, []string{srv.URL}, false, true, false)

	req := httptest.NewRequest(http.MethodGet, "http://edge.local/", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "best effort", rec.Body.String())
}

func TestConnectionsReleasedAfterRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newFixture(t, []string{srv.URL}, true, true, false)

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "http://edge.local/", nil)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	for _, o := range f.engine.Stats().Origins {
		assert.Zero(t, o.ActiveConns, "connections must drain after requests")
	}
}

func TestAdminEndpoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newFixture(t, []string{srv.URL}, true, true, false)
	admin := NewAdmin(f.engine, f.prober, f.handler, logging.NewNop())

	rec := httptest.NewRecorder()
	admin.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/edge-health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy_origins":1`)

	rec = httptest.NewRecorder()
	admin.HandleStats(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"algorithm":"round-robin"`)
	assert.Contains(t, rec.Body.String(), "CLOSED")
}

func TestAdminHealthDegraded(t *testing.T) {
	f := newFixture(t, []string{"http://127.0.0.1:1"}, false, false, false)
	admin := NewAdmin(f.engine, f.prober, f.handler, logging.NewNop())

	rec := httptest.NewRecorder()
	admin.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/edge-health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
}

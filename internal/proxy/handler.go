package proxy

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edgegate-io/edgegate/internal/balancer"
	"github.com/edgegate-io/edgegate/internal/cache"
	"github.com/edgegate-io/edgegate/internal/edge"
	"github.com/edgegate-io/edgegate/internal/health"
	"github.com/edgegate-io/edgegate/internal/logging"
	"github.com/edgegate-io/edgegate/internal/metrics"
	"github.com/edgegate-io/edgegate/internal/origin"
	"github.com/edgegate-io/edgegate/internal/retry"
)

// hopHeaders are stripped before forwarding, per RFC 7230 section 6.1.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Handler is the edge request path: cache lookup, origin selection, forward
// with circuit breaking and failover, then cache fill.
type Handler struct {
	engine    *balancer.Engine
	prober    *health.Prober
	cache     *cache.Cache // nil when caching is disabled
	policy    *retry.Policy
	client    *http.Client
	collector *metrics.Collector
	logger    *logging.Logger

	breakerMux sync.RWMutex
	breakers   map[string]*health.CircuitBreaker
}

// NewHandler wires the request path together. cache may be nil.
func NewHandler(engine *balancer.Engine, prober *health.Prober, c *cache.Cache,
	policy *retry.Policy, requestTimeout time.Duration,
	collector *metrics.Collector, logger *logging.Logger) *Handler {
	return &Handler{
		engine:    engine,
		prober:    prober,
		cache:     c,
		policy:    policy,
		client:    &http.Client{Timeout: requestTimeout},
		collector: collector,
		logger:    logger,
		breakers:  make(map[string]*health.CircuitBreaker),
	}
}

// breaker returns the circuit breaker for an origin, creating it on first use.
func (h *Handler) breaker(o *origin.Origin) *health.CircuitBreaker {
	key := o.Host()

	h.breakerMux.RLock()
	cb, ok := h.breakers[key]
	h.breakerMux.RUnlock()
	if ok {
		return cb
	}

	h.breakerMux.Lock()
	defer h.breakerMux.Unlock()
	if cb, ok := h.breakers[key]; ok {
		return cb
	}
	cb = health.NewCircuitBreaker(key, h.logger)
	h.breakers[key] = cb
	return cb
}

// BreakerState reports the circuit state for an origin host, for the stats
// endpoint. Unknown hosts read as closed.
func (h *Handler) BreakerState(host string) health.CircuitState {
	h.breakerMux.RLock()
	defer h.breakerMux.RUnlock()
	if cb, ok := h.breakers[host]; ok {
		return cb.GetState()
	}
	return health.StateClosed
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()
	r.Header.Set("X-Request-ID", requestID)
	start := time.Now()

	rc := edge.FromRequest(r)

	if h.serveFromCache(w, r, rc, requestID) {
		return
	}

	// Buffer the body so failover attempts can replay it.
	var body []byte
	if r.Body != nil {
		var err error
		body, err = retry.BufferRequestBody(r)
		if err != nil {
			h.logger.Error("body_buffer_failed", "request_id", requestID, "error", err.Error())
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
	}
	if h.policy != nil {
		h.policy.Budget().TrackRequest()
	}

	target, err := h.engine.SelectOrigin(rc)
	if err != nil {
		h.logger.Error("no_origin_available", "request_id", requestID, "error", err.Error())
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	for {
		if r.Context().Err() != nil {
			h.engine.ReleaseConn(target)
			h.logger.Warn("client_canceled_request", "request_id", requestID)
			http.Error(w, "Request Canceled", 499)
			return
		}

		cb := h.breaker(target)
		if !cb.AllowRequest() {
			h.engine.ReleaseConn(target)
			if h.collector != nil {
				h.collector.FailoversTotal.WithLabelValues("circuit_open").Inc()
			}
			next, ferr := h.engine.GetFailoverOrigin(target, rc)
			if ferr != nil {
				http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
				return
			}
			target = next
			continue
		}

		retry.RestoreRequestBody(r, body)

		h.logger.Info("routing_request",
			"request_id", requestID,
			"origin", target.Host(),
			"colo", rc.Colo,
			"hops", rc.Hops,
			"method", r.Method,
			"path", r.URL.Path)

		// Each attempt is timed on its own: the origin that answers must
		// only be charged for its own forward, never for the time burned
		// on earlier failed origins.
		attemptStart := time.Now()
		resp, ferr := h.forward(r, target)
		elapsed := time.Since(attemptStart)
		h.engine.ReleaseConn(target)

		if ferr == nil && resp.Status < 500 {
			h.engine.RecordLatency(target, float64(elapsed.Milliseconds()))
			cb.RecordSuccess()
			h.exportBreakerState(target, cb)
			h.observe(target, r.Method, resp.Status, elapsed)

			if h.cache != nil && r.Method == http.MethodGet {
				h.cache.Store(r, resp, rc)
			}
			h.writeResponse(w, resp, requestID, "MISS")

			h.logger.Info("request_completed",
				"request_id", requestID,
				"origin", target.Host(),
				"status", resp.Status,
				"duration_ms", elapsed.Milliseconds(),
				"total_duration_ms", time.Since(start).Milliseconds())
			return
		}

		if ferr == nil {
			ferr = fmt.Errorf("origin returned status %d", resp.Status)
			h.observe(target, r.Method, resp.Status, elapsed)
		}

		cb.RecordFailure()
		h.exportBreakerState(target, cb)
		h.prober.RecordRequestFailure(target, ferr.Error())
		h.logger.Warn("forward_failed",
			"request_id", requestID,
			"origin", target.Host(),
			"hops", rc.Hops,
			"error", ferr.Error())

		if h.policy == nil || !h.policy.ShouldFailover(r, ferr, rc.Hops) {
			h.writeFailure(w, resp, requestID)
			return
		}

		next, gerr := h.engine.GetFailoverOrigin(target, rc)
		if gerr != nil {
			h.logger.Error("failover_unavailable",
				"request_id", requestID,
				"error", gerr.Error())
			h.writeFailure(w, resp, requestID)
			return
		}
		if h.collector != nil {
			h.collector.FailoversTotal.WithLabelValues("forward_error").Inc()
		}
		target = next
	}
}

// serveFromCache answers GET/HEAD requests from the cache, reporting whether
// the response was written.
func (h *Handler) serveFromCache(w http.ResponseWriter, r *http.Request, rc *edge.Context, requestID string) bool {
	if h.cache == nil || (r.Method != http.MethodGet && r.Method != http.MethodHead) {
		return false
	}

	entry, ok := h.cache.Lookup(r, rc)
	if !ok {
		return false
	}

	status := "HIT"
	if entry.Stale {
		status = "HIT-STALE"
	}

	header := w.Header()
	for k, vv := range entry.Header {
		for _, v := range vv {
			header.Add(k, v)
		}
	}
	header.Set("X-Cache", status)
	header.Set("X-Request-ID", requestID)
	header.Set("Age", strconv.Itoa(int(time.Since(entry.CachedAt).Seconds())))
	w.WriteHeader(entry.Status)
	if r.Method == http.MethodGet {
		_, _ = w.Write(entry.Body)
	}

	if h.collector != nil {
		h.collector.RequestsTotal.WithLabelValues("cache", r.Method, strconv.Itoa(entry.Status)).Inc()
	}
	return true
}

// forward sends the request to the origin and buffers the full response.
func (h *Handler) forward(r *http.Request, target *origin.Origin) (*cache.Response, error) {
	out := r.Clone(r.Context())
	out.URL.Scheme = target.URL().Scheme
	out.URL.Host = target.URL().Host
	out.Host = target.URL().Host
	out.RequestURI = ""
	for _, header := range hopHeaders {
		out.Header.Del(header)
	}
	if prior := r.Header.Get("X-Forwarded-For"); prior != "" {
		out.Header.Set("X-Forwarded-For", prior+", "+r.RemoteAddr)
	} else {
		out.Header.Set("X-Forwarded-For", r.RemoteAddr)
	}

	resp, err := h.client.Do(out)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &cache.Response{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   body,
	}, nil
}

// writeResponse relays a buffered origin response to the client.
func (h *Handler) writeResponse(w http.ResponseWriter, resp *cache.Response, requestID, cacheStatus string) {
	header := w.Header()
	for k, vv := range resp.Header {
		for _, v := range vv {
			header.Add(k, v)
		}
	}
	if h.cache != nil {
		header.Set("X-Cache", cacheStatus)
	}
	header.Set("X-Request-ID", requestID)
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

// writeFailure relays the origin's error response when one exists, otherwise
// a bare 502.
func (h *Handler) writeFailure(w http.ResponseWriter, resp *cache.Response, requestID string) {
	if resp != nil {
		h.writeResponse(w, resp, requestID, "MISS")
		return
	}
	w.Header().Set("X-Request-ID", requestID)
	http.Error(w, "Bad Gateway", http.StatusBadGateway)
}

// exportBreakerState mirrors the breaker state into its gauge.
func (h *Handler) exportBreakerState(target *origin.Origin, cb *health.CircuitBreaker) {
	if h.collector != nil {
		h.collector.CircuitState.WithLabelValues(target.Host()).Set(float64(cb.GetState()))
	}
}

// observe records request counters and duration for one forward attempt.
func (h *Handler) observe(target *origin.Origin, method string, status int, elapsed time.Duration) {
	if h.collector == nil {
		return
	}
	h.collector.RequestsTotal.WithLabelValues(target.Host(), method, strconv.Itoa(status)).Inc()
	h.collector.RequestDuration.WithLabelValues(target.Host(), method).Observe(elapsed.Seconds())
}

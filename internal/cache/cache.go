package cache

import (
	"net/http"
	"time"

	"github.com/edgegate-io/edgegate/internal/edge"
	"github.com/edgegate-io/edgegate/internal/logging"
	"github.com/edgegate-io/edgegate/internal/metrics"
)

// Response is the origin response a caller offers for caching.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Revalidation is published when a stale entry is served. An external
// collaborator may refresh the entry; the cache itself never re-fetches.
type Revalidation struct {
	URL string
	Key string
	Ctx edge.Context
}

// Cache serves and stores responses through a freshness-aware policy keyed
// by URL plus geographic/device vary context.
type Cache struct {
	store     Store
	policy    Policy
	logger    *logging.Logger
	collector *metrics.Collector
	now       func() time.Time

	revalidations chan Revalidation
}

// New creates a cache over the given backing store.
func New(store Store, policy Policy, collector *metrics.Collector, logger *logging.Logger) *Cache {
	return &Cache{
		store:         store,
		policy:        policy,
		logger:        logger,
		collector:     collector,
		now:           time.Now,
		revalidations: make(chan Revalidation, 64),
	}
}

// Revalidations exposes the stale-serving notifications for an external
// revalidator. The channel is never closed; sends are dropped when full.
func (c *Cache) Revalidations() <-chan Revalidation {
	return c.revalidations
}

// Lookup returns the cached entry for the request's URL and vary context.
// Hard-expired entries are misses and evicted asynchronously; entries inside
// the stale window come back with Stale set.
func (c *Cache) Lookup(req *http.Request, rc *edge.Context) (*Entry, bool) {
	key := Key(req.URL, rc)

	entry, ok := c.store.Get(key)
	if !ok {
		c.countLookup("miss")
		return nil, false
	}

	now := c.now()
	if now.After(entry.ExpiresAt) {
		go func() {
			if err := c.store.Delete(key); err != nil {
				c.logger.Warn("cache_evict_failed", "key", key, "error", err.Error())
			}
		}()
		c.countLookup("expired")
		return nil, false
	}

	if now.After(entry.FreshUntil) {
		staleUntil := entry.FreshUntil.Add(entry.StaleFor)
		if entry.StaleFor > 0 && now.Before(staleUntil) {
			entry.Stale = true
			c.notifyRevalidation(req.URL.String(), key, rc)
			c.countLookup("stale")
			return entry, true
		}
		c.countLookup("miss")
		return nil, false
	}

	c.countLookup("hit")
	return entry, true
}

// Store caches an eligible response and reports whether it was accepted.
// Backend failures are swallowed: the caller still returns the response to
// the client unmodified.
func (c *Cache) Store(req *http.Request, resp *Response, rc *edge.Context) bool {
	if !c.cacheable(req, resp) {
		c.countStore("rejected")
		return false
	}

	now := c.now()
	ttl, freshFor, staleFor, ok := c.resolveTTL(resp, now)
	if !ok {
		c.countStore("rejected")
		return false
	}

	key := Key(req.URL, rc)
	entry := &Entry{
		Key:         key,
		Body:        resp.Body,
		Status:      resp.Status,
		Header:      resp.Header,
		ContentType: resp.Header.Get("Content-Type"),
		CachedAt:    now,
		ExpiresAt:   now.Add(ttl),
		FreshUntil:  now.Add(freshFor),
		StaleFor:    staleFor,
		Colo:        rc.Colo,
		Country:     rc.Country,
		Device:      rc.Device,
	}

	if err := c.store.Put(key, entry, ttl); err != nil {
		c.logger.Warn("cache_store_failed", "key", key, "error", err.Error())
		c.countStore("error")
		return false
	}

	c.countStore("stored")
	return true
}

// Purge removes the entry for a URL and vary context.
func (c *Cache) Purge(req *http.Request, rc *edge.Context) error {
	return c.store.Delete(Key(req.URL, rc))
}

// cacheable applies the storage eligibility rules.
func (c *Cache) cacheable(req *http.Request, resp *Response) bool {
	ok := (resp.Status >= 200 && resp.Status < 300) || resp.Status == http.StatusNotFound
	if !ok {
		return false
	}

	cc := parseCacheControl(resp.Header.Get("Cache-Control"))
	if _, noStore := cc["no-store"]; noStore {
		return false
	}
	if _, noCache := cc["no-cache"]; noCache {
		return false
	}

	// Personalized responses are never shared through the cache.
	if resp.Header.Get("Set-Cookie") != "" {
		return false
	}
	if req.Header.Get("Authorization") != "" {
		return false
	}

	if c.policy.MaxBodyBytes > 0 && int64(len(resp.Body)) > c.policy.MaxBodyBytes {
		return false
	}
	return true
}

// resolveTTL resolves the freshness window, the stale window and the hard
// TTL: freshness comes from explicit max-age, else Expires, else the
// content-type default, capped by the global maximum. The hard TTL extends
// past freshness by the stale-while-revalidate window so stale entries stay
// retrievable.
func (c *Cache) resolveTTL(resp *Response, now time.Time) (ttl, freshFor, staleFor time.Duration, ok bool) {
	cc := parseCacheControl(resp.Header.Get("Cache-Control"))

	if value, has := cc["max-age"]; has {
		maxAge, valid := directiveSeconds(value)
		if !valid || maxAge == 0 {
			return 0, 0, 0, false
		}
		freshFor = c.policy.cap(maxAge)
	} else if expires := resp.Header.Get("Expires"); expires != "" {
		at, err := http.ParseTime(expires)
		if err != nil || !at.After(now) {
			return 0, 0, 0, false
		}
		freshFor = c.policy.cap(at.Sub(now))
	} else {
		freshFor = c.policy.TTLFor(resp.Header.Get("Content-Type"))
	}

	if value, has := cc["stale-while-revalidate"]; has {
		if d, valid := directiveSeconds(value); valid {
			staleFor = d
		}
	}

	ttl = freshFor + staleFor
	return ttl, freshFor, staleFor, true
}

// notifyRevalidation publishes a stale-serve event without ever blocking the
// request path.
func (c *Cache) notifyRevalidation(url, key string, rc *edge.Context) {
	select {
	case c.revalidations <- Revalidation{URL: url, Key: key, Ctx: *rc}:
	default:
	}
}

func (c *Cache) countLookup(result string) {
	if c.collector != nil {
		c.collector.CacheLookupsTotal.WithLabelValues(result).Inc()
	}
}

func (c *Cache) countStore(result string) {
	if c.collector != nil {
		c.collector.CacheStoresTotal.WithLabelValues(result).Inc()
	}
}

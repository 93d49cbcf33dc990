package cache

import (
	"strconv"
	"strings"
	"time"
)

// Policy carries the global caching limits and per-content-type defaults.
type Policy struct {
	MaxTTL       time.Duration // global cap on every resolved TTL
	MaxBodyBytes int64         // responses larger than this are never cached
}

// DefaultPolicy returns the production defaults: 24h global cap, 10 MiB
// body limit.
func DefaultPolicy() Policy {
	return Policy{
		MaxTTL:       24 * time.Hour,
		MaxBodyBytes: 10 << 20,
	}
}

// contentTypeTTLs maps content-type substrings onto default TTLs. First
// match wins, so more specific substrings come first.
var contentTypeTTLs = []struct {
	substr string
	ttl    time.Duration
}{
	{"text/html", time.Hour},
	{"text/css", 24 * time.Hour},
	{"javascript", 24 * time.Hour},
	{"json", 30 * time.Minute},
	{"image/", 7 * 24 * time.Hour},
	{"font", 30 * 24 * time.Hour},
}

// defaultTTL applies when no content-type rule matches.
const defaultTTL = time.Hour

// TTLFor returns the default TTL for a content type, capped by MaxTTL.
func (p Policy) TTLFor(contentType string) time.Duration {
	ct := strings.ToLower(contentType)
	ttl := defaultTTL
	for _, rule := range contentTypeTTLs {
		if strings.Contains(ct, rule.substr) {
			ttl = rule.ttl
			break
		}
	}
	return p.cap(ttl)
}

// cap bounds a TTL by the global maximum.
func (p Policy) cap(ttl time.Duration) time.Duration {
	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		return p.MaxTTL
	}
	return ttl
}

// parseCacheControl splits a Cache-Control header into lowercase
// directive -> value pairs. Valueless directives map to "".
func parseCacheControl(header string) map[string]string {
	directives := make(map[string]string)
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if part == "" {
			continue
		}
		if name, value, found := strings.Cut(part, "="); found {
			directives[name] = strings.Trim(value, `"`)
		} else {
			directives[part] = ""
		}
	}
	return directives
}

// directiveSeconds parses a numeric directive value into a duration.
func directiveSeconds(value string) (time.Duration, bool) {
	secs, err := strconv.Atoi(value)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

package cache

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/edgegate-io/edgegate/internal/edge"
)

// Entry is one cached response, split per vary context: the same URL yields
// distinct entries per edge location, country and device class.
type Entry struct {
	Key         string
	Body        []byte
	Status      int
	Header      http.Header
	ContentType string

	CachedAt   time.Time
	ExpiresAt  time.Time     // hard expiry; past this the entry is a miss
	FreshUntil time.Time     // freshness boundary, always <= ExpiresAt
	StaleFor   time.Duration // stale-serving window past FreshUntil

	// Vary context the entry was produced for.
	Colo    string
	Country string
	Device  edge.DeviceClass

	// Stale is set at lookup time when the entry is served from the
	// stale-while-revalidate window. Not persisted.
	Stale bool
}

// Key derives the cache key from the URL plus the geographic/device vary
// context.
func Key(u *url.URL, rc *edge.Context) string {
	h := xxhash.New()
	_, _ = h.WriteString(u.Path)
	if u.RawQuery != "" {
		_, _ = h.WriteString("?")
		_, _ = h.WriteString(u.RawQuery)
	}
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(rc.Colo)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(rc.Country)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(string(rc.Device))
	return strconv.FormatUint(h.Sum64(), 16)
}

package edge

import (
	"net/http"
	"strings"
)

// DeviceClass buckets a client into one of four coarse categories used for
// cache variance.
type DeviceClass string

const (
	DeviceMobile  DeviceClass = "mobile"
	DeviceTablet  DeviceClass = "tablet"
	DeviceBot     DeviceClass = "bot"
	DeviceDesktop DeviceClass = "desktop"
)

// Context carries the geographic and device metadata of a single request.
// It travels with the request through origin selection and cache keying.
type Context struct {
	Colo    string      // edge location that received the request
	Country string      // ISO 3166-1 alpha-2 client country
	Agent   string      // raw client agent string
	Device  DeviceClass // derived from Agent

	// Failover is set when the request is being re-routed after a failed
	// origin; Hops counts how many re-routes happened so far.
	Failover bool
	Hops     int
}

// NewContext builds a Context, deriving the device class from the agent string.
func NewContext(colo, country, agent string) *Context {
	return &Context{
		Colo:    colo,
		Country: country,
		Agent:   agent,
		Device:  ClassifyDevice(agent),
	}
}

// FromRequest extracts the request context from edge-injected headers.
// Missing headers leave the corresponding fields empty.
func FromRequest(r *http.Request) *Context {
	return NewContext(
		r.Header.Get("X-Edge-Colo"),
		strings.ToUpper(r.Header.Get("X-Edge-Country")),
		r.Header.Get("User-Agent"),
	)
}

// ClassifyDevice maps an agent string onto a device class by substring
// matching. Bots are detected before mobile hints since crawler agents often
// impersonate mobile browsers.
func ClassifyDevice(agent string) DeviceClass {
	ua := strings.ToLower(agent)

	for _, hint := range []string{"bot", "crawler", "spider", "curl", "wget"} {
		if strings.Contains(ua, hint) {
			return DeviceBot
		}
	}
	for _, hint := range []string{"ipad", "tablet", "kindle"} {
		if strings.Contains(ua, hint) {
			return DeviceTablet
		}
	}
	for _, hint := range []string{"mobile", "iphone", "android"} {
		if strings.Contains(ua, hint) {
			return DeviceMobile
		}
	}
	return DeviceDesktop
}

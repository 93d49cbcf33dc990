package health

import (
	"context"
	"io"
	"net/http"
	"time"
)

// ProbeResult is the outcome of a single HTTP probe against an origin.
type ProbeResult struct {
	StatusCode int
	Elapsed    time.Duration
	CertExpiry time.Time // zero when the connection carried no TLS state
}

// ProbeClient is the injected HTTP-probe capability. Implementations must
// honor context cancellation; a timed-out probe returns an error.
type ProbeClient interface {
	Probe(ctx context.Context, target string) (ProbeResult, error)
}

// HTTPProbeClient probes origins with a plain HTTP GET.
type HTTPProbeClient struct {
	client *http.Client
}

// NewHTTPProbeClient creates a probe client with a per-call timeout.
func NewHTTPProbeClient(timeout time.Duration) *HTTPProbeClient {
	return &HTTPProbeClient{
		client: &http.Client{Timeout: timeout},
	}
}

// Probe issues a GET against target and reports status, elapsed time and,
// for TLS connections, the leaf certificate expiry.
func (c *HTTPProbeClient) Probe(ctx context.Context, target string) (ProbeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return ProbeResult{}, err
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return ProbeResult{Elapsed: elapsed}, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	res := ProbeResult{
		StatusCode: resp.StatusCode,
		Elapsed:    elapsed,
	}
	if resp.TLS != nil && len(resp.TLS.PeerCertificates) > 0 {
		res.CertExpiry = resp.TLS.PeerCertificates[0].NotAfter
	}
	return res, nil
}

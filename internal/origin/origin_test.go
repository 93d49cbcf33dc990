package origin

import (
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustOrigin(t *testing.T, raw string, weight int) *Origin {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return New(u, weight)
}

func TestAverageLatency(t *testing.T) {
	o := mustOrigin(t, "http://origin-a:8080", 1)
	now := time.Now()

	o.RecordLatencyAt(100, now.Add(-3*time.Minute))
	o.RecordLatencyAt(200, now.Add(-2*time.Minute))
	o.RecordLatencyAt(300, now.Add(-1*time.Minute))

	avg, ok := o.AverageLatency(now)
	require.True(t, ok)
	assert.InDelta(t, 200, avg, 0.001)
}

func TestAverageLatencyExcludesOldSamples(t *testing.T) {
	o := mustOrigin(t, "http://origin-a:8080", 1)
	now := time.Now()

	// Older than the 10 minute window, must not count.
	o.RecordLatencyAt(9000, now.Add(-11*time.Minute))
	o.RecordLatencyAt(100, now.Add(-1*time.Minute))

	avg, ok := o.AverageLatency(now)
	require.True(t, ok)
	assert.InDelta(t, 100, avg, 0.001)
}

func TestAverageLatencyNoSamples(t *testing.T) {
	o := mustOrigin(t, "http://origin-a:8080", 1)
	_, ok := o.AverageLatency(time.Now())
	assert.False(t, ok)

	// Only stale samples behaves the same as none.
	o.RecordLatencyAt(100, time.Now().Add(-time.Hour))
	_, ok = o.AverageLatency(time.Now())
	assert.False(t, ok)
}

func TestLatencyRingBounded(t *testing.T) {
	o := mustOrigin(t, "http://origin-a:8080", 1)
	now := time.Now()
	for i := 0; i < latencyRingSize*3; i++ {
		o.RecordLatencyAt(50, now)
	}
	avg, ok := o.AverageLatency(now)
	require.True(t, ok)
	assert.InDelta(t, 50, avg, 0.001)
}

func TestConnectionCountNeverNegative(t *testing.T) {
	o := mustOrigin(t, "http://origin-a:8080", 1)

	o.ReleaseConn()
	o.ReleaseConn()
	assert.Equal(t, int64(0), o.ActiveConns())

	o.AcquireConn()
	o.AcquireConn()
	assert.Equal(t, int64(2), o.ActiveConns())
}

func TestConnectionCountConcurrent(t *testing.T) {
	o := mustOrigin(t, "http://origin-a:8080", 1)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				o.AcquireConn()
				o.ReleaseConn()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(0), o.ActiveConns())
}

func TestWeightValidation(t *testing.T) {
	o := mustOrigin(t, "http://origin-a:8080", 0)
	assert.Equal(t, 1, o.Weight(), "non-positive configured weight normalizes to 1")

	o.SetWeight(5)
	assert.Equal(t, 5, o.Weight())

	o.SetWeight(-3)
	assert.Equal(t, 5, o.Weight(), "invalid weight leaves previous value")
}

func TestRegistry(t *testing.T) {
	a := mustOrigin(t, "http://origin-a:8080", 1)
	b := mustOrigin(t, "http://origin-b:8080", 2)

	reg, err := NewRegistry([]*Origin{a, b})
	require.NoError(t, err)

	assert.Equal(t, 2, reg.Size())
	assert.Same(t, a, reg.First())

	got, ok := reg.Lookup("http://origin-b:8080")
	require.True(t, ok)
	assert.Same(t, b, got)

	_, ok = reg.Lookup("http://nope:1")
	assert.False(t, ok)
}

func TestRegistryRejectsEmptyAndDuplicates(t *testing.T) {
	_, err := NewRegistry(nil)
	assert.Error(t, err)

	a1 := mustOrigin(t, "http://origin-a:8080", 1)
	a2 := mustOrigin(t, "http://origin-a:8080", 2)
	_, err = NewRegistry([]*Origin{a1, a2})
	assert.Error(t, err)
}

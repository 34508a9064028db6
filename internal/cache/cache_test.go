package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"routeplanner/internal/geo"
	"routeplanner/internal/opt"
)

var pts = []geo.Point{{Lat: 14.7104, Lng: 121.1213}, {Lat: 14.5764, Lng: 121.1323}, {Lat: 14.6211, Lng: 121.1233}}

func TestFingerprint(t *testing.T) {
	o := opt.DefaultOptions()
	base := Fingerprint(pts, 0, o)
	require.Len(t, base, 64)

	labelled := append([]geo.Point(nil), pts...)
	labelled[1].Label = "somewhere"
	require.Equal(t, base, Fingerprint(labelled, 0, o), "labels must not change the key")

	require.NotEqual(t, base, Fingerprint(pts, 1, o))
	moved := append([]geo.Point(nil), pts...)
	moved[2].Lat += 1e-9
	require.NotEqual(t, base, Fingerprint(moved, 0, o))
	o2 := o
	o2.MaxTwoOptPasses = 5
	require.NotEqual(t, base, Fingerprint(pts, 0, o2))
}

func TestMemoryTTLAndEviction(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Minute, 2)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	res := opt.Result{Order: []int{0, 2, 1, 0}, TotalDistance: 31.5, Optimal: true, Algorithm: opt.AlgoHeldKarp}
	c.Set(ctx, "a", res)
	got, ok := c.Get(ctx, "a")
	require.True(t, ok)
	require.Equal(t, res, got)

	// returned results do not alias the cached slice
	got.Order[1] = 99
	again, _ := c.Get(ctx, "a")
	require.Equal(t, 2, again.Order[1])

	c.Set(ctx, "b", res)
	c.Set(ctx, "c", res)
	require.Equal(t, 2, c.Len())
	_, ok = c.Get(ctx, "a")
	require.False(t, ok, "oldest entry evicted")

	now = now.Add(2 * time.Minute)
	_, ok = c.Get(ctx, "c")
	require.False(t, ok, "expired")
}

func TestRedisRoundTrip(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	c, err := NewRedis(url, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))
	key := Fingerprint(pts, 0, opt.DefaultOptions())
	res := opt.Result{Order: []int{0, 1, 2, 0}, TotalDistance: 12, Optimal: true, Algorithm: opt.AlgoHeldKarp}
	c.Set(ctx, key, res)
	got, ok := c.Get(ctx, key)
	require.True(t, ok)
	require.Equal(t, res, got)
}

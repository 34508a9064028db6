// Package cache keeps solved tour results keyed by a fingerprint of the
// solver input. The solver is deterministic, so a hit is always equal to a
// fresh solve of the same input.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sync"
	"time"

	"routeplanner/internal/geo"
	"routeplanner/internal/opt"
)

type Cache interface {
	Get(ctx context.Context, key string) (opt.Result, bool)
	Set(ctx context.Context, key string, res opt.Result)
}

// Fingerprint hashes coordinates, depot and effective options. Labels do not
// affect the tour and are left out.
func Fingerprint(points []geo.Point, depot int, o opt.Options) string {
	h := sha256.New()
	var buf [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	put(uint64(len(points)))
	for _, p := range points {
		put(math.Float64bits(p.Lat))
		put(math.Float64bits(p.Lng))
	}
	put(uint64(depot))
	put(uint64(o.Mode))
	put(uint64(o.ExactMaxN))
	put(uint64(o.MaxTwoOptPasses))
	return hex.EncodeToString(h.Sum(nil))
}

type entry struct {
	res     opt.Result
	expires time.Time
}

// Memory is a TTL map bounded by maxEntries; the oldest entry is evicted first.
type Memory struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	items      map[string]entry
	order      []string
	now        func() time.Time
}

func NewMemory(ttl time.Duration, maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &Memory{ttl: ttl, maxEntries: maxEntries, items: map[string]entry{}, now: time.Now}
}

func (c *Memory) Get(ctx context.Context, key string) (opt.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[key]
	if !ok {
		return opt.Result{}, false
	}
	if c.ttl > 0 && c.now().After(e.expires) {
		delete(c.items, key)
		return opt.Result{}, false
	}
	return cloneResult(e.res), true
}

func (c *Memory) Set(ctx context.Context, key string, res opt.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[key]; !ok {
		c.order = append(c.order, key)
	}
	c.items[key] = entry{res: cloneResult(res), expires: c.now().Add(c.ttl)}
	for len(c.items) > c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.items, oldest)
	}
	if len(c.order) > 2*c.maxEntries {
		live := c.order[:0]
		for _, k := range c.order {
			if _, ok := c.items[k]; ok {
				live = append(live, k)
			}
		}
		c.order = live
	}
}

func (c *Memory) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func cloneResult(r opt.Result) opt.Result {
	r.Order = append([]int(nil), r.Order...)
	return r
}

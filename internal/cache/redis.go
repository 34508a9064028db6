package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	redis "github.com/redis/go-redis/v9"

	"routeplanner/internal/opt"
)

// Redis stores results as JSON under "tour:result:<key>" with a TTL.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedis(url string, ttl time.Duration) (*Redis, error) {
	o, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &Redis{rdb: redis.NewClient(o), ttl: ttl}, nil
}

func (c *Redis) Get(ctx context.Context, key string) (opt.Result, bool) {
	data, err := c.rdb.Get(ctx, c.keyName(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("cache: redis get: %v", err)
		}
		return opt.Result{}, false
	}
	var res opt.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return opt.Result{}, false
	}
	return res, true
}

func (c *Redis) Set(ctx context.Context, key string, res opt.Result) {
	data, err := json.Marshal(res)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.rdb.Set(ctx, c.keyName(key), data, c.ttl).Err(); err != nil {
		log.Printf("cache: redis set: %v", err)
	}
}

func (c *Redis) Ping(ctx context.Context) error { return c.rdb.Ping(ctx).Err() }

func (c *Redis) keyName(key string) string { return "tour:result:" + key }

// Package redis connects the optional shared cache. Score memos and rate
// limit windows use it when redis.url is set and run without it otherwise.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"truconn/internal/platform/config"
)

type Client struct {
	*redis.Client
}

// New returns nil, nil when Redis is not configured.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{Client: client}, nil
}

// options overlays the non-zero config values on what the URL specifies.
func options(cfg config.RedisConfig) (*redis.Options, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	for _, d := range []struct {
		dst *time.Duration
		v   time.Duration
	}{
		{&opts.DialTimeout, cfg.DialTimeout},
		{&opts.ReadTimeout, cfg.ReadTimeout},
		{&opts.WriteTimeout, cfg.WriteTimeout},
	} {
		if d.v > 0 {
			*d.dst = d.v
		}
	}
	return opts, nil
}

func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

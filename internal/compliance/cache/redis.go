// Package cache memoizes compliance reports in Redis. Keys carry the
// organization's generation and the access log head, so any new violation
// or access entry moves readers to a fresh key.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"truconn/internal/compliance/models"
	"truconn/pkg/domain"
)

const keyPrefix = "truconn:compliance:"

type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedis(client redis.Cmdable, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Key names one immutable snapshot of an organization's report.
func Key(orgID domain.OrganizationID, generation, auditHead int64) string {
	return fmt.Sprintf("%sreport:%s:%d:%d", keyPrefix, orgID, generation, auditHead)
}

func generationKey(orgID domain.OrganizationID) string {
	return keyPrefix + "gen:" + orgID.String()
}

// Get returns ok=false on a miss.
func (c *RedisCache) Get(ctx context.Context, key string) (*models.ComplianceReport, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get report: %w", err)
	}
	var report models.ComplianceReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, false, fmt.Errorf("decode report: %w", err)
	}
	return &report, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, report *models.ComplianceReport) error {
	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set report: %w", err)
	}
	return nil
}

// Generation is 0 until the first Bump.
func (c *RedisCache) Generation(ctx context.Context, orgID domain.OrganizationID) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey(orgID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get generation: %w", err)
	}
	return gen, nil
}

// Bump invalidates every cached report of the organization.
func (c *RedisCache) Bump(ctx context.Context, orgID domain.OrganizationID) error {
	if err := c.client.Incr(ctx, generationKey(orgID)).Err(); err != nil {
		return fmt.Errorf("bump generation: %w", err)
	}
	return nil
}

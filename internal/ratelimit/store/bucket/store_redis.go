package bucket

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"truconn/internal/ratelimit/models"
)

// RedisBucketStore keeps one sorted set per key, scored by request time in
// nanoseconds, so every instance shares the same window.
type RedisBucketStore struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewRedis(client redis.Cmdable) *RedisBucketStore {
	return &RedisBucketStore{client: client, now: time.Now}
}

// Allow trims the window, adds this request and counts in one MULTI block.
// A denied request is removed again so it does not consume budget.
func (s *RedisBucketStore) Allow(ctx context.Context, key string, limit models.Limit) (*models.Result, error) {
	now := s.now()
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + uuid.NewString()
	cutoff := strconv.FormatInt(now.Add(-limit.Window).UnixNano(), 10)

	var (
		card   *redis.IntCmd
		oldest *redis.ZSliceCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "0", cutoff)
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member})
		card = pipe.ZCard(ctx, key)
		oldest = pipe.ZRangeWithScores(ctx, key, 0, 0)
		pipe.PExpire(ctx, key, limit.Window)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rate limit pipeline: %w", err)
	}

	resetAt := now.Add(limit.Window)
	if zs := oldest.Val(); len(zs) > 0 {
		resetAt = time.Unix(0, int64(zs[0].Score)).Add(limit.Window)
	}

	count := int(card.Val())
	if count > limit.Requests {
		if err := s.client.ZRem(ctx, key, member).Err(); err != nil {
			return nil, fmt.Errorf("rate limit rollback: %w", err)
		}
		return &models.Result{
			Allowed:    false,
			Limit:      limit.Requests,
			ResetAt:    resetAt,
			RetryAfter: retryAfter(now, resetAt),
		}, nil
	}
	return &models.Result{
		Allowed:   true,
		Limit:     limit.Requests,
		Remaining: limit.Requests - count,
		ResetAt:   resetAt,
	}, nil
}

func (s *RedisBucketStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

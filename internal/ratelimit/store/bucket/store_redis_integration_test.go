//go:build integration

package bucket_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"truconn/internal/ratelimit/models"
	"truconn/internal/ratelimit/store/bucket"
	"truconn/pkg/testutil/containers"
)

type RedisBucketStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *bucket.RedisBucketStore
	ctx   context.Context
}

func TestRedisBucketStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisBucketStoreSuite))
}

func (s *RedisBucketStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = bucket.NewRedis(s.redis.Client)
	s.ctx = context.Background()
}

func (s *RedisBucketStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.Client.FlushDB(s.ctx).Err())
}

func (s *RedisBucketStoreSuite) TestDeniedRequestsDoNotConsumeBudget() {
	limit := models.Limit{Requests: 3, Window: time.Minute}
	for i := range 3 {
		result, err := s.store.Allow(s.ctx, "k", limit)
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(2-i, result.Remaining)
	}
	for range 5 {
		result, err := s.store.Allow(s.ctx, "k", limit)
		s.Require().NoError(err)
		s.False(result.Allowed)
		s.Positive(result.RetryAfter)
	}
	card, err := s.redis.Client.ZCard(s.ctx, "k").Result()
	s.Require().NoError(err)
	s.EqualValues(3, card)

	s.Require().NoError(s.store.Reset(s.ctx, "k"))
	result, err := s.store.Allow(s.ctx, "k", limit)
	s.Require().NoError(err)
	s.True(result.Allowed)
}

func (s *RedisBucketStoreSuite) TestWindowExpiry() {
	limit := models.Limit{Requests: 1, Window: 500 * time.Millisecond}
	result, err := s.store.Allow(s.ctx, "short", limit)
	s.Require().NoError(err)
	s.True(result.Allowed)

	result, err = s.store.Allow(s.ctx, "short", limit)
	s.Require().NoError(err)
	s.False(result.Allowed)

	s.Eventually(func() bool {
		result, err := s.store.Allow(s.ctx, "short", limit)
		return err == nil && result.Allowed
	}, 3*time.Second, 100*time.Millisecond)
}

func (s *RedisBucketStoreSuite) TestConcurrentRequestsRespectLimit() {
	limit := models.Limit{Requests: 10, Window: time.Minute}
	var allowed atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := s.store.Allow(s.ctx, "concurrent", limit)
			if err == nil && result.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	s.LessOrEqual(allowed.Load(), int32(10))
	s.Positive(allowed.Load())
}

package bucket

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"truconn/internal/ratelimit/models"
)

var testLimit = models.Limit{Requests: 10, Window: time.Minute}

type InMemoryBucketStoreSuite struct {
	suite.Suite
	store *InMemoryBucketStore
	clock time.Time
	ctx   context.Context
}

func TestInMemoryBucketStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryBucketStoreSuite))
}

func (s *InMemoryBucketStoreSuite) SetupTest() {
	s.store = New()
	s.clock = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	s.store.now = func() time.Time { return s.clock }
	s.ctx = context.Background()
}

func (s *InMemoryBucketStoreSuite) exhaust(key string) {
	for range testLimit.Requests {
		result, err := s.store.Allow(s.ctx, key, testLimit)
		s.Require().NoError(err)
		s.Require().True(result.Allowed)
	}
}

func (s *InMemoryBucketStoreSuite) TestAllow() {
	s.Run("first request allowed", func() {
		result, err := s.store.Allow(s.ctx, "first", testLimit)
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(testLimit.Requests, result.Limit)
		s.Equal(testLimit.Requests-1, result.Remaining)
		s.Equal(s.clock.Add(time.Minute), result.ResetAt)
	})

	s.Run("request over limit denied with retry hint", func() {
		s.exhaust("over")
		s.clock = s.clock.Add(20 * time.Second)
		result, err := s.store.Allow(s.ctx, "over", testLimit)
		s.Require().NoError(err)
		s.False(result.Allowed)
		s.Equal(0, result.Remaining)
		s.Equal(40, result.RetryAfter)
	})

	s.Run("window slides", func() {
		s.exhaust("slide")
		s.clock = s.clock.Add(time.Minute + time.Second)
		result, err := s.store.Allow(s.ctx, "slide", testLimit)
		s.Require().NoError(err)
		s.True(result.Allowed)
	})

	s.Run("keys are independent", func() {
		s.exhaust("a")
		result, err := s.store.Allow(s.ctx, "b", testLimit)
		s.Require().NoError(err)
		s.True(result.Allowed)
	})
}

func (s *InMemoryBucketStoreSuite) TestResetAndSweep() {
	s.exhaust("reset")
	s.Require().NoError(s.store.Reset(s.ctx, "reset"))
	result, err := s.store.Allow(s.ctx, "reset", testLimit)
	s.Require().NoError(err)
	s.True(result.Allowed)

	s.clock = s.clock.Add(2 * time.Minute)
	s.Equal(1, s.store.Sweep())
	s.Empty(s.store.buckets)
}

func (s *InMemoryBucketStoreSuite) TestConcurrentRequestsRespectLimit() {
	var allowed atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := s.store.Allow(s.ctx, "concurrent", testLimit)
			if err == nil && result.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(testLimit.Requests), allowed.Load())
}

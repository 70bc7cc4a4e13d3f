//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"truconn/internal/compliance/models"
	"truconn/pkg/domain"
	"truconn/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	client *redis.Client
	cache  *RedisCache
	ctx    context.Context
}

func TestRedisCacheSuite(t *testing.T) {
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	rc := containers.GetManager().GetRedis(s.T())
	s.client = rc.Client
	s.cache = NewRedis(s.client, time.Minute)
	s.ctx = context.Background()
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.client.FlushDB(s.ctx).Err())
}

func (s *RedisCacheSuite) TestMissThenHit() {
	org := domain.NewOrganizationID()
	key := Key(org, 0, 12)

	_, ok, err := s.cache.Get(s.ctx, key)
	s.Require().NoError(err)
	s.False(ok)

	report := &models.ComplianceReport{
		OrganizationID: org,
		RiskScore:      42.5,
		Band:           models.BandMedium,
		OpenViolations: map[models.Severity]int{models.SeverityHigh: 1},
	}
	s.Require().NoError(s.cache.Set(s.ctx, key, report))

	got, ok, err := s.cache.Get(s.ctx, key)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(report.RiskScore, got.RiskScore)
	s.Equal(1, got.OpenViolations[models.SeverityHigh])

	ttl, err := s.client.TTL(s.ctx, key).Result()
	s.Require().NoError(err)
	s.Positive(ttl)
}

func (s *RedisCacheSuite) TestBumpMovesGeneration() {
	org := domain.NewOrganizationID()
	gen, err := s.cache.Generation(s.ctx, org)
	s.Require().NoError(err)
	s.Zero(gen)

	s.Require().NoError(s.cache.Bump(s.ctx, org))
	s.Require().NoError(s.cache.Bump(s.ctx, org))
	gen, err = s.cache.Generation(s.ctx, org)
	s.Require().NoError(err)
	s.Equal(int64(2), gen)
	s.NotEqual(Key(org, 0, 1), Key(org, gen, 1))
}

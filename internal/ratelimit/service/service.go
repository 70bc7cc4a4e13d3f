// Package service decides whether a principal may make another request.
// A shared store (Redis) is primary; while it fails the circuit opens and
// an in-process store answers so limiting degrades instead of vanishing.
package service

import (
	"context"
	"log/slog"

	"truconn/internal/ratelimit/metrics"
	"truconn/internal/ratelimit/models"
	"truconn/pkg/domain"
	"truconn/pkg/platform/circuit"
)

// BucketStore records one request against a key's window.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit models.Limit) (*models.Result, error)
}

type Service struct {
	primary  BucketStore
	fallback BucketStore
	breaker  *circuit.Breaker
	limits   map[models.EndpointClass]models.Limit
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithFallback sets the store used while the primary's circuit is open.
func WithFallback(store BucketStore, breaker *circuit.Breaker) Option {
	return func(s *Service) {
		s.fallback = store
		s.breaker = breaker
	}
}

func New(primary BucketStore, limits map[models.EndpointClass]models.Limit, opts ...Option) *Service {
	s := &Service{
		primary: primary,
		limits:  limits,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check consumes one request from the principal's budget for class.
// A class without a configured limit is unlimited.
func (s *Service) Check(ctx context.Context, principal domain.Principal, class models.EndpointClass) (*models.Result, error) {
	limit, ok := s.limits[class]
	if !ok || limit.Requests <= 0 {
		return &models.Result{Allowed: true}, nil
	}
	key := models.Key(principal, class)

	result, err := s.allow(ctx, key, limit)
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementDecision(string(class), result.Allowed)
	if !result.Allowed {
		s.logger.InfoContext(ctx, "rate limit exceeded",
			"role", principal.Role,
			"principal_id", principal.ID,
			"class", class,
			"retry_after", result.RetryAfter,
		)
	}
	return result, nil
}

func (s *Service) allow(ctx context.Context, key string, limit models.Limit) (*models.Result, error) {
	if s.breaker == nil {
		return s.primary.Allow(ctx, key, limit)
	}
	if !s.breaker.IsOpen() {
		result, err := s.primary.Allow(ctx, key, limit)
		if err == nil {
			s.breaker.RecordSuccess()
			return result, nil
		}
		s.metrics.IncrementStoreError()
		useFallback, change := s.breaker.RecordFailure()
		if change.Opened {
			s.metrics.SetDegraded(true)
			s.logger.WarnContext(ctx, "rate limit store unavailable, using in-process fallback",
				"breaker", s.breaker.Name(),
				"error", err,
			)
		}
		if !useFallback {
			return nil, err
		}
		return s.degraded(ctx, key, limit)
	}

	// Probe the primary so the circuit can close once it recovers.
	if _, err := s.primary.Allow(ctx, key, limit); err == nil {
		if _, change := s.breaker.RecordSuccess(); change.Closed {
			s.metrics.SetDegraded(false)
			s.logger.InfoContext(ctx, "rate limit store recovered", "breaker", s.breaker.Name())
		}
	} else {
		s.metrics.IncrementStoreError()
		s.breaker.RecordFailure()
	}
	return s.degraded(ctx, key, limit)
}

func (s *Service) degraded(ctx context.Context, key string, limit models.Limit) (*models.Result, error) {
	result, err := s.fallback.Allow(ctx, key, limit)
	if err != nil {
		return nil, err
	}
	result.Degraded = true
	return result, nil
}

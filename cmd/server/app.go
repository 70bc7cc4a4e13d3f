package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"

	accesslogmetrics "truconn/internal/accesslog/metrics"
	accesslogservice "truconn/internal/accesslog/service"
	accesslogmemory "truconn/internal/accesslog/store/memory"
	accesslogpostgres "truconn/internal/accesslog/store/postgres"
	compliancecache "truconn/internal/compliance/cache"
	compliancemetrics "truconn/internal/compliance/metrics"
	complianceservice "truconn/internal/compliance/service"
	compliancestore "truconn/internal/compliance/store"
	consentmetrics "truconn/internal/consent/metrics"
	consentservice "truconn/internal/consent/service"
	consentmemory "truconn/internal/consent/store/memory"
	consentpostgres "truconn/internal/consent/store/postgres"
	jwttoken "truconn/internal/jwt_token"
	orgservice "truconn/internal/organization/service"
	orgstore "truconn/internal/organization/store"
	"truconn/internal/platform/config"
	"truconn/internal/platform/kafka"
	"truconn/internal/platform/metrics"
	"truconn/internal/platform/postgres"
	"truconn/internal/platform/redis"
	ratelimitmetrics "truconn/internal/ratelimit/metrics"
	ratelimitmiddleware "truconn/internal/ratelimit/middleware"
	ratelimitmodels "truconn/internal/ratelimit/models"
	ratelimitservice "truconn/internal/ratelimit/service"
	"truconn/internal/ratelimit/store/bucket"
	audit "truconn/pkg/platform/audit"
	auditpublisher "truconn/pkg/platform/audit/publisher"
	auditmemory "truconn/pkg/platform/audit/store/memory"
	auditpostgres "truconn/pkg/platform/audit/store/postgres"
	auditstream "truconn/pkg/platform/audit/store/stream"
	"truconn/pkg/platform/circuit"
)

const eventBufferSize = 1024

// app owns every long-lived dependency of the process.
type app struct {
	cfg *config.Config

	pool     *pgxpool.Pool
	redis    *redis.Client
	producer *kafka.Producer
	relay    *auditpostgres.Relay
	events   *auditpublisher.Publisher

	tokens      *jwttoken.JWTService
	httpMetrics *metrics.Metrics
	rateLimit   *ratelimitmiddleware.Middleware
	buckets     []*bucket.InMemoryBucketStore

	organizations *orgservice.Service
	consent       *consentservice.Service
	accessLog     *accesslogservice.Service
	compliance    *complianceservice.Service
}

// stores groups the persistence backends chosen by storage.driver.
type stores struct {
	organizations orgservice.Store
	consent       consentservice.Store
	consentTx     consentservice.StoreTx
	accessLog     accesslogservice.Store
	violations    complianceservice.ViolationStore
	events        audit.Store
}

func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (_ *app, err error) {
	a := &app{
		cfg:         cfg,
		tokens:      jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer),
		httpMetrics: metrics.New(),
	}
	defer func() {
		if err != nil {
			a.Close(ctx)
		}
	}()

	accessMetrics := accesslogmetrics.New()

	if cfg.Kafka.Enabled {
		a.producer, err = kafka.New(ctx, cfg.Kafka,
			kafka.WithLogger(log),
			kafka.WithDropHook(func(topic string) {
				if topic == cfg.Kafka.AccessLogTopic {
					accessMetrics.IncrementPublishDropped()
				}
			}),
		)
		if err != nil {
			return nil, err
		}
		if err = a.producer.EnsureTopics(ctx, 3, cfg.Kafka.AccessLogTopic, cfg.Kafka.EventsTopic); err != nil {
			return nil, err
		}
	}

	st, err := a.openStores(ctx, log)
	if err != nil {
		return nil, err
	}

	a.redis, err = redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}

	// Postgres events commit with the caller's transaction, so they are
	// written synchronously; the in-memory store tolerates async fan-in.
	var publisherOpts []auditpublisher.Option
	publisherOpts = append(publisherOpts, auditpublisher.WithLogger(log))
	if a.pool == nil {
		publisherOpts = append(publisherOpts, auditpublisher.WithAsyncBuffer(eventBufferSize))
	}
	a.events = auditpublisher.NewPublisher(st.events, publisherOpts...)

	tracer := otel.Tracer(cfg.Tracing.ServiceName)

	a.organizations = orgservice.New(st.organizations,
		orgservice.WithLogger(log),
		orgservice.WithAuditPublisher(a.events),
	)
	a.consent = consentservice.New(st.consent, st.consentTx, a.organizations,
		consentservice.WithLogger(log),
		consentservice.WithAuditPublisher(a.events),
		consentservice.WithMetrics(consentmetrics.New()),
		consentservice.WithTracer(tracer),
	)

	accessOpts := []accesslogservice.Option{
		accesslogservice.WithLogger(log),
		accesslogservice.WithMetrics(accessMetrics),
		accesslogservice.WithAuditPublisher(a.events),
		accesslogservice.WithTracer(tracer),
	}
	if a.producer != nil {
		accessOpts = append(accessOpts, accesslogservice.WithPublisher(a.producer, cfg.Kafka.AccessLogTopic))
	}
	a.accessLog = accesslogservice.New(st.accessLog, a.consent, a.organizations, accessOpts...)

	complianceOpts := []complianceservice.Option{
		complianceservice.WithLogger(log),
		complianceservice.WithMetrics(compliancemetrics.New()),
		complianceservice.WithAuditPublisher(a.events),
		complianceservice.WithTracer(tracer),
	}
	if a.redis != nil {
		complianceOpts = append(complianceOpts,
			complianceservice.WithCache(compliancecache.NewRedis(a.redis.Client, cfg.Redis.ScoreTTL)))
	}
	a.compliance = complianceservice.New(st.violations, a.consent, a.accessLog, a.organizations, cfg.Scoring, complianceOpts...)

	a.rateLimit = a.newRateLimit(log)
	return a, nil
}

// newRateLimit prefers Redis so every instance shares one window, falling
// back to process memory while Redis is unreachable.
func (a *app) newRateLimit(log *slog.Logger) *ratelimitmiddleware.Middleware {
	cfg := a.cfg.RateLimit
	limits := map[ratelimitmodels.EndpointClass]ratelimitmodels.Limit{
		ratelimitmodels.ClassRead:  {Requests: cfg.ReadRequests, Window: cfg.Window},
		ratelimitmodels.ClassWrite: {Requests: cfg.WriteRequests, Window: cfg.Window},
	}
	opts := []ratelimitservice.Option{
		ratelimitservice.WithLogger(log),
		ratelimitservice.WithMetrics(ratelimitmetrics.New()),
	}
	local := bucket.New()
	a.buckets = append(a.buckets, local)
	var primary ratelimitservice.BucketStore = local
	if a.redis != nil {
		primary = bucket.NewRedis(a.redis.Client)
		opts = append(opts, ratelimitservice.WithFallback(local, circuit.New("ratelimit-redis")))
	}
	limiter := ratelimitservice.New(primary, limits, opts...)
	return ratelimitmiddleware.New(limiter, log, ratelimitmiddleware.WithDisabled(!cfg.Enabled))
}

func (a *app) openStores(ctx context.Context, log *slog.Logger) (*stores, error) {
	if a.cfg.Storage.Driver == config.DriverMemory {
		consent := consentmemory.New()
		var events audit.Store = auditmemory.NewInMemoryStore()
		if a.producer != nil {
			events = auditstream.New(events, a.producer, a.cfg.Kafka.EventsTopic)
		}
		return &stores{
			organizations: orgstore.NewInMemory(),
			consent:       consent,
			consentTx:     consentservice.NewShardedTx(consent, a.cfg.Consent.TxTimeout),
			accessLog:     accesslogmemory.New(),
			violations:    compliancestore.NewInMemory(),
			events:        events,
		}, nil
	}

	pool, err := postgres.NewPool(ctx, a.cfg.Storage)
	if err != nil {
		return nil, err
	}
	a.pool = pool
	if a.cfg.Storage.MigrateOnRun {
		if err := postgres.Migrate(ctx, pool); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	if a.producer != nil {
		a.relay = auditpostgres.NewRelay(pool, a.producer, a.cfg.Kafka.EventsTopic,
			auditpostgres.WithInterval(a.cfg.Kafka.RelayInterval),
			auditpostgres.WithLogger(log),
		)
	}
	consent := consentpostgres.New(pool)
	return &stores{
		organizations: orgstore.NewPostgres(pool),
		consent:       consent,
		consentTx:     consentpostgres.NewTx(pool, consent, a.cfg.Consent.TxTimeout),
		accessLog:     accesslogpostgres.New(pool),
		violations:    compliancestore.NewPostgres(pool),
		events:        auditpostgres.New(pool),
	}, nil
}

// sweepBuckets drops idle in-process rate limit windows until ctx ends.
func (a *app) sweepBuckets(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.RateLimit.Window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, b := range a.buckets {
				b.Sweep()
			}
		}
	}
}

// health reports the reachability of every configured backend.
func (a *app) health(ctx context.Context) map[string]error {
	checks := map[string]error{}
	if a.pool != nil {
		checks["postgres"] = a.pool.Ping(ctx)
	}
	if a.redis != nil {
		checks["redis"] = a.redis.Health(ctx)
	}
	if a.producer != nil {
		checks["kafka"] = a.producer.Health(ctx)
	}
	return checks
}

func (a *app) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]string{"status": "ok"}
	for name, err := range a.health(r.Context()) {
		if err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body[name] = "unavailable"
			continue
		}
		body[name] = "ok"
	}
	writeHealth(w, status, body)
}

// Close releases resources in reverse dependency order.
func (a *app) Close(ctx context.Context) {
	if a.events != nil {
		_ = a.events.Close()
	}
	if a.producer != nil {
		_ = a.producer.Close(ctx)
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

//go:build integration

package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"truconn/internal/platform/config"
	"truconn/internal/platform/kafka"
	"truconn/pkg/domain"
	audit "truconn/pkg/platform/audit"
	"truconn/pkg/testutil/containers"
)

const relayTopic = "truconn.events.test"

type RelaySuite struct {
	suite.Suite
	pg       *containers.PostgresContainer
	brokers  []string
	producer *kafka.Producer
	ctx      context.Context
}

func TestRelaySuite(t *testing.T) {
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.brokers = containers.GetManager().GetRedpanda(s.T()).Brokers

	producer, err := kafka.New(s.ctx, config.Kafka{Enabled: true, Brokers: s.brokers})
	s.Require().NoError(err)
	s.Require().NoError(producer.EnsureTopics(s.ctx, 1, relayTopic))
	s.producer = producer
}

func (s *RelaySuite) TearDownSuite() {
	if s.producer != nil {
		_ = s.producer.Close(s.ctx)
	}
}

func (s *RelaySuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(s.ctx))
}

func (s *RelaySuite) TestRelaysOutboxRowsOnce() {
	store := New(s.pg.Pool)
	citizen := domain.NewCitizenID()
	for _, action := range []audit.AuditEvent{audit.EventCitizenOnboarded, audit.EventConsentGranted} {
		s.Require().NoError(store.Append(s.ctx, audit.Event{
			Category:     audit.CategoryCompliance,
			Timestamp:    time.Now(),
			CitizenID:    citizen,
			Action:       string(action),
			DataCategory: domain.CategoryHealth,
		}))
	}

	relay := NewRelay(s.pg.Pool, s.producer, relayTopic, WithBatchSize(10))
	n, err := relay.RelayOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, n)

	n, err = relay.RelayOnce(s.ctx)
	s.Require().NoError(err)
	s.Zero(n, "published rows must not be relayed again")

	payloads := s.consume(2)
	s.Equal(string(audit.EventCitizenOnboarded), payloads[0].Action)
	s.Equal(string(audit.EventConsentGranted), payloads[1].Action)
	s.Equal(citizen.String(), payloads[0].CitizenID)
}

func (s *RelaySuite) consume(want int) []audit.Payload {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(s.brokers...),
		kgo.ConsumeTopics(relayTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(s.ctx, 15*time.Second)
	defer cancel()

	var out []audit.Payload
	for len(out) < want {
		fetches := client.PollFetches(ctx)
		s.Require().NoError(ctx.Err(), "timed out after %d of %d records", len(out), want)
		fetches.EachRecord(func(r *kgo.Record) {
			var p audit.Payload
			s.Require().NoError(json.Unmarshal(r.Value, &p))
			out = append(out, p)
		})
	}
	return out
}

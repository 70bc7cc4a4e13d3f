package service

import (
	"context"
	"time"

	"truconn/pkg/domain"
	dErrors "truconn/pkg/domain-errors"
)

// StoreTx serializes every mutation of one citizen's consent, grant and
// request state. fn receives a store bound to the transaction; its writes
// become visible together when fn returns nil and are discarded otherwise.
type StoreTx interface {
	RunInTx(ctx context.Context, citizenID domain.CitizenID, fn func(ctx context.Context, store Store) error) error
}

// StagedStore buffers writes until Commit.
type StagedStore interface {
	Store
	Commit()
}

// Stager opens staged write sets over an in-memory store.
type Stager interface {
	Begin() StagedStore
}

// shardedConsentTx provides fine-grained locking using sharded semaphores.
// Instead of a single global lock, operations are distributed across N shards
// based on a hash of the citizen ID, reducing contention under concurrent load.
const numConsentShards = 128

// defaultConsentTxTimeout is the maximum duration for a consent transaction.
const defaultConsentTxTimeout = 5 * time.Second

type shardedConsentTx struct {
	shards  [numConsentShards]chan struct{}
	stager  Stager
	timeout time.Duration
}

// NewShardedTx returns the in-memory StoreTx.
func NewShardedTx(stager Stager, timeout time.Duration) StoreTx {
	t := &shardedConsentTx{stager: stager, timeout: timeout}
	for i := range t.shards {
		t.shards[i] = make(chan struct{}, 1)
	}
	return t
}

func (t *shardedConsentTx) RunInTx(ctx context.Context, citizenID domain.CitizenID, fn func(ctx context.Context, store Store) error) error {
	// Check if context is already cancelled
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	// Apply timeout if not already set
	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultConsentTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := t.shards[selectShard(citizenID)]
	select {
	case shard <- struct{}{}:
	case <-ctx.Done():
		return dErrors.Wrap(ctx.Err(), dErrors.CodeConflict, "citizen record is busy, retry")
	}
	defer func() { <-shard }()

	staged := t.stager.Begin()
	if err := fn(ctx, staged); err != nil {
		return err
	}
	staged.Commit()
	return nil
}

// selectShard picks a shard from the citizen ID.
func selectShard(citizenID domain.CitizenID) int {
	return int(hashConsentString(citizenID.String()) % numConsentShards)
}

// hashConsentString uses FNV-1a for better hash distribution than simple multiply-add.
func hashConsentString(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

// Package locks provides a sharded keyed mutex used to serialize mutations of
// a single claim and its receipts. Instead of one global lock, operations are
// distributed across N shards by an FNV-1a hash of the claim id, so different
// claims proceed fully in parallel while same-claim mutations are exclusive.
package locks

import (
	"context"
	"sync"
	"time"

	dErrors "claimdesk/pkg/domain-errors"
)

const numShards = 128

// defaultTimeout bounds how long a caller may hold or wait for a shard.
const defaultTimeout = 5 * time.Second

// Keyed is a sharded mutex keyed by string.
type Keyed struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

// NewKeyed constructs a sharded lock. A zero timeout means defaultTimeout.
func NewKeyed(timeout time.Duration) *Keyed {
	return &Keyed{timeout: timeout}
}

// Run executes fn while holding the shard for key. The context is given a
// deadline when it has none, and is re-checked after the lock is acquired so
// a caller that waited past its deadline does not run anyway.
func (k *Keyed) Run(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "aborted: context cancelled")
	}

	timeout := k.timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := &k.shards[hashKey(key)%numShards]
	shard.Lock()
	defer shard.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "aborted: context cancelled")
	}
	return fn(ctx)
}

// hashKey uses FNV-1a for even shard distribution.
func hashKey(s string) uint32 {
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

// Package lock provides per-document mutual exclusion for ingest runs.
package lock

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/edwardbudaza/pdfchat/internal/domain"
)

// DefaultTTL bounds how long a crashed holder can block a document.
const DefaultTTL = 10 * time.Minute

// ReleaseFunc gives the lock back. Calling it more than once is safe.
type ReleaseFunc = domain.ReleaseFunc

// store is the consumer interface for the Redis lock (ISP).
type store interface {
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	DelIfEqual(ctx context.Context, key, value string) (bool, error)
}

// Redis holds locks as SET NX PX keys carrying a random token.
// Release deletes the key only while it still holds that token.
type Redis struct {
	store store
	keys  domain.Keyspace
	ttl   time.Duration
}

// NewRedis creates a Redis-backed locker.
func NewRedis(s store, keys domain.Keyspace, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{store: s, keys: keys, ttl: ttl}
}

// Acquire takes the lock for documentID or returns domain.ErrIngestInProgress.
func (l *Redis) Acquire(ctx context.Context, documentID string) (ReleaseFunc, error) {
	key := l.keys.LockKey(documentID)
	token := uuid.NewString()

	ok, err := l.store.SetNX(ctx, key, token, l.ttl)
	if err != nil {
		return nil, domain.NewUpstreamError("vector_index", "lock", err)
	}
	if !ok {
		return nil, fmt.Errorf("document %s: %w", documentID, domain.ErrIngestInProgress)
	}

	var released atomic.Bool
	return func(ctx context.Context) error {
		if released.Swap(true) {
			return nil
		}
		if _, err := l.store.DelIfEqual(ctx, key, token); err != nil {
			return fmt.Errorf("release lock %s: %w", documentID, err)
		}
		return nil
	}, nil
}

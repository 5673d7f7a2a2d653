package domain

import "context"

// ReleaseFunc gives a held lock back.
type ReleaseFunc func(ctx context.Context) error

// Locker provides per-document mutual exclusion. Acquire never blocks: a held lock is ErrIngestInProgress.
type Locker interface {
	Acquire(ctx context.Context, documentID string) (ReleaseFunc, error)
}

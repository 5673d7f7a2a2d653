package lock

import (
	"context"
	"fmt"
	"sync"

	"github.com/edwardbudaza/pdfchat/internal/domain"
)

// Memory is an in-process keyed lock for single-instance deployments.
type Memory struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemory creates an in-process locker.
func NewMemory() *Memory {
	return &Memory{held: make(map[string]struct{})}
}

// Acquire takes the lock for documentID or returns domain.ErrIngestInProgress. It never blocks.
func (l *Memory) Acquire(_ context.Context, documentID string) (ReleaseFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[documentID]; ok {
		return nil, fmt.Errorf("document %s: %w", documentID, domain.ErrIngestInProgress)
	}
	l.held[documentID] = struct{}{}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, documentID)
			l.mu.Unlock()
		})
		return nil
	}, nil
}

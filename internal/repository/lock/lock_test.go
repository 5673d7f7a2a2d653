package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edwardbudaza/pdfchat/internal/domain"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	mu   sync.Mutex
	keys map[string]string
	err  error
}

func newMockStore() *mockStore { return &mockStore{keys: map[string]string{}} }

func (m *mockStore) SetNX(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = value
	return true, nil
}

func (m *mockStore) DelIfEqual(_ context.Context, key, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] != value {
		return false, nil
	}
	delete(m.keys, key)
	return true, nil
}

func TestRedis_SecondAcquireFails(t *testing.T) {
	ms := newMockStore()
	l := NewRedis(ms, domain.NewKeyspace(""), time.Minute)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "doc-1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, ok := ms.keys["pdfchat:lock:ingest:doc-1"]; !ok {
		t.Fatalf("lock key not written: %v", ms.keys)
	}

	_, err = l.Acquire(ctx, "doc-1")
	if !errors.Is(err, domain.ErrIngestInProgress) || !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrIngestInProgress, got %v", err)
	}

	if err := release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := l.Acquire(ctx, "doc-1"); err != nil {
		t.Fatalf("re-acquire after release: %v", err)
	}
}

func TestRedis_StaleReleaseKeepsNewHolder(t *testing.T) {
	ms := newMockStore()
	l := NewRedis(ms, domain.NewKeyspace(""), time.Minute)
	ctx := context.Background()

	release, _ := l.Acquire(ctx, "doc-1")
	// TTL expiry handed the lock to another run.
	ms.keys["pdfchat:lock:ingest:doc-1"] = "other-token"

	if err := release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ms.keys["pdfchat:lock:ingest:doc-1"] != "other-token" {
		t.Error("stale release removed another holder's lock")
	}
}

func TestRedis_StoreError(t *testing.T) {
	ms := newMockStore()
	ms.err = errors.New("connection refused")
	l := NewRedis(ms, domain.NewKeyspace(""), 0)

	_, err := l.Acquire(context.Background(), "doc-1")
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestMemory_ExclusiveUnderContention(t *testing.T) {
	l := NewMemory()
	ctx := context.Background()

	var acquired atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Acquire(ctx, "doc-1"); err == nil {
				acquired.Add(1)
			}
		}()
	}
	wg.Wait()

	if acquired.Load() != 1 {
		t.Fatalf("expected exactly one holder, got %d", acquired.Load())
	}
}

func TestMemory_ReleaseIsIdempotent(t *testing.T) {
	l := NewMemory()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "doc-1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	_ = release(ctx)

	second, err := l.Acquire(ctx, "doc-1")
	if err != nil {
		t.Fatalf("re-acquire: %v", err)
	}
	_ = release(ctx) // stale release must not free the new holder

	if _, err := l.Acquire(ctx, "doc-1"); !errors.Is(err, domain.ErrIngestInProgress) {
		t.Fatalf("expected lock still held, got %v", err)
	}
	_ = second(ctx)
}

func TestMemory_KeysAreIndependent(t *testing.T) {
	l := NewMemory()
	ctx := context.Background()

	if _, err := l.Acquire(ctx, "doc-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Acquire(ctx, "doc-2"); err != nil {
		t.Fatalf("different documents must not block each other: %v", err)
	}
}

package namespace

import "context"

// Registry creates and drops vector namespaces.
type Registry interface {
	Exists(ctx context.Context, ns string) (bool, error)
	Create(ctx context.Context, ns string, dimension int) error
	Drop(ctx context.Context, ns string) error
}

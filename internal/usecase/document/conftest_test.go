package document

import (
	"context"
	"io"

	domdoc "github.com/edwardbudaza/pdfchat/internal/domain/document"
)

type mockStore struct {
	createFn func(ctx context.Context, doc domdoc.Document) error
	getFn    func(ctx context.Context, id string) (domdoc.Document, error)
	listFn   func(ctx context.Context) ([]domdoc.Document, error)
	deleteFn func(ctx context.Context, id string) error
}

func (m *mockStore) Create(ctx context.Context, doc domdoc.Document) error {
	if m.createFn != nil {
		return m.createFn(ctx, doc)
	}
	return nil
}

func (m *mockStore) Get(ctx context.Context, id string) (domdoc.Document, error) {
	return m.getFn(ctx, id)
}

func (m *mockStore) List(ctx context.Context) ([]domdoc.Document, error) {
	return m.listFn(ctx)
}

func (m *mockStore) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockNamespaces struct {
	allocateFn func(ctx context.Context, name string) (string, error)
	released   []string
	releaseErr error
}

func (m *mockNamespaces) Allocate(ctx context.Context, name string) (string, error) {
	if m.allocateFn != nil {
		return m.allocateFn(ctx, name)
	}
	return "ns", nil
}

func (m *mockNamespaces) Release(_ context.Context, ns string) error {
	m.released = append(m.released, ns)
	return m.releaseErr
}

type mockBlobs struct {
	putFn   func(ctx context.Context, id, name string, body io.Reader, size int64) (string, error)
	deleted []string
}

func (m *mockBlobs) Put(ctx context.Context, id, name string, body io.Reader, size int64) (string, error) {
	if m.putFn != nil {
		return m.putFn(ctx, id, name, body, size)
	}
	return "file:///blobs/" + id + "/" + name, nil
}

func (m *mockBlobs) Delete(_ context.Context, location string) error {
	m.deleted = append(m.deleted, location)
	return nil
}

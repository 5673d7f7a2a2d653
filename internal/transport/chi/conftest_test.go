package chi

import (
	"context"

	domdoc "github.com/edwardbudaza/pdfchat/internal/domain/document"
	healthuc "github.com/edwardbudaza/pdfchat/internal/usecase/health"
	ingestuc "github.com/edwardbudaza/pdfchat/internal/usecase/ingest"
)

type mockDocuments struct {
	uploadFn func(ctx context.Context, displayName string, data []byte) (domdoc.Document, error)
	listFn   func(ctx context.Context) ([]domdoc.Document, error)
	getFn    func(ctx context.Context, id string) (domdoc.Document, error)
	deleteFn func(ctx context.Context, id string) error
}

func (m *mockDocuments) Upload(ctx context.Context, displayName string, data []byte) (domdoc.Document, error) {
	return m.uploadFn(ctx, displayName, data)
}

func (m *mockDocuments) List(ctx context.Context) ([]domdoc.Document, error) {
	return m.listFn(ctx)
}

func (m *mockDocuments) Get(ctx context.Context, id string) (domdoc.Document, error) {
	return m.getFn(ctx, id)
}

func (m *mockDocuments) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

type mockIngester struct {
	ingestFn func(ctx context.Context, id string) (ingestuc.Result, error)
	calls    int
}

func (m *mockIngester) Ingest(ctx context.Context, id string) (ingestuc.Result, error) {
	m.calls++
	return m.ingestFn(ctx, id)
}

type mockAnswerer struct {
	answerFn func(ctx context.Context, id, query string) (string, error)
	calls    int
}

func (m *mockAnswerer) Answer(ctx context.Context, id, query string) (string, error) {
	m.calls++
	return m.answerFn(ctx, id, query)
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

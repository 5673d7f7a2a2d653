// Package document handles the document lifecycle outside ingestion: upload, listing and deletion.
package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edwardbudaza/pdfchat/internal/domain"
	domdoc "github.com/edwardbudaza/pdfchat/internal/domain/document"
	"github.com/edwardbudaza/pdfchat/internal/logger"
)

var pdfMagic = []byte("%PDF-")

// Service coordinates the document store, vector namespaces and blob storage.
type Service struct {
	store      Store
	namespaces Namespaces
	blobs      Blobs
	locks      domain.Locker
	now        func() time.Time
	newID      func() string
}

// New creates a document service.
func New(store Store, namespaces Namespaces, blobs Blobs, locks domain.Locker) *Service {
	return &Service{
		store:      store,
		namespaces: namespaces,
		blobs:      blobs,
		locks:      locks,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Upload stores a new PDF: allocate its namespace, write the bytes, then create the record.
// A failure after a step undoes the earlier steps.
func (s *Service) Upload(ctx context.Context, displayName string, data []byte) (domdoc.Document, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return domdoc.Document{}, domain.ValidationError("file name is required")
	}
	if err := domdoc.ValidateDisplayName(displayName); err != nil {
		return domdoc.Document{}, domain.ValidationError("%v", err)
	}
	if len(data) == 0 {
		return domdoc.Document{}, domain.ValidationError("file is empty")
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return domdoc.Document{}, domain.ValidationError("file %q is not a PDF", displayName)
	}

	id := s.newID()
	log := logger.FromContext(ctx).With(zap.String("document_id", id), zap.String("file_name", displayName))

	ns, err := s.namespaces.Allocate(ctx, displayName)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("allocate namespace: %w", err)
	}

	location, err := s.blobs.Put(ctx, id, displayName, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		err = fmt.Errorf("store file: %w", err)
		return domdoc.Document{}, s.rollback(ctx, log, err, ns, "")
	}

	doc, err := domdoc.New(id, displayName, location, ns, s.now())
	if err != nil {
		err = domain.ValidationError("%v", err)
		return domdoc.Document{}, s.rollback(ctx, log, err, ns, location)
	}

	if err := s.store.Create(ctx, doc); err != nil {
		err = fmt.Errorf("create document: %w", err)
		return domdoc.Document{}, s.rollback(ctx, log, err, ns, location)
	}

	log.Info("Document uploaded",
		zap.String("namespace", ns),
		zap.String("location", location),
		zap.Int("bytes", len(data)),
	)
	return doc, nil
}

// rollback undoes the upload steps that succeeded, on a context detached from the request.
func (s *Service) rollback(ctx context.Context, log *zap.Logger, cause error, ns, location string) error {
	ctx = context.WithoutCancel(ctx)
	errs := []error{cause}

	if location != "" {
		if err := s.blobs.Delete(ctx, location); err != nil {
			errs = append(errs, fmt.Errorf("rollback blob: %w", err))
		}
	}
	if ns != "" {
		if err := s.namespaces.Release(ctx, ns); err != nil {
			errs = append(errs, fmt.Errorf("rollback namespace: %w", err))
		}
	}

	if len(errs) > 1 {
		log.Error("Upload rollback incomplete", zap.Error(errors.Join(errs[1:]...)))
	} else {
		log.Warn("Upload rolled back", zap.Error(cause))
	}
	return errors.Join(errs...)
}

// List returns every document, newest first.
func (s *Service) List(ctx context.Context) ([]domdoc.Document, error) {
	docs, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// Get returns one document or domain.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (domdoc.Document, error) {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("get document %s: %w", id, err)
	}
	return doc, nil
}

// Delete removes the document's vectors, its stored file and finally its record,
// which frees the file name and namespace for a later upload.
// It takes the ingest lock, so a document being ingested cannot be deleted.
func (s *Service) Delete(ctx context.Context, id string) error {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get document %s: %w", id, err)
	}

	release, err := s.locks.Acquire(ctx, id)
	if err != nil {
		return fmt.Errorf("lock document %s: %w", id, err)
	}
	defer func() { _ = release(context.WithoutCancel(ctx)) }()

	if err := s.namespaces.Release(ctx, doc.Namespace()); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	if err := s.blobs.Delete(ctx, doc.SourceLocation()); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}

	logger.FromContext(ctx).Info("Document deleted",
		zap.String("document_id", id),
		zap.String("namespace", doc.Namespace()),
	)
	return nil
}

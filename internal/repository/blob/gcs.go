package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/edwardbudaza/pdfchat/internal/domain"
)

// gcsAPI is the object-level subset of the GCS client the store uses.
type gcsAPI interface {
	NewWriter(ctx context.Context, bucket, key string) io.WriteCloser
	NewReader(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, bucket, key string) error
	Close() error
}

// GCSConfig configures the GCS store.
type GCSConfig struct {
	Bucket string
	Prefix string
}

// GCSStore keeps uploads in one Cloud Storage bucket.
type GCSStore struct {
	client gcsAPI
	bucket string
	prefix string
}

// NewGCSStore builds a client from Application Default Credentials.
func NewGCSStore(ctx context.Context, cfg GCSConfig) (*GCSStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return newGCSStore(gcsClient{client}, cfg.Bucket, cfg.Prefix), nil
}

func newGCSStore(client gcsAPI, bucket, prefix string) *GCSStore {
	return &GCSStore{client: client, bucket: bucket, prefix: prefix}
}

// Put writes the object only if it doesn't already exist.
func (s *GCSStore) Put(ctx context.Context, documentID, fileName string, body io.Reader, _ int64) (string, error) {
	key := ObjectKey(s.prefix, documentID, fileName)
	w := s.client.NewWriter(ctx, s.bucket, key)

	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return "", classifyGCS("put", err)
	}
	if err := w.Close(); err != nil {
		return "", classifyGCS("put", err)
	}
	return Location{Scheme: SchemeGCS, Bucket: s.bucket, Key: key}.String(), nil
}

// Open streams the object at location.
func (s *GCSStore) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	loc, err := s.parse(location)
	if err != nil {
		return nil, err
	}
	r, err := s.client.NewReader(ctx, loc.Bucket, loc.Key)
	if err != nil {
		return nil, classifyGCS("get", err)
	}
	return r, nil
}

// Delete removes the object at location; a missing object is not an error.
func (s *GCSStore) Delete(ctx context.Context, location string) error {
	loc, err := s.parse(location)
	if err != nil {
		return err
	}
	if err := s.client.Delete(ctx, loc.Bucket, loc.Key); err != nil {
		err = classifyGCS("delete", err)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	return nil
}

// Close releases the client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) parse(location string) (Location, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return Location{}, err
	}
	if loc.Scheme != SchemeGCS {
		return Location{}, fmt.Errorf("location %q is not a gcs location", location)
	}
	return loc, nil
}

func classifyGCS(op string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gcs %s: %w", op, ErrNotFound)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusPreconditionFailed:
			return fmt.Errorf("gcs %s: %w", op, domain.ErrConflict)
		case gerr.Code == http.StatusNotFound:
			return fmt.Errorf("gcs %s: %w", op, ErrNotFound)
		case gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500:
			return domain.NewRetryableError("blob_store", "gcs "+op, err)
		}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return domain.NewUpstreamError("blob_store", "gcs "+op, err)
}

// gcsClient adapts *storage.Client to gcsAPI.
type gcsClient struct {
	c *storage.Client
}

func (g gcsClient) NewWriter(ctx context.Context, bucket, key string) io.WriteCloser {
	w := g.c.Bucket(bucket).Object(key).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = "application/pdf"
	return w
}

func (g gcsClient) NewReader(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return g.c.Bucket(bucket).Object(key).NewReader(ctx)
}

func (g gcsClient) Delete(ctx context.Context, bucket, key string) error {
	return g.c.Bucket(bucket).Object(key).Delete(ctx)
}

func (g gcsClient) Close() error { return g.c.Close() }

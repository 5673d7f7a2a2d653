package document

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/edwardbudaza/pdfchat/internal/domain"
	domdoc "github.com/edwardbudaza/pdfchat/internal/domain/document"
)

const pgUniqueViolation = "23505"

const selectColumns = `id, file_name, file_url, vector_index, is_processed, created_at, updated_at`

// SQLStore implements the document store on Postgres or SQLite.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLStore wraps an open database.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// Create inserts a document. Duplicate id, file name, location or namespace → domain.ErrConflict.
func (s *SQLStore) Create(ctx context.Context, doc domdoc.Document) error {
	const query = `
INSERT INTO documents (id, file_name, file_url, vector_index, is_processed, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.db.ExecContext(ctx, s.rebind(query),
		doc.ID(),
		doc.DisplayName(),
		doc.SourceLocation(),
		doc.Namespace(),
		doc.Processed(),
		doc.CreatedAt(),
		doc.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("document %q: %w", doc.DisplayName(), domain.ErrConflict)
		}
		return storeError("create", err)
	}
	return nil
}

// Get returns a document by id or domain.ErrNotFound.
func (s *SQLStore) Get(ctx context.Context, id string) (domdoc.Document, error) {
	query := `SELECT ` + selectColumns + ` FROM documents WHERE id = $1`
	row := s.db.QueryRowContext(ctx, s.rebind(query), id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domdoc.Document{}, domain.ErrNotFound
		}
		return domdoc.Document{}, storeError("get", err)
	}
	return doc, nil
}

// List returns every document, newest first.
func (s *SQLStore) List(ctx context.Context) ([]domdoc.Document, error) {
	query := `SELECT ` + selectColumns + ` FROM documents ORDER BY created_at DESC, id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, storeError("list", err)
	}
	defer rows.Close()

	docs := make([]domdoc.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, storeError("list", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list", err)
	}
	return docs, nil
}

// MarkProcessed flips is_processed false → true. A lost race or an already
// processed row yields domain.ErrAlreadyProcessed; a missing row domain.ErrNotFound.
func (s *SQLStore) MarkProcessed(ctx context.Context, id string, now time.Time) error {
	const query = `UPDATE documents SET is_processed = TRUE, updated_at = $1 WHERE id = $2 AND is_processed = FALSE`
	res, err := s.db.ExecContext(ctx, s.rebind(query), now.UTC(), id)
	if err != nil {
		return storeError("mark processed", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeError("mark processed", err)
	}
	if n == 1 {
		return nil
	}

	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return domain.ErrAlreadyProcessed
}

// Delete removes a document record; domain.ErrNotFound when absent.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM documents WHERE id = $1`
	res, err := s.db.ExecContext(ctx, s.rebind(query), id)
	if err != nil {
		return storeError("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeError("delete", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Ping checks connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind turns $N placeholders into ?N for SQLite.
func (s *SQLStore) rebind(query string) string {
	if s.dialect == SQLite {
		return strings.ReplaceAll(query, "$", "?")
	}
	return query
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (domdoc.Document, error) {
	var (
		id, name, location, namespace string
		processed                     bool
		createdAt, updatedAt          time.Time
	)
	if err := row.Scan(&id, &name, &location, &namespace, &processed, &createdAt, &updatedAt); err != nil {
		return domdoc.Document{}, err
	}
	return domdoc.Reconstruct(id, name, location, namespace, processed, createdAt, updatedAt), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

func storeError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	retryable := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, driver.ErrBadConn)
	return &domain.UpstreamError{Service: "document_store", Op: op, Retryable: retryable, Err: err}
}

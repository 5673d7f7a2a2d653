package document

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxDisplayNameLength bounds the original file name.
const MaxDisplayNameLength = 255

// Document is an uploaded PDF and its ingestion state (immutable value object).
type Document struct {
	id             string
	displayName    string
	sourceLocation string
	namespace      string
	processed      bool
	createdAt      time.Time
	updatedAt      time.Time
}

// New validates and creates an unprocessed Document.
func New(id, displayName, sourceLocation, namespace string, now time.Time) (Document, error) {
	if id == "" {
		return Document{}, fmt.Errorf("document id is required")
	}
	displayName = strings.TrimSpace(displayName)
	if err := ValidateDisplayName(displayName); err != nil {
		return Document{}, err
	}
	if sourceLocation == "" {
		return Document{}, fmt.Errorf("source location is required")
	}
	if namespace == "" {
		return Document{}, fmt.Errorf("namespace is required")
	}

	now = now.UTC()
	return Document{
		id:             id,
		displayName:    displayName,
		sourceLocation: sourceLocation,
		namespace:      namespace,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// ValidateDisplayName checks a trimmed file name against the record's constraints.
func ValidateDisplayName(displayName string) error {
	if displayName == "" {
		return fmt.Errorf("display name is required")
	}
	if utf8.RuneCountInString(displayName) > MaxDisplayNameLength {
		return fmt.Errorf("display name too long (max %d)", MaxDisplayNameLength)
	}
	return nil
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(
	id, displayName, sourceLocation, namespace string,
	processed bool, createdAt, updatedAt time.Time,
) Document {
	return Document{
		id:             id,
		displayName:    displayName,
		sourceLocation: sourceLocation,
		namespace:      namespace,
		processed:      processed,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}
}

// ID returns the document identifier.
func (d Document) ID() string { return d.id }

// DisplayName returns the original file name.
func (d Document) DisplayName() string { return d.displayName }

// SourceLocation returns the blob URI holding the PDF bytes.
func (d Document) SourceLocation() string { return d.sourceLocation }

// Namespace returns the vector namespace holding the page vectors.
func (d Document) Namespace() string { return d.namespace }

// Processed reports whether ingestion has completed.
func (d Document) Processed() bool { return d.processed }

// CreatedAt returns the creation time.
func (d Document) CreatedAt() time.Time { return d.createdAt }

// UpdatedAt returns the last modification time.
func (d Document) UpdatedAt() time.Time { return d.updatedAt }

// MarkProcessed returns a processed copy. The flag never flips back.
func (d Document) MarkProcessed(now time.Time) Document {
	d.processed = true
	d.updatedAt = now.UTC()
	return d
}

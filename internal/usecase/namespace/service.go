// Package namespace derives and allocates vector namespaces from document names.
package namespace

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/gosimple/slug"

	"github.com/edwardbudaza/pdfchat/internal/domain"
)

// MaxLength bounds a namespace name.
const MaxLength = 64

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Service allocates one fresh namespace per uploaded document.
type Service struct {
	registry  Registry
	dimension int
}

// New creates a Service that creates namespaces with the given vector dimension.
func New(registry Registry, dimension int) *Service {
	if dimension <= 0 {
		dimension = domain.DefaultDimensions
	}
	return &Service{registry: registry, dimension: dimension}
}

// Derive maps a display name to its namespace: final extension stripped, lowercased and
// transliterated. Whitespace and dashes separate words, which are joined by single dashes;
// every other symbol is dropped ("report_v2" -> "reportv2"). Capped at MaxLength.
func Derive(displayName string) string {
	base := strings.TrimSpace(displayName)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	words := strings.FieldsFunc(base, func(r rune) bool {
		return unicode.IsSpace(r) || r == '-'
	})
	parts := make([]string, 0, len(words))
	for _, w := range words {
		if w = nonSlugChars.ReplaceAllString(slug.Make(w), ""); w != "" {
			parts = append(parts, w)
		}
	}

	s := strings.Join(parts, "-")
	if len(s) > MaxLength {
		s = strings.TrimRight(s[:MaxLength], "-")
	}
	return s
}

// Allocate derives the namespace for displayName and creates it.
// An existing namespace is a conflict; it is never reused or renamed.
func (s *Service) Allocate(ctx context.Context, displayName string) (string, error) {
	ns := Derive(displayName)
	if ns == "" {
		return "", domain.ValidationError("file name %q yields an empty namespace", displayName)
	}

	exists, err := s.registry.Exists(ctx, ns)
	if err != nil {
		return "", fmt.Errorf("check namespace %q: %w", ns, err)
	}
	if exists {
		return "", fmt.Errorf("namespace %q: %w", ns, domain.ErrConflict)
	}

	if err := s.registry.Create(ctx, ns, s.dimension); err != nil {
		return "", fmt.Errorf("create namespace %q: %w", ns, err)
	}
	return ns, nil
}

// Release drops a namespace and its vectors. Dropping a missing namespace is not an error.
func (s *Service) Release(ctx context.Context, ns string) error {
	if err := s.registry.Drop(ctx, ns); err != nil {
		return fmt.Errorf("drop namespace %q: %w", ns, err)
	}
	return nil
}

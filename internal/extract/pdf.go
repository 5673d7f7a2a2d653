// Package extract turns PDF bytes into ordered page records.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/edwardbudaza/pdfchat/internal/domain"
	"github.com/edwardbudaza/pdfchat/internal/domain/page"
)

var disableConfigDir sync.Once

// PDFExtractor validates a PDF with pdfcpu and reads per-page text with ledongthuc/pdf.
type PDFExtractor struct {
	validate bool
}

// Option configures a PDFExtractor.
type Option func(*PDFExtractor)

// WithoutValidation skips the pdfcpu structural check and page count cross-check.
func WithoutValidation() Option {
	return func(e *PDFExtractor) { e.validate = false }
}

// NewPDFExtractor creates an extractor. Validation is on by default.
func NewPDFExtractor(opts ...Option) *PDFExtractor {
	disableConfigDir.Do(api.DisableConfigDir)
	e := &PDFExtractor{validate: true}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract returns one record per page, numbered 1..N in document order.
// Page text is every text token of the page concatenated without separators.
// Pages without text still produce a record with empty text.
func (e *PDFExtractor) Extract(ctx context.Context, data []byte) ([]page.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, fmt.Errorf("missing %%PDF header: %w", domain.ErrParse)
	}

	expected := -1
	if e.validate {
		n, err := pageCount(data)
		if err != nil {
			return nil, fmt.Errorf("validate pdf: %v: %w", err, domain.ErrParse)
		}
		expected = n
	}

	return readPages(ctx, data, expected)
}

func pageCount(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.PageCount(bytes.NewReader(data), conf)
}

func readPages(ctx context.Context, data []byte, expected int) (records []page.Record, err error) {
	// ledongthuc/pdf panics on some malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			records = nil
			err = fmt.Errorf("read pdf: %v: %w", r, domain.ErrParse)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %v: %w", err, domain.ErrParse)
	}

	n := reader.NumPage()
	if expected >= 0 && n != expected {
		return nil, fmt.Errorf("page count mismatch: reader=%d validator=%d: %w", n, expected, domain.ErrParse)
	}

	records = make([]page.Record, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		records = append(records, page.Record{Number: i, Text: pageText(reader.Page(i))})
	}
	return records, nil
}

func pageText(p pdf.Page) string {
	if p.V.IsNull() || p.V.Key("Contents").IsNull() {
		return ""
	}
	var sb strings.Builder
	for _, t := range p.Content().Text {
		sb.WriteString(t.S)
	}
	return sb.String()
}

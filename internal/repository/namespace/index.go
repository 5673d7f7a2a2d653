package namespace

import (
	"github.com/edwardbudaza/pdfchat/internal/db"
	"github.com/edwardbudaza/pdfchat/internal/domain"
)

// Page hash fields indexed by FT.CREATE.
const (
	FieldPageNumber = "page_number"
	FieldText       = "text"
	FieldVector     = "vector"
)

// buildIndex creates the page index: NUMERIC page number, TEXT body, HNSW/COSINE vector.
func buildIndex(keys domain.Keyspace, ns string, dimension int, hnsw HNSWConfig) (*db.IndexDefinition, error) {
	return db.NewIndex(keys.IndexName(ns)).
		Prefix(keys.PagePrefix(ns)).
		Numeric(FieldPageNumber).
		Text(FieldText).
		VectorHNSW(FieldVector, dimension, db.DistanceCosine, hnsw.M, hnsw.EFConstruct).
		Build()
}

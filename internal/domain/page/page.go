package page

import (
	"fmt"
	"strconv"
	"strings"
)

const idPrefix = "page"

// Record is one extracted PDF page. Number is 1-based.
type Record struct {
	Number    int
	Text      string
	Embedding []float32
}

// ID returns the identity of the page inside a namespace ("page{N}").
func (r Record) ID() string { return ID(r.Number) }

// WithEmbedding returns a copy carrying the given vector.
func (r Record) WithEmbedding(v []float32) Record {
	r.Embedding = v
	return r
}

// ID formats the vector id for page n.
func ID(n int) string { return idPrefix + strconv.Itoa(n) }

// ParseID extracts the page number from a "page{N}" id.
func ParseID(id string) (int, error) {
	rest, ok := strings.CutPrefix(id, idPrefix)
	if !ok {
		return 0, fmt.Errorf("page id %q: missing %q prefix", id, idPrefix)
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("page id %q: invalid page number", id)
	}
	return n, nil
}

// Match is a page returned by a similarity query, in rank order.
type Match struct {
	ID     string
	Number int
	Text   string
	Score  float64
}

// ValidateSequence checks that records are numbered 1..N in order.
func ValidateSequence(records []Record) error {
	for i, r := range records {
		if r.Number != i+1 {
			return fmt.Errorf("page %d at position %d: pages must be numbered 1..N", r.Number, i)
		}
	}
	return nil
}

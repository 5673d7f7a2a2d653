package page

import (
	"encoding/binary"
	"math"
	"strconv"

	dompage "github.com/edwardbudaza/pdfchat/internal/domain/page"
	"github.com/edwardbudaza/pdfchat/internal/repository/namespace"
)

// recordToHash converts a page record to HSET fields.
func recordToHash(rec dompage.Record) map[string]string {
	return map[string]string{
		namespace.FieldPageNumber: strconv.Itoa(rec.Number),
		namespace.FieldText:       rec.Text,
		namespace.FieldVector:     vectorToBytes(rec.Embedding),
	}
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

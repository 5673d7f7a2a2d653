package namespace

import (
	"strconv"
	"time"
)

// Meta is the metadata hash stored next to a namespace index.
type Meta struct {
	Name      string
	Dimension int
	CreatedAt int64 // unix millis
}

func metaToHash(m Meta) map[string]string {
	return map[string]string{
		"name":       m.Name,
		"dimension":  strconv.Itoa(m.Dimension),
		"created_at": strconv.FormatInt(m.CreatedAt, 10),
	}
}

func nowMillis() int64 { return time.Now().UnixMilli() }

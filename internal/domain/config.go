package domain

const (
	// DefaultKeyPrefix namespaces every key and index written to Redis.
	DefaultKeyPrefix = "pdfchat:"
	// DefaultDimensions matches text-embedding-ada-002 and text-embedding-3-small.
	DefaultDimensions = 1536
	// DefaultTopK is how many passages feed one answer.
	DefaultTopK = 5
	// DefaultMaxAnswerTokens caps the completion length.
	DefaultMaxAnswerTokens = 500
)

// Keyspace derives Redis key and index names.
//
//	{prefix}namespace:{ns}      namespace metadata hash
//	{prefix}ns:{ns}:idx         FT index over the namespace pages
//	{prefix}ns:{ns}:page{N}     page hash
//	{prefix}lock:ingest:{id}    ingest lock
//	{prefix}emb:{sha256}        cached embedding
type Keyspace struct {
	prefix string
}

// NewKeyspace returns a keyspace rooted at prefix, or DefaultKeyPrefix when empty.
func NewKeyspace(prefix string) Keyspace {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return Keyspace{prefix: prefix}
}

// Prefix returns the root prefix.
func (k Keyspace) Prefix() string { return k.prefix }

// MetaKey returns the metadata hash key of a namespace.
func (k Keyspace) MetaKey(ns string) string { return k.prefix + "namespace:" + ns }

// IndexName returns the FT index name of a namespace.
func (k Keyspace) IndexName(ns string) string { return k.prefix + "ns:" + ns + ":idx" }

// PagePrefix returns the key prefix the namespace index covers.
func (k Keyspace) PagePrefix(ns string) string { return k.prefix + "ns:" + ns + ":" }

// PageKey returns the hash key of a page record.
func (k Keyspace) PageKey(ns, id string) string { return k.PagePrefix(ns) + id }

// LockKey returns the ingest lock key of a document.
func (k Keyspace) LockKey(documentID string) string { return k.prefix + "lock:ingest:" + documentID }

// EmbeddingKey returns the cache key for a text hash.
func (k Keyspace) EmbeddingKey(hash string) string { return k.prefix + "emb:" + hash }

package index

import "time"

// Snapshot object keys within the storage backend.
const (
	graphKey    = "graph.hnsw"
	docstoreKey = "docstore.json"
	manifestKey = "manifest.json"
)

// Manifest describes a persisted index snapshot. It is written alongside the
// graph and docstore so a loaded snapshot can be sanity-checked without
// decoding the graph.
type Manifest struct {
	TotalDocuments int       `json:"total_documents"`
	Dimension      int       `json:"dimension"`
	M              int       `json:"hnsw_m"`
	Ml             float64   `json:"hnsw_ml"`
	EfSearch       int       `json:"hnsw_ef_search"`
	EmbeddingModel string    `json:"embedding_model"`
	CreatedAt      time.Time `json:"created_at"`

	// Extra carries build metadata such as the source snapshot or city.
	Extra map[string]string `json:"extra,omitempty"`
}

package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coder/hnsw"

	"github.com/Septimus4/AgendaFlow/internal/event"
	"github.com/Septimus4/AgendaFlow/internal/storage"
	"github.com/Septimus4/AgendaFlow/pkg/logger"
)

// Embedder produces the vectors the index is built from and searched with.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// Params are the HNSW graph parameters. EfSearch can be tuned per deployment
// independently of how the graph was constructed.
type Params struct {
	M        int
	Ml       float64
	EfSearch int
}

// DefaultParams returns the graph parameters used in production.
func DefaultParams() Params {
	return Params{
		M:        32,
		Ml:       0.25,
		EfSearch: 64,
	}
}

// SearchResult pairs a document with its similarity to the query.
// Similarity is 1/(1+distance), monotone in the cosine distance.
type SearchResult struct {
	Document   event.Document
	Similarity float64
}

// Manager owns an HNSW graph over the event corpus plus the parallel
// docstore mapping graph keys back to documents. A Manager is built (or
// loaded) once and then read-only; refreshing the corpus means building a
// new Manager and swapping the handle.
type Manager struct {
	embedder Embedder
	store    storage.Store
	params   Params

	graph    *hnsw.Graph[int]
	docs     []event.Document
	manifest Manifest
}

// NewManager creates an empty Manager. Call Build or Load before Search.
func NewManager(embedder Embedder, store storage.Store, params Params) *Manager {
	if params.M <= 0 {
		params = DefaultParams()
	}
	return &Manager{
		embedder: embedder,
		store:    store,
		params:   params,
	}
}

// Ready reports whether the Manager holds a searchable graph.
func (m *Manager) Ready() bool {
	return m.graph != nil
}

// Size returns the number of indexed documents.
func (m *Manager) Size() int {
	return len(m.docs)
}

// Manifest returns the manifest of the built or loaded snapshot.
func (m *Manager) Manifest() Manifest {
	return m.manifest
}

// Build embeds all document texts and constructs the graph. Building an
// empty corpus is an error: an event index with nothing in it means the
// ingestion step failed.
func (m *Manager) Build(ctx context.Context, docs []event.Document) error {
	if len(docs) == 0 {
		return errors.New("index: cannot build from empty document set")
	}

	texts := make([]string, len(docs))
	for i := range docs {
		texts[i] = docs[i].Text
	}

	start := time.Now()
	vectors, err := m.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("index: embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("index: embedding count mismatch: got %d want %d", len(vectors), len(docs))
	}

	graph := hnsw.NewGraph[int]()
	graph.M = m.params.M
	graph.Ml = m.params.Ml
	graph.EfSearch = m.params.EfSearch
	graph.Distance = hnsw.CosineDistance

	for i, vec := range vectors {
		graph.Add(hnsw.MakeNode(i, vec))
	}

	m.graph = graph
	m.docs = docs
	m.manifest = Manifest{
		TotalDocuments: len(docs),
		Dimension:      len(vectors[0]),
		M:              m.params.M,
		Ml:             m.params.Ml,
		EfSearch:       m.params.EfSearch,
		EmbeddingModel: m.embedder.Model(),
		CreatedAt:      time.Now().UTC(),
	}

	logger.Info("Built index",
		"documents", len(docs),
		"dimension", m.manifest.Dimension,
		"took", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

// Save persists the graph, docstore and manifest through the storage
// backend. extra is merged into the manifest's build metadata.
func (m *Manager) Save(ctx context.Context, extra map[string]string) error {
	if m.graph == nil {
		return errors.New("index: nothing to save")
	}

	if len(extra) > 0 {
		if m.manifest.Extra == nil {
			m.manifest.Extra = map[string]string{}
		}
		for k, v := range extra {
			m.manifest.Extra[k] = v
		}
	}

	var graphBuf bytes.Buffer
	if err := m.graph.Export(&graphBuf); err != nil {
		return fmt.Errorf("index: export graph: %w", err)
	}
	if err := m.store.Put(ctx, graphKey, graphBuf.Bytes()); err != nil {
		return fmt.Errorf("index: save graph: %w", err)
	}

	docsData, err := json.Marshal(m.docs)
	if err != nil {
		return fmt.Errorf("index: encode docstore: %w", err)
	}
	if err := m.store.Put(ctx, docstoreKey, docsData); err != nil {
		return fmt.Errorf("index: save docstore: %w", err)
	}

	manifestData, err := json.MarshalIndent(m.manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("index: encode manifest: %w", err)
	}
	if err := m.store.Put(ctx, manifestKey, manifestData); err != nil {
		return fmt.Errorf("index: save manifest: %w", err)
	}

	logger.Info("Saved index snapshot", "documents", len(m.docs))
	return nil
}

// Load restores a snapshot from the storage backend. A missing snapshot is
// not an error: Load returns (false, nil) and the Manager stays not ready.
// An embedding-model mismatch between manifest and configuration is logged
// as a warning but does not block loading.
func (m *Manager) Load(ctx context.Context) (bool, error) {
	manifestData, err := m.store.Get(ctx, manifestKey)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("index: load manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(manifestData, &manifest); err != nil {
		return false, fmt.Errorf("index: decode manifest: %w", err)
	}

	if manifest.EmbeddingModel != "" && manifest.EmbeddingModel != m.embedder.Model() {
		logger.Warn("Index was built with a different embedding model",
			"index_model", manifest.EmbeddingModel,
			"configured_model", m.embedder.Model(),
		)
	}

	docsData, err := m.store.Get(ctx, docstoreKey)
	if err != nil {
		return false, fmt.Errorf("index: load docstore: %w", err)
	}
	var docs []event.Document
	if err := json.Unmarshal(docsData, &docs); err != nil {
		return false, fmt.Errorf("index: decode docstore: %w", err)
	}

	graphData, err := m.store.Get(ctx, graphKey)
	if err != nil {
		return false, fmt.Errorf("index: load graph: %w", err)
	}
	graph := hnsw.NewGraph[int]()
	if err := graph.Import(bytes.NewReader(graphData)); err != nil {
		return false, fmt.Errorf("index: import graph: %w", err)
	}
	// Import restores the persisted search parameter; the configured value
	// wins so EfSearch stays tunable without rebuilding.
	if m.params.EfSearch > 0 {
		graph.EfSearch = m.params.EfSearch
	}

	if graph.Len() != len(docs) {
		logger.Warn("Index graph and docstore sizes differ",
			"graph", graph.Len(), "docstore", len(docs))
	}

	m.graph = graph
	m.docs = docs
	m.manifest = manifest

	logger.Info("Loaded index snapshot",
		"documents", len(docs),
		"model", manifest.EmbeddingModel,
		"created_at", manifest.CreatedAt,
	)
	return true, nil
}

// Search embeds the query and returns the k nearest documents with their
// similarity scores. Graph keys without a docstore entry are skipped.
func (m *Manager) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	if m.graph == nil {
		return nil, errors.New("index: not built")
	}
	if k <= 0 {
		return nil, nil
	}

	queryVec, err := m.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("index: embed query: %w", err)
	}

	nodes := m.graph.Search(queryVec, k)

	results := make([]SearchResult, 0, len(nodes))
	for _, node := range nodes {
		if node.Key < 0 || node.Key >= len(m.docs) {
			logger.Warn("Search returned dangling docstore position", "key", node.Key)
			continue
		}
		dist := hnsw.CosineDistance(queryVec, node.Value)
		results = append(results, SearchResult{
			Document:   m.docs[node.Key],
			Similarity: 1.0 / (1.0 + float64(dist)),
		})
	}
	return results, nil
}

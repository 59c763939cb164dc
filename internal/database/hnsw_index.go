package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/coder/hnsw"
	"github.com/google/renameio"

	"github.com/kozaktomas/face-id/internal/facematch"
	"github.com/kozaktomas/face-id/internal/identity"
)

// HNSWIndexMetadata stores metadata for validating cached HNSW indexes.
type HNSWIndexMetadata struct {
	RecordCount int       `json:"record_count"`
	MaxRecordID int64     `json:"max_record_id"`
	Metric      string    `json:"metric"`
	BuildTime   time.Time `json:"build_time"`
	Version     int       `json:"version"` // For future compatibility
}

const hnswMetadataVersion = 1

// HNSWIndex wraps the HNSW graph used to preselect match candidates.
type HNSWIndex struct {
	graph  *hnsw.Graph[int64]
	live   map[int64]struct{} // IDs still present in the store
	metric facematch.Metric
	mu     sync.RWMutex
}

// NewHNSWIndex creates a new empty HNSW index for the given metric.
func NewHNSWIndex(metric facematch.Metric) *HNSWIndex {
	return &HNSWIndex{
		graph:  newGraph(metric),
		live:   make(map[int64]struct{}),
		metric: metric,
	}
}

func newGraph(metric facematch.Metric) *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	if metric == facematch.MetricCosine {
		g.Distance = hnsw.CosineDistance
	} else {
		g.Distance = hnsw.EuclideanDistance
	}
	return g
}

// Build replaces the index contents with records.
func (h *HNSWIndex) Build(records []identity.Record) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.graph = newGraph(h.metric)
	h.live = make(map[int64]struct{}, len(records))
	for _, rec := range records {
		if len(rec.Embedding) == 0 {
			continue
		}
		h.graph.Add(hnsw.MakeNode(rec.ID, []float32(rec.Embedding.Clone())))
		h.live[rec.ID] = struct{}{}
	}
}

// Add adds a single record to the index.
func (h *HNSWIndex) Add(rec identity.Record) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(rec.Embedding) == 0 {
		return
	}
	h.graph.Add(hnsw.MakeNode(rec.ID, []float32(rec.Embedding.Clone())))
	h.live[rec.ID] = struct{}{}
}

// Delete removes a record from search results.
// HNSW deletion degrades the graph, so the node stays and is filtered by lookup.
func (h *HNSWIndex) Delete(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.live, id)
}

// Search returns the IDs of up to k approximate nearest live records.
func (h *HNSWIndex) Search(query identity.Embedding, k int) []int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if k <= 0 || len(h.live) == 0 || h.graph.Len() == 0 {
		return nil
	}

	// Ask for enough extra nodes to cover the deleted ones still in the graph.
	want := min(k+h.graph.Len()-len(h.live), h.graph.Len())
	neighbors := h.graph.Search([]float32(query), want)

	// Recompute distances: the graph does not return neighbors in order.
	type candidate struct {
		id   int64
		dist float64
	}
	cands := make([]candidate, 0, len(neighbors))
	for _, n := range neighbors {
		if _, ok := h.live[n.Key]; !ok {
			continue
		}
		cands = append(cands, candidate{n.Key, h.metric.Distance(query, n.Value)})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		return cands[i].id < cands[j].id
	})

	ids := make([]int64, 0, min(k, len(cands)))
	for _, c := range cands[:min(k, len(cands))] {
		ids = append(ids, c.id)
	}
	return ids
}

// Count returns the number of live records in the index.
func (h *HNSWIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.live)
}

// SaveWithMetadata persists the graph to path along with a .meta file for
// staleness detection. Both files are replaced atomically.
func (h *HNSWIndex) SaveWithMetadata(path string, metadata HNSWIndexMetadata) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.live) == 0 {
		// Remove existing files if index is empty (best-effort cleanup).
		_ = os.Remove(path)
		_ = os.Remove(path + ".meta")
		return nil
	}

	t, err := renameio.TempFile("", path)
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	defer t.Cleanup()

	if err := h.graph.Export(t); err != nil {
		return fmt.Errorf("failed to export HNSW graph: %w", err)
	}
	if err := t.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("failed to replace HNSW index file: %w", err)
	}

	metadata.Version = hnswMetadataVersion
	metadata.Metric = string(h.metric)
	metaData, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := renameio.WriteFile(path+".meta", metaData, 0600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	return nil
}

// LoadHNSWMetadata loads metadata from a separate .meta file.
func LoadHNSWMetadata(path string) (HNSWIndexMetadata, error) {
	var metadata HNSWIndexMetadata

	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata file: %w", err)
	}

	if err := json.Unmarshal(data, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return metadata, nil
}

// MetadataFor describes the given records the way SaveWithMetadata expects.
func MetadataFor(records []identity.Record) HNSWIndexMetadata {
	meta := HNSWIndexMetadata{RecordCount: len(records), BuildTime: time.Now()}
	for _, rec := range records {
		meta.MaxRecordID = max(meta.MaxRecordID, rec.ID)
	}
	return meta
}

// LoadHNSWIndex loads a saved index if its metadata still matches records.
// It returns (nil, nil) when there is no saved index or it is stale, in
// which case the caller should rebuild.
func LoadHNSWIndex(path string, metric facematch.Metric, records []identity.Record) (*HNSWIndex, error) {
	meta, err := LoadHNSWMetadata(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	want := MetadataFor(records)
	if meta.Version != hnswMetadataVersion || meta.Metric != string(metric) ||
		meta.RecordCount != want.RecordCount || meta.MaxRecordID != want.MaxRecordID {
		return nil, nil
	}

	f, err := os.Open(path) //nolint:gosec // path is from trusted config
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open HNSW index: %w", err)
	}
	defer f.Close()

	h := NewHNSWIndex(metric)
	if err := h.graph.Import(f); err != nil {
		return nil, fmt.Errorf("failed to load HNSW index: %w", err)
	}
	for _, rec := range records {
		h.live[rec.ID] = struct{}{}
	}
	return h, nil
}

package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

// Store errors.
var (
	ErrInvalidScoreThreshold = errors.New("score threshold must be between 0 and 1")
	ErrUnsupportedFilter     = errors.New("filters must be a map[string]any of metadata values")
	ErrEmbeddingMismatch     = errors.New("embedder returned the wrong number of vectors")
	ErrNoEmbedder            = errors.New("no embedder configured")
)

// Entry is a stored chunk with its vector.
type Entry struct {
	ID        string
	Namespace string
	Document  schema.Document
	Vector    []float32
}

// Index persists entries for a VectorStore.
type Index interface {
	Put(ctx context.Context, entries []Entry) error
	All(ctx context.Context) ([]Entry, error)
}

// VectorStore is an in-memory cosine-similarity store. With an Index it
// writes through on AddDocuments and reloads on creation.
type VectorStore struct {
	mu       sync.RWMutex
	embedder embeddings.Embedder
	index    Index
	entries  []Entry
}

var _ vectorstores.VectorStore = (*VectorStore)(nil)

// StoreOption configures a VectorStore.
type StoreOption func(*VectorStore)

// WithIndex persists entries to idx.
func WithIndex(idx Index) StoreOption {
	return func(s *VectorStore) {
		s.index = idx
	}
}

// NewVectorStore creates a store embedding with embedder. When an index is
// configured its entries are loaded.
func NewVectorStore(ctx context.Context, embedder embeddings.Embedder, opts ...StoreOption) (*VectorStore, error) {
	s := &VectorStore{embedder: embedder}
	for _, opt := range opts {
		opt(s)
	}
	if s.index != nil {
		entries, err := s.index.All(ctx)
		if err != nil {
			return nil, fmt.Errorf("load index: %w", err)
		}
		s.entries = entries
	}
	return s, nil
}

// Len returns the number of stored chunks.
func (s *VectorStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// AddDocuments implements vectorstores.VectorStore.
// Supported options: WithEmbedder, WithNameSpace, WithDeduplicater.
func (s *VectorStore) AddDocuments(ctx context.Context, docs []schema.Document, options ...vectorstores.Option) ([]string, error) {
	opts := s.options(options)
	if opts.Embedder == nil {
		return nil, ErrNoEmbedder
	}

	kept := make([]schema.Document, 0, len(docs))
	for _, doc := range docs {
		if opts.Deduplicater != nil && opts.Deduplicater(ctx, doc) {
			continue
		}
		kept = append(kept, doc)
	}
	if len(kept) == 0 {
		return nil, nil
	}

	texts := make([]string, len(kept))
	for i, doc := range kept {
		texts[i] = doc.PageContent
	}
	vectors, err := opts.Embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(kept) {
		return nil, fmt.Errorf("%w: got %d for %d documents", ErrEmbeddingMismatch, len(vectors), len(kept))
	}

	entries := make([]Entry, len(kept))
	ids := make([]string, len(kept))
	for i, doc := range kept {
		ids[i] = uuid.NewString()
		entries[i] = Entry{ID: ids[i], Namespace: opts.NameSpace, Document: doc, Vector: vectors[i]}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index != nil {
		if err := s.index.Put(ctx, entries); err != nil {
			return nil, fmt.Errorf("persist documents: %w", err)
		}
	}
	s.entries = append(s.entries, entries...)
	return ids, nil
}

// SimilaritySearch implements vectorstores.VectorStore. Results are ordered
// by descending cosine similarity, which is also set as each document's Score.
// Supported options: WithEmbedder, WithNameSpace, WithScoreThreshold, and
// WithFilters with a map of metadata values that must all match.
func (s *VectorStore) SimilaritySearch(ctx context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]schema.Document, error) {
	opts := s.options(options)
	if opts.ScoreThreshold < 0 || opts.ScoreThreshold > 1 {
		return nil, ErrInvalidScoreThreshold
	}
	filter, err := metadataFilter(opts.Filters)
	if err != nil {
		return nil, err
	}
	if opts.Embedder == nil {
		return nil, ErrNoEmbedder
	}
	if numDocuments <= 0 {
		return nil, nil
	}

	qv, err := opts.Embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	s.mu.RLock()
	var hits []schema.Document
	for _, e := range s.entries {
		if e.Namespace != opts.NameSpace || !filter(e.Document.Metadata) {
			continue
		}
		score := cosine(qv, e.Vector)
		if opts.ScoreThreshold > 0 && score < opts.ScoreThreshold {
			continue
		}
		doc := e.Document
		doc.Score = score
		hits = append(hits, doc)
	}
	s.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > numDocuments {
		hits = hits[:numDocuments]
	}
	return hits, nil
}

func (s *VectorStore) options(options []vectorstores.Option) vectorstores.Options {
	opts := vectorstores.Options{}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.Embedder == nil {
		opts.Embedder = s.embedder
	}
	return opts
}

func metadataFilter(filters any) (func(map[string]any) bool, error) {
	if filters == nil {
		return func(map[string]any) bool { return true }, nil
	}
	want, ok := filters.(map[string]any)
	if !ok {
		return nil, ErrUnsupportedFilter
	}
	return func(md map[string]any) bool {
		for k, v := range want {
			got, ok := md[k]
			if !ok || !sameValue(got, v) {
				return false
			}
		}
		return true
	}, nil
}

// sameValue reports whether two metadata values are equal. Values that
// differ only in the Go types a JSON round trip produces, such as []string
// and []any or int and float64, compare equal.
func sameValue(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	ja, err := json.Marshal(a)
	if err != nil {
		return false
	}
	jb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(ja) == string(jb)
}

// cosine returns the cosine similarity of a and b, 0 when either is zero or
// their lengths differ.
func cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

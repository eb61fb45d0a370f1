package retrieval

import (
	"context"
	"errors"
	"sort"
	"sync"

	"novel-rag-engine/internal/domain/entity"
)

type fakeEmbedder struct {
	vec     []float32
	err     error
	failFor map[string]bool
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

func (f *fakeEmbedder) EmbedMany(_ context.Context, texts []string) ([][]float32, []error) {
	vecs := make([][]float32, len(texts))
	errs := make([]error, len(texts))
	for i, t := range texts {
		if f.err != nil || f.failFor[t] {
			errs[i] = errors.New("embed failed")
			continue
		}
		vecs[i] = f.vec
	}
	return vecs, errs
}

type fakeVectorStore struct {
	mu       sync.Mutex
	hits     []VectorHit
	err      error
	inserted map[string][]VectorRecord
	queries  []VectorFilter
}

func (f *fakeVectorStore) Query(_ context.Context, _ string, _ []float32, k int, filter VectorFilter) ([]VectorHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, filter)
	if f.err != nil {
		return nil, f.err
	}
	var out []VectorHit
	for _, h := range f.hits {
		if filter.Match(h.Chapter, h.HasDialogue) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (f *fakeVectorStore) Insert(_ context.Context, collection string, records []VectorRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.inserted == nil {
		f.inserted = make(map[string][]VectorRecord)
	}
	f.inserted[collection] = append(f.inserted[collection], records...)
	return nil
}

func (f *fakeVectorStore) DeleteCollection(_ context.Context, collection string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.inserted, collection)
	return nil
}

func (f *fakeVectorStore) ListCollections(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.inserted))
	for k := range f.inserted {
		out = append(out, k)
	}
	return out, nil
}

type fakeChunkSource struct {
	chunks []entity.Chunk
	calls  int
}

func (f *fakeChunkSource) LoadChunks(context.Context, string) ([]entity.Chunk, error) {
	f.calls++
	return f.chunks, nil
}

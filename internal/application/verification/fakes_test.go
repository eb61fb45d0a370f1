package verification

import (
	"context"
	"sync"

	"novel-rag-engine/internal/application/retrieval"
	"novel-rag-engine/internal/domain/entity"
)

type fakeRetriever struct {
	mu         sync.Mutex
	candidates []entity.Candidate
	keyword    []retrieval.KeywordHit
	err        error
	// filteredEmpty 为 true 时带章节过滤的关键词检索返回空
	filteredEmpty bool
	filters       []retrieval.VectorFilter
}

func (f *fakeRetriever) Search(_ context.Context, _ retrieval.SearchInput) (*retrieval.SearchOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]entity.Candidate, len(f.candidates))
	copy(out, f.candidates)
	return &retrieval.SearchOutput{Candidates: out}, nil
}

func (f *fakeRetriever) KeywordSearch(_ context.Context, _, _ string, _ int, filter retrieval.VectorFilter) []retrieval.KeywordHit {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	if f.filteredEmpty && filter.ChapterFrom > 0 {
		return nil
	}
	return f.keyword
}

type fakeHistory map[[2]string][]entity.Checkpoint

func (h fakeHistory) Evolution(a, b string) []entity.Checkpoint {
	if t, ok := h[[2]string{a, b}]; ok {
		return t
	}
	return h[[2]string{b, a}]
}

type fakeImportance map[int]float64

func (f fakeImportance) ChapterImportance(ch int) (float64, bool) {
	v, ok := f[ch]
	return v, ok
}

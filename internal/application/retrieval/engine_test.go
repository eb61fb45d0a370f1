package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-rag-engine/internal/domain/entity"
)

func newTestRetriever(store *fakeVectorStore, emb *fakeEmbedder, kw *KeywordRegistry) *HybridRetriever {
	return NewHybridRetriever(emb, store, kw, DefaultOptions())
}

func TestSearchDropsDistantHits(t *testing.T) {
	store := &fakeVectorStore{hits: []VectorHit{
		{ID: "near", Distance: 0.4, TextContent: encodeChunkText(ChunkMeta{ChapterTitle: "落魄天才", Seq: 2}, "萧炎站在广场上"), Chapter: 1},
		{ID: "edge", Distance: 1.2, TextContent: "纳兰嫣然", Chapter: 2},
		{ID: "far", Distance: 1.5, TextContent: "云岚宗", Chapter: 3},
	}}
	r := NewHybridRetriever(&fakeEmbedder{vec: []float32{1, 0}}, store, nil, Options{KeywordEnabled: false, VectorWeight: 1})

	out, err := r.Search(context.Background(), SearchInput{CorpusID: "doupo", Query: "萧炎"})
	require.NoError(t, err)
	require.Len(t, out.Candidates, 2)
	assert.Equal(t, "near", out.Candidates[0].ID)
	assert.Equal(t, "落魄天才", out.Candidates[0].ChapterTitle)
	assert.Equal(t, 2, out.Candidates[0].Seq)
	assert.Equal(t, "萧炎站在广场上", out.Candidates[0].Content)
	assert.Equal(t, "edge", out.Candidates[1].ID)
	assert.Empty(t, out.DisabledReason)
}

func TestSearchDegradesOnVectorError(t *testing.T) {
	kw := NewKeywordRegistry()
	kw.GetOrCreate("doupo").Add(entity.Chunk{ID: "k1", Chapter: 4, Content: "萧炎与药老在山洞中修炼"})
	store := &fakeVectorStore{err: errors.New("milvus down")}

	out, err := newTestRetriever(store, &fakeEmbedder{vec: []float32{1}}, kw).
		Search(context.Background(), SearchInput{CorpusID: "doupo", Query: "药老修炼"})
	require.NoError(t, err)
	assert.Contains(t, out.DisabledReason, "milvus down")
	require.Len(t, out.Candidates, 1)
	assert.Equal(t, "k1", out.Candidates[0].ID)
	assert.Equal(t, string(entity.SourceKeyword), out.Candidates[0].Source)
	assert.Equal(t, 1.2, out.Candidates[0].Distance)
}

func TestSearchDegradesOnEmbeddingError(t *testing.T) {
	out, err := newTestRetriever(&fakeVectorStore{}, &fakeEmbedder{err: errors.New("quota")}, nil).
		Search(context.Background(), SearchInput{CorpusID: "doupo", Query: "萧炎"})
	require.NoError(t, err)
	assert.Empty(t, out.Candidates)
	assert.Contains(t, out.DisabledReason, "quota")
}

func TestSearchDisabledWithoutStore(t *testing.T) {
	out, err := NewHybridRetriever(nil, nil, nil, DefaultOptions()).
		Search(context.Background(), SearchInput{CorpusID: "doupo", Query: "萧炎"})
	require.NoError(t, err)
	assert.Equal(t, ErrVectorDisabled.Error(), out.DisabledReason)
}

func TestSearchRejectsMissingInput(t *testing.T) {
	r := newTestRetriever(&fakeVectorStore{}, &fakeEmbedder{}, nil)
	_, err := r.Search(context.Background(), SearchInput{Query: "萧炎"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = r.Search(context.Background(), SearchInput{CorpusID: "x", Query: "  "})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSearchFusesBothPaths(t *testing.T) {
	kw := NewKeywordRegistry()
	kw.GetOrCreate("doupo").Add(
		entity.Chunk{ID: "shared", Chapter: 1, Content: "萧炎退婚纳兰嫣然"},
		entity.Chunk{ID: "kwonly", Chapter: 9, Content: "纳兰嫣然的退婚"},
	)
	store := &fakeVectorStore{hits: []VectorHit{
		{ID: "veconly", Distance: 0.2, TextContent: "三年之约", Chapter: 2},
		{ID: "shared", Distance: 0.3, TextContent: "萧炎退婚纳兰嫣然", Chapter: 1},
	}}

	out, err := newTestRetriever(store, &fakeEmbedder{vec: []float32{1}}, kw).
		Search(context.Background(), SearchInput{CorpusID: "doupo", Query: "退婚纳兰嫣然"})
	require.NoError(t, err)

	ids := make([]string, 0, len(out.Candidates))
	for _, c := range out.Candidates {
		ids = append(ids, c.ID)
	}
	assert.ElementsMatch(t, []string{"shared", "veconly", "kwonly"}, ids)
	assert.Equal(t, "shared", out.Candidates[0].ID)
	assert.Equal(t, "hybrid", out.Candidates[0].Source)
	assert.Greater(t, out.FusedScores["shared"], out.FusedScores["veconly"])
}

func TestSearchRelaxesDialogueFilter(t *testing.T) {
	store := &fakeVectorStore{hits: []VectorHit{{ID: "n1", Distance: 0.5, TextContent: "叙述", Chapter: 1}}}
	out, err := newTestRetriever(store, &fakeEmbedder{vec: []float32{1}}, nil).
		Search(context.Background(), SearchInput{CorpusID: "doupo", Query: "说了什么", DialogueOnly: true})
	require.NoError(t, err)
	require.Len(t, out.Candidates, 1)
	assert.True(t, out.Debug.DialogueRelaxed)
	require.Len(t, store.queries, 2)
	assert.True(t, store.queries[0].DialogueOnly)
	assert.False(t, store.queries[1].DialogueOnly)
}

func TestKeywordSearchWarmsUpFromChunkSource(t *testing.T) {
	src := &fakeChunkSource{chunks: []entity.Chunk{{ID: "a", Chapter: 1, Content: "异火榜第一"}}}
	r := NewHybridRetriever(nil, nil, nil, DefaultOptions()).WithChunkSource(src)

	hits := r.KeywordSearch(context.Background(), "doupo", "异火", 5, VectorFilter{})
	require.Len(t, hits, 1)
	r.KeywordSearch(context.Background(), "doupo", "异火", 5, VectorFilter{})
	assert.Equal(t, 1, src.calls)
}

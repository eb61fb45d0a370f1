package retrieval

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-rag-engine/internal/domain/entity"
)

func TestIndexChunksFallsBackToZeroVectors(t *testing.T) {
	store := &fakeVectorStore{}
	kw := NewKeywordRegistry()
	emb := &fakeEmbedder{vec: []float32{0.1, 0.2, 0.3}, failFor: map[string]bool{"坏片段": true}}
	idx := NewIndexer(emb, store, kw, IndexerOptions{EmbeddingBatchSize: 2})

	chunks := []entity.Chunk{
		{ID: "a", Chapter: 1, Content: "好片段一"},
		{ID: "b", Chapter: 1, Seq: 1, Content: "坏片段"},
		{ID: "c", Chapter: 2, Content: "好片段二"},
	}
	report, err := idx.IndexChunks(context.Background(), "doupo", chunks)
	require.NoError(t, err)
	assert.Equal(t, IndexReport{Chunks: 3, Embedded: 2, ZeroVector: 1}, *report)

	recs := store.inserted[CollectionName("doupo")]
	require.Len(t, recs, 3)
	assert.Equal(t, []float32{0, 0, 0}, recs[1].Vector)
	meta, body := decodeChunkText(recs[1].TextContent)
	assert.Equal(t, 1, meta.Seq)
	assert.Equal(t, "坏片段", body)
	assert.Equal(t, 3, kw.Get("doupo").Len())
}

func TestIndexChunksAllFailedWithoutDimension(t *testing.T) {
	idx := NewIndexer(&fakeEmbedder{failFor: map[string]bool{"x": true}}, &fakeVectorStore{}, nil, IndexerOptions{})
	_, err := idx.IndexChunks(context.Background(), "c", []entity.Chunk{{ID: "1", Content: "x"}})
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
}

func TestSplitChapterMarksDialogue(t *testing.T) {
	idx := NewIndexer(nil, nil, nil, IndexerOptions{ChunkSizeRunes: 10, ChunkOverlapRunes: 2})
	text := strings.Repeat("叙", 12) + "“对白”"
	chunks := idx.SplitChapter("c", 7, "第七章", text)

	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].Seq)
	assert.Equal(t, 1, chunks[1].Seq)
	assert.False(t, chunks[0].HasDialogue)
	assert.True(t, chunks[1].HasDialogue)
	assert.Equal(t, 7, chunks[1].Chapter)
}

func TestCollectionName(t *testing.T) {
	assert.Equal(t, "corpus_doupo_v2", CollectionName("doupo-v2"))
}

package milvus

import (
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-rag-engine/internal/application/retrieval"
)

func TestFilterExpr(t *testing.T) {
	tests := []struct {
		name   string
		filter retrieval.VectorFilter
		want   string
	}{
		{"empty", retrieval.VectorFilter{}, ""},
		{"range", retrieval.VectorFilter{ChapterFrom: 3, ChapterTo: 13}, "chapter >= 3 && chapter <= 13"},
		{"dialogue", retrieval.VectorFilter{DialogueOnly: true}, "has_dialogue == true"},
		{"all", retrieval.VectorFilter{ChapterFrom: 1, ChapterTo: 8, DialogueOnly: true}, "chapter >= 1 && chapter <= 8 && has_dialogue == true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterExpr(tt.filter))
		})
	}
}

func TestParseHits(t *testing.T) {
	fields := client.ResultSet{
		entity.NewColumnVarChar(fieldID, []string{"c1", "c2"}),
		entity.NewColumnInt64(fieldChapter, []int64{12, 3}),
		entity.NewColumnBool(fieldHasDialogue, []bool{true, false}),
		entity.NewColumnVarChar(fieldText, []string{"“走吧。”药老说", "萧炎沉默"}),
	}

	hits := parseHits(2, []float32{0.25, 0.9}, fields)
	require.Len(t, hits, 2)
	assert.Equal(t, retrieval.VectorHit{ID: "c1", Distance: 0.25, TextContent: "“走吧。”药老说", Chapter: 12, HasDialogue: true}, hits[0])
	assert.Equal(t, 3, hits[1].Chapter)
	assert.InDelta(t, 0.9, hits[1].Distance, 1e-6)

	assert.Equal(t, 2, rowCount(fields))
	assert.Zero(t, rowCount(client.ResultSet{}))
}

func TestColumnsAndSchema(t *testing.T) {
	cols := columns([]retrieval.VectorRecord{
		{ID: "a", Chapter: 1, HasDialogue: true, TextContent: "x", Vector: []float32{1, 0, 0}},
		{ID: "b", Chapter: 2, TextContent: "y", Vector: []float32{0, 1, 0}},
	}, 3)
	require.Len(t, cols, 5)
	for _, c := range cols {
		assert.Equal(t, 2, c.Len())
	}

	schema := ChunkSchema("novel_corpus_doupo", 3)
	assert.Equal(t, "novel_corpus_doupo", schema.CollectionName)
	assert.Equal(t, "3", schema.Fields[1].TypeParams["dim"])
}

func TestStripPrefix(t *testing.T) {
	got := stripPrefix("novel", []string{"novel_corpus_b", "other_x", "novel_corpus_a"})
	assert.Equal(t, []string{"corpus_a", "corpus_b"}, got)
	assert.Equal(t, "novel_corpus_a", prefixed("novel", "corpus_a"))
	assert.Equal(t, "corpus_a", prefixed("", "corpus_a"))
}

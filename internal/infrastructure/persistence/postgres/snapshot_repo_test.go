package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-rag-engine/internal/domain/entity"
	"novel-rag-engine/internal/infrastructure/persistence/snapshot"
)

func TestNewSnapshotModel(t *testing.T) {
	g := entity.NewGraph("wudong", 1300)
	g.BuiltAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a, _ := g.Intern("林动", entity.CategoryCharacter)
	b, _ := g.Intern("小貂", entity.CategoryCharacter)
	g.AddEdge(entity.RelationEdge{Source: a, Target: b, Type: entity.RelationAlly, StartChapter: 5})
	g.AddEdge(entity.RelationEdge{Source: b, Target: a, Type: entity.RelationAlly, StartChapter: 5})

	payload, err := snapshot.Encode(g)
	require.NoError(t, err)

	row := newSnapshotModel(g, payload, 4)
	assert.NotEmpty(t, row.ID)
	assert.Equal(t, "wudong", row.CorpusID)
	assert.Equal(t, 4, row.Revision)
	assert.Equal(t, entity.SnapshotVersion, row.FormatVersion)
	assert.Equal(t, 2, row.NodeCount)
	assert.Equal(t, 2, row.EdgeCount)
	assert.Equal(t, []string{string(entity.RelationAlly)}, []string(row.RelationTypes))
	assert.Equal(t, 1300, row.TotalChapters)
	assert.True(t, row.BuiltAt.Equal(g.BuiltAt))

	decoded, err := snapshot.Decode(row.Payload)
	require.NoError(t, err)
	assert.Len(t, decoded.Edges, 2)
}

func TestImportanceRowsSortedByChapter(t *testing.T) {
	g := entity.NewGraph("wudong", 10)
	g.ChapterImportance[7] = 0.3
	g.ChapterImportance[2] = 0.9
	g.ChapterImportance[5] = 0.6

	rows := importanceRows(g, 3)
	require.Len(t, rows, 3)
	assert.Equal(t, []int{2, 5, 7}, []int{rows[0].Chapter, rows[1].Chapter, rows[2].Chapter})
	for _, r := range rows {
		assert.Equal(t, "wudong", r.CorpusID)
		assert.Equal(t, 3, r.Revision)
	}
}

func TestPruneFloor(t *testing.T) {
	assert.Zero(t, pruneFloor(5, 0))
	assert.Zero(t, pruneFloor(3, 3))
	assert.Equal(t, 2, pruneFloor(5, 3))
	assert.Equal(t, 9, pruneFloor(10, 1))
}

func TestRelationTypesDeduplicated(t *testing.T) {
	g := entity.NewGraph("wudong", 10)
	a, _ := g.Intern("林动", entity.CategoryCharacter)
	b, _ := g.Intern("小貂", entity.CategoryCharacter)
	c, _ := g.Intern("林琅天", entity.CategoryCharacter)
	g.AddEdge(entity.RelationEdge{Source: a, Target: b, Type: entity.RelationAlly})
	g.AddEdge(entity.RelationEdge{Source: b, Target: a, Type: entity.RelationAlly})
	g.AddEdge(entity.RelationEdge{Source: a, Target: c, Type: entity.RelationAdversary})

	got := relationTypes(g)
	assert.ElementsMatch(t, []string{string(entity.RelationAlly), string(entity.RelationAdversary)}, []string(got))
	assert.Empty(t, relationTypes(entity.NewGraph("empty", 1)))
	assert.NotNil(t, relationTypes(entity.NewGraph("empty", 1)))
}

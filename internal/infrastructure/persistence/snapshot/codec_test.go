package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-rag-engine/internal/domain/entity"
	apperrors "novel-rag-engine/pkg/errors"
)

func sampleGraph() *entity.Graph {
	g := entity.NewGraph("doupo", 120)
	g.BuiltAt = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	xiao, _ := g.Intern("萧炎", entity.CategoryCharacter)
	yao, _ := g.Intern("药老", entity.CategoryCharacter)
	xun, _ := g.Intern("萧薰儿", entity.CategoryCharacter)
	g.Nodes[xiao].FirstChapter, g.Nodes[xiao].LastChapter, g.Nodes[xiao].MentionCount = 1, 120, 118
	g.Nodes[xiao].Importance = 1
	g.Nodes[yao].Attributes = map[string]string{"身份": "炼药师"}

	end := 80
	trajectory := []entity.Checkpoint{
		{Chapter: 3, Type: entity.RelationNeutral, Confidence: 0.6},
		{Chapter: 12, Type: entity.RelationMentor, Confidence: 0.95},
	}
	for _, pair := range [][2]int{{yao, xiao}, {xiao, yao}} {
		g.AddEdge(entity.RelationEdge{
			Source: pair[0], Target: pair[1], Type: entity.RelationMentor, Strength: 1,
			StartChapter: 3, EndChapter: &end, Confidence: 0.775, CooccurrenceCount: 40, Evolution: trajectory,
		})
	}
	g.AddEdge(entity.RelationEdge{Source: xiao, Target: xun, Type: entity.RelationCooccurrence, Strength: 0.15, StartChapter: 2, Confidence: 0.5, CooccurrenceCount: 3})
	g.AddEdge(entity.RelationEdge{Source: xiao, Target: xun, Type: entity.RelationCooccurrence, Strength: 0.1, StartChapter: 40, Confidence: 0.5, CooccurrenceCount: 2})
	g.ChapterImportance[12] = 0.62
	g.ChapterImportance[3] = 0.41
	return g
}

func TestRoundTripPreservesGraph(t *testing.T) {
	g := sampleGraph()

	data, err := Encode(g)
	require.NoError(t, err)
	assert.Equal(t, "NRGS", string(data[:4]))

	got, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, g.CorpusID, got.CorpusID)
	assert.Equal(t, entity.SnapshotVersion, got.Version)
	assert.True(t, g.BuiltAt.Equal(got.BuiltAt))
	assert.Equal(t, g.Nodes, got.Nodes)
	assert.Equal(t, g.Edges, got.Edges)
	assert.Equal(t, g.ChapterImportance, got.ChapterImportance)

	i, ok := got.NodeIndex("萧炎")
	require.True(t, ok)
	j, _ := got.NodeIndex("萧薰儿")
	assert.Len(t, got.EdgesBetween(i, j), 2)

	y, _ := got.NodeIndex("药老")
	mentor, disciple := got.EdgesBetween(y, i), got.EdgesBetween(i, y)
	require.Len(t, mentor, 1)
	require.Len(t, disciple, 1)
	assert.Same(t, &mentor[0].Evolution[0], &disciple[0].Evolution[0])
}

func TestDecodeRejectsForeignData(t *testing.T) {
	_, err := Decode([]byte("hello world"))
	assert.ErrorIs(t, err, apperrors.ErrContractViolation)

	data, err := Encode(sampleGraph())
	require.NoError(t, err)
	data[4] = 9
	_, err = Decode(data)
	assert.ErrorIs(t, err, apperrors.ErrContractViolation)
}

func TestDecodeRejectsDanglingEdge(t *testing.T) {
	g := entity.NewGraph("x", 10)
	g.Intern("甲", entity.CategoryCharacter)
	g.Edges = append(g.Edges, entity.RelationEdge{Source: 0, Target: 3})

	data, err := Encode(g)
	require.NoError(t, err)
	_, err = Decode(data)
	assert.ErrorIs(t, err, apperrors.ErrContractViolation)
}

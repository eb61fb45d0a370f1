package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInternReturnsExistingIndex(t *testing.T) {
	g := NewGraph("c1", 10)
	a, created := g.Intern("萧炎", CategoryCharacter)
	require.True(t, created)
	b, created := g.Intern("萧炎", CategoryCharacter)
	assert.False(t, created)
	assert.Equal(t, a, b)
	assert.Len(t, g.Nodes, 1)
}

func TestAddEdgeAssignsSequence(t *testing.T) {
	g := NewGraph("c1", 10)
	a, _ := g.Intern("萧炎", CategoryCharacter)
	b, _ := g.Intern("药老", CategoryCharacter)

	g.AddEdge(RelationEdge{Source: a, Target: b, Type: RelationMentor})
	g.AddEdge(RelationEdge{Source: a, Target: b, Type: RelationAlly})

	edges := g.EdgesBetween(a, b)
	require.Len(t, edges, 2)
	assert.Equal(t, 0, edges[0].Seq)
	assert.Equal(t, 1, edges[1].Seq)
	assert.Empty(t, g.EdgesBetween(b, a))
}

func TestReindexAfterDecode(t *testing.T) {
	g := &Graph{
		Nodes: []EntityNode{{Name: "萧炎"}, {Name: "萧薰儿"}},
		Edges: []RelationEdge{{Source: 0, Target: 1, Type: RelationRomantic}},
	}
	g.Reindex()

	i, ok := g.NodeIndex("萧薰儿")
	require.True(t, ok)
	assert.Equal(t, 1, i)
	assert.Len(t, g.OutEdges(0), 1)
	assert.NotNil(t, g.ChapterImportance)
}

func TestEdgeTypeAt(t *testing.T) {
	e := RelationEdge{
		Type:         RelationAlly,
		StartChapter: 10,
		EndChapter:   IntPtr(90),
		Evolution: []Checkpoint{
			{Chapter: 10, Type: RelationAdversary},
			{Chapter: 50, Type: RelationAlly},
		},
	}

	_, ok := e.TypeAt(5)
	assert.False(t, ok)
	typ, ok := e.TypeAt(30)
	assert.True(t, ok)
	assert.Equal(t, RelationAdversary, typ)
	typ, _ = e.TypeAt(70)
	assert.Equal(t, RelationAlly, typ)

	assert.True(t, e.ActiveAt(90))
	assert.False(t, e.ActiveAt(91))
	_, ok = e.TypeAt(95)
	assert.False(t, ok)
}

func TestAddSymmetricEdgeSharesTrajectory(t *testing.T) {
	g := NewGraph("c1", 10)
	a, _ := g.Intern("萧炎", CategoryCharacter)
	b, _ := g.Intern("药老", CategoryCharacter)

	fwd, rev := g.AddSymmetricEdge(RelationEdge{
		Source: a, Target: b, Type: RelationMentor,
		Evolution: []Checkpoint{{Chapter: 3, Type: RelationMentor, Confidence: 0.9}},
	})
	require.Len(t, g.Edges, 2)
	assert.Equal(t, b, g.Edges[rev].Source)
	assert.Equal(t, a, g.Edges[rev].Target)
	assert.Same(t, &g.Edges[fwd].Evolution[0], &g.Edges[rev].Evolution[0])
	assert.Len(t, g.EdgesBetween(a, b), 1)
	assert.Len(t, g.EdgesBetween(b, a), 1)

	assert.False(t, g.IsReverse(&g.Edges[fwd]))
	assert.True(t, g.IsReverse(&g.Edges[rev]))
}

func TestReindexRelinksMirroredTrajectory(t *testing.T) {
	g := &Graph{
		Nodes: []EntityNode{{Name: "萧炎"}, {Name: "药老"}},
		Edges: []RelationEdge{
			{Source: 0, Target: 1, Type: RelationAlly, Evolution: []Checkpoint{{Chapter: 1, Type: RelationAlly}}},
			{Source: 1, Target: 0, Type: RelationAlly, Evolution: []Checkpoint{{Chapter: 1, Type: RelationAlly}}},
		},
	}
	g.Reindex()
	assert.Same(t, &g.Edges[0].Evolution[0], &g.Edges[1].Evolution[0])
}

func TestParseRelationType(t *testing.T) {
	typ, err := ParseRelationType(" 师徒 ")
	require.NoError(t, err)
	assert.Equal(t, RelationMentor, typ)

	typ, err = ParseRelationType("宿敌")
	assert.ErrorIs(t, err, ErrUnknownRelationType)
	assert.Equal(t, RelationCooccurrence, typ)

	assert.True(t, RelationKin.Valid())
	assert.False(t, RelationType("宿敌").Valid())
}

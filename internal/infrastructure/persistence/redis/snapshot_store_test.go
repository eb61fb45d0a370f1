package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-rag-engine/internal/domain/entity"
	"novel-rag-engine/internal/domain/repository"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return Wrap(rdb), mr
}

func testGraph(corpusID string) *entity.Graph {
	g := entity.NewGraph(corpusID, 30)
	a, _ := g.Intern("林动", entity.CategoryCharacter)
	b, _ := g.Intern("林琅天", entity.CategoryCharacter)
	g.AddEdge(entity.RelationEdge{Source: a, Target: b, Type: entity.RelationAdversary, Strength: 0.4, StartChapter: 2, Confidence: 0.8, CooccurrenceCount: 8,
		Evolution: []entity.Checkpoint{{Chapter: 2, Type: entity.RelationAdversary, Confidence: 0.8}}})
	g.ChapterImportance[2] = 0.7
	return g
}

func TestSnapshotStoreRoundTrip(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewSnapshotStore(client, 0)
	ctx := context.Background()

	_, err := store.Load(ctx, "wudong")
	assert.ErrorIs(t, err, repository.ErrSnapshotNotFound)

	g := testGraph("wudong")
	require.NoError(t, store.Save(ctx, g))

	ok, err := store.Exists(ctx, "wudong")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.Load(ctx, "wudong")
	require.NoError(t, err)
	assert.Equal(t, g.Nodes, got.Nodes)
	assert.Equal(t, g.Edges, got.Edges)
	assert.InDelta(t, 0.7, got.ChapterImportance[2], 1e-9)

	require.NoError(t, store.Delete(ctx, "wudong"))
	ok, err = store.Exists(ctx, "wudong")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, store.Delete(ctx, "wudong"))
}

func TestSnapshotStoreTTL(t *testing.T) {
	client, mr := newTestClient(t)
	store := NewSnapshotStore(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testGraph("wudong")))
	mr.FastForward(2 * time.Hour)

	_, err := store.Load(ctx, "wudong")
	assert.ErrorIs(t, err, repository.ErrSnapshotNotFound)
}

func TestSnapshotStoreRejectsCorruptValue(t *testing.T) {
	client, mr := newTestClient(t)
	require.NoError(t, mr.Set(SnapshotKey("broken"), "not gzip"))

	_, err := NewSnapshotStore(client, 0).Load(context.Background(), "broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrSnapshotNotFound)
}

func TestSnapshotStoreConcurrentLoads(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewSnapshotStore(client, 0)
	require.NoError(t, store.Save(context.Background(), testGraph("wudong")))

	var wg sync.WaitGroup
	graphs := make([]*entity.Graph, 8)
	errs := make([]error, 8)
	for i := range graphs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			graphs[i], errs[i] = store.Load(context.Background(), "wudong")
		}(i)
	}
	wg.Wait()

	for i := range graphs {
		require.NoError(t, errs[i])
		assert.Len(t, graphs[i].Edges, 1)
	}
}

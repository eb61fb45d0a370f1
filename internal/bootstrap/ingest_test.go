package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-rag-engine/internal/application/graph"
	"novel-rag-engine/internal/application/retrieval"
	"novel-rag-engine/internal/domain/service"
	"novel-rag-engine/internal/infrastructure/messaging"
	"novel-rag-engine/internal/infrastructure/persistence/redis"
)

type keywordNER []string

func (k keywordNER) ExtractEntities(_ context.Context, text string) service.EntitySet {
	var set service.EntitySet
	for _, n := range k {
		if strings.Contains(text, n) {
			set.Characters = append(set.Characters, n)
		}
	}
	return set
}

func keywordOnlyEngine(t *testing.T) *Engine {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	keywords := retrieval.NewKeywordRegistry()
	builder := graph.NewBuilder(graph.DefaultTierConfig(), nil, graph.DefaultPageRankOptions())
	return &Engine{
		Keywords: keywords,
		Indexer:  retrieval.NewIndexer(nil, nil, keywords, retrieval.IndexerOptions{}),
		NER:      keywordNER{"萧炎", "药老"},
		Graphs:   graph.NewService(builder, redis.NewSnapshotStore(redis.Wrap(rdb), 0), nil),
	}
}

const corpusJSON = `{
	"id": "doupo",
	"chapters": [
		{"number": 1, "title": "陨落的天才", "text": "萧炎站在测验石碑前，药老在戒指中沉睡。"},
		{"number": 2, "title": "斗之气", "text": "药老醒来，对萧炎说：从今天起我教你炼药。"}
	]
}`

func writeCorpus(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doupo.json")
	require.NoError(t, os.WriteFile(path, []byte(corpusJSON), 0o600))
	return path
}

func TestIngestIndexesKeywordsAndBuildsGraph(t *testing.T) {
	e := keywordOnlyEngine(t)
	c, err := ReadCorpusFile(writeCorpus(t))
	require.NoError(t, err)

	report, err := e.Ingest(context.Background(), c, true)
	require.NoError(t, err)
	require.NotNil(t, report.Index)
	assert.Positive(t, report.Index.Chunks)
	assert.Zero(t, report.Index.Embedded)
	assert.NotNil(t, e.Keywords.Get("doupo"))
	assert.Equal(t, 2, report.Graph.Nodes)

	q, err := e.Graphs.Open(context.Background(), "doupo")
	require.NoError(t, err)
	assert.Equal(t, 2, q.Graph().TotalChapters)
}

func TestLoadCorpusFromFileMergesAliases(t *testing.T) {
	e := keywordOnlyEngine(t)
	path := writeCorpus(t)

	c, err := e.LoadCorpus(context.Background(), &messaging.GraphBuildJob{
		CorpusID:   "doupo",
		CorpusPath: path,
		Aliases:    map[string]string{"炎儿": "萧炎"},
	})
	require.NoError(t, err)
	assert.Equal(t, "萧炎", c.Aliases["炎儿"])

	_, err = e.LoadCorpus(context.Background(), &messaging.GraphBuildJob{CorpusID: "other", CorpusPath: path})
	assert.Error(t, err)
}

func TestLoadCorpusWithoutPathNeedsVectorStore(t *testing.T) {
	e := keywordOnlyEngine(t)
	_, err := e.LoadCorpus(context.Background(), &messaging.GraphBuildJob{CorpusID: "doupo"})
	assert.Error(t, err)
}

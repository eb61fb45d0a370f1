package verification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-rag-engine/internal/application/retrieval"
	"novel-rag-engine/internal/config"
	"novel-rag-engine/internal/domain/entity"
)

func TestCollectorMergesSourcesAndDedupes(t *testing.T) {
	r := &fakeRetriever{
		candidates: []entity.Candidate{
			{Content: "萧炎拜药老为师", Chapter: 3, Distance: 0.2, Source: string(entity.SourceVector)},
			{Content: "药老传授焚决", Chapter: 3, Distance: 0.5, Source: string(entity.SourceVector)},
			{Content: "萧炎与药老分别", Chapter: 7, Distance: 0.4, Source: string(entity.SourceVector)},
		},
		keyword: []retrieval.KeywordHit{{Chunk: entity.Chunk{Chapter: 9, Content: "萧炎、药老"}, Score: 1}},
	}
	history := fakeHistory{
		{"萧炎", "药老"}: {
			{Chapter: 1, Type: entity.RelationAlly, Confidence: 0.8},
			{Chapter: 6, Type: entity.RelationAdversary, Confidence: 0.9},
		},
	}
	c := NewCollector(r, 3)

	got := c.Collect(context.Background(), "novel-1", entity.Assertion{
		Text:     "萧炎与药老是师徒关系",
		Type:     entity.AssertionRelation,
		Entities: []string{"萧炎", "药老"},
	}, history)

	require.Len(t, got, 3)
	assert.Equal(t, 1, *got[0].Chapter)
	assert.Equal(t, 3, *got[1].Chapter)
	assert.Equal(t, "萧炎拜药老为师", got[1].Content)
	assert.Equal(t, 6, *got[2].Chapter)
	assert.Equal(t, entity.SourceGraph, got[0].Source)
	assert.Equal(t, "萧炎与药老的关系在第1章为：盟友", got[0].Content)
}

func TestCollectorKeywordFallsBackToWholeCorpus(t *testing.T) {
	r := &fakeRetriever{
		keyword:       []retrieval.KeywordHit{{Chunk: entity.Chunk{Chapter: 40, Content: "萧炎"}, Score: 3}},
		filteredEmpty: true,
	}
	got := NewCollector(r, 3).Collect(context.Background(), "novel-1", assertion("萧炎在第3章到达", 3, "萧炎"), nil)

	require.Len(t, r.filters, 2)
	assert.Equal(t, retrieval.VectorFilter{ChapterFrom: 1, ChapterTo: 8}, r.filters[0])
	assert.Equal(t, retrieval.VectorFilter{}, r.filters[1])
	require.Len(t, got, 1)
	assert.Equal(t, entity.SourceKeyword, got[0].Source)
	assert.InDelta(t, 0.75, got[0].Score, 1e-9)
}

func TestCollectorDegradesOnSearchError(t *testing.T) {
	r := &fakeRetriever{err: assert.AnError}
	got := NewCollector(r, 3).Collect(context.Background(), "novel-1", entity.Assertion{Text: "天色已晚"}, nil)
	assert.Empty(t, got)
}

func TestVerifyDeathRevivalIsHighTemporal(t *testing.T) {
	p := NewPipeline(nil, DefaultConfig())

	res, err := p.Verify(context.Background(), Input{
		CorpusID: "novel-1",
		Answer:   "萧炎在第1章死亡。萧炎在第10章复活。",
	})
	require.NoError(t, err)

	require.NotEmpty(t, res.Contradictions)
	top := res.Contradictions[0]
	assert.Equal(t, entity.ContradictionTemporal, top.Type)
	assert.Equal(t, entity.ConfidenceHigh, top.Confidence)
	assert.Equal(t, 1, *top.EarlyChapter)
	assert.Equal(t, 10, *top.LateChapter)

	seen := make(map[contradictionKey]bool)
	for _, c := range res.Contradictions {
		k := contradictionKey{c.Type, chapterKey(c.EarlyChapter), chapterKey(c.LateChapter)}
		assert.False(t, seen[k])
		seen[k] = true
	}

	assert.Equal(t, entity.ConfidenceLow, res.Confidence)
	assert.Contains(t, res.Answer, "⚠️")
	assert.True(t, res.Degraded)
	assert.Equal(t, []Stage{
		StageExtractAssertions, StageCollectEvidence, StageScoreEvidence,
		StageCheckConsistency, StageDetectContradictions, StageCorrectAnswer, StageDone,
	}, res.Stages)
	assert.Contains(t, res.Explanation, "置信度较低")
}

func TestVerifyCleanAnswerKeepsConfidence(t *testing.T) {
	r := &fakeRetriever{
		candidates: []entity.Candidate{{Content: "萧炎拜药老为师", Chapter: 3, Distance: 0.3, Source: string(entity.SourceVector)}},
	}
	p := NewPipeline(r, DefaultConfig())

	res, err := p.Verify(context.Background(), Input{
		CorpusID:      "novel-1",
		Answer:        "萧炎在第3章拜药老为师",
		Confidence:    entity.ConfidenceMedium,
		TotalChapters: 100,
		History:       fakeHistory{},
		Importance:    fakeImportance{3: 0.9},
	})
	require.NoError(t, err)

	assert.Empty(t, res.Contradictions)
	assert.Equal(t, entity.ConfidenceMedium, res.Confidence)
	assert.Equal(t, "萧炎在第3章拜药老为师", res.Answer)
	assert.False(t, res.Degraded)
	require.Len(t, res.Evidence, 1)
	require.NotEmpty(t, res.Evidence[0])
	assert.Greater(t, res.Evidence[0][0].Overall, 0.0)
}

func TestVerifyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewPipeline(nil, DefaultConfig()).Verify(ctx, Input{CorpusID: "novel-1", Answer: "萧炎在第1章死亡"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
}

func TestConfigFromFallsBackToDefaults(t *testing.T) {
	cfg := ConfigFrom(config.VerificationConfig{EvidenceTopK: 5})
	assert.Equal(t, 5, cfg.EvidenceTopK)
	assert.InDelta(t, 0.5, cfg.MinAssertionConfidence, 1e-9)
	assert.Equal(t, 10, cfg.DirectConflictMinGap)
}

package qa

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-rag-engine/internal/application/graph"
	"novel-rag-engine/internal/application/rerank"
	"novel-rag-engine/internal/application/retrieval"
	"novel-rag-engine/internal/application/verification"
	"novel-rag-engine/internal/domain/entity"
	"novel-rag-engine/internal/domain/service"
	apperrors "novel-rag-engine/pkg/errors"
)

type fakeSearcher struct {
	out  *retrieval.SearchOutput
	last retrieval.SearchInput
}

func (f *fakeSearcher) Search(_ context.Context, in retrieval.SearchInput) (*retrieval.SearchOutput, error) {
	f.last = in
	if f.out == nil {
		return &retrieval.SearchOutput{}, nil
	}
	cp := *f.out
	cp.Candidates = append([]entity.Candidate(nil), f.out.Candidates...)
	return &cp, nil
}

type fakeLLM struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
	msgs  []service.Message
}

func (f *fakeLLM) Complete(_ context.Context, msgs []service.Message, _ service.CompletionOptions) (*service.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.msgs = msgs
	if f.err != nil {
		return nil, f.err
	}
	return &service.Completion{Text: f.text, Usage: service.Usage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120}}, nil
}

func (f *fakeLLM) prompt() string {
	var b strings.Builder
	for _, m := range f.msgs {
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}

type staticGraphs struct {
	q *graph.Query
}

func (s staticGraphs) OpenOptional(context.Context, string) *graph.Query {
	return s.q
}

func sampleSnapshot() *graph.Query {
	g := entity.NewGraph("doupo", 100)
	xiao, _ := g.Intern("萧炎", entity.CategoryCharacter)
	yao, _ := g.Intern("药老", entity.CategoryCharacter)
	g.AddEdge(entity.RelationEdge{
		Source: yao, Target: xiao, Type: entity.RelationMentor, Strength: 1, StartChapter: 3, Confidence: 0.9,
		Evolution: []entity.Checkpoint{
			{Chapter: 3, Type: entity.RelationNeutral, Confidence: 0.6},
			{Chapter: 12, Type: entity.RelationMentor, Confidence: 0.95},
		},
	})
	g.ChapterImportance[12] = 0.75
	return graph.NewQuery(g)
}

func sampleCandidates() []entity.Candidate {
	return []entity.Candidate{
		{ID: "c1", Content: "药老收萧炎为徒，传授焚决。", Chapter: 12, Distance: 0.3},
		{ID: "c2", Content: "萧炎初遇药老，心存戒备。", Chapter: 3, Distance: 0.5},
		{ID: "c3", Content: "萧炎在乌坦城修炼。", Chapter: 1, Distance: 0.9},
		{ID: "c4", Content: "药老再次提点萧炎。", Chapter: 12, Seq: 9, Distance: 0.6},
	}
}

func newTestService(s Searcher, llm service.ChatCompleter, graphs GraphOpener) *Service {
	opts := DefaultOptions()
	opts.Retry = opts.Retry.WithSleep(func(context.Context, time.Duration) error { return nil })
	return NewService(s, rerank.New(rerank.DefaultConfig()), llm, nil, graphs,
		verification.NewPipeline(nil, verification.DefaultConfig()), opts)
}

func TestAskDegradedWithoutSnapshot(t *testing.T) {
	searcher := &fakeSearcher{out: &retrieval.SearchOutput{Candidates: sampleCandidates()}}
	llm := &fakeLLM{text: "萧炎在第12章拜药老为师。"}
	svc := newTestService(searcher, llm, nil)

	out, err := svc.Ask(context.Background(), AskInput{CorpusID: "doupo", Question: "萧炎的师父是谁", TotalChapters: 100})
	require.NoError(t, err)

	assert.Equal(t, entity.QueryFact, out.QueryType)
	assert.Contains(t, out.Degraded, "graph snapshot unavailable")
	assert.Empty(t, out.Entities)
	assert.Equal(t, 1, llm.calls)
	assert.Contains(t, llm.prompt(), "萧炎的师父是谁")
	assert.Contains(t, llm.prompt(), "第12章")

	assert.Equal(t, "萧炎在第12章拜药老为师。", out.Draft)
	assert.True(t, strings.HasPrefix(out.Answer, out.Draft))
	require.NotNil(t, out.Verification)
	assert.True(t, out.Verification.Degraded)

	for _, c := range out.Candidates {
		assert.InDelta(t, 0.5, c.ChapterImportance, 1e-9)
	}
	chapters := make(map[int]bool)
	for _, c := range out.Citations {
		assert.False(t, chapters[c.Chapter])
		chapters[c.Chapter] = true
	}
	assert.Len(t, out.Citations, 3)
	assert.Equal(t, 120, out.Usage.TotalTokens)
}

func TestAskUsesGraphSnapshot(t *testing.T) {
	searcher := &fakeSearcher{out: &retrieval.SearchOutput{Candidates: sampleCandidates()}}
	llm := &fakeLLM{text: "第3章两人初识，第12章药老正式收萧炎为徒。"}
	svc := newTestService(searcher, llm, staticGraphs{q: sampleSnapshot()})

	out, err := svc.Ask(context.Background(), AskInput{CorpusID: "doupo", Question: "萧炎和药老的关系是如何演变的", SkipVerify: true})
	require.NoError(t, err)

	assert.Equal(t, entity.QueryAnalysis, out.QueryType)
	assert.Equal(t, []string{"萧炎", "药老"}, out.Entities)
	assert.Empty(t, out.Degraded)
	assert.Nil(t, out.Verification)
	assert.Equal(t, out.Draft, out.Answer)
	assert.Contains(t, llm.prompt(), "萧炎与药老：第3章 中立 → 第12章 师徒")
	assert.Contains(t, llm.prompt(), evolutionHintLine)

	for _, c := range out.Candidates {
		if c.Chapter == 12 {
			assert.InDelta(t, 0.75, c.ChapterImportance, 1e-9)
		}
	}
}

func TestAskDialoguePrefersDialogueFilter(t *testing.T) {
	searcher := &fakeSearcher{}
	svc := newTestService(searcher, &fakeLLM{text: "无"}, nil)

	out, err := svc.Ask(context.Background(), AskInput{CorpusID: "doupo", Question: "药老对萧炎说了什么"})
	require.NoError(t, err)
	assert.True(t, searcher.last.DialogueOnly)
	assert.Equal(t, entity.QueryDialogue, out.QueryType)
}

func TestAskNoCandidatesSkipsGeneration(t *testing.T) {
	llm := &fakeLLM{text: "不应调用"}
	svc := newTestService(&fakeSearcher{}, llm, nil)

	out, err := svc.Ask(context.Background(), AskInput{CorpusID: "doupo", Question: "魂殿在哪里"})
	require.NoError(t, err)
	assert.Equal(t, notFoundAnswer, out.Answer)
	assert.Equal(t, entity.ConfidenceLow, out.Confidence)
	assert.Zero(t, llm.calls)
}

func TestAskGenerationFailureIsReturned(t *testing.T) {
	searcher := &fakeSearcher{out: &retrieval.SearchOutput{Candidates: sampleCandidates()}}
	llm := &fakeLLM{err: apperrors.ErrProviderError.WithDetail("bad request")}
	svc := newTestService(searcher, llm, nil)

	_, err := svc.Ask(context.Background(), AskInput{CorpusID: "doupo", Question: "萧炎的师父是谁"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrGenerationFailed)
	assert.Equal(t, 1, llm.calls)
}

func TestAskTransientFailureRetries(t *testing.T) {
	searcher := &fakeSearcher{out: &retrieval.SearchOutput{Candidates: sampleCandidates()}}
	llm := &fakeLLM{err: apperrors.ErrProviderTransient}
	svc := newTestService(searcher, llm, nil)

	_, err := svc.Ask(context.Background(), AskInput{CorpusID: "doupo", Question: "萧炎的师父是谁"})
	assert.ErrorIs(t, err, apperrors.ErrGenerationFailed)
	assert.Equal(t, 3, llm.calls)
}

func TestAskRejectsEmptyInput(t *testing.T) {
	svc := newTestService(&fakeSearcher{}, &fakeLLM{}, nil)
	_, err := svc.Ask(context.Background(), AskInput{CorpusID: " ", Question: "萧炎"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidParam)
}

func TestBuildCitations(t *testing.T) {
	long := strings.Repeat("斗", 250)
	got := BuildCitations([]entity.Candidate{
		{Chapter: 5, Content: long, FinalScore: 0.9},
		{Chapter: 5, Content: "重复章节", FinalScore: 0.8},
		{Chapter: 2, Content: "短片段", FinalScore: 0.7},
	})
	require.Len(t, got, 2)
	assert.Equal(t, strings.Repeat("斗", 200)+"...", got[0].Text)
	assert.Equal(t, "短片段", got[1].Text)
}

func TestGraphContextWithoutEvolution(t *testing.T) {
	got := GraphContext(sampleSnapshot(), []string{"萧炎", "药老"}, false)
	assert.Equal(t, "人物关系（来自知识图谱）：\n萧炎与药老：师徒（自第12章）", got)
	assert.Empty(t, GraphContext(nil, []string{"萧炎"}, false))
}

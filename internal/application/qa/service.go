// Package qa 串联查询分类、混合检索、多信号重排、答案草拟与自校验，对外提供问答入口。
package qa

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"novel-rag-engine/internal/application/graph"
	"novel-rag-engine/internal/application/query"
	"novel-rag-engine/internal/application/rerank"
	"novel-rag-engine/internal/application/retrieval"
	"novel-rag-engine/internal/application/verification"
	"novel-rag-engine/internal/domain/entity"
	"novel-rag-engine/internal/domain/service"
	wfnode "novel-rag-engine/internal/workflow/node"
	workflowprompt "novel-rag-engine/internal/workflow/prompt"
	apperrors "novel-rag-engine/pkg/errors"
	"novel-rag-engine/pkg/logger"
	"novel-rag-engine/pkg/retry"
	"novel-rag-engine/pkg/tracer"
)

const (
	notFoundAnswer     = "抱歉，在小说中未找到相关内容。"
	citationMaxRunes   = 200
	evolutionHintLine  = "- 这是关系演变类问题，请按章节先后说明关系如何变化"
	defaultRetrieveTop = 30
)

// Searcher 检索能力
type Searcher interface {
	Search(ctx context.Context, in retrieval.SearchInput) (*retrieval.SearchOutput, error)
}

// GraphOpener 按语料打开图谱快照，缺失时返回 nil
type GraphOpener interface {
	OpenOptional(ctx context.Context, corpusID string) *graph.Query
}

// Options 问答参数
type Options struct {
	Model           string
	RetrieveTopK    int
	ContextSegments int
	ContextRunes    int
	MaxAnswerRunes  int
	Temperature     float32
	MaxTokens       int
	Retry           retry.Policy
}

// DefaultOptions 默认参数
func DefaultOptions() Options {
	return Options{
		RetrieveTopK:    defaultRetrieveTop,
		ContextSegments: 8,
		ContextRunes:    400,
		MaxAnswerRunes:  500,
		Temperature:     0.3,
		MaxTokens:       1024,
		Retry:           retry.DefaultPolicy(),
	}
}

// AskInput 问答输入
type AskInput struct {
	CorpusID string `json:"corpus_id"`
	Question string `json:"question"`
	// TotalChapters 为 0 时取快照中的章节数
	TotalChapters int  `json:"total_chapters"`
	SkipVerify    bool `json:"skip_verify"`
}

// Citation 答案引用，每章至多一条
type Citation struct {
	Chapter      int     `json:"chapter"`
	ChapterTitle string  `json:"chapter_title,omitempty"`
	Text         string  `json:"text"`
	Score        float64 `json:"score"`
}

// AskOutput 问答结果
type AskOutput struct {
	Answer       string                 `json:"answer"`
	Draft        string                 `json:"draft"`
	Confidence   entity.ConfidenceLevel `json:"confidence"`
	Breakdown    ConfidenceBreakdown    `json:"breakdown"`
	QueryType    entity.QueryType       `json:"query_type"`
	Entities     []string               `json:"entities,omitempty"`
	Candidates   []entity.Candidate     `json:"candidates"`
	Citations    []Citation             `json:"citations"`
	Verification *verification.Result   `json:"verification,omitempty"`
	Usage        service.Usage          `json:"usage"`
	Degraded     []string               `json:"degraded,omitempty"`
	Duration     time.Duration          `json:"duration"`
}

// Service 问答服务
type Service struct {
	searcher Searcher
	reranker *rerank.Reranker
	llm      service.ChatCompleter
	prompts  *workflowprompt.Registry
	graphs   GraphOpener
	verifier *verification.Pipeline
	opts     Options
}

// NewService graphs 与 verifier 可为空
func NewService(
	searcher Searcher,
	reranker *rerank.Reranker,
	llm service.ChatCompleter,
	prompts *workflowprompt.Registry,
	graphs GraphOpener,
	verifier *verification.Pipeline,
	opts Options,
) *Service {
	if prompts == nil {
		prompts = workflowprompt.NewRegistry()
	}
	if reranker == nil {
		reranker = rerank.New(rerank.DefaultConfig())
	}
	if opts.RetrieveTopK <= 0 {
		opts.RetrieveTopK = defaultRetrieveTop
	}
	return &Service{
		searcher: searcher,
		reranker: reranker,
		llm:      llm,
		prompts:  prompts,
		graphs:   graphs,
		verifier: verifier,
		opts:     opts,
	}
}

// Ask 完整问答流程。只有草拟答案彻底失败时才返回错误，其余环节失败均降级。
func (s *Service) Ask(ctx context.Context, in AskInput) (*AskOutput, error) {
	in.CorpusID = strings.TrimSpace(in.CorpusID)
	in.Question = strings.TrimSpace(in.Question)
	if in.CorpusID == "" || in.Question == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("corpus_id and question are required")
	}

	start := time.Now()
	ctx = logger.WithCorpus(ctx, in.CorpusID)
	ctx, span := tracer.StartStage(ctx, "ask", attribute.String("corpus_id", in.CorpusID))
	defer span.End()

	qt := query.Classify(in.Question)
	strategy := query.StrategyFor(qt)
	out := &AskOutput{QueryType: qt}

	var snap *graph.Query
	if s.graphs != nil {
		snap = s.graphs.OpenOptional(ctx, in.CorpusID)
	}
	if snap == nil {
		out.Degraded = append(out.Degraded, "graph snapshot unavailable")
	}
	total := in.TotalChapters
	if total <= 0 && snap != nil {
		total = snap.Graph().TotalChapters
	}
	out.Entities = QuestionEntities(in.Question, snap)

	search, err := s.searcher.Search(ctx, retrieval.SearchInput{
		CorpusID:     in.CorpusID,
		Query:        in.Question,
		TopK:         s.opts.RetrieveTopK,
		DialogueOnly: strategy.PreferDialogue,
	})
	if err != nil {
		tracer.EndWithError(span, err)
		return nil, err
	}
	if search.DisabledReason != "" {
		out.Degraded = append(out.Degraded, "vector search: "+search.DisabledReason)
	}

	rin := rerank.Input{
		Candidates:    search.Candidates,
		QueryType:     qt,
		Strategy:      strategy,
		Entities:      out.Entities,
		TotalChapters: total,
	}
	if snap != nil {
		rin.Importance = snap
		rin.Lexicon = entityNames(snap)
	}
	out.Candidates = s.reranker.Rerank(ctx, rin)

	if len(out.Candidates) == 0 {
		logger.Warn(ctx, "no candidates for question", "query_type", string(qt))
		out.Answer = notFoundAnswer
		out.Draft = notFoundAnswer
		out.Confidence = entity.ConfidenceLow
		out.Citations = []Citation{}
		out.Duration = time.Since(start)
		return out, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	draft, err := s.draft(ctx, in.Question, qt, out.Candidates, snap, out.Entities)
	if err != nil {
		tracer.EndWithError(span, err)
		return nil, err
	}
	out.Draft = draft.Text
	out.Usage = draft.Usage
	out.Citations = BuildCitations(out.Candidates)
	out.Breakdown = DraftConfidence(draft.Text, out.Citations, out.Candidates, len(search.Candidates))
	out.Answer = draft.Text
	out.Confidence = out.Breakdown.Level

	if s.verifier != nil && !in.SkipVerify {
		vin := verification.Input{
			CorpusID:      in.CorpusID,
			Answer:        draft.Text,
			Confidence:    out.Breakdown.Level,
			TotalChapters: total,
		}
		if snap != nil {
			vin.History = snap
			vin.Importance = snap
		}
		res, err := s.verifier.Verify(ctx, vin)
		if err != nil {
			tracer.EndWithError(span, err)
			return nil, err
		}
		out.Verification = res
		out.Answer = res.Answer
		out.Confidence = res.Confidence
	}

	out.Duration = time.Since(start)
	logger.Info(ctx, "question answered",
		"query_type", string(qt),
		"candidates", len(out.Candidates),
		"confidence", string(out.Confidence),
		"degraded", len(out.Degraded) > 0,
		"duration_ms", out.Duration.Milliseconds(),
	)
	return out, nil
}

func (s *Service) draft(ctx context.Context, question string, qt entity.QueryType, cands []entity.Candidate, snap *graph.Query, entities []string) (*service.Completion, error) {
	if s.llm == nil {
		return nil, apperrors.ErrGenerationFailed.WithDetail("chat model not configured")
	}
	evolution := query.IsEvolutionQuery(question)
	hint := ""
	if evolution {
		hint = evolutionHintLine
	}
	msgs, err := s.prompts.Render(ctx, workflowprompt.PromptAnswerDraftV1, map[string]any{
		"max_answer_runes": s.opts.MaxAnswerRunes,
		"evolution_hint":   hint,
		"query_type":       string(qt),
		"context":          retrieval.BuildPromptContext(cands, s.opts.ContextSegments, s.opts.ContextRunes),
		"graph_context":    GraphContext(snap, entities, evolution),
		"question":         question,
	})
	if err != nil {
		return nil, apperrors.ErrGenerationFailed.WithError(err)
	}
	messages := make([]service.Message, 0, len(msgs))
	for _, m := range msgs {
		messages = append(messages, service.Message{Role: service.MessageRole(m.Role), Content: m.Content})
	}

	temp := s.opts.Temperature
	ctx = service.WithWorkflow(ctx, service.WorkflowAnswerDraft)
	resp, err := retry.Do(ctx, s.opts.Retry, func(ctx context.Context) (*service.Completion, error) {
		return s.llm.Complete(ctx, messages, service.CompletionOptions{
			Model:       s.opts.Model,
			Temperature: &temp,
			MaxTokens:   s.opts.MaxTokens,
		})
	})
	if err != nil {
		logger.Error(ctx, "draft answer failed", err)
		return nil, apperrors.ErrGenerationFailed.WithError(err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return nil, apperrors.ErrGenerationFailed.WithDetail("empty completion")
	}
	resp.Text = strings.TrimSpace(resp.Text)
	return resp, nil
}

// BuildCitations 按重排顺序每章取一条，正文截断展示
func BuildCitations(cands []entity.Candidate) []Citation {
	seen := make(map[int]struct{}, len(cands))
	out := make([]Citation, 0, len(cands))
	for _, c := range cands {
		if _, ok := seen[c.Chapter]; ok {
			continue
		}
		seen[c.Chapter] = struct{}{}
		text := wfnode.TruncateByRunes(c.Content, citationMaxRunes)
		if text != c.Content {
			text += "..."
		}
		out = append(out, Citation{
			Chapter:      c.Chapter,
			ChapterTitle: c.ChapterTitle,
			Text:         text,
			Score:        c.FinalScore,
		})
	}
	return out
}

func entityNames(snap *graph.Query) []string {
	g := snap.Graph()
	if g == nil {
		return nil
	}
	names := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		names = append(names, n.Name)
	}
	return names
}

// QuestionEntities 以快照中的实体名匹配问题文本，按出现位置排序
func QuestionEntities(question string, snap *graph.Query) []string {
	if snap == nil || snap.Graph() == nil {
		return nil
	}
	type hit struct {
		name string
		pos  int
	}
	var hits []hit
	for _, n := range snap.Graph().Nodes {
		if n.Name == "" {
			continue
		}
		if i := strings.Index(question, n.Name); i >= 0 {
			hits = append(hits, hit{n.Name, i})
		}
	}
	// 位置相同时较长的名字优先
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].pos != hits[j].pos {
			return hits[i].pos < hits[j].pos
		}
		return len(hits[i].name) > len(hits[j].name)
	})
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.name)
	}
	return out
}

// GraphContext 把问题涉及的人物关系整理成 Prompt 片段；关系演变类问题附带完整轨迹
func GraphContext(snap *graph.Query, entities []string, evolution bool) string {
	if snap == nil || len(entities) == 0 {
		return ""
	}
	names := entities[:min(3, len(entities))]

	var lines []string
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			traj := snap.Evolution(names[i], names[j])
			if len(traj) == 0 {
				continue
			}
			if !evolution {
				last := traj[len(traj)-1]
				lines = append(lines, fmt.Sprintf("%s与%s：%s（自第%d章）", names[i], names[j], last.Type, last.Chapter))
				continue
			}
			steps := make([]string, 0, len(traj))
			for _, cp := range traj {
				steps = append(steps, fmt.Sprintf("第%d章 %s", cp.Chapter, cp.Type))
			}
			lines = append(lines, fmt.Sprintf("%s与%s：%s", names[i], names[j], strings.Join(steps, " → ")))
		}
	}
	if len(lines) == 0 {
		for _, r := range snap.Relationships(names[0], nil) {
			lines = append(lines, fmt.Sprintf("%s与%s：%s", names[0], r.Other, r.Type))
			if len(lines) >= 5 {
				break
			}
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "人物关系（来自知识图谱）：\n" + strings.Join(lines, "\n")
}

package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"novel-rag-engine/internal/domain/entity"
	"novel-rag-engine/pkg/logger"
	"novel-rag-engine/pkg/metrics"
	"novel-rag-engine/pkg/tracer"
)

const maxSamplesPerSegment = 3

// BuildInput 构建输入：已完成别名合并的逐章实体
type BuildInput struct {
	CorpusID      string
	TotalChapters int
	Chapters      []entity.ChapterEntities
	Contexts      ContextProvider
}

// BuildReport 构建统计
type BuildReport struct {
	Tier         Tier          `json:"tier"`
	Thresholds   Thresholds    `json:"thresholds"`
	Nodes        int           `json:"nodes"`
	Pairs        int           `json:"pairs"`
	Dropped      int           `json:"dropped"`
	Cooccurrence int           `json:"cooccurrence"`
	Classified   int           `json:"classified"`
	Tasks        int           `json:"tasks"`
	Tokens       TokenStats    `json:"tokens"`
	Duration     time.Duration `json:"duration"`
}

// Builder 图谱构建器。构建过程只在内存中组装，全部完成后才交给调用方持久化。
type Builder struct {
	tiers      TierConfig
	dispatcher *Dispatcher
	pagerank   PageRankOptions
	now        func() time.Time
}

// NewBuilder dispatcher 为空时强共现对同样降级为共现边
func NewBuilder(tiers TierConfig, dispatcher *Dispatcher, pagerank PageRankOptions) *Builder {
	return &Builder{
		tiers:      tiers,
		dispatcher: dispatcher,
		pagerank:   pagerank,
		now:        time.Now,
	}
}

// segmentTask 记录分类任务属于哪一对角色
type segmentTask struct {
	pair  int
	first int
}

// Build 构建图谱；每个阶段之间检查 ctx
func (b *Builder) Build(ctx context.Context, in BuildInput) (g *entity.Graph, report *BuildReport, err error) {
	in.CorpusID = strings.TrimSpace(in.CorpusID)
	if in.CorpusID == "" {
		return nil, nil, fmt.Errorf("corpus_id is required")
	}
	ctx = logger.WithCorpus(ctx, in.CorpusID)
	ctx, span := tracer.StartStage(ctx, "graph_build")
	defer func() { tracer.EndWithError(span, err) }()

	start := b.now()
	report = &BuildReport{}
	report.Tier, report.Thresholds = b.tiers.Select(in.TotalChapters)

	g = entity.NewGraph(in.CorpusID, in.TotalChapters)
	chapters := sortChapters(in.Chapters)
	addNodes(g, chapters)
	report.Nodes = len(g.Nodes)
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	pairs := CountCooccurrence(chapters)
	report.Pairs = len(pairs)

	var strong []int
	for i, p := range pairs {
		switch report.Thresholds.Decide(p.Count) {
		case PairDropped:
			report.Dropped++
		case PairCooccurrence:
			report.Cooccurrence++
			addCooccurrenceEdge(g, p)
		case PairClassify:
			strong = append(strong, i)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	logger.Info(ctx, "co-occurrence pairs counted",
		"tier", string(report.Tier),
		"pairs", report.Pairs,
		"dropped", report.Dropped,
		"cooccurrence", report.Cooccurrence,
		"strong", len(strong),
	)

	tasks, owners, err := b.segmentTasks(ctx, in.Contexts, pairs, strong)
	if err != nil {
		return nil, nil, err
	}
	report.Tasks = len(tasks)

	var results []Classification
	if len(tasks) > 0 {
		if b.dispatcher == nil {
			logger.Warn(ctx, "no relation classifier configured, strong pairs degrade to co-occurrence", "tasks", len(tasks))
			results = make([]Classification, len(tasks))
			for i := range results {
				results[i] = FallbackClassification("classifier not configured")
			}
		} else {
			results, report.Tokens, err = b.dispatcher.ClassifyAll(ctx, tasks)
			if err != nil {
				return nil, nil, err
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	trajectories := make(map[int][]entity.Checkpoint, len(strong))
	for i, r := range results {
		o := owners[i]
		trajectories[o.pair] = append(trajectories[o.pair], entity.Checkpoint{
			Chapter:    o.first,
			Type:       r.Type,
			Confidence: r.Confidence,
		})
	}
	for _, pi := range strong {
		addClassifiedEdge(g, pairs[pi], CollapseTrajectory(trajectories[pi]))
		report.Classified++
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	for i, v := range PageRank(g, b.pagerank) {
		g.Nodes[i].Importance = v
	}
	for _, s := range ChapterScores(g) {
		g.ChapterImportance[s.Chapter] = s.Importance
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	g.BuiltAt = b.now().UTC()
	report.Duration = b.now().Sub(start)

	metrics.GraphBuildDuration.Observe(report.Duration.Seconds())
	metrics.GraphPairsTotal.WithLabelValues(PairDropped.String()).Add(float64(report.Dropped))
	metrics.GraphPairsTotal.WithLabelValues(PairCooccurrence.String()).Add(float64(report.Cooccurrence))
	metrics.GraphPairsTotal.WithLabelValues(PairClassify.String()).Add(float64(report.Classified))

	logger.Info(ctx, "graph built",
		"nodes", len(g.Nodes),
		"edges", len(g.Edges),
		"classified", report.Classified,
		"tokens", report.Tokens.TotalTokens,
		"duration_ms", report.Duration.Milliseconds(),
	)
	return g, report, nil
}

// segmentTasks 为每个强共现对的每个章节窗口准备分类任务；取不到片段的窗口跳过
func (b *Builder) segmentTasks(ctx context.Context, provider ContextProvider, pairs []Pair, strong []int) ([]ClassifyTask, []segmentTask, error) {
	var (
		tasks  []ClassifyTask
		owners []segmentTask
	)
	for _, pi := range strong {
		p := pairs[pi]
		for _, seg := range SplitSegments(p.Chapters) {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
			sampled := SampleChapters(seg, maxSamplesPerSegment)
			var snippets []string
			if provider != nil {
				s, err := provider.Contexts(ctx, p.A, p.B, sampled)
				if err != nil {
					if ctxErr := ctx.Err(); ctxErr != nil {
						return nil, nil, ctxErr
					}
					logger.Warn(ctx, "extract co-occurrence contexts failed",
						"entity_a", p.A,
						"entity_b", p.B,
						"error", err.Error(),
					)
					continue
				}
				snippets = s
			}
			if len(snippets) == 0 {
				continue
			}
			tasks = append(tasks, ClassifyTask{
				A:        p.A,
				B:        p.B,
				Count:    len(seg),
				Chapters: seg,
				Contexts: snippets,
			})
			owners = append(owners, segmentTask{pair: pi, first: seg[0]})
		}
	}
	return tasks, owners, nil
}

func addNodes(g *entity.Graph, chapters []entity.ChapterEntities) {
	add := func(names []string, cat entity.EntityCategory, chapter int, seen map[string]struct{}) {
		for _, name := range names {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			i, created := g.Intern(name, cat)
			n := &g.Nodes[i]
			if created || chapter < n.FirstChapter {
				n.FirstChapter = chapter
			}
			n.LastChapter = max(n.LastChapter, chapter)
			n.MentionCount++
		}
	}
	for _, ch := range chapters {
		seen := make(map[string]struct{})
		add(ch.Characters, entity.CategoryCharacter, ch.Chapter, seen)
		add(ch.Locations, entity.CategoryLocation, ch.Chapter, seen)
		add(ch.Organizations, entity.CategoryOrganization, ch.Chapter, seen)
	}
}

func addCooccurrenceEdge(g *entity.Graph, p Pair) {
	src, _ := g.NodeIndex(p.A)
	dst, _ := g.NodeIndex(p.B)
	g.AddSymmetricEdge(entity.RelationEdge{
		Source:            src,
		Target:            dst,
		Type:              entity.RelationCooccurrence,
		Strength:          Strength(p.Count),
		StartChapter:      p.Chapters[0],
		EndChapter:        lastChapter(p),
		Confidence:        fallbackConfidence,
		CooccurrenceCount: p.Count,
	})
}

// addClassifiedEdge 边类型取轨迹最后一个点，置信度取轨迹均值；
// 没有任何窗口得到分类时退化为共现边
func addClassifiedEdge(g *entity.Graph, p Pair, trajectory []entity.Checkpoint) {
	if len(trajectory) == 0 {
		addCooccurrenceEdge(g, p)
		return
	}
	src, _ := g.NodeIndex(p.A)
	dst, _ := g.NodeIndex(p.B)
	g.AddSymmetricEdge(entity.RelationEdge{
		Source:            src,
		Target:            dst,
		Type:              trajectory[len(trajectory)-1].Type,
		Strength:          Strength(p.Count),
		StartChapter:      p.Chapters[0],
		EndChapter:        lastChapter(p),
		Confidence:        meanConfidence(trajectory),
		CooccurrenceCount: p.Count,
		Evolution:         trajectory,
	})
}

// lastChapter 关系有效期止于最后一次共现的章节
func lastChapter(p Pair) *int {
	return entity.IntPtr(p.Chapters[len(p.Chapters)-1])
}

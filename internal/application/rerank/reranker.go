package rerank

import (
	"context"
	"sort"
	"strings"

	"novel-rag-engine/internal/application/query"
	"novel-rag-engine/internal/domain/entity"
	"novel-rag-engine/pkg/logger"
	"novel-rag-engine/pkg/metrics"
)

// Config 融合阈值，均为经验默认值
type Config struct {
	HighSemantic        float64
	LowSemantic         float64
	AnalysisLowSemantic float64
	HighEntity          float64
	LowEntity           float64
	RecencyWeight       float64
	MergeMaxSeqGap      int
}

// DefaultConfig 默认阈值
func DefaultConfig() Config {
	return Config{
		HighSemantic:        0.85,
		LowSemantic:         0.5,
		AnalysisLowSemantic: 0.6,
		HighEntity:          1.3,
		LowEntity:           0.5,
		RecencyWeight:       0.15,
		MergeMaxSeqGap:      2,
	}
}

// Weights FACT 类查询的线性融合权重，三者之和为 1
type Weights struct {
	Semantic float64 `json:"semantic"`
	Temporal float64 `json:"temporal"`
	Entity   float64 `json:"entity"`
}

// Input 一次重排的输入
type Input struct {
	Candidates []entity.Candidate
	QueryType  entity.QueryType
	Strategy   query.Strategy
	Entities   []string
	// Lexicon 快照中的全部实体名，用于识别被更长名字包含的短名
	Lexicon       []string
	TotalChapters int
	Importance    ImportanceSource
	// TopK 为 0 时使用 Strategy.TopK
	TopK int
}

// Reranker 多信号重排器，无状态
type Reranker struct {
	cfg Config
}

// New 创建重排器
func New(cfg Config) *Reranker {
	return &Reranker{cfg: cfg}
}

// FactWeights 根据语义分与实体分动态调整 FACT 类权重
func (r *Reranker) FactWeights(base, entityScore float64) Weights {
	w := Weights{Semantic: 0.5, Temporal: 0.1, Entity: 0.4}
	switch {
	case base > r.cfg.HighSemantic:
		w = Weights{Semantic: 0.6, Temporal: 0.1, Entity: 0.3}
	case base < r.cfg.LowSemantic:
		w.Entity += 0.2
	}
	switch {
	case entityScore > r.cfg.HighEntity:
		w.Entity = min(w.Entity+0.1, 0.7)
	case entityScore < r.cfg.LowEntity:
		w.Entity = max(w.Entity-0.1, 0.1)
	}
	w.Semantic = 1 - w.Temporal - w.Entity
	return w
}

// Rerank 计算各信号并按查询类型融合，输出按得分降序且长度不超过 K
func (r *Reranker) Rerank(ctx context.Context, in Input) []entity.Candidate {
	k := in.TopK
	if k <= 0 {
		k = in.Strategy.TopK
	}
	if k <= 0 || len(in.Candidates) == 0 {
		return []entity.Candidate{}
	}

	out := make([]entity.Candidate, len(in.Candidates))
	copy(out, in.Candidates)
	shadows := NewShadows(in.Entities, in.Lexicon)
	for i := range out {
		r.score(&out[i], in, shadows)
	}

	if in.QueryType == entity.QueryAnalysis && in.Strategy.MergeAdjacent {
		before := len(out)
		out = MergeAdjacent(out, r.cfg.MergeMaxSeqGap)
		logger.Debug(ctx, "merged adjacent chunks", "before", before, "after", len(out))
	}

	SortCandidates(out)
	if len(out) > k {
		out = out[:k]
	}
	metrics.RerankTotal.WithLabelValues(string(in.QueryType)).Inc()
	return out
}

func (r *Reranker) score(c *entity.Candidate, in Input, shadows Shadows) {
	c.BaseScore = BaseScore(c.Distance)
	c.EntityScore = EntityMatchScoreShadowed(c.Content, in.Entities, shadows)
	c.RecencyScore = RecencyBias(c.Chapter, in.TotalChapters, r.cfg.RecencyWeight)
	c.ChapterImportance = ChapterImportance(in.Importance, c.Chapter)
	c.QuoteBoost = 1.0

	switch in.QueryType {
	case entity.QueryDialogue:
		boost := QuoteDensityBoost(c.Content, in.Strategy.QuoteWeight)
		if c.BaseScore > r.cfg.HighSemantic {
			boost = 1 + (boost-1)/2
		}
		c.QuoteBoost = boost
		c.FinalScore = c.BaseScore * boost * c.EntityScore * c.RecencyScore
	case entity.QueryAnalysis:
		term := c.ChapterImportance + 0.5
		if c.BaseScore < r.cfg.AnalysisLowSemantic {
			term *= 1.3
		}
		c.FinalScore = c.BaseScore * term * c.EntityScore * c.RecencyScore
	default:
		w := r.FactWeights(c.BaseScore, c.EntityScore)
		c.FinalScore = w.Semantic*c.BaseScore +
			w.Temporal*(c.RecencyScore-recencyMin)/(recencyMax-recencyMin) +
			w.Entity*(c.EntityScore-entityScoreMin)/(entityScoreMax-entityScoreMin)
	}
}

// SortCandidates 按得分降序，同分按章节、ID 升序
func SortCandidates(cs []entity.Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].FinalScore != cs[j].FinalScore {
			return cs[i].FinalScore > cs[j].FinalScore
		}
		if cs[i].Chapter != cs[j].Chapter {
			return cs[i].Chapter < cs[j].Chapter
		}
		return cs[i].ID < cs[j].ID
	})
}

// MergeAdjacent 合并同章节且序号间隔不超过 maxGap 的片段，内容拼接、得分取均值
func MergeAdjacent(cs []entity.Candidate, maxGap int) []entity.Candidate {
	if len(cs) < 2 {
		return cs
	}
	sorted := make([]entity.Candidate, len(cs))
	copy(sorted, cs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Chapter != sorted[j].Chapter {
			return sorted[i].Chapter < sorted[j].Chapter
		}
		return sorted[i].Seq < sorted[j].Seq
	})

	out := make([]entity.Candidate, 0, len(sorted))
	group := []entity.Candidate{sorted[0]}
	flush := func() {
		out = append(out, mergeGroup(group))
	}
	for _, c := range sorted[1:] {
		last := group[len(group)-1]
		if c.Chapter == last.Chapter && c.Seq-last.Seq <= maxGap {
			group = append(group, c)
			continue
		}
		flush()
		group = []entity.Candidate{c}
	}
	flush()
	return out
}

func mergeGroup(group []entity.Candidate) entity.Candidate {
	if len(group) == 1 {
		return group[0]
	}
	merged := group[0]
	parts := make([]string, 0, len(group))
	var sum, base, ent float64
	for _, c := range group {
		parts = append(parts, c.Content)
		sum += c.FinalScore
		base += c.BaseScore
		ent += c.EntityScore
		merged.HasDialogue = merged.HasDialogue || c.HasDialogue
		if c.Distance < merged.Distance {
			merged.Distance = c.Distance
		}
	}
	n := float64(len(group))
	merged.Content = strings.Join(parts, "\n")
	merged.FinalScore = sum / n
	merged.BaseScore = base / n
	merged.EntityScore = ent / n
	return merged
}

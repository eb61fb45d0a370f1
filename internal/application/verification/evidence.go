package verification

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"novel-rag-engine/internal/application/retrieval"
	"novel-rag-engine/internal/domain/entity"
	"novel-rag-engine/pkg/logger"
)

const (
	defaultEvidenceTopK = 3
	graphEvidenceScore  = 0.8
	keywordChapterSpan  = 5
)

// Retriever 证据检索能力，HybridRetriever 即满足
type Retriever interface {
	Search(ctx context.Context, in retrieval.SearchInput) (*retrieval.SearchOutput, error)
	KeywordSearch(ctx context.Context, corpusID, q string, k int, filter retrieval.VectorFilter) []retrieval.KeywordHit
}

// RelationHistory 关系演化记录，通常由图谱快照提供
type RelationHistory interface {
	Evolution(a, b string) []entity.Checkpoint
}

// Collector 为断言收集证据。检索失败时返回空证据，不向上报错。
type Collector struct {
	retriever Retriever
	topK      int
}

// NewCollector retriever 可为空，此时只剩图谱证据
func NewCollector(retriever Retriever, topK int) *Collector {
	if topK <= 0 {
		topK = defaultEvidenceTopK
	}
	return &Collector{retriever: retriever, topK: topK}
}

// Collect 汇总向量、关键词与图谱三路证据，按章节去重后取前 topK 条
func (c *Collector) Collect(ctx context.Context, corpusID string, a entity.Assertion, history RelationHistory) []entity.Evidence {
	var all []entity.Evidence
	all = append(all, c.fromSearch(ctx, corpusID, a.Text)...)
	if len(a.Entities) > 0 {
		all = append(all, c.fromKeywords(ctx, corpusID, a.Entities, a.Chapter)...)
	}
	if a.Type == entity.AssertionRelation && len(a.Entities) >= 2 && history != nil {
		all = append(all, fromGraph(history, a.Entities[0], a.Entities[1])...)
	}
	return dedupeByChapter(all, c.topK)
}

func (c *Collector) fromSearch(ctx context.Context, corpusID, text string) []entity.Evidence {
	if c.retriever == nil {
		return nil
	}
	out, err := c.retriever.Search(ctx, retrieval.SearchInput{
		CorpusID: corpusID,
		Query:    text,
		TopK:     c.topK,
	})
	if err != nil {
		logger.Warn(ctx, "evidence search failed", "error", err.Error())
		return nil
	}
	if out.DisabledReason != "" {
		logger.Debug(ctx, "vector evidence disabled", "reason", out.DisabledReason)
	}
	ev := make([]entity.Evidence, 0, len(out.Candidates))
	for _, cand := range out.Candidates {
		src := entity.SourceVector
		if cand.Source == string(entity.SourceKeyword) {
			src = entity.SourceKeyword
		}
		ev = append(ev, entity.Evidence{
			Content: cand.Content,
			Source:  src,
			Chapter: entity.IntPtr(cand.Chapter),
			Score:   max(0, 1-cand.Distance),
		})
	}
	return ev
}

// fromKeywords 有章节引用时优先检索其附近章节，附近无命中再放开范围
func (c *Collector) fromKeywords(ctx context.Context, corpusID string, entities []string, chapter *int) []entity.Evidence {
	if c.retriever == nil {
		return nil
	}
	q := strings.Join(entities, " ")
	var hits []retrieval.KeywordHit
	if chapter != nil {
		hits = c.retriever.KeywordSearch(ctx, corpusID, q, c.topK, retrieval.VectorFilter{
			ChapterFrom: max(1, *chapter-keywordChapterSpan),
			ChapterTo:   *chapter + keywordChapterSpan,
		})
	}
	if len(hits) == 0 {
		hits = c.retriever.KeywordSearch(ctx, corpusID, q, c.topK, retrieval.VectorFilter{})
	}
	ev := make([]entity.Evidence, 0, len(hits))
	for _, h := range hits {
		ev = append(ev, entity.Evidence{
			Content: h.Chunk.Content,
			Source:  entity.SourceKeyword,
			Chapter: entity.IntPtr(h.Chunk.Chapter),
			Score:   h.Score / (1 + h.Score),
		})
	}
	return ev
}

func fromGraph(history RelationHistory, a, b string) []entity.Evidence {
	traj := history.Evolution(a, b)
	ev := make([]entity.Evidence, 0, len(traj))
	for _, cp := range traj {
		ev = append(ev, entity.Evidence{
			Content: fmt.Sprintf("%s与%s的关系在第%d章为：%s", a, b, cp.Chapter, cp.Type),
			Source:  entity.SourceGraph,
			Chapter: entity.IntPtr(cp.Chapter),
			Score:   graphEvidenceScore,
		})
	}
	return ev
}

// dedupeByChapter 每章只保留得分最高的一条，无章节的证据被丢弃
func dedupeByChapter(ev []entity.Evidence, topK int) []entity.Evidence {
	best := make(map[int]entity.Evidence)
	for _, e := range ev {
		if e.Chapter == nil {
			continue
		}
		if cur, ok := best[*e.Chapter]; !ok || e.Score > cur.Score {
			best[*e.Chapter] = e
		}
	}
	out := make([]entity.Evidence, 0, len(best))
	for _, e := range best {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return *out[i].Chapter < *out[j].Chapter
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}

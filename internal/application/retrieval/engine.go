package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"novel-rag-engine/internal/domain/entity"
	"novel-rag-engine/internal/domain/service"
	"novel-rag-engine/pkg/logger"
	"novel-rag-engine/pkg/metrics"
	"novel-rag-engine/pkg/tracer"
)

const (
	defaultTopK        = 30
	defaultMaxDistance = 1.2
)

// Options 混合检索参数
type Options struct {
	TopK           int
	MaxDistance    float64
	KeywordEnabled bool
	VectorWeight   float64
	KeywordWeight  float64
	RRFK           int
}

// DefaultOptions 默认参数
func DefaultOptions() Options {
	return Options{
		TopK:           defaultTopK,
		MaxDistance:    defaultMaxDistance,
		KeywordEnabled: true,
		VectorWeight:   1.0,
		KeywordWeight:  0.6,
		RRFK:           defaultRRFK,
	}
}

// HybridRetriever 向量 + 关键词混合检索。任一路失败都只会降级，
// 不会向调用方返回错误。
type HybridRetriever struct {
	embedder service.Embedder
	vectors  VectorStore
	keywords *KeywordRegistry
	chunks   ChunkSource
	opts     Options
}

// NewHybridRetriever 创建混合检索器；embedder/vectors 为空时向量路径禁用
func NewHybridRetriever(embedder service.Embedder, vectors VectorStore, keywords *KeywordRegistry, opts Options) *HybridRetriever {
	if opts.TopK <= 0 {
		opts.TopK = defaultTopK
	}
	if opts.MaxDistance <= 0 {
		opts.MaxDistance = defaultMaxDistance
	}
	if keywords == nil {
		keywords = NewKeywordRegistry()
	}
	return &HybridRetriever{
		embedder: embedder,
		vectors:  vectors,
		keywords: keywords,
		opts:     opts,
	}
}

// WithChunkSource 设置关键词索引的冷启动数据源
func (h *HybridRetriever) WithChunkSource(src ChunkSource) *HybridRetriever {
	h.chunks = src
	return h
}

// Enabled 向量路径是否可用
func (h *HybridRetriever) Enabled() bool {
	return h != nil && h.embedder != nil && h.vectors != nil
}

// MaxDistance 距离阈值
func (h *HybridRetriever) MaxDistance() float64 {
	return h.opts.MaxDistance
}

// Search 执行混合检索
func (h *HybridRetriever) Search(ctx context.Context, in SearchInput) (*SearchOutput, error) {
	in.CorpusID = strings.TrimSpace(in.CorpusID)
	in.Query = strings.TrimSpace(in.Query)
	if in.CorpusID == "" {
		return nil, fmt.Errorf("%w: corpus_id is required", ErrInvalidInput)
	}
	if in.Query == "" && len(in.Vector) == 0 {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	if in.TopK <= 0 {
		in.TopK = h.opts.TopK
	}

	ctx, span := tracer.StartStage(ctx, "retrieve")
	defer span.End()

	out, err := h.search(ctx, in)
	if err != nil {
		return nil, err
	}
	if in.DialogueOnly && len(out.Candidates) == 0 {
		logger.Debug(ctx, "no dialogue candidates, relaxing filter", "corpus_id", in.CorpusID)
		in.DialogueOnly = false
		out, err = h.search(ctx, in)
		if err != nil {
			return nil, err
		}
		out.Debug.DialogueRelaxed = true
	}
	metrics.RetrievalTotal.WithLabelValues("hybrid", statusOf(out)).Inc()
	return out, nil
}

func statusOf(out *SearchOutput) string {
	switch {
	case out.DisabledReason != "":
		return "degraded"
	case len(out.Candidates) == 0:
		return "empty"
	default:
		return "ok"
	}
}

func (h *HybridRetriever) search(ctx context.Context, in SearchInput) (*SearchOutput, error) {
	filter := VectorFilter{ChapterFrom: in.ChapterFrom, ChapterTo: in.ChapterTo, DialogueOnly: in.DialogueOnly}
	out := &SearchOutput{}

	var (
		vecHits []entity.Candidate
		kwHits  []KeywordHit
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		hits, emb, reason := h.vectorPath(gctx, in, filter)
		vecHits = hits
		out.DisabledReason = reason
		if in.IncludeEmbedding {
			out.QueryEmbedding = emb
		}
		out.Debug.VectorSearchTimeMs = time.Since(start).Milliseconds()
		metrics.RetrievalDuration.WithLabelValues("vector").Observe(time.Since(start).Seconds())
		return nil
	})
	if h.opts.KeywordEnabled && in.Query != "" {
		g.Go(func() error {
			start := time.Now()
			kwHits = h.KeywordSearch(gctx, in.CorpusID, in.Query, in.TopK, filter)
			out.Debug.KeywordSearchTimeMs = time.Since(start).Milliseconds()
			metrics.RetrievalDuration.WithLabelValues("keyword").Observe(time.Since(start).Seconds())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out.Debug.VectorCandidates = len(vecHits)
	out.Debug.KeywordCandidates = len(kwHits)
	out.Candidates, out.FusedScores = h.fuse(vecHits, kwHits, in.TopK)
	return out, nil
}

// vectorPath 返回按距离升序的候选；失败时返回原因而非错误
func (h *HybridRetriever) vectorPath(ctx context.Context, in SearchInput, filter VectorFilter) ([]entity.Candidate, []float32, string) {
	if !h.Enabled() {
		return nil, nil, ErrVectorDisabled.Error()
	}
	emb := in.Vector
	if len(emb) == 0 {
		v, err := h.embedder.Embed(ctx, in.Query)
		if err != nil {
			logger.Warn(ctx, "query embedding failed, vector path disabled", "error", err.Error())
			metrics.RetrievalTotal.WithLabelValues("vector", "error").Inc()
			return nil, nil, fmt.Sprintf("embedding failed: %v", err)
		}
		emb = v
	}

	hits, err := h.vectors.Query(ctx, CollectionName(in.CorpusID), emb, in.TopK, filter)
	if err != nil {
		logger.Warn(ctx, "vector query failed, vector path disabled", "error", err.Error())
		metrics.RetrievalTotal.WithLabelValues("vector", "error").Inc()
		return nil, emb, fmt.Sprintf("vector store failed: %v", err)
	}

	cands := make([]entity.Candidate, 0, len(hits))
	for _, hit := range hits {
		if hit.Distance > h.opts.MaxDistance {
			continue
		}
		meta, text := decodeChunkText(hit.TextContent)
		cands = append(cands, entity.Candidate{
			ID:           strings.TrimSpace(hit.ID),
			Content:      text,
			Chapter:      hit.Chapter,
			ChapterTitle: meta.ChapterTitle,
			Seq:          meta.Seq,
			HasDialogue:  hit.HasDialogue,
			Distance:     hit.Distance,
			Source:       string(entity.SourceVector),
		})
	}
	return cands, emb, ""
}

// KeywordSearch 在语料的 BM25 索引上检索，索引缺失时尝试从数据源重建
func (h *HybridRetriever) KeywordSearch(ctx context.Context, corpusID, q string, k int, filter VectorFilter) []KeywordHit {
	idx := h.keywords.Get(corpusID)
	if idx == nil && h.chunks != nil {
		chunks, err := h.chunks.LoadChunks(ctx, CollectionName(corpusID))
		if err != nil {
			logger.Warn(ctx, "keyword index warmup failed", "corpus_id", corpusID, "error", err.Error())
			return nil
		}
		idx = h.keywords.GetOrCreate(corpusID)
		idx.Add(chunks...)
		logger.Info(ctx, "keyword index warmed up", "corpus_id", corpusID, "chunks", len(chunks))
	}
	if idx == nil {
		return nil
	}
	return idx.Search(q, k, filter)
}

func (h *HybridRetriever) fuse(vec []entity.Candidate, kw []KeywordHit, k int) ([]entity.Candidate, map[string]float64) {
	byID := make(map[string]entity.Candidate, len(vec)+len(kw))
	vecIDs := make([]string, 0, len(vec))
	for _, c := range vec {
		byID[c.ID] = c
		vecIDs = append(vecIDs, c.ID)
	}
	kwIDs := make([]string, 0, len(kw))
	for _, hit := range kw {
		id := hit.Chunk.ID
		kwIDs = append(kwIDs, id)
		if c, ok := byID[id]; ok {
			c.Source = "hybrid"
			byID[id] = c
			continue
		}
		byID[id] = entity.Candidate{
			ID:           id,
			Content:      hit.Chunk.Content,
			Chapter:      hit.Chunk.Chapter,
			ChapterTitle: hit.Chunk.ChapterTitle,
			Seq:          hit.Chunk.Seq,
			HasDialogue:  hit.Chunk.HasDialogue,
			Distance:     h.opts.MaxDistance,
			Source:       string(entity.SourceKeyword),
		}
	}

	order, scores := fuseRRF(h.opts.RRFK,
		rankedList{ids: vecIDs, weight: h.opts.VectorWeight},
		rankedList{ids: kwIDs, weight: h.opts.KeywordWeight},
	)
	if len(order) > k {
		order = order[:k]
	}
	out := make([]entity.Candidate, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out, scores
}

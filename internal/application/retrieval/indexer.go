package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"novel-rag-engine/internal/domain/entity"
	"novel-rag-engine/internal/domain/service"
	"novel-rag-engine/pkg/logger"
)

const (
	defaultChunkSizeRunes    = 500
	defaultChunkOverlapRunes = 50
	defaultEmbeddingBatch    = 32
)

// IndexReport 一次索引的统计
type IndexReport struct {
	Chunks     int `json:"chunks"`
	Embedded   int `json:"embedded"`
	ZeroVector int `json:"zero_vector"`
}

// Indexer 片段向量化并写入向量库与关键词索引
type Indexer struct {
	embedder service.Embedder
	vectors  VectorStore
	keywords *KeywordRegistry

	embeddingBatchSize int
	dimension          int
	chunkSizeRunes     int
	chunkOverlapRunes  int
}

// IndexerOptions 索引参数
type IndexerOptions struct {
	EmbeddingBatchSize int
	// Dimension 整批向量化失败时用于补零向量
	Dimension         int
	ChunkSizeRunes    int
	ChunkOverlapRunes int
}

// NewIndexer 创建索引器
func NewIndexer(embedder service.Embedder, vectors VectorStore, keywords *KeywordRegistry, opts IndexerOptions) *Indexer {
	if opts.EmbeddingBatchSize <= 0 {
		opts.EmbeddingBatchSize = defaultEmbeddingBatch
	}
	if opts.ChunkSizeRunes <= 0 {
		opts.ChunkSizeRunes = defaultChunkSizeRunes
	}
	if opts.ChunkOverlapRunes < 0 {
		opts.ChunkOverlapRunes = defaultChunkOverlapRunes
	}
	return &Indexer{
		embedder:           embedder,
		vectors:            vectors,
		keywords:           keywords,
		embeddingBatchSize: opts.EmbeddingBatchSize,
		dimension:          opts.Dimension,
		chunkSizeRunes:     opts.ChunkSizeRunes,
		chunkOverlapRunes:  opts.ChunkOverlapRunes,
	}
}

// Enabled 向量写入是否可用
func (i *Indexer) Enabled() bool {
	return i != nil && i.embedder != nil && i.vectors != nil
}

// SplitChapter 将章节正文切分为带序号的片段
func (i *Indexer) SplitChapter(corpusID string, chapter int, title, text string) []entity.Chunk {
	parts := splitByRunes(text, i.chunkSizeRunes, i.chunkOverlapRunes)
	chunks := make([]entity.Chunk, 0, len(parts))
	for seq, p := range parts {
		chunks = append(chunks, entity.Chunk{
			ID:           uuid.NewString(),
			CorpusID:     corpusID,
			Chapter:      chapter,
			ChapterTitle: strings.TrimSpace(title),
			Seq:          seq,
			Content:      p,
			HasDialogue:  HasDialogue(p),
		})
	}
	return chunks
}

// IndexChapter 切分并索引单章
func (i *Indexer) IndexChapter(ctx context.Context, corpusID string, chapter int, title, text string) (*IndexReport, error) {
	return i.IndexChunks(ctx, corpusID, i.SplitChapter(corpusID, chapter, title, text))
}

// IndexChunks 批量向量化已切分的片段并写入。单条向量化失败以零向量代替，
// 保证片段仍可被关键词路径召回。
func (i *Indexer) IndexChunks(ctx context.Context, corpusID string, chunks []entity.Chunk) (*IndexReport, error) {
	if strings.TrimSpace(corpusID) == "" {
		return nil, fmt.Errorf("%w: corpus_id is required", ErrInvalidInput)
	}
	report := &IndexReport{Chunks: len(chunks)}
	if len(chunks) == 0 {
		return report, nil
	}

	if i.keywords != nil {
		i.keywords.GetOrCreate(corpusID).Add(chunks...)
	}
	if !i.Enabled() {
		return report, ErrVectorDisabled
	}

	inputs := make([]string, 0, len(chunks))
	for _, c := range chunks {
		embedText := c.Content
		if c.ChapterTitle != "" {
			embedText = "章节标题：" + c.ChapterTitle + "\n" + embedText
		}
		inputs = append(inputs, embedText)
	}

	vectors, failed, err := i.embedBatch(ctx, inputs)
	if err != nil {
		return report, err
	}
	report.ZeroVector = failed
	report.Embedded = len(chunks) - failed
	if failed > 0 {
		logger.Warn(ctx, "some chunks fell back to zero vectors", "corpus_id", corpusID, "failed", failed, "total", len(chunks))
	}

	records := make([]VectorRecord, 0, len(chunks))
	for idx, c := range chunks {
		records = append(records, VectorRecord{
			ID:          c.ID,
			Chapter:     c.Chapter,
			HasDialogue: c.HasDialogue,
			TextContent: encodeChunkText(ChunkMeta{ChapterTitle: c.ChapterTitle, Seq: c.Seq}, c.Content),
			Vector:      vectors[idx],
		})
	}
	if err := i.vectors.Insert(ctx, CollectionName(corpusID), records); err != nil {
		return report, fmt.Errorf("insert vectors: %w", err)
	}
	return report, nil
}

// DropCorpus 删除语料的向量集合与关键词索引
func (i *Indexer) DropCorpus(ctx context.Context, corpusID string) error {
	if i.keywords != nil {
		i.keywords.Drop(corpusID)
	}
	if !i.Enabled() {
		return nil
	}
	return i.vectors.DeleteCollection(ctx, CollectionName(corpusID))
}

func (i *Indexer) embedBatch(ctx context.Context, texts []string) ([][]float32, int, error) {
	out := make([][]float32, 0, len(texts))
	failedIdx := make([]int, 0)
	dim := i.dimension

	for start := 0; start < len(texts); start += i.embeddingBatchSize {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		end := min(start+i.embeddingBatchSize, len(texts))
		vecs, errs := i.embedder.EmbedMany(ctx, texts[start:end])
		for j := start; j < end; j++ {
			var v []float32
			if k := j - start; k < len(vecs) && (k >= len(errs) || errs[k] == nil) {
				v = vecs[k]
			}
			if len(v) == 0 {
				failedIdx = append(failedIdx, j)
			} else if dim == 0 {
				dim = len(v)
			}
			out = append(out, v)
		}
	}

	if len(failedIdx) > 0 && dim == 0 {
		return nil, 0, ErrEmbeddingUnavailable
	}
	for _, j := range failedIdx {
		out[j] = make([]float32, dim)
	}
	return out, len(failedIdx), nil
}

// HasDialogue 片段是否包含引号对白
func HasDialogue(text string) bool {
	return strings.ContainsAny(text, "“”「」\"")
}

func splitByRunes(s string, maxRunes int, overlapRunes int) []string {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return nil
	}
	runes := []rune(raw)
	if maxRunes <= 0 || len(runes) <= maxRunes {
		return []string{raw}
	}
	step := maxRunes - max(overlapRunes, 0)
	if step <= 0 {
		step = maxRunes
	}

	out := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := min(start+maxRunes, len(runes))
		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			out = append(out, chunk)
		}
		if end >= len(runes) {
			break
		}
	}
	return out
}

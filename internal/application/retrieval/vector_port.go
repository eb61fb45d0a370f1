package retrieval

import (
	"context"
	"regexp"
	"strings"

	"novel-rag-engine/internal/domain/entity"
)

// VectorStore 定义应用层对“向量存储/检索”的最小依赖（port）。
// 距离度量为 L2，越小越相似。
type VectorStore interface {
	Query(ctx context.Context, collection string, vector []float32, k int, filter VectorFilter) ([]VectorHit, error)
	Insert(ctx context.Context, collection string, records []VectorRecord) error
	DeleteCollection(ctx context.Context, collection string) error
	ListCollections(ctx context.Context) ([]string, error)
}

// ChunkSource 按语料读取全部已入库片段，用于重建关键词索引
type ChunkSource interface {
	LoadChunks(ctx context.Context, collection string) ([]entity.Chunk, error)
}

// VectorFilter 检索过滤条件，零值表示不过滤
type VectorFilter struct {
	ChapterFrom  int
	ChapterTo    int
	DialogueOnly bool
}

// Match 判断片段是否满足过滤条件
func (f VectorFilter) Match(chapter int, hasDialogue bool) bool {
	if f.ChapterFrom > 0 && chapter < f.ChapterFrom {
		return false
	}
	if f.ChapterTo > 0 && chapter > f.ChapterTo {
		return false
	}
	return !f.DialogueOnly || hasDialogue
}

// VectorHit 向量检索命中
type VectorHit struct {
	ID          string
	Distance    float64
	TextContent string
	Chapter     int
	HasDialogue bool
}

// VectorRecord 待写入的向量记录
type VectorRecord struct {
	ID          string
	Chapter     int
	HasDialogue bool
	TextContent string
	Vector      []float32
}

var collectionUnsafe = regexp.MustCompile(`[^A-Za-z0-9_]`)

// CollectionName 语料对应的集合名，仅保留字母数字与下划线
func CollectionName(corpusID string) string {
	return "corpus_" + collectionUnsafe.ReplaceAllString(strings.TrimSpace(corpusID), "_")
}

package milvus

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"novel-rag-engine/internal/application/retrieval"
	domain "novel-rag-engine/internal/domain/entity"
)

const (
	insertBatch = 500
	queryPage   = 1000
)

// Store 实现 retrieval.VectorStore 与 retrieval.ChunkSource。
// 每个语料一个集合，集合在首次写入时按向量维度创建。
type Store struct {
	client *Client

	mu     sync.Mutex
	loaded map[string]bool
}

var (
	_ retrieval.VectorStore = (*Store)(nil)
	_ retrieval.ChunkSource = (*Store)(nil)
)

// NewStore 创建向量存储
func NewStore(client *Client) *Store {
	return &Store{client: client, loaded: make(map[string]bool)}
}

// Query 以 L2 距离检索，集合不存在时返回空结果
func (s *Store) Query(ctx context.Context, collection string, vector []float32, k int, filter retrieval.VectorFilter) ([]retrieval.VectorHit, error) {
	ctx, span := tracer.Start(ctx, "milvus.Query",
		trace.WithAttributes(
			attribute.String("collection", collection),
			attribute.Int("top_k", k),
		))
	defer span.End()

	name := s.client.CollectionName(collection)
	has, err := s.client.milvus.HasCollection(ctx, name)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to check collection: %w", err)
	}
	if !has {
		return []retrieval.VectorHit{}, nil
	}
	if err := s.ensureLoaded(ctx, name); err != nil {
		span.RecordError(err)
		return nil, err
	}

	sp, err := entity.NewIndexHNSWSearchParam(s.searchEf(k))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	results, err := s.client.milvus.Search(ctx,
		name,
		nil,
		FilterExpr(filter),
		outputFields,
		[]entity.Vector{entity.FloatVector(vector)},
		fieldVector,
		entity.L2,
		k,
		sp,
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	var hits []retrieval.VectorHit
	for _, r := range results {
		hits = append(hits, parseHits(r.ResultCount, r.Scores, r.Fields)...)
	}
	span.SetAttributes(attribute.Int("result_count", len(hits)))
	return hits, nil
}

// Insert 写入片段，必要时创建集合与索引
func (s *Store) Insert(ctx context.Context, collection string, records []retrieval.VectorRecord) error {
	ctx, span := tracer.Start(ctx, "milvus.Insert",
		trace.WithAttributes(
			attribute.String("collection", collection),
			attribute.Int("count", len(records)),
		))
	defer span.End()

	if len(records) == 0 {
		return nil
	}
	dim := len(records[0].Vector)
	for _, r := range records {
		if len(r.Vector) != dim {
			return fmt.Errorf("vector dimension mismatch: record %s has %d, want %d", r.ID, len(r.Vector), dim)
		}
	}

	name := s.client.CollectionName(collection)
	if err := s.ensureCollection(ctx, name, dim); err != nil {
		span.RecordError(err)
		return err
	}

	for start := 0; start < len(records); start += insertBatch {
		batch := records[start:min(start+insertBatch, len(records))]
		if _, err := s.client.milvus.Insert(ctx, name, "", columns(batch, dim)...); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to insert chunks: %w", err)
		}
	}
	if err := s.client.milvus.Flush(ctx, name, false); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to flush: %w", err)
	}
	return nil
}

// DeleteCollection 删除集合，不存在时不报错
func (s *Store) DeleteCollection(ctx context.Context, collection string) error {
	ctx, span := tracer.Start(ctx, "milvus.DeleteCollection",
		trace.WithAttributes(attribute.String("collection", collection)))
	defer span.End()

	name := s.client.CollectionName(collection)
	has, err := s.client.milvus.HasCollection(ctx, name)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if !has {
		return nil
	}
	if err := s.client.milvus.DropCollection(ctx, name); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to drop collection: %w", err)
	}

	s.mu.Lock()
	delete(s.loaded, name)
	s.mu.Unlock()
	return nil
}

// ListCollections 列出本服务前缀下的集合（已去掉前缀）
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	ctx, span := tracer.Start(ctx, "milvus.ListCollections")
	defer span.End()

	colls, err := s.client.milvus.ListCollections(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	names := make([]string, 0, len(colls))
	for _, c := range colls {
		names = append(names, c.Name)
	}
	return stripPrefix(s.client.config.CollectionPrefix, names), nil
}

// LoadChunks 分页读出集合内全部片段，用于关键词索引冷启动
func (s *Store) LoadChunks(ctx context.Context, collection string) ([]domain.Chunk, error) {
	ctx, span := tracer.Start(ctx, "milvus.LoadChunks",
		trace.WithAttributes(attribute.String("collection", collection)))
	defer span.End()

	name := s.client.CollectionName(collection)
	has, err := s.client.milvus.HasCollection(ctx, name)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to check collection: %w", err)
	}
	if !has {
		return nil, nil
	}
	if err := s.ensureLoaded(ctx, name); err != nil {
		span.RecordError(err)
		return nil, err
	}

	var chunks []domain.Chunk
	for offset := int64(0); ; offset += queryPage {
		rs, err := s.client.milvus.Query(ctx, name, nil, fieldChapter+" >= 0", outputFields,
			client.WithOffset(offset), client.WithLimit(queryPage))
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to query chunks: %w", err)
		}
		hits := parseHits(rowCount(rs), nil, rs)
		for _, h := range hits {
			meta, text := retrieval.DecodeChunkText(h.TextContent)
			chunks = append(chunks, domain.Chunk{
				ID:           h.ID,
				Chapter:      h.Chapter,
				ChapterTitle: meta.ChapterTitle,
				Seq:          meta.Seq,
				Content:      text,
				HasDialogue:  h.HasDialogue,
			})
		}
		if len(hits) < queryPage {
			break
		}
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Chapter != chunks[j].Chapter {
			return chunks[i].Chapter < chunks[j].Chapter
		}
		return chunks[i].Seq < chunks[j].Seq
	})
	span.SetAttributes(attribute.Int("chunk_count", len(chunks)))
	return chunks, nil
}

// ensureCollection 不存在则建集合与 HNSW 索引；不会做 drop/rebuild 等破坏性操作
func (s *Store) ensureCollection(ctx context.Context, name string, dim int) error {
	has, err := s.client.milvus.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if !has {
		if err := s.client.milvus.CreateCollection(ctx, ChunkSchema(name, dim), entity.DefaultShardNumber); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		idx, err := entity.NewIndexHNSW(entity.L2, s.client.config.HNSWM, s.client.config.HNSWEfConstruction)
		if err != nil {
			return fmt.Errorf("failed to build index params: %w", err)
		}
		if err := s.client.milvus.CreateIndex(ctx, name, fieldVector, idx, false); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return s.ensureLoaded(ctx, name)
}

func (s *Store) ensureLoaded(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded[name] {
		return nil
	}
	if err := s.client.milvus.LoadCollection(ctx, name, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	s.loaded[name] = true
	return nil
}

// searchEf HNSW 要求 ef >= topK
func (s *Store) searchEf(k int) int {
	return max(s.client.config.SearchEf, k)
}

// FilterExpr 将过滤条件转换为 Milvus 布尔表达式
func FilterExpr(f retrieval.VectorFilter) string {
	var parts []string
	if f.ChapterFrom > 0 {
		parts = append(parts, fmt.Sprintf("%s >= %d", fieldChapter, f.ChapterFrom))
	}
	if f.ChapterTo > 0 {
		parts = append(parts, fmt.Sprintf("%s <= %d", fieldChapter, f.ChapterTo))
	}
	if f.DialogueOnly {
		parts = append(parts, fieldHasDialogue+" == true")
	}
	return strings.Join(parts, " && ")
}

func columns(records []retrieval.VectorRecord, dim int) []entity.Column {
	ids := make([]string, len(records))
	vectors := make([][]float32, len(records))
	chapters := make([]int64, len(records))
	dialogue := make([]bool, len(records))
	texts := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
		vectors[i] = r.Vector
		chapters[i] = int64(r.Chapter)
		dialogue[i] = r.HasDialogue
		texts[i] = r.TextContent
	}
	return []entity.Column{
		entity.NewColumnVarChar(fieldID, ids),
		entity.NewColumnFloatVector(fieldVector, dim, vectors),
		entity.NewColumnInt64(fieldChapter, chapters),
		entity.NewColumnBool(fieldHasDialogue, dialogue),
		entity.NewColumnVarChar(fieldText, texts),
	}
}

// parseHits 按列取值；scores 为空时距离记为 0
func parseHits(n int, scores []float32, fields client.ResultSet) []retrieval.VectorHit {
	hits := make([]retrieval.VectorHit, n)
	if col, ok := fields.GetColumn(fieldID).(*entity.ColumnVarChar); ok {
		for i, v := range col.Data()[:min(n, col.Len())] {
			hits[i].ID = v
		}
	}
	if col, ok := fields.GetColumn(fieldChapter).(*entity.ColumnInt64); ok {
		for i, v := range col.Data()[:min(n, col.Len())] {
			hits[i].Chapter = int(v)
		}
	}
	if col, ok := fields.GetColumn(fieldHasDialogue).(*entity.ColumnBool); ok {
		for i, v := range col.Data()[:min(n, col.Len())] {
			hits[i].HasDialogue = v
		}
	}
	if col, ok := fields.GetColumn(fieldText).(*entity.ColumnVarChar); ok {
		for i, v := range col.Data()[:min(n, col.Len())] {
			hits[i].TextContent = v
		}
	}
	for i := 0; i < n && i < len(scores); i++ {
		hits[i].Distance = float64(scores[i])
	}
	return hits
}

func rowCount(rs client.ResultSet) int {
	if col := rs.GetColumn(fieldID); col != nil {
		return col.Len()
	}
	return 0
}

func stripPrefix(prefix string, names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if prefix == "" {
			out = append(out, n)
			continue
		}
		if rest, ok := strings.CutPrefix(n, prefix+"_"); ok {
			out = append(out, rest)
		}
	}
	sort.Strings(out)
	return out
}

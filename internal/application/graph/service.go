package graph

import (
	"context"
	"errors"
	"fmt"

	"novel-rag-engine/internal/domain/repository"
	"novel-rag-engine/internal/domain/service"
	"novel-rag-engine/pkg/logger"
)

// Service 构建、持久化与加载图谱快照
type Service struct {
	builder  *Builder
	store    repository.GraphSnapshotRepository
	exporter repository.GraphExporter
}

// NewService exporter 可为空
func NewService(builder *Builder, store repository.GraphSnapshotRepository, exporter repository.GraphExporter) *Service {
	return &Service{builder: builder, store: store, exporter: exporter}
}

// Rebuild 构建完成后一次性写入快照；构建中途取消不会留下任何数据
func (s *Service) Rebuild(ctx context.Context, in BuildInput) (*BuildReport, error) {
	g, report, err := s.builder.Build(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, g); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}

	if s.exporter != nil {
		if err := s.exporter.Export(ctx, g); err != nil {
			logger.Error(ctx, "export graph snapshot failed", err, "corpus_id", g.CorpusID)
		}
	}
	return report, nil
}

// RebuildCorpus 对整部语料识别实体并重建图谱，共现片段直接取自语料正文
func (s *Service) RebuildCorpus(ctx context.Context, c *Corpus, ner service.EntityRecognizer) (*BuildReport, error) {
	if ner == nil {
		return nil, errors.New("entity recognizer is not configured")
	}
	chapters, err := c.ExtractEntities(ctx, ner)
	if err != nil {
		return nil, err
	}
	return s.Rebuild(ctx, BuildInput{
		CorpusID:      c.ID,
		TotalChapters: c.TotalChapters(),
		Chapters:      chapters,
		Contexts:      NewTextContextProvider(c.Texts()),
	})
}

// Open 加载快照并返回只读查询视图
func (s *Service) Open(ctx context.Context, corpusID string) (*Query, error) {
	g, err := s.store.Load(ctx, corpusID)
	if err != nil {
		return nil, err
	}
	return NewQuery(g), nil
}

// OpenOptional 快照缺失或加载失败时返回 nil，调用方进入降级模式
func (s *Service) OpenOptional(ctx context.Context, corpusID string) *Query {
	if s == nil || s.store == nil {
		return nil
	}
	q, err := s.Open(ctx, corpusID)
	if err != nil {
		if errors.Is(err, repository.ErrSnapshotNotFound) {
			logger.Debug(ctx, "no graph snapshot, running degraded", "corpus_id", corpusID)
		} else {
			logger.Warn(ctx, "load graph snapshot failed, running degraded", "corpus_id", corpusID, "error", err.Error())
		}
		return nil
	}
	return q
}

// Delete 删除快照
func (s *Service) Delete(ctx context.Context, corpusID string) error {
	return s.store.Delete(ctx, corpusID)
}

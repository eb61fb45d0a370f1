package repository

import (
	"context"

	"novel-rag-engine/internal/domain/entity"
	apperrors "novel-rag-engine/pkg/errors"
)

// ErrSnapshotNotFound 指定语料尚无图谱快照
var ErrSnapshotNotFound = apperrors.ErrSnapshotNotFound

// GraphSnapshotRepository 图谱快照存储。快照一经保存即不可变，
// 重新构建会整体替换。
type GraphSnapshotRepository interface {
	Save(ctx context.Context, g *entity.Graph) error
	// Load 返回最新快照；不存在时返回 ErrSnapshotNotFound
	Load(ctx context.Context, corpusID string) (*entity.Graph, error)
	Delete(ctx context.Context, corpusID string) error
	Exists(ctx context.Context, corpusID string) (bool, error)
}

// GraphExporter 将快照镜像到外部图数据库
type GraphExporter interface {
	Export(ctx context.Context, g *entity.Graph) error
}

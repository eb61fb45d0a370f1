package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"novel-rag-engine/internal/domain/entity"
	"novel-rag-engine/internal/domain/repository"
	"novel-rag-engine/internal/infrastructure/persistence/snapshot"
	"novel-rag-engine/pkg/metrics"
)

const storeLabel = "redis"

// SnapshotStore 以单个键保存整份编码后的快照
type SnapshotStore struct {
	client *Client
	ttl    time.Duration
	group  singleflight.Group
}

var _ repository.GraphSnapshotRepository = (*SnapshotStore)(nil)

// NewSnapshotStore ttl 为 0 表示永不过期
func NewSnapshotStore(client *Client, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{client: client, ttl: ttl}
}

// SnapshotKey 快照键
func SnapshotKey(corpusID string) string {
	return fmt.Sprintf("graph:snapshot:%s", corpusID)
}

// Save 整体覆盖写入
func (s *SnapshotStore) Save(ctx context.Context, g *entity.Graph) (err error) {
	ctx, span := tracer.Start(ctx, "snapshot.Save",
		trace.WithAttributes(attribute.String("corpus.id", g.CorpusID)))
	defer func() { finish(span, "save", err) }()

	data, err := snapshot.Encode(g)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("snapshot.bytes", len(data)))

	if err := s.client.rdb.Set(ctx, SnapshotKey(g.CorpusID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Load 同一语料的并发加载合并为一次读取
func (s *SnapshotStore) Load(ctx context.Context, corpusID string) (*entity.Graph, error) {
	ctx, span := tracer.Start(ctx, "snapshot.Load",
		trace.WithAttributes(attribute.String("corpus.id", corpusID)))

	v, err, shared := s.group.Do(corpusID, func() (interface{}, error) {
		data, err := s.client.rdb.Get(ctx, SnapshotKey(corpusID)).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil, repository.ErrSnapshotNotFound
			}
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
		return snapshot.Decode(data)
	})
	span.SetAttributes(attribute.Bool("snapshot.shared", shared))
	finish(span, "load", err)
	if err != nil {
		return nil, err
	}
	return v.(*entity.Graph), nil
}

// Delete 删除快照，不存在时不报错
func (s *SnapshotStore) Delete(ctx context.Context, corpusID string) (err error) {
	ctx, span := tracer.Start(ctx, "snapshot.Delete",
		trace.WithAttributes(attribute.String("corpus.id", corpusID)))
	defer func() { finish(span, "delete", err) }()

	return s.client.rdb.Del(ctx, SnapshotKey(corpusID)).Err()
}

// Exists 快照是否存在
func (s *SnapshotStore) Exists(ctx context.Context, corpusID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "snapshot.Exists")
	defer span.End()

	n, err := s.client.rdb.Exists(ctx, SnapshotKey(corpusID)).Result()
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	return n > 0, nil
}

func finish(span trace.Span, op string, err error) {
	status := "ok"
	switch {
	case errors.Is(err, repository.ErrSnapshotNotFound):
		status = "miss"
	case err != nil:
		status = "error"
		span.RecordError(err)
	}
	metrics.SnapshotOpsTotal.WithLabelValues(storeLabel, op, status).Inc()
	span.End()
}

package bootstrap

import (
	"context"
	"fmt"

	"novel-rag-engine/internal/config"
	"novel-rag-engine/internal/domain/repository"
	"novel-rag-engine/internal/domain/service"
	infraembedding "novel-rag-engine/internal/infrastructure/embedding"
	"novel-rag-engine/internal/infrastructure/llm"
	"novel-rag-engine/internal/infrastructure/messaging"
	"novel-rag-engine/internal/infrastructure/nlp"
	"novel-rag-engine/internal/infrastructure/persistence/graphdb"
	"novel-rag-engine/internal/infrastructure/persistence/milvus"
	"novel-rag-engine/internal/infrastructure/persistence/postgres"
	"novel-rag-engine/internal/infrastructure/persistence/redis"
	"novel-rag-engine/pkg/logger"
)

func noop() {}

// ProvideRedisClient 提供 Redis 客户端
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvidePostgresClient 未启用时返回 nil；启用后自动迁移快照表
func ProvidePostgresClient(ctx context.Context, cfg *config.Config) (*postgres.Client, func(), error) {
	if !cfg.Database.Postgres.Enabled {
		return nil, noop, nil
	}
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideMilvusClientOptional 不可达时不阻塞启动，向量检索随之禁用
func ProvideMilvusClientOptional(ctx context.Context, cfg *config.Config) (*milvus.Client, func()) {
	client, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		logger.Warn(ctx, "milvus not available, vector features disabled", "error", err.Error())
		return nil, noop
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup
}

// ProvideEmbedderOptional 未配置或创建失败时返回 nil
func ProvideEmbedderOptional(ctx context.Context, cfg *config.Config) service.Embedder {
	embedder, err := infraembedding.NewEinoEmbedder(ctx, &cfg.Embedding)
	if err != nil {
		logger.Warn(ctx, "embedding not available, vector features disabled", "error", err.Error())
		return nil
	}
	return embedder
}

// ProvideSnapshotRepository 按 graph.snapshot_store 选择快照主存储
func ProvideSnapshotRepository(cfg *config.Config, rc *redis.Client, pg *postgres.Client) (repository.GraphSnapshotRepository, error) {
	switch cfg.Graph.SnapshotStore {
	case "", "redis":
		return redis.NewSnapshotStore(rc, cfg.Graph.SnapshotTTL), nil
	case "postgres":
		if pg == nil {
			return nil, fmt.Errorf("graph.snapshot_store is postgres but database.postgres is disabled")
		}
		return postgres.NewSnapshotRepository(pg, postgres.NewTxManager(pg), cfg.Graph.SnapshotRevisions), nil
	default:
		return nil, fmt.Errorf("unsupported snapshot store %q", cfg.Graph.SnapshotStore)
	}
}

// ProvideExporterOptional Neo4j 镜像；连接失败只记录日志
func ProvideExporterOptional(ctx context.Context, cfg *config.Config) (repository.GraphExporter, func()) {
	if !cfg.Graph.Neo4j.Enabled {
		return nil, noop
	}
	exporter, err := graphdb.NewExporter(ctx, cfg.Graph.Neo4j)
	if err != nil {
		logger.Warn(ctx, "neo4j not available, graph export disabled", "error", err.Error())
		return nil, noop
	}
	cleanup := func() {
		_ = exporter.Close(context.Background())
	}
	return exporter, cleanup
}

// ProvideChatCompleter 默认供应商的对话补全
func ProvideChatCompleter(cfg *config.Config) service.ChatCompleter {
	return llm.NewChatCompleter(llm.NewEinoFactory(&cfg.LLM), cfg.LLM.DefaultProvider)
}

// ProvideBatchSubmitter 未启用离线批量时返回 nil
func ProvideBatchSubmitter(cfg *config.Config) service.BatchSubmitter {
	if !cfg.LLM.Batch.Enabled {
		return nil
	}
	p, ok := cfg.LLM.Providers[cfg.LLM.Batch.Provider]
	if !ok {
		logger.Warn(context.Background(), "batch provider not configured, batch api disabled", "provider", cfg.LLM.Batch.Provider)
		return nil
	}
	return llm.NewBatchClient(p)
}

// ProvideTokenCounter 编码表加载失败时返回 nil，由调用方按字符估算
func ProvideTokenCounter(cfg *config.Config) service.TokenCounter {
	counter, err := llm.NewTiktokenCounter(defaultModel(cfg))
	if err != nil {
		logger.Warn(context.Background(), "tiktoken unavailable, falling back to estimation", "error", err.Error())
		return nil
	}
	return counter
}

// ProvideEntityRecognizer 未启用时返回 nil
func ProvideEntityRecognizer(cfg *config.Config) service.EntityRecognizer {
	if !cfg.NER.Enabled {
		return nil
	}
	return nlp.NewClient(&cfg.NER)
}

// ProvideMessagingProducer 提供图谱构建任务生产者
func ProvideMessagingProducer(rc *redis.Client, cfg *config.Config) *messaging.Producer {
	stream := messaging.Stream(cfg.Messaging.RedisStream.GraphBuildStream)
	return messaging.NewProducer(rc.Redis(), stream, cfg.Messaging.RedisStream.MaxLen)
}

// ProvideConsumer 提供图谱构建任务消费者
func ProvideConsumer(rc *redis.Client, cfg *config.Config, consumerName string) *messaging.Consumer {
	sc := cfg.Messaging.RedisStream
	return messaging.NewConsumer(rc.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.Stream(sc.GraphBuildStream),
		Group:         messaging.GroupName(sc.ConsumerGroupPrefix, "graph-builder"),
		ConsumerName:  consumerName,
		BlockTimeout:  sc.BlockTimeout,
		ClaimInterval: sc.ClaimInterval,
		RetryLimit:    sc.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    sc.RetryBackoff.Initial,
			Max:        sc.RetryBackoff.Max,
			Multiplier: sc.RetryBackoff.Multiplier,
		},
	})
}

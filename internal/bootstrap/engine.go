package bootstrap

import (
	"context"

	"novel-rag-engine/internal/application/graph"
	"novel-rag-engine/internal/application/qa"
	"novel-rag-engine/internal/application/rerank"
	"novel-rag-engine/internal/application/retrieval"
	"novel-rag-engine/internal/application/verification"
	"novel-rag-engine/internal/config"
	"novel-rag-engine/internal/domain/repository"
	"novel-rag-engine/internal/domain/service"
	"novel-rag-engine/internal/infrastructure/persistence/milvus"
	"novel-rag-engine/internal/infrastructure/persistence/postgres"
	"novel-rag-engine/internal/infrastructure/persistence/redis"
	workflowprompt "novel-rag-engine/internal/workflow/prompt"
)

// Engine 检索、图谱与问答组件容器。Postgres、Milvus、VectorStore 可能为空。
type Engine struct {
	Config *config.Config

	Redis    *redis.Client
	Postgres *postgres.Client
	Milvus   *milvus.Client

	Snapshots repository.GraphSnapshotRepository

	Vectors   *milvus.Store
	Keywords  *retrieval.KeywordRegistry
	Retriever *retrieval.HybridRetriever
	Indexer   *retrieval.Indexer

	LLM      service.ChatCompleter
	NER      service.EntityRecognizer
	Prompts  *workflowprompt.Registry
	Graphs   *graph.Service
	Verifier *verification.Pipeline
	QA       *qa.Service
}

// NewEngine 按配置组装全部组件，返回的 cleanup 逆序释放连接
func NewEngine(ctx context.Context, cfg *config.Config) (*Engine, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (*Engine, func(), error) {
		cleanup()
		return nil, nil, err
	}

	rc, rcCleanup, err := ProvideRedisClient(cfg)
	if err != nil {
		return fail(err)
	}
	cleanups = append(cleanups, rcCleanup)

	pg, pgCleanup, err := ProvidePostgresClient(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	cleanups = append(cleanups, pgCleanup)

	mc, mcCleanup := ProvideMilvusClientOptional(ctx, cfg)
	cleanups = append(cleanups, mcCleanup)

	store, err := ProvideSnapshotRepository(cfg, rc, pg)
	if err != nil {
		return fail(err)
	}
	exporter, exCleanup := ProvideExporterOptional(ctx, cfg)
	cleanups = append(cleanups, exCleanup)

	e := &Engine{
		Config:    cfg,
		Redis:     rc,
		Postgres:  pg,
		Milvus:    mc,
		Snapshots: store,
		Keywords:  retrieval.NewKeywordRegistry(),
		LLM:       ProvideChatCompleter(cfg),
		NER:       ProvideEntityRecognizer(cfg),
		Prompts:   workflowprompt.NewRegistry(),
	}

	embedder := ProvideEmbedderOptional(ctx, cfg)
	var vectors retrieval.VectorStore
	if mc != nil {
		e.Vectors = milvus.NewStore(mc)
		vectors = e.Vectors
	}
	e.Retriever = retrieval.NewHybridRetriever(embedder, vectors, e.Keywords, RetrievalOptions(cfg.Retrieval))
	if e.Vectors != nil {
		e.Retriever = e.Retriever.WithChunkSource(e.Vectors)
	}
	e.Indexer = retrieval.NewIndexer(embedder, vectors, e.Keywords, IndexerOptions(cfg))

	classifier := graph.NewRelationClassifier(e.LLM, e.Prompts, ClassifierOptions(cfg))
	dispatcher := graph.NewDispatcher(classifier, ProvideBatchSubmitter(cfg), ProvideTokenCounter(cfg), DispatchOptions(cfg.Graph.Classification))
	builder := graph.NewBuilder(TierConfig(cfg.Graph.Tiers), dispatcher, PageRankOptions(cfg.Graph.PageRank))
	e.Graphs = graph.NewService(builder, store, exporter)

	e.Verifier = verification.NewPipeline(e.Retriever, verification.ConfigFrom(cfg.Verification))
	e.QA = qa.NewService(
		e.Retriever,
		rerank.New(RerankConfig(cfg.Rerank)),
		e.LLM,
		e.Prompts,
		e.Graphs,
		e.Verifier,
		QAOptions(cfg),
	)

	return e, cleanup, nil
}

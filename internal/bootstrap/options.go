// Package bootstrap 按配置组装检索、图谱与问答组件，供各个命令共用
package bootstrap

import (
	"novel-rag-engine/internal/application/graph"
	"novel-rag-engine/internal/application/qa"
	"novel-rag-engine/internal/application/rerank"
	"novel-rag-engine/internal/application/retrieval"
	"novel-rag-engine/internal/config"
	"novel-rag-engine/pkg/retry"
)

// RetryPolicy 配置缺省项回落到默认策略
func RetryPolicy(c config.RetryConfig) retry.Policy {
	p := retry.DefaultPolicy()
	if c.MaxAttempts > 0 {
		p.MaxAttempts = c.MaxAttempts
	}
	if c.BaseDelay > 0 {
		p.BaseDelay = c.BaseDelay
	}
	if c.Multiplier >= 1 {
		p.Multiplier = c.Multiplier
	}
	if c.MaxDelay > 0 {
		p.MaxDelay = c.MaxDelay
	}
	if c.RateLimitFloor > 0 {
		p.RateLimitFloor = c.RateLimitFloor
	}
	return p
}

func TierConfig(c config.GraphTiersConfig) graph.TierConfig {
	def := graph.DefaultTierConfig()
	if c.ShortMaxChapters <= 0 || c.MediumMaxChapters <= c.ShortMaxChapters {
		return def
	}
	return graph.TierConfig{
		ShortMaxChapters:  c.ShortMaxChapters,
		MediumMaxChapters: c.MediumMaxChapters,
		Short:             thresholds(c.Short, def.Short),
		Medium:            thresholds(c.Medium, def.Medium),
		Long:              thresholds(c.Long, def.Long),
	}
}

func thresholds(p config.ThresholdPair, def graph.Thresholds) graph.Thresholds {
	if p.Weak <= 0 || p.Strong < p.Weak {
		return def
	}
	return graph.Thresholds{Weak: p.Weak, Strong: p.Strong}
}

func PageRankOptions(c config.PageRankConfig) graph.PageRankOptions {
	opts := graph.DefaultPageRankOptions()
	if c.Alpha > 0 && c.Alpha < 1 {
		opts.Alpha = c.Alpha
	}
	if c.Iterations > 0 {
		opts.Iterations = c.Iterations
	}
	if c.Tolerance > 0 {
		opts.Tolerance = c.Tolerance
	}
	return opts
}

func DispatchOptions(c config.ClassificationConfig) graph.DispatchOptions {
	return graph.DispatchOptions{
		Concurrency:       c.Concurrency,
		BatchDelay:        c.BatchDelay,
		RequestsPerSecond: c.RequestsPerSecond,
		BatchThreshold:    c.BatchThreshold,
		PollInterval:      c.PollInterval,
		MaxBatchRequests:  c.MaxBatchRequests,
	}
}

// ClassifierOptions 关系分类使用默认供应商的模型
func ClassifierOptions(cfg *config.Config) graph.ClassifierOptions {
	return graph.ClassifierOptions{
		Model:           defaultModel(cfg),
		MaxContexts:     cfg.Graph.Classification.MaxContexts,
		ContextMaxRunes: cfg.Graph.Classification.ContextMaxRunes,
		Retry:           RetryPolicy(cfg.LLM.Retry),
	}
}

// RetrievalOptions 零值字段使用检索默认值
func RetrievalOptions(c config.RetrievalConfig) retrieval.Options {
	opts := retrieval.DefaultOptions()
	if c.TopK > 0 {
		opts.TopK = c.TopK
	}
	if c.MaxDistance > 0 {
		opts.MaxDistance = c.MaxDistance
	}
	opts.KeywordEnabled = c.KeywordEnabled
	if c.VectorWeight > 0 {
		opts.VectorWeight = c.VectorWeight
	}
	if c.KeywordWeight > 0 {
		opts.KeywordWeight = c.KeywordWeight
	}
	if c.RRFK > 0 {
		opts.RRFK = c.RRFK
	}
	return opts
}

func IndexerOptions(cfg *config.Config) retrieval.IndexerOptions {
	return retrieval.IndexerOptions{
		EmbeddingBatchSize: cfg.Embedding.BatchSize,
		Dimension:          cfg.Embedding.Dimension,
		ChunkSizeRunes:     cfg.Retrieval.ChunkSizeRunes,
		ChunkOverlapRunes:  cfg.Retrieval.ChunkOverlapRunes,
	}
}

func RerankConfig(c config.RerankConfig) rerank.Config {
	out := rerank.DefaultConfig()
	set := func(dst *float64, v float64) {
		if v > 0 {
			*dst = v
		}
	}
	set(&out.HighSemantic, c.HighSemantic)
	set(&out.LowSemantic, c.LowSemantic)
	set(&out.AnalysisLowSemantic, c.AnalysisLowSemantic)
	set(&out.HighEntity, c.HighEntity)
	set(&out.LowEntity, c.LowEntity)
	set(&out.RecencyWeight, c.RecencyWeight)
	if c.MergeMaxSeqGap > 0 {
		out.MergeMaxSeqGap = c.MergeMaxSeqGap
	}
	return out
}

func QAOptions(cfg *config.Config) qa.Options {
	opts := qa.DefaultOptions()
	opts.Model = defaultModel(cfg)
	if cfg.Retrieval.TopK > 0 {
		opts.RetrieveTopK = cfg.Retrieval.TopK
	}
	if p, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]; ok {
		if p.MaxTokens > 0 {
			opts.MaxTokens = p.MaxTokens
		}
		if p.Temperature > 0 {
			opts.Temperature = float32(p.Temperature)
		}
	}
	opts.Retry = RetryPolicy(cfg.LLM.Retry)
	return opts
}

func defaultModel(cfg *config.Config) string {
	return cfg.LLM.Providers[cfg.LLM.DefaultProvider].Model
}

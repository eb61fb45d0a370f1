// Package config 提供配置加载功能
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envPlaceholder 匹配 ${VAR} 或 ${VAR:default}
// g1: 变量名, g2: 默认值部分（含冒号）, g3: 默认值内容
var envPlaceholder = regexp.MustCompile(`\${(\w+)(:([^}]*))?}`)

// Load 从 configs 目录加载配置
func Load() (*Config, error) {
	return LoadFrom("configs")
}

// LoadFrom 按优先级加载：.env -> 默认配置 -> 环境配置 -> 环境变量
func LoadFrom(dir string) (*Config, error) {
	// .env 仅补充未设置的变量，不覆盖进程环境
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")

	if err := loadConfigFile(v, filepath.Join(dir, "config.yaml"), false); err != nil {
		return nil, err
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	envFile := filepath.Join(dir, fmt.Sprintf("config.%s.yaml", env))
	if err := loadConfigFile(v, envFile, true); err != nil {
		return nil, err
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadConfigFile 读取文件，执行环境变量替换，并加载到 viper
func loadConfigFile(v *viper.Viper, path string, optional bool) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	reader := strings.NewReader(expandEnv(string(content)))
	if v.ConfigFileUsed() == "" {
		if err := v.ReadConfig(reader); err != nil {
			return fmt.Errorf("failed to read processed config %s: %w", path, err)
		}
		v.SetConfigFile(path)
		return nil
	}
	if err := v.MergeConfig(reader); err != nil {
		return fmt.Errorf("failed to merge processed config %s: %w", path, err)
	}
	return nil
}

// expandEnv 替换字符串中的 ${VAR:default} 占位符；未定义且无默认值时保留原样
func expandEnv(s string) string {
	return envPlaceholder.ReplaceAllStringFunc(s, func(match string) string {
		submatch := envPlaceholder.FindStringSubmatch(match)
		if val, ok := os.LookupEnv(submatch[1]); ok {
			return val
		}
		if submatch[2] != "" {
			return submatch[3]
		}
		return match
	})
}

// Validate 校验阈值之间的约束
func (c *Config) Validate() error {
	t := c.Graph.Tiers
	for name, p := range map[string]ThresholdPair{"short": t.Short, "medium": t.Medium, "long": t.Long} {
		if p.Weak <= 0 || p.Strong < p.Weak {
			return fmt.Errorf("graph.tiers.%s: require 0 < weak <= strong, got weak=%d strong=%d", name, p.Weak, p.Strong)
		}
	}
	if t.ShortMaxChapters >= t.MediumMaxChapters {
		return fmt.Errorf("graph.tiers: short_max_chapters must be below medium_max_chapters")
	}
	if c.Rerank.LowSemantic >= c.Rerank.HighSemantic {
		return fmt.Errorf("rerank: low_semantic must be below high_semantic")
	}
	if c.Graph.PageRank.Alpha <= 0 || c.Graph.PageRank.Alpha >= 1 {
		return fmt.Errorf("graph.pagerank.alpha must be in (0,1)")
	}
	switch c.Graph.SnapshotStore {
	case "redis", "postgres":
	default:
		return fmt.Errorf("graph.snapshot_store: unsupported store %q", c.Graph.SnapshotStore)
	}
	return nil
}

// setDefaults 设置配置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "novel-rag-engine")
	v.SetDefault("app.version", "v0.0.0")
	v.SetDefault("app.env", "development")

	v.SetDefault("server.http.host", "0.0.0.0")
	v.SetDefault("server.http.port", 8080)
	v.SetDefault("server.http.read_timeout", "30s")
	v.SetDefault("server.http.write_timeout", "120s")
	v.SetDefault("server.http.idle_timeout", "120s")

	v.SetDefault("database.postgres.enabled", false)
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.database", "novel_rag")
	v.SetDefault("database.postgres.ssl_mode", "disable")
	v.SetDefault("database.postgres.max_open_conns", 20)
	v.SetDefault("database.postgres.max_idle_conns", 5)
	v.SetDefault("database.postgres.conn_max_lifetime", "30m")
	v.SetDefault("database.postgres.conn_max_idle_time", "5m")

	v.SetDefault("cache.redis.host", "localhost")
	v.SetDefault("cache.redis.port", 6379)
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.pool_size", 50)
	v.SetDefault("cache.redis.min_idle_conns", 5)
	v.SetDefault("cache.redis.dial_timeout", "5s")
	v.SetDefault("cache.redis.read_timeout", "3s")
	v.SetDefault("cache.redis.write_timeout", "3s")

	v.SetDefault("vector.milvus.host", "localhost")
	v.SetDefault("vector.milvus.port", 19530)
	v.SetDefault("vector.milvus.collection_prefix", "novel")
	v.SetDefault("vector.milvus.hnsw_m", 16)
	v.SetDefault("vector.milvus.hnsw_ef_construction", 200)
	v.SetDefault("vector.milvus.search_ef", 128)

	v.SetDefault("graph.snapshot_store", "redis")
	v.SetDefault("graph.snapshot_ttl", "0s")
	v.SetDefault("graph.snapshot_revisions", 5)
	v.SetDefault("graph.neo4j.enabled", false)
	v.SetDefault("graph.neo4j.uri", "bolt://localhost:7687")
	v.SetDefault("graph.neo4j.user", "neo4j")
	v.SetDefault("graph.neo4j.database", "neo4j")
	v.SetDefault("graph.tiers.short_max_chapters", 100)
	v.SetDefault("graph.tiers.medium_max_chapters", 500)
	v.SetDefault("graph.tiers.short.weak", 2)
	v.SetDefault("graph.tiers.short.strong", 5)
	v.SetDefault("graph.tiers.medium.weak", 3)
	v.SetDefault("graph.tiers.medium.strong", 8)
	v.SetDefault("graph.tiers.long.weak", 5)
	v.SetDefault("graph.tiers.long.strong", 15)
	v.SetDefault("graph.classification.concurrency", 3)
	v.SetDefault("graph.classification.batch_delay", "1s")
	v.SetDefault("graph.classification.requests_per_second", 2.0)
	v.SetDefault("graph.classification.batch_threshold", 20)
	v.SetDefault("graph.classification.poll_interval", "30s")
	v.SetDefault("graph.classification.max_batch_requests", 50000)
	v.SetDefault("graph.classification.max_contexts", 5)
	v.SetDefault("graph.classification.context_max_runes", 300)
	v.SetDefault("graph.pagerank.alpha", 0.85)
	v.SetDefault("graph.pagerank.iterations", 100)
	v.SetDefault("graph.pagerank.tolerance", 1e-6)

	v.SetDefault("llm.default_provider", "openai")
	v.SetDefault("llm.retry.max_attempts", 3)
	v.SetDefault("llm.retry.base_delay", "1s")
	v.SetDefault("llm.retry.multiplier", 2.0)
	v.SetDefault("llm.retry.max_delay", "30s")
	v.SetDefault("llm.retry.rate_limit_floor", "5s")
	v.SetDefault("llm.batch.enabled", false)
	v.SetDefault("llm.batch.provider", "openai")

	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimension", 1536)
	v.SetDefault("embedding.batch_size", 32)
	v.SetDefault("embedding.timeout", "30s")

	v.SetDefault("ner.enabled", false)
	v.SetDefault("ner.endpoint", "http://localhost:8500/ner")
	v.SetDefault("ner.timeout", "10s")

	v.SetDefault("retrieval.top_k", 30)
	v.SetDefault("retrieval.max_distance", 1.2)
	v.SetDefault("retrieval.keyword_enabled", true)
	v.SetDefault("retrieval.vector_weight", 1.0)
	v.SetDefault("retrieval.keyword_weight", 0.6)
	v.SetDefault("retrieval.rrf_k", 60)
	v.SetDefault("retrieval.chunk_size_runes", 500)
	v.SetDefault("retrieval.chunk_overlap_runes", 50)

	v.SetDefault("rerank.high_semantic", 0.85)
	v.SetDefault("rerank.low_semantic", 0.5)
	v.SetDefault("rerank.analysis_low_semantic", 0.6)
	v.SetDefault("rerank.high_entity", 1.3)
	v.SetDefault("rerank.low_entity", 0.5)
	v.SetDefault("rerank.recency_weight", 0.15)
	v.SetDefault("rerank.merge_max_seq_gap", 2)

	v.SetDefault("verification.min_assertion_confidence", 0.5)
	v.SetDefault("verification.evidence_top_k", 3)
	v.SetDefault("verification.weak_support_threshold", 0.7)
	v.SetDefault("verification.direct_conflict_min_gap", 10)

	v.SetDefault("messaging.redis_stream.graph_build_stream", "stream:graph:build")
	v.SetDefault("messaging.redis_stream.max_len", 10000)
	v.SetDefault("messaging.redis_stream.consumer_group_prefix", "novel-rag")
	v.SetDefault("messaging.redis_stream.block_timeout", "5s")
	v.SetDefault("messaging.redis_stream.claim_interval", "30s")
	v.SetDefault("messaging.redis_stream.retry_limit", 3)
	v.SetDefault("messaging.redis_stream.retry_backoff.initial", "10s")
	v.SetDefault("messaging.redis_stream.retry_backoff.max", "5m")
	v.SetDefault("messaging.redis_stream.retry_backoff.multiplier", 2.0)

	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.tracing.enabled", false)
	v.SetDefault("observability.tracing.endpoint", "localhost:4317")
	v.SetDefault("observability.tracing.sample_rate", 1.0)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.path", "/metrics")

	v.SetDefault("security.rate_limit.enabled", true)
	v.SetDefault("security.rate_limit.requests_per_second", 50)
	v.SetDefault("security.rate_limit.burst", 100)
	v.SetDefault("security.cors.allowed_origins", []string{"*"})
	v.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "DELETE", "OPTIONS"})
	v.SetDefault("security.cors.allowed_headers", []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"})
}

// Package config 提供配置加载和管理功能
package config

import (
	"time"
)

// Config 应用配置根结构
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Database      DatabaseConfig      `yaml:"database" mapstructure:"database"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Vector        VectorConfig        `yaml:"vector" mapstructure:"vector"`
	Graph         GraphConfig         `yaml:"graph" mapstructure:"graph"`
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Embedding     EmbeddingConfig     `yaml:"embedding" mapstructure:"embedding"`
	NER           NERConfig           `yaml:"ner" mapstructure:"ner"`
	Retrieval     RetrievalConfig     `yaml:"retrieval" mapstructure:"retrieval"`
	Rerank        RerankConfig        `yaml:"rerank" mapstructure:"rerank"`
	Verification  VerificationConfig  `yaml:"verification" mapstructure:"verification"`
	Messaging     MessagingConfig     `yaml:"messaging" mapstructure:"messaging"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Security      SecurityConfig      `yaml:"security" mapstructure:"security"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Version string `yaml:"version" mapstructure:"version"`
	Env     string `yaml:"env" mapstructure:"env"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPServerConfig `yaml:"http" mapstructure:"http"`
}

// HTTPServerConfig HTTP 服务器配置
type HTTPServerConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
}

// PostgresConfig PostgreSQL 配置（图谱快照归档）
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	User            string        `yaml:"user" mapstructure:"user"`
	Password        string        `yaml:"password" mapstructure:"password"`
	Database        string        `yaml:"database" mapstructure:"database"`
	SSLMode         string        `yaml:"ssl_mode" mapstructure:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// VectorConfig 向量数据库配置
type VectorConfig struct {
	Milvus MilvusConfig `yaml:"milvus" mapstructure:"milvus"`
}

// MilvusConfig Milvus 配置
type MilvusConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	CollectionPrefix   string `yaml:"collection_prefix" mapstructure:"collection_prefix"`
	HNSWM              int    `yaml:"hnsw_m" mapstructure:"hnsw_m"`
	HNSWEfConstruction int    `yaml:"hnsw_ef_construction" mapstructure:"hnsw_ef_construction"`
	SearchEf           int    `yaml:"search_ef" mapstructure:"search_ef"`
}

// GraphConfig 时序知识图谱配置
type GraphConfig struct {
	// SnapshotStore 快照主存储：redis | postgres
	SnapshotStore string        `yaml:"snapshot_store" mapstructure:"snapshot_store"`
	SnapshotTTL   time.Duration `yaml:"snapshot_ttl" mapstructure:"snapshot_ttl"`
	// SnapshotRevisions postgres 存储保留的历史版本数
	SnapshotRevisions int                  `yaml:"snapshot_revisions" mapstructure:"snapshot_revisions"`
	Neo4j             Neo4jConfig          `yaml:"neo4j" mapstructure:"neo4j"`
	Tiers             GraphTiersConfig     `yaml:"tiers" mapstructure:"tiers"`
	Classification    ClassificationConfig `yaml:"classification" mapstructure:"classification"`
	PageRank          PageRankConfig       `yaml:"pagerank" mapstructure:"pagerank"`
}

// Neo4jConfig 图谱导出目标
type Neo4jConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	URI      string `yaml:"uri" mapstructure:"uri"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
}

// GraphTiersConfig 按篇幅分档的共现阈值
type GraphTiersConfig struct {
	ShortMaxChapters  int           `yaml:"short_max_chapters" mapstructure:"short_max_chapters"`
	MediumMaxChapters int           `yaml:"medium_max_chapters" mapstructure:"medium_max_chapters"`
	Short             ThresholdPair `yaml:"short" mapstructure:"short"`
	Medium            ThresholdPair `yaml:"medium" mapstructure:"medium"`
	Long              ThresholdPair `yaml:"long" mapstructure:"long"`
}

// ThresholdPair 弱/强共现阈值
type ThresholdPair struct {
	Weak   int `yaml:"weak" mapstructure:"weak"`
	Strong int `yaml:"strong" mapstructure:"strong"`
}

// ClassificationConfig 关系分类调度配置
type ClassificationConfig struct {
	Concurrency       int           `yaml:"concurrency" mapstructure:"concurrency"`
	BatchDelay        time.Duration `yaml:"batch_delay" mapstructure:"batch_delay"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BatchThreshold    int           `yaml:"batch_threshold" mapstructure:"batch_threshold"`
	PollInterval      time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	MaxBatchRequests  int           `yaml:"max_batch_requests" mapstructure:"max_batch_requests"`
	MaxContexts       int           `yaml:"max_contexts" mapstructure:"max_contexts"`
	ContextMaxRunes   int           `yaml:"context_max_runes" mapstructure:"context_max_runes"`
}

// PageRankConfig 重要度计算参数
type PageRankConfig struct {
	Alpha      float64 `yaml:"alpha" mapstructure:"alpha"`
	Iterations int     `yaml:"iterations" mapstructure:"iterations"`
	Tolerance  float64 `yaml:"tolerance" mapstructure:"tolerance"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider" mapstructure:"default_provider"`
	Providers       map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`
	Retry           RetryConfig               `yaml:"retry" mapstructure:"retry"`
	Batch           BatchConfig               `yaml:"batch" mapstructure:"batch"`
}

// ProviderConfig LLM 提供商配置
type ProviderConfig struct {
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Model       string        `yaml:"model" mapstructure:"model"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// RetryConfig 供应商调用重试策略
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	BaseDelay      time.Duration `yaml:"base_delay" mapstructure:"base_delay"`
	Multiplier     float64       `yaml:"multiplier" mapstructure:"multiplier"`
	MaxDelay       time.Duration `yaml:"max_delay" mapstructure:"max_delay"`
	RateLimitFloor time.Duration `yaml:"rate_limit_floor" mapstructure:"rate_limit_floor"`
}

// BatchConfig 批量推理接口配置
type BatchConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Provider string `yaml:"provider" mapstructure:"provider"`
}

// EmbeddingConfig Embedding 配置
type EmbeddingConfig struct {
	Provider  string        `yaml:"provider" mapstructure:"provider"`
	APIKey    string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL   string        `yaml:"base_url" mapstructure:"base_url"`
	Model     string        `yaml:"model" mapstructure:"model"`
	Dimension int           `yaml:"dimension" mapstructure:"dimension"`
	BatchSize int           `yaml:"batch_size" mapstructure:"batch_size"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// NERConfig 实体识别服务配置
type NERConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Endpoint string        `yaml:"endpoint" mapstructure:"endpoint"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// RetrievalConfig 混合检索配置
type RetrievalConfig struct {
	TopK              int     `yaml:"top_k" mapstructure:"top_k"`
	MaxDistance       float64 `yaml:"max_distance" mapstructure:"max_distance"`
	KeywordEnabled    bool    `yaml:"keyword_enabled" mapstructure:"keyword_enabled"`
	VectorWeight      float64 `yaml:"vector_weight" mapstructure:"vector_weight"`
	KeywordWeight     float64 `yaml:"keyword_weight" mapstructure:"keyword_weight"`
	RRFK              int     `yaml:"rrf_k" mapstructure:"rrf_k"`
	ChunkSizeRunes    int     `yaml:"chunk_size_runes" mapstructure:"chunk_size_runes"`
	ChunkOverlapRunes int     `yaml:"chunk_overlap_runes" mapstructure:"chunk_overlap_runes"`
}

// RerankConfig 多信号重排阈值
type RerankConfig struct {
	HighSemantic        float64 `yaml:"high_semantic" mapstructure:"high_semantic"`
	LowSemantic         float64 `yaml:"low_semantic" mapstructure:"low_semantic"`
	AnalysisLowSemantic float64 `yaml:"analysis_low_semantic" mapstructure:"analysis_low_semantic"`
	HighEntity          float64 `yaml:"high_entity" mapstructure:"high_entity"`
	LowEntity           float64 `yaml:"low_entity" mapstructure:"low_entity"`
	RecencyWeight       float64 `yaml:"recency_weight" mapstructure:"recency_weight"`
	MergeMaxSeqGap      int     `yaml:"merge_max_seq_gap" mapstructure:"merge_max_seq_gap"`
}

// VerificationConfig 自校验配置
type VerificationConfig struct {
	MinAssertionConfidence float64 `yaml:"min_assertion_confidence" mapstructure:"min_assertion_confidence"`
	EvidenceTopK           int     `yaml:"evidence_top_k" mapstructure:"evidence_top_k"`
	WeakSupportThreshold   float64 `yaml:"weak_support_threshold" mapstructure:"weak_support_threshold"`
	DirectConflictMinGap   int     `yaml:"direct_conflict_min_gap" mapstructure:"direct_conflict_min_gap"`
}

// MessagingConfig 消息队列配置
type MessagingConfig struct {
	RedisStream RedisStreamConfig `yaml:"redis_stream" mapstructure:"redis_stream"`
}

// RedisStreamConfig Redis Stream 配置
type RedisStreamConfig struct {
	GraphBuildStream    string        `yaml:"graph_build_stream" mapstructure:"graph_build_stream"`
	MaxLen              int64         `yaml:"max_len" mapstructure:"max_len"`
	ConsumerGroupPrefix string        `yaml:"consumer_group_prefix" mapstructure:"consumer_group_prefix"`
	BlockTimeout        time.Duration `yaml:"block_timeout" mapstructure:"block_timeout"`
	ClaimInterval       time.Duration `yaml:"claim_interval" mapstructure:"claim_interval"`
	RetryLimit          int           `yaml:"retry_limit" mapstructure:"retry_limit"`
	RetryBackoff        BackoffConfig `yaml:"retry_backoff" mapstructure:"retry_backoff"`
}

// BackoffConfig 退避配置
type BackoffConfig struct {
	Initial    time.Duration `yaml:"initial" mapstructure:"initial"`
	Max        time.Duration `yaml:"max" mapstructure:"max"`
	Multiplier float64       `yaml:"multiplier" mapstructure:"multiplier"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors" mapstructure:"cors"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerSecond int  `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int  `yaml:"burst" mapstructure:"burst"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
}

package retrieval

import "novel-rag-engine/internal/domain/entity"

// SearchInput 混合检索输入。
type SearchInput struct {
	CorpusID string
	Query    string
	// Vector 非空时跳过查询向量化
	Vector []float32
	TopK   int

	ChapterFrom int
	ChapterTo   int
	// DialogueOnly 优先返回含对白的片段，无结果时自动放宽
	DialogueOnly bool

	IncludeEmbedding bool
}

// DebugInfo 检索耗时与召回统计
type DebugInfo struct {
	VectorSearchTimeMs  int64 `json:"vector_search_time_ms"`
	KeywordSearchTimeMs int64 `json:"keyword_search_time_ms"`
	VectorCandidates    int   `json:"vector_candidates"`
	KeywordCandidates   int   `json:"keyword_candidates"`
	FilteredByDistance  int   `json:"filtered_by_distance"`
	DialogueRelaxed     bool  `json:"dialogue_relaxed"`
}

// SearchOutput 检索结果。向量路径不可用时 DisabledReason 非空，
// 调用方据此进入降级模式。
type SearchOutput struct {
	Candidates []entity.Candidate

	// FusedScores 候选 ID 到 RRF 融合分的映射
	FusedScores map[string]float64

	DisabledReason string
	QueryEmbedding []float32
	Debug          DebugInfo
}

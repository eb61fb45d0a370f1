package retrieval

import "errors"

var (
	// ErrVectorDisabled 表示向量检索/索引能力未配置（向量库或 Embedder 不可用）。
	ErrVectorDisabled = errors.New("vector retrieval is disabled")

	// ErrInvalidInput 检索或索引参数不完整
	ErrInvalidInput = errors.New("invalid retrieval input")

	// ErrEmbeddingUnavailable 整批向量化均失败且无法确定向量维度
	ErrEmbeddingUnavailable = errors.New("embedding unavailable for every chunk")
)

package service

import "context"

// Embedder 文本向量化
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedMany 批量向量化；返回的两个切片与输入等长，单条失败记录在对应的 error 中
	EmbedMany(ctx context.Context, texts []string) ([][]float32, []error)
}

// EntitySet 一段文本中识别出的实体
type EntitySet struct {
	Characters    []string `json:"characters"`
	Locations     []string `json:"locations"`
	Organizations []string `json:"organizations"`
}

// Empty 是否未识别到任何实体
func (s EntitySet) Empty() bool {
	return len(s.Characters) == 0 && len(s.Locations) == 0 && len(s.Organizations) == 0
}

// EntityRecognizer 命名实体识别，失败时返回空集合而非错误
type EntityRecognizer interface {
	ExtractEntities(ctx context.Context, text string) EntitySet
}

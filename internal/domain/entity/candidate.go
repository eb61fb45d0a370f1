package entity

// QueryType 查询类型
type QueryType string

const (
	QueryDialogue QueryType = "DIALOGUE"
	QueryAnalysis QueryType = "ANALYSIS"
	QueryFact     QueryType = "FACT"
)

// Candidate 检索得到的候选片段，重排后携带各信号得分
type Candidate struct {
	ID           string  `json:"id"`
	Content      string  `json:"content"`
	Chapter      int     `json:"chapter"`
	ChapterTitle string  `json:"chapter_title,omitempty"`
	Seq          int     `json:"seq"`
	HasDialogue  bool    `json:"has_dialogue"`
	Distance     float64 `json:"distance"`
	Source       string  `json:"source"`

	BaseScore         float64 `json:"base_score"`
	EntityScore       float64 `json:"entity_score"`
	RecencyScore      float64 `json:"recency_score"`
	ChapterImportance float64 `json:"chapter_importance"`
	QuoteBoost        float64 `json:"quote_boost"`
	FinalScore        float64 `json:"final_score"`
}

// ChapterEntities 单章合并后的实体集合
type ChapterEntities struct {
	Chapter       int      `json:"chapter"`
	Characters    []string `json:"characters"`
	Locations     []string `json:"locations,omitempty"`
	Organizations []string `json:"organizations,omitempty"`
}

// Chunk 已切分的正文片段，用于建立索引
type Chunk struct {
	ID           string `json:"id"`
	CorpusID     string `json:"corpus_id"`
	Chapter      int    `json:"chapter"`
	ChapterTitle string `json:"chapter_title,omitempty"`
	Seq          int    `json:"seq"`
	Content      string `json:"content"`
	HasDialogue  bool   `json:"has_dialogue"`
}

package query

import "novel-rag-engine/internal/domain/entity"

// Strategy 查询类型对应的检索与重排参数
type Strategy struct {
	TopK           int     `json:"top_k"`
	MergeAdjacent  bool    `json:"merge_adjacent"`
	QuoteWeight    float64 `json:"quote_weight"`
	PreferDialogue bool    `json:"prefer_dialogue"`
}

var strategies = map[entity.QueryType]Strategy{
	entity.QueryDialogue: {TopK: 15, MergeAdjacent: false, QuoteWeight: 1.5, PreferDialogue: true},
	entity.QueryAnalysis: {TopK: 20, MergeAdjacent: true, QuoteWeight: 1.0, PreferDialogue: false},
	entity.QueryFact:     {TopK: 10, MergeAdjacent: false, QuoteWeight: 1.0, PreferDialogue: false},
}

// StrategyFor 返回查询类型的策略，未知类型按事实型处理
func StrategyFor(t entity.QueryType) Strategy {
	if s, ok := strategies[t]; ok {
		return s
	}
	return strategies[entity.QueryFact]
}

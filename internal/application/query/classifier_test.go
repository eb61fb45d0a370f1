package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"novel-rag-engine/internal/domain/entity"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  entity.QueryType
	}{
		{name: "dialogue keyword", query: "萧炎说了什么", want: entity.QueryDialogue},
		{name: "why question", query: "为什么要这样做", want: entity.QueryAnalysis},
		{name: "dialogue wins over analysis", query: "药老为什么对萧炎说那句话", want: entity.QueryDialogue},
		{name: "dialogue pattern", query: "跟熏儿讲过的约定", want: entity.QueryDialogue},
		{name: "analysis pattern", query: "凭什么他能赢", want: entity.QueryAnalysis},
		{name: "fact", query: "萧炎在哪一章突破斗师", want: entity.QueryFact},
		{name: "empty", query: "", want: entity.QueryFact},
		{name: "whitespace", query: "   ", want: entity.QueryFact},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.query))
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	for _, q := range []string{"萧炎说了什么", "为什么", "云岚宗在哪", "🙂"} {
		first := Classify(q)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, Classify(q))
		}
	}
}

func TestStrategyFor(t *testing.T) {
	assert.Equal(t, Strategy{TopK: 15, QuoteWeight: 1.5, PreferDialogue: true}, StrategyFor(entity.QueryDialogue))
	assert.Equal(t, Strategy{TopK: 20, MergeAdjacent: true, QuoteWeight: 1.0}, StrategyFor(entity.QueryAnalysis))
	assert.Equal(t, Strategy{TopK: 10, QuoteWeight: 1.0}, StrategyFor(entity.QueryFact))
	assert.Equal(t, StrategyFor(entity.QueryFact), StrategyFor("OTHER"))
}

func TestIsEvolutionQuery(t *testing.T) {
	assert.True(t, IsEvolutionQuery("萧炎和纳兰嫣然的关系是如何变化的"))
	assert.True(t, IsEvolutionQuery("从敌人到朋友"))
	assert.True(t, IsEvolutionQuery("后期的美杜莎"))
	assert.False(t, IsEvolutionQuery("萧炎的武器是什么"))
}

package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-rag-engine/internal/domain/entity"
	"novel-rag-engine/internal/domain/service"
	apperrors "novel-rag-engine/pkg/errors"
)

func TestClassifierParse(t *testing.T) {
	c := NewRelationClassifier(nil, nil, ClassifierOptions{})
	ctx := context.Background()

	cases := []struct {
		name     string
		in       string
		want     entity.RelationType
		conf     float64
		fallback bool
	}{
		{"plain json", `{"relation_type":"师徒","confidence":0.95,"reasoning":"传授炼药术"}`, entity.RelationMentor, 0.95, false},
		{"fenced", "```json\n{\"relation_type\": \"恋人\", \"confidence\": 0.9}\n```", entity.RelationRomantic, 0.9, false},
		{"truncated", `{"relation_type": "敌对", "confidence": 0.88, "reasoning": "两人多次交`, entity.RelationAdversary, 0.88, false},
		{"missing confidence", `{"relation_type":"同门"}`, entity.RelationSameFaction, 0.5, false},
		{"out of range confidence", `{"relation_type":"亲属","confidence":1.7}`, entity.RelationKin, 1, false},
		{"unknown label", `{"relation_type":"朋友","confidence":0.9}`, entity.RelationCooccurrence, 0.5, true},
		{"garbage", `模型拒绝回答`, entity.RelationCooccurrence, 0.5, true},
		{"empty", "  ", entity.RelationCooccurrence, 0.5, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := c.Parse(ctx, tc.in)
			assert.Equal(t, tc.want, got.Type)
			assert.InDelta(t, tc.conf, got.Confidence, 1e-9)
			assert.Equal(t, tc.fallback, got.Fallback)
		})
	}
}

func TestClassifierRendersPrompt(t *testing.T) {
	c := NewRelationClassifier(nil, nil, ClassifierOptions{MaxContexts: 2, ContextMaxRunes: 4})
	msgs, err := c.Messages(context.Background(), ClassifyTask{
		A:        "药老",
		B:        "萧炎",
		Count:    12,
		Chapters: []int{3, 9, 17},
		Contexts: []string{"药老传授萧炎炼药术", "第二段", "第三段不应出现"},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, service.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, `{"relation_type": "师徒"`)

	user := msgs[1].Content
	assert.Contains(t, user, `"药老"和"萧炎"`)
	assert.Contains(t, user, "共同出现 12 次（第3章-第17章）")
	assert.Contains(t, user, "【片段1】药老传授")
	assert.NotContains(t, user, "药老传授萧炎")
	assert.NotContains(t, user, "第三段")
}

func TestClassifierFallsBackOnProviderError(t *testing.T) {
	llm := &fakeCompleter{err: apperrors.ErrProviderError}
	c := NewRelationClassifier(llm, nil, ClassifierOptions{})

	got := c.Classify(context.Background(), ClassifyTask{A: "甲", B: "乙", Chapters: []int{1}, Contexts: []string{"x"}})
	assert.True(t, got.Fallback)
	assert.Equal(t, entity.RelationCooccurrence, got.Type)
	assert.Equal(t, 1, llm.calls)
}

func TestClassifierRetriesTransientErrors(t *testing.T) {
	llm := &fakeCompleter{err: apperrors.ErrProviderTransient}
	var slept int
	policy := noWaitPolicy(&slept)
	c := NewRelationClassifier(llm, nil, ClassifierOptions{Retry: policy})

	got := c.Classify(context.Background(), ClassifyTask{A: "甲", B: "乙", Chapters: []int{1}, Contexts: []string{"x"}})
	assert.True(t, got.Fallback)
	assert.Equal(t, 3, llm.calls)
	assert.Equal(t, 2, slept)
}

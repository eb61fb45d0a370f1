package verification

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-rag-engine/internal/domain/entity"
)

func TestExtractAssertions(t *testing.T) {
	x := NewExtractor(0)

	got := x.Extract("萧炎在第1章死亡。萧炎在第10章复活！好的。天色渐渐暗了下来")
	require.Len(t, got, 2)

	assert.Equal(t, entity.AssertionEvent, got[0].Type)
	assert.Equal(t, []string{"萧炎"}, got[0].Entities)
	require.NotNil(t, got[0].Chapter)
	assert.Equal(t, 1, *got[0].Chapter)
	assert.InDelta(t, 1.0, got[0].Confidence, 1e-9)

	assert.Equal(t, entity.AssertionFact, got[1].Type)
	require.NotNil(t, got[1].Chapter)
	assert.Equal(t, 10, *got[1].Chapter)
}

func TestExtractDropsLowConfidence(t *testing.T) {
	x := NewExtractor(0.65)
	got := x.Extract("也许他已经离开了乌坦城")
	assert.Empty(t, got)

	got = NewExtractor(0.5).Extract("也许他已经离开了乌坦城")
	require.Len(t, got, 1)
	assert.InDelta(t, 0.5, got[0].Confidence, 1e-9)
}

func TestClassifyAssertion(t *testing.T) {
	tests := []struct {
		in   string
		want entity.AssertionType
		ok   bool
	}{
		{"大战发生在云岚宗", entity.AssertionEvent, true},
		{"两人是朋友", entity.AssertionRelation, true},
		{"萧炎拥有异火", entity.AssertionFact, true},
		{"天色渐晚", "", false},
	}
	for _, tt := range tests {
		got, ok := ClassifyAssertion(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestExtractEntitiesSkipsPronounsAndDuplicates(t *testing.T) {
	got := ExtractEntities("他们是朋友，萧炎是天才，萧炎在家")
	assert.Equal(t, []string{"萧炎"}, got)
}

func TestChapterRef(t *testing.T) {
	cases := map[string]*int{
		"此事见于第12回":  entity.IntPtr(12),
		"他在3章出场":    entity.IntPtr(3),
		"参见45章节的描写": entity.IntPtr(45),
		"没有任何章节信息":  nil,
	}
	for in, want := range cases {
		assert.Equal(t, want, ChapterRef(in), in)
	}
}

func TestAssertionConfidence(t *testing.T) {
	tests := []struct {
		name     string
		sentence string
		entities []string
		chapter  *int
		want     float64
	}{
		{"chapter and entity", "萧炎在第1章死亡", []string{"萧炎"}, entity.IntPtr(1), 1.0},
		{"two entities", "药老是萧炎的师傅", []string{"药老", "萧炎"}, nil, 0.9},
		{"hedging", "也许他已经离开了乌坦城", nil, nil, 0.5},
		{"too long", strings.Repeat("很", 201), nil, nil, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, AssertionConfidence(tt.sentence, tt.entities, tt.chapter), 1e-9)
		})
	}
}

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("第一句。第二句！\n  第三句？第四句；")
	assert.Equal(t, []string{"第一句", "第二句", "第三句", "第四句"}, got)
}

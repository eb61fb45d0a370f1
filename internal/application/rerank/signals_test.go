package rerank

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBaseScore(t *testing.T) {
	assert.InDelta(t, 1.0, BaseScore(0), 1e-12)
	assert.InDelta(t, math.Exp(-0.5), BaseScore(1), 1e-12)
	assert.Greater(t, BaseScore(0.3), BaseScore(0.9))
}

func TestEntityMatchScore(t *testing.T) {
	content := "萧炎看着药老，缓缓说道：“老师，我明白了。”"

	tests := []struct {
		name     string
		entities []string
		want     float64
	}{
		{name: "no entities", entities: nil, want: 1.0},
		{name: "all hit", entities: []string{"萧炎", "药老"}, want: 1.5},
		{name: "none hit", entities: []string{"美杜莎", "云韵"}, want: 0.3},
		{name: "half hit", entities: []string{"萧炎", "云韵"}, want: 1.0},
		{name: "one of three", entities: []string{"萧炎", "云韵", "古薰儿"}, want: 0.3 + 1.0/3},
		{name: "partial long name", entities: []string{"萧炎哥"}, want: 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EntityMatchScore(content, tt.entities)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.3)
			assert.LessOrEqual(t, got, 1.5)
		})
	}
}

func TestShortLatinNameNeedsBoundary(t *testing.T) {
	assert.True(t, containsWord("Then Li left.", "Li", nil))
	assert.False(t, containsWord("Lia left.", "Li", nil))
	assert.InDelta(t, 1.0, EntityMatchScore("Lia left.", []string{"Li"}), 1e-9)
	assert.True(t, containsWord("药老说道", "药老", nil))
}

func TestShortHanNameInsideLongerEntity(t *testing.T) {
	lexicon := []string{"小医仙", "萧炎", "小医"}
	shadows := NewShadows([]string{"小医", "萧炎"}, lexicon)
	assert.Equal(t, Shadows{"小医": {"小医仙"}}, shadows)

	inside := "小医仙抬头看了萧炎一眼"
	assert.InDelta(t, 1.5, EntityMatchScore(inside, []string{"小医"}), 1e-9)
	assert.InDelta(t, 1.0, EntityMatchScoreShadowed(inside, []string{"小医"}, shadows), 1e-9)
	assert.InDelta(t, 1.5, EntityMatchScoreShadowed(inside, []string{"萧炎"}, shadows), 1e-9)

	both := "小医仙与小医并肩而立"
	assert.InDelta(t, 1.5, EntityMatchScoreShadowed(both, []string{"小医"}, shadows), 1e-9)

	assert.False(t, containsWord(inside, "小医", []string{"小医仙"}))
	assert.True(t, containsWord(both, "小医", []string{"小医仙"}))
}

func TestRecencyBias(t *testing.T) {
	assert.Equal(t, 1.0, RecencyBias(10, 100, 0))
	assert.Equal(t, 1.0, RecencyBias(10, 0, 0.5))
	assert.InDelta(t, 0.7, RecencyBias(0, 100, 0.15), 1e-9)
	assert.InDelta(t, 1.3, RecencyBias(100, 100, 0.15), 1e-9)
	assert.InDelta(t, 1.3, RecencyBias(0, 100, -0.5), 1e-9)
	assert.InDelta(t, 0.7, RecencyBias(100, 100, -0.5), 1e-9)

	for _, pos := range []int{-5, 0, 37, 100, 250} {
		v := RecencyBias(pos, 100, 2)
		assert.GreaterOrEqual(t, v, 0.7-1e-12)
		assert.LessOrEqual(t, v, 1.3+1e-12)
	}
}

type importanceMap map[int]float64

func (m importanceMap) ChapterImportance(ch int) (float64, bool) {
	v, ok := m[ch]
	return v, ok
}

func TestChapterImportanceDefault(t *testing.T) {
	assert.Equal(t, 0.5, ChapterImportance(nil, 3))
	assert.Equal(t, 0.5, ChapterImportance(importanceMap{1: 0.9}, 3))
	assert.Equal(t, 0.9, ChapterImportance(importanceMap{1: 0.9}, 1))
}

func TestQuoteDensityBoost(t *testing.T) {
	assert.Equal(t, 1.0, QuoteDensityBoost("“你好”", 1.0))
	assert.Equal(t, 1.0, QuoteDensityBoost("没有任何引号的叙述", 1.5))
	assert.InDelta(t, 1.5, QuoteDensityBoost("“走”", 1.5), 1e-9)

	low := QuoteDensityBoost("他低声道“嗯”，随后又沉默了很久很久，直到天色彻底暗了下来才起身离开这里回到住处", 1.5)
	assert.Greater(t, low, 1.0)
	assert.Less(t, low, 1.5)
}

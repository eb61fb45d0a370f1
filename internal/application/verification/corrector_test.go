package verification

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"novel-rag-engine/internal/domain/entity"
)

func contradiction(tier entity.ConfidenceLevel, analysis string) entity.Contradiction {
	return entity.Contradiction{
		Type:         entity.ContradictionTemporal,
		Confidence:   tier,
		EarlyChapter: entity.IntPtr(1),
		LateChapter:  entity.IntPtr(10),
		EarlyText:    "萧炎在第1章死亡",
		LateText:     "萧炎在第10章复活",
		Analysis:     analysis,
	}
}

func TestCorrectPolicies(t *testing.T) {
	const answer = "萧炎最终成为斗帝。"

	tests := []struct {
		name     string
		cs       []entity.Contradiction
		in       entity.ConfidenceLevel
		want     entity.ConfidenceLevel
		contains []string
		mods     int
	}{
		{name: "none", in: entity.ConfidenceHigh, want: entity.ConfidenceHigh},
		{
			name:     "high downgrades to low",
			cs:       []entity.Contradiction{contradiction(entity.ConfidenceHigh, "时序矛盾")},
			in:       entity.ConfidenceHigh,
			want:     entity.ConfidenceLow,
			contains: []string{"⚠️", "**矛盾提示 1**：时序矛盾", "- 第1章：萧炎在第1章死亡", "- 第10章：萧炎在第10章复活"},
			mods:     1,
		},
		{
			name:     "medium caps at medium",
			cs:       []entity.Contradiction{contradiction(entity.ConfidenceMedium, "关系变化缺少解释")},
			in:       entity.ConfidenceHigh,
			want:     entity.ConfidenceMedium,
			contains: []string{"💡", "- 关系变化缺少解释"},
			mods:     1,
		},
		{
			name: "medium never upgrades",
			cs:   []entity.Contradiction{contradiction(entity.ConfidenceMedium, "关系变化缺少解释")},
			in:   entity.ConfidenceLow,
			want: entity.ConfidenceLow,
			mods: 1,
		},
		{
			name:     "low keeps confidence",
			cs:       []entity.Contradiction{contradiction(entity.ConfidenceLow, "缺少证据"), contradiction(entity.ConfidenceLow, "缺少证据")},
			in:       entity.ConfidenceHigh,
			want:     entity.ConfidenceHigh,
			contains: []string{"📝 注：缺少证据"},
			mods:     1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Correct(answer, tt.cs, tt.in)
			assert.Equal(t, tt.want, got.Confidence)
			assert.Equal(t, answer, got.OriginalAnswer)
			assert.True(t, strings.HasPrefix(got.Answer, answer))
			assert.Len(t, got.Modifications, tt.mods)
			assert.Equal(t, len(tt.cs) > 0, got.HasContradictions)
			if len(tt.cs) == 0 {
				assert.Equal(t, answer, got.Answer)
			}
			for _, s := range tt.contains {
				assert.Contains(t, got.Answer, s)
			}
		})
	}
}

func TestCorrectLowFootnoteIsSingleLine(t *testing.T) {
	got := Correct("答案", []entity.Contradiction{
		contradiction(entity.ConfidenceLow, "甲"),
		contradiction(entity.ConfidenceLow, "乙"),
	}, entity.ConfidenceMedium)

	tail := strings.TrimPrefix(got.Answer, "答案\n\n")
	assert.Equal(t, "📝 注：甲；乙", tail)
}

func TestExplainConfidence(t *testing.T) {
	assert.Equal(t, "答案具有高置信度，证据充分且无矛盾。", ExplainConfidence(entity.ConfidenceHigh, nil))
	assert.Contains(t, ExplainConfidence(entity.ConfidenceLow, []entity.Contradiction{{}, {}}), "存在2处明显矛盾")
	assert.Equal(t, "置信度未知。", ExplainConfidence(entity.ConfidenceUnknown, nil))
}

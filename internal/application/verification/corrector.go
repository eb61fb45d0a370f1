package verification

import (
	"fmt"
	"strings"

	"novel-rag-engine/internal/domain/entity"
)

// ModificationKind 修正动作类型
type ModificationKind string

const (
	ModContradictionNote ModificationKind = "contradiction_note"
	ModHint              ModificationKind = "hint"
	ModFootnote          ModificationKind = "footnote"
)

// Modification 对答案的一处修改说明
type Modification struct {
	Kind        ModificationKind `json:"kind"`
	Description string           `json:"description"`
}

// Correction 修正结果
type Correction struct {
	Answer            string                 `json:"answer"`
	OriginalAnswer    string                 `json:"original_answer"`
	Modifications     []Modification         `json:"modifications"`
	Confidence        entity.ConfidenceLevel `json:"confidence"`
	HasContradictions bool                   `json:"has_contradictions"`
}

// Correct 高等级矛盾逐条附加警告并把置信度降为 low；
// 中等级附加提示块，置信度至多 medium；低等级只追加一行脚注。
func Correct(answer string, contradictions []entity.Contradiction, confidence entity.ConfidenceLevel) Correction {
	res := Correction{
		Answer:            answer,
		OriginalAnswer:    answer,
		Confidence:        confidence,
		HasContradictions: len(contradictions) > 0,
	}
	if len(contradictions) == 0 {
		return res
	}

	var high, medium, low []entity.Contradiction
	for _, c := range contradictions {
		switch c.Confidence {
		case entity.ConfidenceHigh:
			high = append(high, c)
		case entity.ConfidenceMedium:
			medium = append(medium, c)
		default:
			low = append(low, c)
		}
	}

	var b strings.Builder
	b.WriteString(answer)

	if len(high) > 0 {
		b.WriteString("\n\n⚠️ **注意**：以上答案存在以下矛盾，请结合原文仔细判断：")
		for i, c := range high {
			fmt.Fprintf(&b, "\n\n**矛盾提示 %d**：%s\n", i+1, c.Analysis)
			fmt.Fprintf(&b, "- %s：%s\n", chapterLabel(c.EarlyChapter), c.EarlyText)
			fmt.Fprintf(&b, "- %s：%s", chapterLabel(c.LateChapter), c.LateText)
			res.Modifications = append(res.Modifications, Modification{Kind: ModContradictionNote, Description: c.Analysis})
		}
		res.Confidence = entity.ConfidenceLow
	}

	if len(medium) > 0 {
		b.WriteString("\n\n💡 **提示**：答案涉及以下可能存在不一致的内容：\n")
		for _, c := range medium {
			fmt.Fprintf(&b, "- %s\n", c.Analysis)
		}
		res.Modifications = append(res.Modifications, Modification{Kind: ModHint, Description: "添加了潜在不一致性提示"})
		if res.Confidence.Rank() > entity.ConfidenceMedium.Rank() {
			res.Confidence = entity.ConfidenceMedium
		}
	}

	if len(low) > 0 {
		notes := make([]string, 0, len(low))
		for _, c := range low {
			notes = append(notes, c.Analysis)
		}
		fmt.Fprintf(&b, "\n\n📝 注：%s", strings.Join(uniqueStrings(notes), "；"))
		res.Modifications = append(res.Modifications, Modification{Kind: ModFootnote, Description: fmt.Sprintf("%d 条证据不足提示", len(low))})
	}

	res.Answer = b.String()
	return res
}

// ExplainConfidence 用一句话说明最终置信度的来由
func ExplainConfidence(confidence entity.ConfidenceLevel, contradictions []entity.Contradiction) string {
	n := len(contradictions)
	switch {
	case confidence == entity.ConfidenceHigh && n == 0:
		return "答案具有高置信度，证据充分且无矛盾。"
	case confidence == entity.ConfidenceHigh:
		return fmt.Sprintf("答案基于证据，但存在%d处潜在矛盾，建议参考原文验证。", n)
	case confidence == entity.ConfidenceMedium:
		return fmt.Sprintf("答案具有中等置信度，可能存在%d处不确定性或矛盾。", n)
	case confidence == entity.ConfidenceLow:
		return fmt.Sprintf("答案置信度较低，存在%d处明显矛盾，请谨慎参考。", n)
	default:
		return "置信度未知。"
	}
}

func chapterLabel(ch *int) string {
	if ch == nil {
		return "章节未知"
	}
	return fmt.Sprintf("第%d章", *ch)
}

func uniqueStrings(ss []string) []string {
	seen := make(map[string]struct{}, len(ss))
	out := ss[:0:0]
	for _, s := range ss {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

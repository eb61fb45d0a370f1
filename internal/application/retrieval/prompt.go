package retrieval

import (
	"fmt"
	"strings"

	"novel-rag-engine/internal/domain/entity"
)

// BuildPromptContext 将候选片段格式化为可直接注入 Prompt 的块。
// 约束：尽量短，避免把 score 等调试信息塞进 Prompt。
func BuildPromptContext(cands []entity.Candidate, maxSegments int, maxRunesPerSegment int) string {
	if len(cands) == 0 {
		return ""
	}
	if maxSegments <= 0 {
		maxSegments = 10
	}
	if maxRunesPerSegment <= 0 {
		maxRunesPerSegment = 400
	}
	n := min(len(cands), maxSegments)

	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		c := cands[i]
		txt := truncateRunes(compactOneLine(c.Content), maxRunesPerSegment)
		if txt == "" {
			continue
		}
		ref := fmt.Sprintf("第%d章", c.Chapter)
		if t := strings.TrimSpace(c.ChapterTitle); t != "" {
			ref += " " + t
		}
		lines = append(lines, fmt.Sprintf("[%d] (%s) %s", i+1, ref, txt))
	}
	return strings.Join(lines, "\n")
}

func compactOneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return strings.TrimSpace(string(r[:limit])) + "…"
}

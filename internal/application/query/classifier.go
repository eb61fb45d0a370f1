// Package query 负责查询意图识别与检索策略选择
package query

import (
	"regexp"
	"strings"

	"novel-rag-engine/internal/domain/entity"
)

var (
	dialogueKeywords = []string{
		"说", "讲", "提到", "回答", "问", "告诉", "谈", "说话", "对话", "聊天",
		"交流", "沟通", "说道", "问道", "答道", "喊道", "叫道", "笑道", "哭着说",
	}
	dialoguePatterns = compileAll(
		`对.{0,5}说`,
		`跟.{0,5}讲`,
		`向.{0,5}提`,
		`告诉.{0,5}`,
	)

	analysisKeywords = []string{
		"为什么", "怎么", "如何", "原因", "动机", "目的", "演变", "变化", "发展", "转变",
		"改变", "成长", "分析", "解释", "理解", "探讨", "研究", "关系", "影响", "意义",
		"作用", "价值",
	}
	analysisPatterns = compileAll(`为何`, `缘何`, `因何`, `凭什么`)

	evolutionKeywords = []string{
		"演变", "变化", "发展", "转变", "改变", "成长", "前期", "中期", "后期",
		"早期", "晚期", "最初", "最后", "开始", "结束", "经历", "历程",
	}
	evolutionPatterns = compileAll(
		`从.+到.+`,
		`(前|中|后|早|晚)期`,
		`(最初|开始).+(最后|结束)`,
		`(如何|怎么).+(变|转|改)`,
	)
)

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(e))
	}
	return out
}

func matches(q string, keywords []string, patterns []*regexp.Regexp) bool {
	for _, kw := range keywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	for _, re := range patterns {
		if re.MatchString(q) {
			return true
		}
	}
	return false
}

// Classify 判定查询类型。对白优先于分析，其余一律视为事实型。
func Classify(q string) entity.QueryType {
	q = strings.TrimSpace(q)
	switch {
	case matches(q, dialogueKeywords, dialoguePatterns):
		return entity.QueryDialogue
	case matches(q, analysisKeywords, analysisPatterns):
		return entity.QueryAnalysis
	default:
		return entity.QueryFact
	}
}

// IsEvolutionQuery 是否在询问关系或人物随时间的演变
func IsEvolutionQuery(q string) bool {
	return matches(strings.TrimSpace(q), evolutionKeywords, evolutionPatterns)
}

// Package verification 对生成的答案做自校验：抽取断言、收集并评分证据、
// 检查一致性、检测矛盾，最后按矛盾等级修正答案与置信度。
// 所有规则均为确定性启发式，不调用大模型。
package verification

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dlclark/regexp2"

	"novel-rag-engine/internal/domain/entity"
)

const (
	minSentenceRunes         = 5
	baseAssertionConfidence  = 0.7
	defaultMinAssertionScore = 0.5
)

var (
	eventKeywords    = []string{"发生", "出现", "开始", "结束", "离开", "到达", "战斗", "死亡"}
	relationKeywords = []string{"关系", "认识", "朋友", "敌人", "师傅", "徒弟", "父子", "母女"}
	factMarkers      = []string{
		"是", "为", "在", "有", "没有", "属于", "来自",
		"发生在", "出现在", "始于", "终于", "持续",
		"认识", "结识", "成为", "变成", "喜欢", "讨厌",
		"能够", "可以", "会", "拥有", "失去", "获得",
	}
	hedgingWords = []string{"可能", "也许", "大概", "似乎", "好像", "或许"}

	entityStopwords = map[string]struct{}{
		"他们": {}, "我们": {}, "大家": {}, "所有": {},
		"这个": {}, "那个": {}, "什么": {}, "如何": {},
	}

	// 标准库 regexp 不支持前瞻断言
	entityPattern = regexp2.MustCompile(`[一-龥]{2,4}(?=[是为在有说讲提到])`, regexp2.None)

	chapterPatterns = []*regexp.Regexp{
		regexp.MustCompile(`第(\d+)[章回]`),
		regexp.MustCompile(`在(\d+)章`),
		regexp.MustCompile(`(\d+)章节`),
	}
)

// Extractor 断言抽取器
type Extractor struct {
	minConfidence float64
}

// NewExtractor minConfidence 非正时取 0.5
func NewExtractor(minConfidence float64) *Extractor {
	if minConfidence <= 0 {
		minConfidence = defaultMinAssertionScore
	}
	return &Extractor{minConfidence: minConfidence}
}

// Extract 将答案切分为句子并逐句生成断言，丢弃低于阈值的断言
func (x *Extractor) Extract(answer string) []entity.Assertion {
	var out []entity.Assertion
	for _, s := range SplitSentences(answer) {
		if utf8.RuneCountInString(s) < minSentenceRunes {
			continue
		}
		typ, ok := ClassifyAssertion(s)
		if !ok {
			continue
		}
		ents := ExtractEntities(s)
		ch := ChapterRef(s)
		conf := AssertionConfidence(s, ents, ch)
		if conf < x.minConfidence {
			continue
		}
		out = append(out, entity.Assertion{
			Text:       s,
			Type:       typ,
			Confidence: conf,
			Entities:   ents,
			Chapter:    ch,
		})
	}
	return out
}

// SplitSentences 按中文句末标点、分号与换行切句
func SplitSentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case '。', '！', '？', '\n', '；':
			return true
		}
		return false
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ClassifyAssertion 依次匹配事件、关系、事实关键词；都不命中时该句不构成断言
func ClassifyAssertion(sentence string) (entity.AssertionType, bool) {
	switch {
	case containsAny(sentence, eventKeywords):
		return entity.AssertionEvent, true
	case containsAny(sentence, relationKeywords):
		return entity.AssertionRelation, true
	case containsAny(sentence, factMarkers):
		return entity.AssertionFact, true
	default:
		return "", false
	}
}

// ExtractEntities 抽取紧邻谓词前的 2-4 字中文名，去重并保持出现顺序
func ExtractEntities(sentence string) []string {
	var out []string
	seen := make(map[string]struct{})
	m, err := entityPattern.FindStringMatch(sentence)
	for err == nil && m != nil {
		name := m.String()
		if _, stop := entityStopwords[name]; !stop {
			if _, dup := seen[name]; !dup {
				seen[name] = struct{}{}
				out = append(out, name)
			}
		}
		m, err = entityPattern.FindNextMatch(m)
	}
	return out
}

// ChapterRef 识别“第N章”“在N章”“N章节”形式的章节引用
func ChapterRef(sentence string) *int {
	for _, re := range chapterPatterns {
		sub := re.FindStringSubmatch(sentence)
		if len(sub) < 2 {
			continue
		}
		if n, err := strconv.Atoi(sub[1]); err == nil {
			return entity.IntPtr(n)
		}
	}
	return nil
}

// AssertionConfidence 断言置信度启发式，结果落在 [0,1]
func AssertionConfidence(sentence string, entities []string, chapter *int) float64 {
	score := baseAssertionConfidence

	n := utf8.RuneCountInString(sentence)
	switch {
	case n >= 10 && n <= 100:
		score += 0.1
	case n < 5 || n > 200:
		score -= 0.2
	}

	if len(entities) > 0 {
		score += 0.1
	}
	if len(entities) > 1 {
		score += 0.1
	}
	if chapter != nil {
		score += 0.2
	}
	if containsAny(sentence, hedgingWords) {
		score -= 0.3
	}
	return clamp01(math.Round(score*100) / 100)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}

// Package rerank 对检索候选做多信号融合重排
package rerank

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// BaseScore 将 L2 距离映射为 (0,1] 的语义分：exp(-d²/2)
func BaseScore(distance float64) float64 {
	if distance < 0 {
		distance = 0
	}
	return math.Exp(-distance * distance / 2)
}

const (
	entityScoreMin = 0.3
	entityScoreMax = 1.5
)

// EntityMatchScore 计算查询实体在片段中的命中得分，范围 [0.3, 1.5]。
// 无实体时返回中性值 1.0。命中率低于一半时惩罚明显加重。
func EntityMatchScore(content string, entities []string) float64 {
	return EntityMatchScoreShadowed(content, entities, nil)
}

// Shadows 短名到包含它的更长实体名，如 "小医" -> ["小医仙"]
type Shadows map[string][]string

// NewShadows 从实体词表中为每个不超过两个字的查询实体找出包含它的更长名字
func NewShadows(entities, lexicon []string) Shadows {
	var out Shadows
	for _, name := range entities {
		name = strings.TrimSpace(name)
		if name == "" || utf8.RuneCountInString(name) > 2 {
			continue
		}
		for _, longer := range lexicon {
			if len(longer) > len(name) && strings.Contains(longer, name) {
				if out == nil {
					out = make(Shadows)
				}
				out[name] = append(out[name], longer)
			}
		}
	}
	return out
}

// EntityMatchScoreShadowed 与 EntityMatchScore 相同，但短名只出现在更长实体名内部时
// （"小医" 之于 "小医仙"）按部分命中计
func EntityMatchScoreShadowed(content string, entities []string, shadows Shadows) float64 {
	names := make([]string, 0, len(entities))
	for _, e := range entities {
		if e = strings.TrimSpace(e); e != "" {
			names = append(names, e)
		}
	}
	if len(names) == 0 {
		return 1.0
	}

	var hit float64
	for _, name := range names {
		switch {
		case fullMatch(content, name, shadows[name]):
			hit += 1
		case partialMatch(content, name):
			hit += 0.5
		}
	}
	ratio := hit / float64(len(names))

	var score float64
	if ratio < 0.5 {
		score = entityScoreMin + ratio
	} else {
		score = 0.5 + ratio
	}
	return clamp(score, entityScoreMin, entityScoreMax)
}

func fullMatch(content, name string, longer []string) bool {
	if utf8.RuneCountInString(name) <= 2 {
		return containsWord(content, name, longer)
	}
	return strings.Contains(content, name)
}

// partialMatch 短名仅作子串命中；长名允许首尾两字（姓或名）命中
func partialMatch(content, name string) bool {
	runes := []rune(name)
	if len(runes) <= 2 {
		return strings.Contains(content, name)
	}
	head := string(runes[:2])
	tail := string(runes[len(runes)-2:])
	return strings.Contains(content, head) || strings.Contains(content, tail)
}

// containsWord 判断 name 是否作为完整词出现。拉丁字母与数字串按字符边界判断；
// 汉字没有词边界，改为排除落在 longer 中某个更长实体名内部的出现位置。
func containsWord(content, name string, longer []string) bool {
	if name == "" {
		return false
	}
	for offset := 0; offset < len(content); {
		i := strings.Index(content[offset:], name)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(name)

		left, right := true, true
		if start > 0 {
			r, _ := utf8.DecodeLastRuneInString(content[:start])
			first, _ := utf8.DecodeRuneInString(name)
			left = !joins(r, first)
		}
		if end < len(content) {
			r, _ := utf8.DecodeRuneInString(content[end:])
			last, _ := utf8.DecodeLastRuneInString(name)
			right = !joins(last, r)
		}
		if left && right && !insideAny(content, start, end, longer) {
			return true
		}
		_, size := utf8.DecodeRuneInString(content[start:])
		offset = start + size
	}
	return false
}

// insideAny [start, end) 是否被 longer 中某个名字在 content 里的一次出现完整覆盖
func insideAny(content string, start, end int, longer []string) bool {
	for _, l := range longer {
		for offset := 0; offset < len(content); {
			i := strings.Index(content[offset:], l)
			if i < 0 {
				break
			}
			ls := offset + i
			if ls > start {
				break
			}
			if end <= ls+len(l) {
				return true
			}
			_, size := utf8.DecodeRuneInString(content[ls:])
			offset = ls + size
		}
	}
	return false
}

func isWordRune(r rune) bool {
	if unicode.Is(unicode.Han, r) {
		return false
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func joins(a, b rune) bool {
	return isWordRune(a) && isWordRune(b)
}

const (
	recencyMin = 0.7
	recencyMax = 1.3
)

// RecencyBias 按章节在全书中的位置给出 [0.7, 1.3] 的时间偏置。
// weight 为 0 或总章节数未知时返回 1.0；weight 为负时偏向前文。
func RecencyBias(position, total int, weight float64) float64 {
	if weight == 0 || total <= 0 {
		return 1.0
	}
	pos := float64(position)
	if pos < 0 {
		pos = 0
	}
	if pos > float64(total) {
		pos = float64(total)
	}
	raw := math.Exp(weight * pos / float64(total))
	lo := math.Exp(math.Min(0, weight))
	hi := math.Exp(math.Max(0, weight))
	if hi == lo {
		return 1.0
	}
	return recencyMin + (recencyMax-recencyMin)*(raw-lo)/(hi-lo)
}

// ImportanceSource 提供章节重要度，通常来自图谱快照
type ImportanceSource interface {
	ChapterImportance(chapter int) (float64, bool)
}

const defaultChapterImportance = 0.5

// ChapterImportance 查询章节重要度，缺失时返回 0.5
func ChapterImportance(src ImportanceSource, chapter int) float64 {
	if src == nil {
		return defaultChapterImportance
	}
	if v, ok := src.ChapterImportance(chapter); ok {
		return v
	}
	return defaultChapterImportance
}

var quoteRunes = map[rune]struct{}{
	'“': {}, '”': {}, '"': {}, '「': {}, '」': {}, '『': {}, '』': {},
}

// QuoteDensity 引号字符占全文字符数的比例
func QuoteDensity(content string) float64 {
	total := utf8.RuneCountInString(content)
	if total == 0 {
		return 0
	}
	n := 0
	for _, r := range content {
		if _, ok := quoteRunes[r]; ok {
			n++
		}
	}
	return float64(n) / float64(total)
}

// QuoteDensityBoost 引号越密集加成越高，上限为 quoteWeight
func QuoteDensityBoost(content string, quoteWeight float64) float64 {
	if quoteWeight <= 1 {
		return 1.0
	}
	return 1 + (quoteWeight-1)*math.Min(QuoteDensity(content)*10, 1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

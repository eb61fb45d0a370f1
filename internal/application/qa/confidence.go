package qa

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"novel-rag-engine/internal/domain/entity"
)

var (
	uncertainWords = []string{
		"可能", "也许", "大概", "似乎", "好像", "应该",
		"或许", "估计", "猜测", "不确定", "不清楚", "未知",
	}
	vagueWords = []string{
		"一些", "某些", "若干", "多个", "少量", "大量",
		"很多", "不少", "较多", "较少",
	}
	definiteWords = []string{
		"确实", "明确", "清楚", "显然", "毫无疑问",
		"事实上", "实际上", "具体来说",
	}
	conclusionPattern = regexp.MustCompile(`总之|综上|因此|所以|综合.*来看|可以.*得出|说明|表明`)
)

// ConfidenceBreakdown 草稿答案置信度的各项得分，均在 [0,1]
type ConfidenceBreakdown struct {
	Citation  float64                `json:"citation"`
	Quality   float64                `json:"quality"`
	Retrieval float64                `json:"retrieval"`
	Certainty float64                `json:"certainty"`
	Percent   float64                `json:"percent"`
	Level     entity.ConfidenceLevel `json:"level"`
}

// DraftConfidence 按引用质量 3、答案完整性 2.5、召回 2、语言确定性 2.5 的权重折算为百分比，
// 75 以上为 high，50 以上为 medium
func DraftConfidence(answer string, citations []Citation, ranked []entity.Candidate, retrieved int) ConfidenceBreakdown {
	b := ConfidenceBreakdown{
		Citation:  citationScore(citations, ranked),
		Quality:   answerQuality(answer),
		Retrieval: retrievalScore(len(citations), retrieved),
		Certainty: certaintyScore(answer),
	}
	total := b.Citation*3 + b.Quality*2.5 + b.Retrieval*2 + b.Certainty*2.5
	b.Percent = total / 10 * 100
	switch {
	case b.Percent >= 75:
		b.Level = entity.ConfidenceHigh
	case b.Percent >= 50:
		b.Level = entity.ConfidenceMedium
	default:
		b.Level = entity.ConfidenceLow
	}
	return b
}

func citationScore(citations []Citation, ranked []entity.Candidate) float64 {
	if len(citations) == 0 {
		return 0
	}
	var score float64
	switch n := len(citations); {
	case n >= 5:
		score = 0.5
	case n >= 3:
		score = 0.4
	default:
		score = 0.3
	}
	if len(ranked) > 0 {
		top := ranked[:min(5, len(ranked))]
		var sum float64
		for _, c := range top {
			sum += c.FinalScore
		}
		score += min(sum/float64(len(top))*0.5, 0.5)
	}
	return min(score, 1)
}

func answerQuality(answer string) float64 {
	if answer == "" {
		return 0
	}
	var score float64
	switch n := utf8.RuneCountInString(answer); {
	case n >= 100 && n <= 1000:
		score = 0.6
	case n >= 50 && n < 100:
		score = 0.4
	case n > 1000 && n <= 2000:
		score = 0.5
	case n < 50:
		score = 0.2
	default:
		score = 0.3
	}

	paragraphs := 0
	for _, p := range strings.Split(answer, "\n") {
		if strings.TrimSpace(p) != "" {
			paragraphs++
		}
	}
	if paragraphs >= 2 {
		score += 0.2
	}
	if conclusionPattern.MatchString(answer) {
		score += 0.2
	}
	return min(score, 1)
}

func retrievalScore(citations, retrieved int) float64 {
	if retrieved == 0 {
		return 0.5
	}
	var score float64
	switch {
	case retrieved >= 20:
		score = 0.6
	case retrieved >= 10:
		score = 0.5
	case retrieved >= 5:
		score = 0.4
	default:
		score = 0.3
	}
	if citations > 0 {
		rate := float64(citations) / float64(retrieved)
		switch {
		case rate >= 0.3:
			score += 0.4
		case rate >= 0.2:
			score += 0.3
		case rate >= 0.1:
			score += 0.2
		default:
			score += 0.1
		}
	}
	return min(score, 1)
}

func certaintyScore(answer string) float64 {
	if answer == "" {
		return 0.5
	}
	score := 1.0
	score -= min(float64(countAll(answer, uncertainWords))*0.1, 0.5)
	score -= min(float64(countAll(answer, vagueWords))*0.05, 0.3)
	for _, w := range definiteWords {
		if strings.Contains(answer, w) {
			score += 0.1
			break
		}
	}
	return max(0, min(score, 1))
}

func countAll(s string, words []string) int {
	n := 0
	for _, w := range words {
		n += strings.Count(s, w)
	}
	return n
}

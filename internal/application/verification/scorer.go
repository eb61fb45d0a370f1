package verification

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"novel-rag-engine/internal/application/rerank"
	"novel-rag-engine/internal/domain/entity"
)

var (
	sourceAuthority = map[entity.EvidenceSource]float64{
		entity.SourceVector:  0.7,
		entity.SourceKeyword: 0.8,
		entity.SourceGraph:   0.9,
	}
	detailKeywords = []string{"具体", "详细", "明确", "清楚", "确实", "确定"}
	quoteMarks     = []string{"\"", "“", "”", "'", "「", "」"}
)

// ScoreContext 评分上下文
type ScoreContext struct {
	TotalChapters int
	// TargetChapter 非空时时效性按与该章的距离计算
	TargetChapter *int
	// Importance 为空时权威性不参考章节重要度
	Importance rerank.ImportanceSource
}

// Scorer 证据三维评分：时效性、具体性、权威性
type Scorer struct{}

// NewScorer 创建评分器
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score 填充单条证据的各维度得分
func (s *Scorer) Score(e entity.Evidence, sc ScoreContext) entity.Evidence {
	e.Timeliness = Timeliness(e.Chapter, sc.TotalChapters, sc.TargetChapter)
	e.Specificity = Specificity(e.Content)
	e.Authority = Authority(e.Source, e.Chapter, sc.Importance)
	e.Overall = 0.3*e.Timeliness + 0.4*e.Specificity + 0.3*e.Authority
	return e
}

// ScoreAll 批量评分并按综合分降序排列
func (s *Scorer) ScoreAll(ev []entity.Evidence, sc ScoreContext) []entity.Evidence {
	out := make([]entity.Evidence, len(ev))
	for i, e := range ev {
		out[i] = s.Score(e, sc)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Overall > out[j].Overall })
	return out
}

// Timeliness 有目标章节时按距离分档，否则偏好中后期章节
func Timeliness(chapter *int, total int, target *int) float64 {
	if chapter == nil {
		return 0.5
	}
	if target != nil {
		d := *chapter - *target
		if d < 0 {
			d = -d
		}
		switch {
		case d == 0:
			return 1.0
		case d <= 10:
			return 0.8
		case d <= 50:
			return 0.6
		case d <= 100:
			return 0.4
		default:
			return 0.2
		}
	}
	if total <= 0 {
		return 0.5
	}
	pos := float64(*chapter) / float64(total)
	switch {
	case pos > 0.8:
		return 0.9
	case pos >= 0.4:
		return 0.8
	default:
		return 0.6
	}
}

// Specificity 依据长度、数字、引号与细节词评估内容具体程度
func Specificity(content string) float64 {
	score := 0.5

	n := utf8.RuneCountInString(content)
	switch {
	case n >= 100 && n <= 500:
		score += 0.2
	case n < 50 || n > 1000:
		score -= 0.1
	}
	if strings.IndexFunc(content, unicode.IsDigit) >= 0 {
		score += 0.1
	}
	if containsAny(content, quoteMarks) {
		score += 0.15
	}
	if containsAny(content, detailKeywords) {
		score += 0.05
	}
	return clamp01(score)
}

// Authority 来源权重为主，章节重要度可用时再做加权
func Authority(src entity.EvidenceSource, chapter *int, importance rerank.ImportanceSource) float64 {
	w, ok := sourceAuthority[src]
	if !ok {
		w = sourceAuthority[entity.SourceVector]
	}
	score := 0.5*0.4 + w*0.6
	if chapter != nil && importance != nil {
		if imp, ok := importance.ChapterImportance(*chapter); ok {
			score = score*0.6 + imp*0.4
		}
	}
	return score
}

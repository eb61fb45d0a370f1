package verification

import (
	"fmt"
	"sort"
	"strings"

	"novel-rag-engine/internal/domain/entity"
)

const (
	defaultDirectConflictGap    = 10
	defaultWeakSupportThreshold = 0.7
)

var polarityPairs = []keywordPair{
	{"是", "不是"},
	{"有", "没有"},
	{"能", "不能"},
	{"会", "不会"},
	{"成功", "失败"},
	{"胜利", "失败"},
	{"活着", "死了"},
}

// Detector 综合一致性问题、断言间直接冲突与证据不足三类来源检测矛盾
type Detector struct {
	minGap      int
	weakSupport float64
}

// NewDetector 非正参数取默认值
func NewDetector(minGap int, weakSupport float64) *Detector {
	if minGap <= 0 {
		minGap = defaultDirectConflictGap
	}
	if weakSupport <= 0 {
		weakSupport = defaultWeakSupportThreshold
	}
	return &Detector{minGap: minGap, weakSupport: weakSupport}
}

// Detect evidence 与 assertions 按下标对应。结果已去重并排序。
func (d *Detector) Detect(assertions []entity.Assertion, evidence [][]entity.Evidence, report ConsistencyReport) []entity.Contradiction {
	var all []entity.Contradiction
	for _, is := range report.Issues() {
		all = append(all, issueToContradiction(is))
	}
	all = append(all, d.directConflicts(assertions)...)
	all = append(all, d.weakSupportFlags(assertions, evidence)...)
	return Dedupe(all)
}

func issueToContradiction(is entity.ConsistencyIssue) entity.Contradiction {
	tier := entity.ConfidenceMedium
	if is.Severity == entity.SeverityHigh {
		tier = entity.ConfidenceHigh
	}
	return entity.Contradiction{
		Type:         is.Kind,
		Confidence:   tier,
		EarlyChapter: is.First.Chapter,
		LateChapter:  is.Second.Chapter,
		EarlyText:    is.First.Text,
		LateText:     is.Second.Text,
		Analysis:     is.Description,
	}
}

// directConflicts 两两比较共享实体的断言，出现正反极性词且相隔超过 minGap 章
func (d *Detector) directConflicts(assertions []entity.Assertion) []entity.Contradiction {
	var out []entity.Contradiction
	for i := 0; i < len(assertions); i++ {
		for j := i + 1; j < len(assertions); j++ {
			a, b := assertions[i], assertions[j]
			if a.Chapter == nil || b.Chapter == nil {
				continue
			}
			gap := *b.Chapter - *a.Chapter
			if gap < 0 {
				gap = -gap
			}
			if gap <= d.minGap {
				continue
			}
			common := sharedEntities(a.Entities, b.Entities)
			if len(common) == 0 || !hasPolarityConflict(a.Text, b.Text) {
				continue
			}
			early, late := a, b
			if *b.Chapter < *a.Chapter {
				early, late = b, a
			}
			out = append(out, entity.Contradiction{
				Type:         entity.ContradictionDirectConflict,
				Confidence:   entity.ConfidenceMedium,
				EarlyChapter: early.Chapter,
				LateChapter:  late.Chapter,
				EarlyText:    early.Text,
				LateText:     late.Text,
				Analysis:     fmt.Sprintf("关于%s的描述前后不一致", strings.Join(common, ",")),
			})
		}
	}
	return out
}

func hasPolarityConflict(first, second string) bool {
	for _, p := range polarityPairs {
		if strings.Contains(first, p.before) && strings.Contains(second, p.after) {
			return true
		}
	}
	return false
}

func sharedEntities(a, b []string) []string {
	set := make(map[string]struct{}, len(a))
	for _, n := range a {
		set[n] = struct{}{}
	}
	var out []string
	for _, n := range b {
		if _, ok := set[n]; ok {
			out = append(out, n)
			delete(set, n)
		}
	}
	sort.Strings(out)
	return out
}

// weakSupportFlags 高置信断言没有任何证据时给出低等级提示
func (d *Detector) weakSupportFlags(assertions []entity.Assertion, evidence [][]entity.Evidence) []entity.Contradiction {
	var out []entity.Contradiction
	for i, a := range assertions {
		if a.Confidence <= d.weakSupport {
			continue
		}
		if i < len(evidence) && len(evidence[i]) > 0 {
			continue
		}
		out = append(out, entity.Contradiction{
			Type:         entity.ContradictionWeakSupport,
			Confidence:   entity.ConfidenceLow,
			EarlyChapter: a.Chapter,
			LateChapter:  a.Chapter,
			EarlyText:    a.Text,
			LateText:     "缺少证据支持",
			Analysis:     "该断言缺少证据支持，可能存在错误",
		})
	}
	return out
}

type contradictionKey struct {
	typ         entity.ContradictionType
	early, late int
}

// Dedupe 按 (类型, 起始章, 结束章) 去重，保留先出现者；再按等级降序、起始章升序排列
func Dedupe(cs []entity.Contradiction) []entity.Contradiction {
	seen := make(map[contradictionKey]struct{}, len(cs))
	out := make([]entity.Contradiction, 0, len(cs))
	for _, c := range cs {
		k := contradictionKey{typ: c.Type, early: chapterKey(c.EarlyChapter), late: chapterKey(c.LateChapter)}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Confidence.Rank(), out[j].Confidence.Rank()
		if ri != rj {
			return ri > rj
		}
		return chapterKey(out[i].EarlyChapter) < chapterKey(out[j].EarlyChapter)
	})
	return out
}

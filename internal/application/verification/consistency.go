package verification

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"novel-rag-engine/internal/domain/entity"
)

type keywordPair struct {
	before, after string
}

var (
	temporalPairs = []keywordPair{
		{"死亡", "复活"},
		{"死了", "活着"},
		{"离开", "到达"},
		{"结束", "开始"},
		{"失去", "拥有"},
	}
	relationReversals = []keywordPair{
		{"盟友", "敌人"},
		{"朋友", "仇人"},
		{"喜欢", "讨厌"},
		{"信任", "背叛"},
		{"师傅", "敌人"},
	}
	transitionKeywords = []string{"背叛", "误会", "发现", "真相", "变化"}
)

// ConsistencyReport 一致性检查结果
type ConsistencyReport struct {
	Temporal  []entity.ConsistencyIssue `json:"temporal"`
	Character []entity.ConsistencyIssue `json:"character"`
}

// Issues 时序问题在前
func (r ConsistencyReport) Issues() []entity.ConsistencyIssue {
	out := make([]entity.ConsistencyIssue, 0, len(r.Temporal)+len(r.Character))
	out = append(out, r.Temporal...)
	return append(out, r.Character...)
}

// SeverityCounts 按严重程度计数
func (r ConsistencyReport) SeverityCounts() map[entity.IssueSeverity]int {
	counts := map[entity.IssueSeverity]int{
		entity.SeverityHigh:   0,
		entity.SeverityMedium: 0,
		entity.SeverityLow:    0,
	}
	for _, is := range r.Issues() {
		counts[is.Severity]++
	}
	return counts
}

// CheckConsistency 执行时序与角色两类检查
func CheckConsistency(assertions []entity.Assertion) ConsistencyReport {
	return ConsistencyReport{
		Temporal:  CheckTemporal(assertions),
		Character: CheckCharacter(assertions),
	}
}

// CheckTemporal 取带章节引用或事件类断言按章节排序，相邻两条出现先后矛盾的关键词对即为高危问题
func CheckTemporal(assertions []entity.Assertion) []entity.ConsistencyIssue {
	var timed []entity.Assertion
	for _, a := range assertions {
		if a.Chapter != nil || a.Type == entity.AssertionEvent {
			timed = append(timed, a)
		}
	}
	sortByChapter(timed)

	var issues []entity.ConsistencyIssue
	for i := 0; i+1 < len(timed); i++ {
		cur, next := timed[i], timed[i+1]
		if cur.Chapter == nil || next.Chapter == nil || *next.Chapter <= *cur.Chapter {
			continue
		}
		for _, p := range temporalPairs {
			if strings.Contains(cur.Text, p.before) && strings.Contains(next.Text, p.after) {
				issues = append(issues, entity.ConsistencyIssue{
					Kind:     entity.ContradictionTemporal,
					Severity: entity.SeverityHigh,
					Description: fmt.Sprintf("时序矛盾：第%d章'%s'，第%d章'%s'",
						*cur.Chapter, p.before, *next.Chapter, p.after),
					First:  cur,
					Second: next,
				})
				break
			}
		}
	}
	return issues
}

// CheckCharacter 按实体分组，相邻断言出现关系反转且后者缺少转折说明时记为中危问题
func CheckCharacter(assertions []entity.Assertion) []entity.ConsistencyIssue {
	var order []string
	groups := make(map[string][]entity.Assertion)
	for _, a := range assertions {
		for _, name := range a.Entities {
			if _, ok := groups[name]; !ok {
				order = append(order, name)
			}
			groups[name] = append(groups[name], a)
		}
	}

	var issues []entity.ConsistencyIssue
	for _, name := range order {
		group := groups[name]
		if len(group) < 2 {
			continue
		}
		sortByChapter(group)
		for i := 0; i+1 < len(group); i++ {
			cur, next := group[i], group[i+1]
			for _, p := range relationReversals {
				if !strings.Contains(cur.Text, p.before) || !strings.Contains(next.Text, p.after) {
					continue
				}
				if containsAny(next.Text, transitionKeywords) {
					continue
				}
				issues = append(issues, entity.ConsistencyIssue{
					Kind:        entity.ContradictionCharacter,
					Severity:    entity.SeverityMedium,
					Description: fmt.Sprintf("%s的关系变化缺少解释：%s -> %s", name, p.before, p.after),
					First:       cur,
					Second:      next,
				})
				break
			}
		}
	}
	return issues
}

// sortByChapter 无章节引用的断言排在最后，原有顺序保持不变
func sortByChapter(as []entity.Assertion) {
	sort.SliceStable(as, func(i, j int) bool {
		return chapterKey(as[i].Chapter) < chapterKey(as[j].Chapter)
	})
}

func chapterKey(ch *int) int {
	if ch == nil {
		return math.MaxInt
	}
	return *ch
}

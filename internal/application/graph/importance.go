package graph

import (
	"novel-rag-engine/internal/domain/entity"
)

const (
	weightNewEntities     = 0.30
	weightRelationChanges = 0.50
	weightEventDensity    = 0.20

	newEntitiesNorm     = 5.0
	relationChangesNorm = 10.0
)

// ChapterScore 单章重要度的组成
type ChapterScore struct {
	Chapter         int
	NewEntities     int
	RelationChanges int
	ActiveEntities  int
	Importance      float64
}

// ScoreChapter 按新增实体、关系变化与事件密度加权，各项先截断到 [0,1]
func ScoreChapter(newEntities, changes, active int) float64 {
	density := float64(changes) / float64(max(active, 1))
	return weightNewEntities*min(float64(newEntities)/newEntitiesNorm, 1) +
		weightRelationChanges*min(float64(changes)/relationChangesNorm, 1) +
		weightEventDensity*min(density, 1)
}

// ChapterScores 一次遍历计算 1..TotalChapters 每章的重要度
func ChapterScores(g *entity.Graph) []ChapterScore {
	total := g.TotalChapters
	for _, n := range g.Nodes {
		total = max(total, n.LastChapter)
	}
	if total <= 0 {
		return nil
	}

	newCount := make([]int, total+2)
	changes := make([]int, total+2)
	activeDiff := make([]int, total+2)

	inRange := func(ch int) bool { return ch >= 1 && ch <= total }

	for _, n := range g.Nodes {
		if inRange(n.FirstChapter) {
			newCount[n.FirstChapter]++
		}
		first := max(n.FirstChapter, 1)
		last := n.LastChapter
		if last <= 0 || last > total {
			last = total
		}
		if first <= last {
			activeDiff[first]++
			activeDiff[last+1]--
		}
	}

	for i := range g.Edges {
		e := &g.Edges[i]
		if g.IsReverse(e) {
			continue
		}
		if inRange(e.StartChapter) {
			changes[e.StartChapter]++
		}
		if e.EndChapter != nil && *e.EndChapter != e.StartChapter && inRange(*e.EndChapter) {
			changes[*e.EndChapter]++
		}
		seen := make(map[int]struct{}, len(e.Evolution))
		for _, cp := range e.Evolution {
			if _, dup := seen[cp.Chapter]; dup || !inRange(cp.Chapter) {
				continue
			}
			seen[cp.Chapter] = struct{}{}
			changes[cp.Chapter]++
		}
	}

	out := make([]ChapterScore, 0, total)
	active := 0
	for ch := 1; ch <= total; ch++ {
		active += activeDiff[ch]
		out = append(out, ChapterScore{
			Chapter:         ch,
			NewEntities:     newCount[ch],
			RelationChanges: changes[ch],
			ActiveEntities:  active,
			Importance:      ScoreChapter(newCount[ch], changes[ch], active),
		})
	}
	return out
}

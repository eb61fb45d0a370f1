package retrieval

import "sort"

const defaultRRFK = 60

// rankedList 一路检索结果的 ID 排名
type rankedList struct {
	ids    []string
	weight float64
}

// fuseRRF 加权倒数排名融合：score = Σ w / (k + rank)，rank 从 1 开始。
// 同分按首次出现顺序稳定排列。
func fuseRRF(k int, lists ...rankedList) ([]string, map[string]float64) {
	if k <= 0 {
		k = defaultRRFK
	}
	scores := make(map[string]float64)
	order := make([]string, 0)
	for _, l := range lists {
		w := l.weight
		if w <= 0 {
			continue
		}
		for rank, id := range l.ids {
			if _, seen := scores[id]; !seen {
				order = append(order, id)
			}
			scores[id] += w / float64(k+rank+1)
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})
	return order, scores
}

package graph

import (
	"sort"
	"strings"

	"novel-rag-engine/internal/domain/entity"
)

// Pair 两个角色的共现统计，A 按字典序小于 B
type Pair struct {
	A        string
	B        string
	Count    int
	Chapters []int
}

type pairKey struct {
	a string
	b string
}

func sortedPair(x, y string) pairKey {
	if x > y {
		x, y = y, x
	}
	return pairKey{a: x, b: y}
}

// sortChapters 按章节号排序输入
func sortChapters(in []entity.ChapterEntities) []entity.ChapterEntities {
	out := make([]entity.ChapterEntities, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Chapter < out[j].Chapter })
	return out
}

// CountCooccurrence 统计同章出现的角色对。只统计角色，
// 同一章节内重复出现的名字只计一次。
func CountCooccurrence(chapters []entity.ChapterEntities) []Pair {
	acc := make(map[pairKey]*Pair)
	for _, ch := range sortChapters(chapters) {
		names := uniqueNames(ch.Characters)
		for i := 0; i < len(names); i++ {
			for j := i + 1; j < len(names); j++ {
				k := sortedPair(names[i], names[j])
				p, ok := acc[k]
				if !ok {
					p = &Pair{A: k.a, B: k.b}
					acc[k] = p
				}
				if n := len(p.Chapters); n > 0 && p.Chapters[n-1] == ch.Chapter {
					continue
				}
				p.Count++
				p.Chapters = append(p.Chapters, ch.Chapter)
			}
		}
	}

	out := make([]Pair, 0, len(acc))
	for _, p := range acc {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

func uniqueNames(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Strength 共现强度，20 次及以上记为 1
func Strength(count int) float64 {
	return min(float64(count)/20.0, 1.0)
}

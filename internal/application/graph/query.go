package graph

import (
	"sort"

	"novel-rag-engine/internal/domain/entity"
)

const defaultPathMaxLen = 3

// Query 只读查询视图。底层图谱不会被修改，可被多个请求共享。
type Query struct {
	g *entity.Graph
}

// NewQuery g 为空时所有查询返回零值，章节重要度返回 0.5
func NewQuery(g *entity.Graph) *Query {
	if g != nil {
		g.Reindex()
	}
	return &Query{g: g}
}

// Graph 底层快照
func (q *Query) Graph() *entity.Graph {
	if q == nil {
		return nil
	}
	return q.g
}

func (q *Query) empty() bool {
	return q == nil || q.g == nil
}

// pairEdges 两个方向上的全部边
func (q *Query) pairEdges(a, b string) []*entity.RelationEdge {
	ia, ok := q.g.NodeIndex(a)
	if !ok {
		return nil
	}
	ib, ok := q.g.NodeIndex(b)
	if !ok {
		return nil
	}
	return append(q.g.EdgesBetween(ia, ib), q.g.EdgesBetween(ib, ia)...)
}

// RelationAt 指定章节时两者的关系类型
func (q *Query) RelationAt(a, b string, chapter int) (entity.RelationType, bool) {
	if q.empty() {
		return "", false
	}
	for _, e := range q.pairEdges(a, b) {
		if t, ok := e.TypeAt(chapter); ok {
			return t, true
		}
	}
	return "", false
}

// Evolution 两者关系的演化轨迹
func (q *Query) Evolution(a, b string) []entity.Checkpoint {
	if q.empty() {
		return nil
	}
	for _, e := range q.pairEdges(a, b) {
		if len(e.Evolution) > 0 {
			out := make([]entity.Checkpoint, len(e.Evolution))
			copy(out, e.Evolution)
			return out
		}
	}
	return nil
}

// Neighbor 邻居节点
type Neighbor struct {
	Name       string              `json:"name"`
	Relation   entity.RelationType `json:"relation_type"`
	Importance float64             `json:"importance"`
}

// Relationship 以某个实体为中心的一条关系
type Relationship struct {
	Direction    string              `json:"direction"`
	Other        string              `json:"other"`
	Type         entity.RelationType `json:"relation_type"`
	Strength     float64             `json:"strength"`
	StartChapter int                 `json:"start_chapter"`
	EndChapter   *int                `json:"end_chapter,omitempty"`
	Evolution    []entity.Checkpoint `json:"evolution,omitempty"`
}

// Relationships 实体的全部关系，对称边只返回出向一条；chapter 非空时只返回该章生效的关系
func (q *Query) Relationships(name string, chapter *int) []Relationship {
	if q.empty() {
		return nil
	}
	idx, ok := q.g.NodeIndex(name)
	if !ok {
		return nil
	}
	var out []Relationship
	for i := range q.g.Edges {
		e := &q.g.Edges[i]
		var dir string
		var other int
		switch idx {
		case e.Source:
			dir, other = "outgoing", e.Target
		case e.Target:
			// 对称边的入向一侧与出向重复
			if q.g.HasEdge(idx, e.Source) {
				continue
			}
			dir, other = "incoming", e.Source
		default:
			continue
		}
		t := e.Type
		if chapter != nil {
			at, active := e.TypeAt(*chapter)
			if !active {
				continue
			}
			t = at
		}
		out = append(out, Relationship{
			Direction:    dir,
			Other:        q.g.Name(other),
			Type:         t,
			Strength:     e.Strength,
			StartChapter: e.StartChapter,
			EndChapter:   e.EndChapter,
			Evolution:    e.Evolution,
		})
	}
	return out
}

// Neighbors 按邻居重要度降序返回，最多 limit 个
func (q *Query) Neighbors(name string, chapter *int, limit int) []Neighbor {
	rels := q.Relationships(name, chapter)
	out := make([]Neighbor, 0, len(rels))
	for _, r := range rels {
		n, _ := q.g.Node(r.Other)
		imp := importanceTie
		if n != nil {
			imp = n.Importance
		}
		out = append(out, Neighbor{Name: r.Other, Relation: r.Type, Importance: imp})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Importance != out[j].Importance {
			return out[i].Importance > out[j].Importance
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// EntitiesInRange 在 [start, end] 章节区间内活跃过的实体
func (q *Query) EntitiesInRange(start, end int) []string {
	if q.empty() {
		return nil
	}
	var out []string
	for _, n := range q.g.Nodes {
		if n.FirstChapter <= end && n.LastChapter >= start {
			out = append(out, n.Name)
		}
	}
	return out
}

// FindPath 广度优先搜索最短路径（忽略边方向），超过 maxLen 条边返回空
func (q *Query) FindPath(src, dst string, maxLen int) []string {
	if q.empty() {
		return nil
	}
	if maxLen <= 0 {
		maxLen = defaultPathMaxLen
	}
	from, ok := q.g.NodeIndex(src)
	if !ok {
		return nil
	}
	to, ok := q.g.NodeIndex(dst)
	if !ok {
		return nil
	}
	if from == to {
		return []string{src}
	}

	adj := make(map[int][]int, len(q.g.Nodes))
	for _, e := range q.g.Edges {
		adj[e.Source] = append(adj[e.Source], e.Target)
		adj[e.Target] = append(adj[e.Target], e.Source)
	}
	prev := map[int]int{from: -1}
	frontier := []int{from}
	for depth := 0; depth < maxLen && len(frontier) > 0; depth++ {
		var next []int
		for _, cur := range frontier {
			for _, nb := range adj[cur] {
				if _, seen := prev[nb]; seen {
					continue
				}
				prev[nb] = cur
				if nb == to {
					return q.walkBack(prev, to)
				}
				next = append(next, nb)
			}
		}
		frontier = next
	}
	return nil
}

func (q *Query) walkBack(prev map[int]int, end int) []string {
	var rev []string
	for cur := end; cur != -1; cur = prev[cur] {
		rev = append(rev, q.g.Name(cur))
	}
	out := make([]string, len(rev))
	for i, name := range rev {
		out[len(rev)-1-i] = name
	}
	return out
}

// MainCharacter 主要角色及其重要度
type MainCharacter struct {
	Name       string  `json:"name"`
	Importance float64 `json:"importance"`
}

// MainCharacters 按重要度降序返回前 n 个角色
func (q *Query) MainCharacters(n int) []MainCharacter {
	if q.empty() {
		return nil
	}
	var out []MainCharacter
	for _, node := range q.g.Nodes {
		if node.Category == entity.CategoryCharacter {
			out = append(out, MainCharacter{Name: node.Name, Importance: node.Importance})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Importance != out[j].Importance {
			return out[i].Importance > out[j].Importance
		}
		return out[i].Name < out[j].Name
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// ChapterImportance 实现 rerank.ImportanceSource；未收录的章节返回 false
func (q *Query) ChapterImportance(chapter int) (float64, bool) {
	if q.empty() {
		return 0, false
	}
	v, ok := q.g.ChapterImportance[chapter]
	return v, ok
}

// Stats 图谱概况。Edges 为边总数（对称边计两条），Pairs 为有关系的节点对数，
// 度数、密度与类型分布均按节点对统计。
type Stats struct {
	Nodes         int                         `json:"nodes"`
	Edges         int                         `json:"edges"`
	Pairs         int                         `json:"pairs"`
	AvgDegree     float64                     `json:"avg_degree"`
	Density       float64                     `json:"density"`
	RelationTypes map[entity.RelationType]int `json:"relation_types"`
	Evolving      int                         `json:"evolving_edges"`
}

func (q *Query) Stats() Stats {
	if q.empty() {
		return Stats{}
	}
	s := Stats{
		Nodes:         len(q.g.Nodes),
		Edges:         len(q.g.Edges),
		RelationTypes: make(map[entity.RelationType]int),
	}
	for i := range q.g.Edges {
		e := &q.g.Edges[i]
		if q.g.IsReverse(e) {
			continue
		}
		s.Pairs++
		s.RelationTypes[e.Type]++
		if len(e.Evolution) > 1 {
			s.Evolving++
		}
	}
	if s.Nodes > 0 {
		s.AvgDegree = 2 * float64(s.Pairs) / float64(s.Nodes)
	}
	if s.Nodes > 1 {
		s.Density = 2 * float64(s.Pairs) / float64(s.Nodes*(s.Nodes-1))
	}
	return s
}

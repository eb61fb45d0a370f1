package entity

import (
	"sort"
	"time"
)

// SnapshotVersion 图谱快照格式版本
const SnapshotVersion = 1

// EntityCategory 实体类别
type EntityCategory string

const (
	CategoryCharacter    EntityCategory = "character"
	CategoryLocation     EntityCategory = "location"
	CategoryOrganization EntityCategory = "organization"
)

// EntityNode 图谱节点
type EntityNode struct {
	Name         string            `json:"name"`
	Category     EntityCategory    `json:"category"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	FirstChapter int               `json:"first_chapter"`
	LastChapter  int               `json:"last_chapter"`
	MentionCount int               `json:"mention_count"`
	Importance   float64           `json:"importance"`
}

// ActiveAt 节点在指定章节是否处于活跃区间
func (n *EntityNode) ActiveAt(chapter int) bool {
	return n.FirstChapter <= chapter && chapter <= n.LastChapter
}

// Checkpoint 关系演化轨迹上的一个点
type Checkpoint struct {
	Chapter    int          `json:"chapter"`
	Type       RelationType `json:"type"`
	Confidence float64      `json:"confidence"`
}

// RelationEdge 有向关系边，以 (Source, Target, Seq) 唯一标识
type RelationEdge struct {
	Source            int          `json:"source"`
	Target            int          `json:"target"`
	Seq               int          `json:"seq"`
	Type              RelationType `json:"type"`
	Strength          float64      `json:"strength"`
	StartChapter      int          `json:"start_chapter"`
	EndChapter        *int         `json:"end_chapter,omitempty"`
	Confidence        float64      `json:"confidence"`
	CooccurrenceCount int          `json:"cooccurrence_count"`
	Evolution         []Checkpoint `json:"evolution,omitempty"`
}

// ActiveAt 关系在指定章节是否生效，EndChapter 为空表示仍在持续
func (e *RelationEdge) ActiveAt(chapter int) bool {
	if e.StartChapter > chapter {
		return false
	}
	return e.EndChapter == nil || *e.EndChapter >= chapter
}

// TypeAt 返回指定章节时的关系类型；早于首个检查点或晚于 EndChapter 时返回 false
func (e *RelationEdge) TypeAt(chapter int) (RelationType, bool) {
	if e.EndChapter != nil && chapter > *e.EndChapter {
		return "", false
	}
	if len(e.Evolution) == 0 {
		return e.Type, e.ActiveAt(chapter)
	}
	var (
		found bool
		t     RelationType
	)
	for _, cp := range e.Evolution {
		if cp.Chapter > chapter {
			break
		}
		t, found = cp.Type, true
	}
	return t, found
}

// EdgeKey 多重边键
type EdgeKey struct {
	Source int
	Target int
	Seq    int
}

// Graph 时序知识图谱。节点存放于数组中，通过名称索引定位；
// 持久化后视为只读。
type Graph struct {
	CorpusID          string          `json:"corpus_id"`
	Version           int             `json:"version"`
	TotalChapters     int             `json:"total_chapters"`
	BuiltAt           time.Time       `json:"built_at"`
	Nodes             []EntityNode    `json:"nodes"`
	Edges             []RelationEdge  `json:"edges"`
	ChapterImportance map[int]float64 `json:"chapter_importance,omitempty"`

	index map[string]int
	out   map[int][]int
	keys  map[EdgeKey]int
}

// NewGraph 创建空图谱
func NewGraph(corpusID string, totalChapters int) *Graph {
	return &Graph{
		CorpusID:          corpusID,
		Version:           SnapshotVersion,
		TotalChapters:     totalChapters,
		ChapterImportance: make(map[int]float64),
		index:             make(map[string]int),
		out:               make(map[int][]int),
		keys:              make(map[EdgeKey]int),
	}
}

// Reindex 重建名称与邻接索引，解码快照后调用
func (g *Graph) Reindex() {
	g.index = make(map[string]int, len(g.Nodes))
	g.out = make(map[int][]int, len(g.Nodes))
	g.keys = make(map[EdgeKey]int, len(g.Edges))
	for i := range g.Nodes {
		g.index[g.Nodes[i].Name] = i
	}
	for i := range g.Edges {
		e := &g.Edges[i]
		g.out[e.Source] = append(g.out[e.Source], i)
		g.keys[EdgeKey{e.Source, e.Target, e.Seq}] = i
	}
	// 解码后两个方向各持一份轨迹副本，重新指向同一切片
	for i := range g.Edges {
		e := &g.Edges[i]
		if !g.IsReverse(e) {
			continue
		}
		if fwd, ok := g.keys[EdgeKey{e.Target, e.Source, e.Seq}]; ok {
			e.Evolution = g.Edges[fwd].Evolution
		}
	}
	if g.ChapterImportance == nil {
		g.ChapterImportance = make(map[int]float64)
	}
}

// Intern 返回名称对应的节点下标，不存在时新建
func (g *Graph) Intern(name string, category EntityCategory) (int, bool) {
	if g.index == nil {
		g.Reindex()
	}
	if i, ok := g.index[name]; ok {
		return i, false
	}
	g.Nodes = append(g.Nodes, EntityNode{Name: name, Category: category, Importance: 0.5})
	i := len(g.Nodes) - 1
	g.index[name] = i
	return i, true
}

// NodeIndex 按名称查找节点下标
func (g *Graph) NodeIndex(name string) (int, bool) {
	if g.index == nil {
		g.Reindex()
	}
	i, ok := g.index[name]
	return i, ok
}

// Node 按名称查找节点
func (g *Graph) Node(name string) (*EntityNode, bool) {
	i, ok := g.NodeIndex(name)
	if !ok {
		return nil, false
	}
	return &g.Nodes[i], true
}

// AddEdge 追加一条边并分配序号，返回边下标
func (g *Graph) AddEdge(e RelationEdge) int {
	if g.keys == nil {
		g.Reindex()
	}
	seq := 0
	for {
		if _, taken := g.keys[EdgeKey{e.Source, e.Target, seq}]; !taken {
			break
		}
		seq++
	}
	e.Seq = seq
	g.Edges = append(g.Edges, e)
	i := len(g.Edges) - 1
	g.out[e.Source] = append(g.out[e.Source], i)
	g.keys[EdgeKey{e.Source, e.Target, e.Seq}] = i
	return i
}

// AddSymmetricEdge 同时写入 Source→Target 与 Target→Source 两条边，
// 二者共享同一条演化轨迹。返回两条边的下标。
func (g *Graph) AddSymmetricEdge(e RelationEdge) (int, int) {
	fwd := g.AddEdge(e)
	e.Source, e.Target = e.Target, e.Source
	rev := g.AddEdge(e)
	return fwd, rev
}

// HasEdge a→b 之间是否存在边
func (g *Graph) HasEdge(a, b int) bool {
	for _, e := range g.OutEdges(a) {
		if e.Target == b {
			return true
		}
	}
	return false
}

// IsReverse 对称边中的镜像一侧：源下标较大且反方向已有边。
// 按对统计时跳过镜像边，每对节点只计一次。
func (g *Graph) IsReverse(e *RelationEdge) bool {
	return e.Source > e.Target && g.HasEdge(e.Target, e.Source)
}

// OutEdges 返回节点的出边
func (g *Graph) OutEdges(node int) []*RelationEdge {
	if g.out == nil {
		g.Reindex()
	}
	idx := g.out[node]
	res := make([]*RelationEdge, 0, len(idx))
	for _, i := range idx {
		res = append(res, &g.Edges[i])
	}
	return res
}

// EdgesBetween 返回 a→b 的全部边，按序号排列
func (g *Graph) EdgesBetween(a, b int) []*RelationEdge {
	var res []*RelationEdge
	for _, e := range g.OutEdges(a) {
		if e.Target == b {
			res = append(res, e)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Seq < res[j].Seq })
	return res
}

// Name 返回节点名称
func (g *Graph) Name(node int) string {
	if node < 0 || node >= len(g.Nodes) {
		return ""
	}
	return g.Nodes[node].Name
}

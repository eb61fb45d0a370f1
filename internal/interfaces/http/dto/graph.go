package dto

import (
	"novel-rag-engine/internal/application/graph"
	"novel-rag-engine/internal/domain/entity"
)

// RelationAtResponse 某章生效的关系
type RelationAtResponse struct {
	Source   string              `json:"source"`
	Target   string              `json:"target"`
	Chapter  int                 `json:"chapter"`
	Found    bool                `json:"found"`
	Relation entity.RelationType `json:"relation_type,omitempty"`
}

// EvolutionResponse 关系演变轨迹
type EvolutionResponse struct {
	Source      string              `json:"source"`
	Target      string              `json:"target"`
	Checkpoints []entity.Checkpoint `json:"checkpoints"`
}

// RelationshipListResponse 实体关系列表
type RelationshipListResponse struct {
	Entity        string               `json:"entity"`
	Chapter       *int                 `json:"chapter,omitempty"`
	Relationships []graph.Relationship `json:"relationships"`
}

// NeighborListResponse 邻居列表
type NeighborListResponse struct {
	Entity    string           `json:"entity"`
	Chapter   *int             `json:"chapter,omitempty"`
	Neighbors []graph.Neighbor `json:"neighbors"`
}

// PathResponse 最短关系路径
type PathResponse struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Found  bool     `json:"found"`
	Path   []string `json:"path"`
	Hops   int      `json:"hops"`
}

// EntityRangeResponse 章节区间内出现的实体
type EntityRangeResponse struct {
	From     int      `json:"from"`
	To       int      `json:"to"`
	Entities []string `json:"entities"`
}

// ChapterImportanceResponse 章节重要度
type ChapterImportanceResponse struct {
	Chapter    int     `json:"chapter"`
	Found      bool    `json:"found"`
	Importance float64 `json:"importance"`
}

// NewPathResponse 转换最短路径结果
func NewPathResponse(src, dst string, path []string) *PathResponse {
	resp := &PathResponse{Source: src, Target: dst, Path: path}
	if len(path) > 0 {
		resp.Found = true
		resp.Hops = len(path) - 1
	} else {
		resp.Path = []string{}
	}
	return resp
}

// orEmpty 让空列表序列化为 [] 而不是 null
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// NewEvolutionResponse 转换演变轨迹
func NewEvolutionResponse(src, dst string, cps []entity.Checkpoint) *EvolutionResponse {
	return &EvolutionResponse{Source: src, Target: dst, Checkpoints: orEmpty(cps)}
}

// NewRelationshipListResponse 转换关系列表
func NewRelationshipListResponse(name string, chapter *int, rels []graph.Relationship) *RelationshipListResponse {
	return &RelationshipListResponse{Entity: name, Chapter: chapter, Relationships: orEmpty(rels)}
}

// NewNeighborListResponse 转换邻居列表
func NewNeighborListResponse(name string, chapter *int, ns []graph.Neighbor) *NeighborListResponse {
	return &NeighborListResponse{Entity: name, Chapter: chapter, Neighbors: orEmpty(ns)}
}

// NewEntityRangeResponse 转换区间实体
func NewEntityRangeResponse(from, to int, names []string) *EntityRangeResponse {
	return &EntityRangeResponse{From: from, To: to, Entities: orEmpty(names)}
}

// MainCharacterListResponse 主要角色
type MainCharacterListResponse struct {
	Characters []graph.MainCharacter `json:"characters"`
}

// NewMainCharacterListResponse 转换主要角色
func NewMainCharacterListResponse(chars []graph.MainCharacter) *MainCharacterListResponse {
	return &MainCharacterListResponse{Characters: orEmpty(chars)}
}

package handler

import (
	"context"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"novel-rag-engine/internal/application/graph"
	"novel-rag-engine/internal/interfaces/http/dto"
	apperrors "novel-rag-engine/pkg/errors"
	"novel-rag-engine/pkg/logger"
)

const (
	defaultNeighborLimit  = 20
	defaultMainCharacters = 10
	maxListLimit          = 200
)

// GraphReader 图谱快照的读取与删除
type GraphReader interface {
	Open(ctx context.Context, corpusID string) (*graph.Query, error)
	Delete(ctx context.Context, corpusID string) error
}

// GraphHandler 时序知识图谱查询处理器
type GraphHandler struct {
	graphs GraphReader
}

// NewGraphHandler 创建图谱处理器
func NewGraphHandler(graphs GraphReader) *GraphHandler {
	return &GraphHandler{graphs: graphs}
}

// open 加载快照，失败时已写出响应
func (h *GraphHandler) open(c *gin.Context) (*graph.Query, bool) {
	corpusID := dto.BindCorpusID(c)
	ctx := logger.WithCorpus(c.Request.Context(), corpusID)
	q, err := h.graphs.Open(ctx, corpusID)
	if err != nil {
		respondError(c, err, "failed to load graph snapshot")
		return nil, false
	}
	return q, true
}

// entityParam 读取路径中的实体名，并确认其在图谱中
func entityParam(c *gin.Context, q *graph.Query) (string, bool) {
	name := strings.TrimSpace(c.Param("name"))
	g := q.Graph()
	if g == nil {
		respondError(c, apperrors.ErrSnapshotNotFound, "graph snapshot not found")
		return "", false
	}
	if _, ok := g.Node(name); !ok {
		respondError(c, apperrors.ErrEntityNotFound.WithDetail(name), "entity not found")
		return "", false
	}
	return name, true
}

func chapterParam(c *gin.Context) (*int, bool) {
	ch, ok := dto.BindOptionalChapter(c, "chapter")
	if !ok {
		dto.BadRequest(c, "chapter must be a positive integer")
	}
	return ch, ok
}

func limitParam(c *gin.Context, def int) int {
	n := dto.QueryInt(c, "limit", def)
	if n <= 0 {
		return def
	}
	return min(n, maxListLimit)
}

// Stats 图谱概况
// @Summary 图谱概况
// @Tags Graph
// @Produce json
// @Param corpus path string true "语料 ID"
// @Success 200 {object} dto.Response[graph.Stats]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/corpora/{corpus}/graph/stats [get]
func (h *GraphHandler) Stats(c *gin.Context) {
	q, ok := h.open(c)
	if !ok {
		return
	}
	dto.Success(c, q.Stats())
}

// RelationAt 两个实体在某章生效的关系
// @Summary 指定章节的关系
// @Tags Graph
// @Produce json
// @Param corpus path string true "语料 ID"
// @Param source query string true "实体 A"
// @Param target query string true "实体 B"
// @Param chapter query int true "章节号"
// @Success 200 {object} dto.Response[dto.RelationAtResponse]
// @Router /v1/corpora/{corpus}/graph/relation [get]
func (h *GraphHandler) RelationAt(c *gin.Context) {
	src, dst := strings.TrimSpace(c.Query("source")), strings.TrimSpace(c.Query("target"))
	if src == "" || dst == "" {
		dto.BadRequest(c, "source and target are required")
		return
	}
	ch, ok := chapterParam(c)
	if !ok {
		return
	}
	if ch == nil {
		dto.BadRequest(c, "chapter is required")
		return
	}
	q, ok := h.open(c)
	if !ok {
		return
	}

	resp := dto.RelationAtResponse{Source: src, Target: dst, Chapter: *ch}
	resp.Relation, resp.Found = q.RelationAt(src, dst, *ch)
	dto.Success(c, resp)
}

// Evolution 两个实体的关系演变
// @Summary 关系演变轨迹
// @Tags Graph
// @Produce json
// @Param corpus path string true "语料 ID"
// @Param source query string true "实体 A"
// @Param target query string true "实体 B"
// @Success 200 {object} dto.Response[dto.EvolutionResponse]
// @Router /v1/corpora/{corpus}/graph/evolution [get]
func (h *GraphHandler) Evolution(c *gin.Context) {
	src, dst := strings.TrimSpace(c.Query("source")), strings.TrimSpace(c.Query("target"))
	if src == "" || dst == "" {
		dto.BadRequest(c, "source and target are required")
		return
	}
	q, ok := h.open(c)
	if !ok {
		return
	}
	dto.Success(c, dto.NewEvolutionResponse(src, dst, q.Evolution(src, dst)))
}

// Relationships 实体的全部关系
// @Summary 实体关系
// @Tags Graph
// @Produce json
// @Param corpus path string true "语料 ID"
// @Param name path string true "实体名"
// @Param chapter query int false "只返回该章生效的关系"
// @Success 200 {object} dto.Response[dto.RelationshipListResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/corpora/{corpus}/graph/entities/{name}/relationships [get]
func (h *GraphHandler) Relationships(c *gin.Context) {
	ch, ok := chapterParam(c)
	if !ok {
		return
	}
	q, ok := h.open(c)
	if !ok {
		return
	}
	name, ok := entityParam(c, q)
	if !ok {
		return
	}
	dto.Success(c, dto.NewRelationshipListResponse(name, ch, q.Relationships(name, ch)))
}

// Neighbors 实体的邻居
// @Summary 实体邻居
// @Tags Graph
// @Produce json
// @Param corpus path string true "语料 ID"
// @Param name path string true "实体名"
// @Param chapter query int false "章节号"
// @Param limit query int false "数量上限" default(20)
// @Success 200 {object} dto.Response[dto.NeighborListResponse]
// @Router /v1/corpora/{corpus}/graph/entities/{name}/neighbors [get]
func (h *GraphHandler) Neighbors(c *gin.Context) {
	ch, ok := chapterParam(c)
	if !ok {
		return
	}
	q, ok := h.open(c)
	if !ok {
		return
	}
	name, ok := entityParam(c, q)
	if !ok {
		return
	}
	ns := q.Neighbors(name, ch, limitParam(c, defaultNeighborLimit))
	dto.Success(c, dto.NewNeighborListResponse(name, ch, ns))
}

// Path 两实体间的最短关系路径
// @Summary 最短关系路径
// @Tags Graph
// @Produce json
// @Param corpus path string true "语料 ID"
// @Param source query string true "起点"
// @Param target query string true "终点"
// @Param max_len query int false "最大边数" default(3)
// @Success 200 {object} dto.Response[dto.PathResponse]
// @Router /v1/corpora/{corpus}/graph/path [get]
func (h *GraphHandler) Path(c *gin.Context) {
	src, dst := strings.TrimSpace(c.Query("source")), strings.TrimSpace(c.Query("target"))
	if src == "" || dst == "" {
		dto.BadRequest(c, "source and target are required")
		return
	}
	q, ok := h.open(c)
	if !ok {
		return
	}
	path := q.FindPath(src, dst, dto.QueryInt(c, "max_len", 0))
	dto.Success(c, dto.NewPathResponse(src, dst, path))
}

// MainCharacters 主要角色
// @Summary 主要角色
// @Tags Graph
// @Produce json
// @Param corpus path string true "语料 ID"
// @Param limit query int false "数量" default(10)
// @Success 200 {object} dto.Response[dto.MainCharacterListResponse]
// @Router /v1/corpora/{corpus}/graph/characters [get]
func (h *GraphHandler) MainCharacters(c *gin.Context) {
	q, ok := h.open(c)
	if !ok {
		return
	}
	dto.Success(c, dto.NewMainCharacterListResponse(q.MainCharacters(limitParam(c, defaultMainCharacters))))
}

// EntitiesInRange 章节区间内活跃的实体
// @Summary 区间实体
// @Tags Graph
// @Produce json
// @Param corpus path string true "语料 ID"
// @Param from query int true "起始章节"
// @Param to query int true "结束章节"
// @Success 200 {object} dto.Response[dto.EntityRangeResponse]
// @Router /v1/corpora/{corpus}/graph/entities [get]
func (h *GraphHandler) EntitiesInRange(c *gin.Context) {
	from, okFrom := dto.BindOptionalChapter(c, "from")
	to, okTo := dto.BindOptionalChapter(c, "to")
	if !okFrom || !okTo || from == nil || to == nil {
		dto.BadRequest(c, "from and to must be positive integers")
		return
	}
	if *from > *to {
		dto.BadRequest(c, "from must not exceed to")
		return
	}
	q, ok := h.open(c)
	if !ok {
		return
	}
	dto.Success(c, dto.NewEntityRangeResponse(*from, *to, q.EntitiesInRange(*from, *to)))
}

// ChapterImportance 章节重要度
// @Summary 章节重要度
// @Tags Graph
// @Produce json
// @Param corpus path string true "语料 ID"
// @Param chapter path int true "章节号"
// @Success 200 {object} dto.Response[dto.ChapterImportanceResponse]
// @Router /v1/corpora/{corpus}/graph/chapters/{chapter}/importance [get]
func (h *GraphHandler) ChapterImportance(c *gin.Context) {
	ch, err := strconv.Atoi(c.Param("chapter"))
	if err != nil || ch < 1 {
		dto.BadRequest(c, "chapter must be a positive integer")
		return
	}
	q, ok := h.open(c)
	if !ok {
		return
	}
	resp := dto.ChapterImportanceResponse{Chapter: ch}
	resp.Importance, resp.Found = q.ChapterImportance(ch)
	dto.Success(c, resp)
}

// Delete 删除语料的图谱快照
// @Summary 删除图谱
// @Tags Graph
// @Param corpus path string true "语料 ID"
// @Success 204
// @Router /v1/corpora/{corpus}/graph [delete]
func (h *GraphHandler) Delete(c *gin.Context) {
	corpusID := dto.BindCorpusID(c)
	ctx := logger.WithCorpus(c.Request.Context(), corpusID)
	if err := h.graphs.Delete(ctx, corpusID); err != nil {
		respondError(c, err, "failed to delete graph snapshot")
		return
	}
	logger.Info(ctx, "graph snapshot deleted")
	dto.NoContent(c)
}

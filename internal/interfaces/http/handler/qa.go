package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"novel-rag-engine/internal/application/qa"
	"novel-rag-engine/internal/application/retrieval"
	"novel-rag-engine/internal/interfaces/http/dto"
	"novel-rag-engine/pkg/logger"
)

// Asker 问答能力
type Asker interface {
	Ask(ctx context.Context, in qa.AskInput) (*qa.AskOutput, error)
}

// QAHandler 问答与检索调试处理器
type QAHandler struct {
	asker    Asker
	searcher qa.Searcher
}

// NewQAHandler searcher 为空时检索调试端点返回 404
func NewQAHandler(asker Asker, searcher qa.Searcher) *QAHandler {
	return &QAHandler{asker: asker, searcher: searcher}
}

// Ask 针对语料提问
// @Summary 小说问答
// @Description 检索、重排、草拟答案并自校验
// @Tags QA
// @Accept json
// @Produce json
// @Param corpus path string true "语料 ID"
// @Param body body dto.AskRequest true "问题"
// @Success 200 {object} dto.Response[dto.AskResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /v1/corpora/{corpus}/ask [post]
func (h *QAHandler) Ask(c *gin.Context) {
	var req dto.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	corpusID := dto.BindCorpusID(c)
	ctx := logger.WithCorpus(c.Request.Context(), corpusID)

	out, err := h.asker.Ask(ctx, qa.AskInput{
		CorpusID:      corpusID,
		Question:      req.Question,
		TotalChapters: req.TotalChapters,
		SkipVerify:    req.SkipVerify,
	})
	if err != nil {
		respondError(c, err, "failed to answer question")
		return
	}
	dto.Success(c, dto.ToAskResponse(out, req.Debug))
}

// Search 检索调试
// @Summary 混合检索调试
// @Description 返回融合后的候选片段与各路径耗时
// @Tags QA
// @Accept json
// @Produce json
// @Param corpus path string true "语料 ID"
// @Param body body dto.SearchRequest true "检索条件"
// @Success 200 {object} dto.Response[dto.SearchResponse]
// @Router /v1/corpora/{corpus}/search [post]
func (h *QAHandler) Search(c *gin.Context) {
	if h.searcher == nil {
		dto.NotFound(c, "search endpoint disabled")
		return
	}
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if req.ChapterFrom > 0 && req.ChapterTo > 0 && req.ChapterFrom > req.ChapterTo {
		dto.BadRequest(c, "chapter_from must not exceed chapter_to")
		return
	}

	corpusID := dto.BindCorpusID(c)
	ctx := logger.WithCorpus(c.Request.Context(), corpusID)

	out, err := h.searcher.Search(ctx, retrieval.SearchInput{
		CorpusID:     corpusID,
		Query:        req.Query,
		TopK:         req.TopK,
		ChapterFrom:  req.ChapterFrom,
		ChapterTo:    req.ChapterTo,
		DialogueOnly: req.DialogueOnly,
	})
	if err != nil {
		respondError(c, err, "failed to search corpus")
		return
	}
	dto.Success(c, dto.ToSearchResponse(out))
}

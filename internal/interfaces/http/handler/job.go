package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"novel-rag-engine/internal/infrastructure/messaging"
	"novel-rag-engine/internal/interfaces/http/dto"
	apperrors "novel-rag-engine/pkg/errors"
	"novel-rag-engine/pkg/logger"
)

// JobPublisher 投递图谱构建任务
type JobPublisher interface {
	PublishGraphBuild(ctx context.Context, job *messaging.GraphBuildJob) (string, error)
}

// JobStore 任务状态读写
type JobStore interface {
	Set(ctx context.Context, jobID, corpusID string, state messaging.JobState, detail string) error
	Get(ctx context.Context, jobID string) (*messaging.JobStatus, error)
}

// JobHandler 异步图谱重建处理器
type JobHandler struct {
	publisher JobPublisher
	jobs      JobStore
}

// NewJobHandler 创建任务处理器
func NewJobHandler(publisher JobPublisher, jobs JobStore) *JobHandler {
	return &JobHandler{publisher: publisher, jobs: jobs}
}

// Rebuild 投递图谱重建任务
// @Summary 重建图谱
// @Description 异步重建语料的时序知识图谱，返回任务 ID
// @Tags Graph
// @Accept json
// @Produce json
// @Param corpus path string true "语料 ID"
// @Param body body dto.RebuildRequest false "语料文件与别名"
// @Success 202 {object} dto.Response[dto.JobResponse]
// @Router /v1/corpora/{corpus}/graph/rebuild [post]
func (h *JobHandler) Rebuild(c *gin.Context) {
	var req dto.RebuildRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			dto.BadRequest(c, "invalid request body: "+err.Error())
			return
		}
	}

	corpusID := dto.BindCorpusID(c)
	ctx := logger.WithCorpus(c.Request.Context(), corpusID)

	jobID, err := h.publisher.PublishGraphBuild(ctx, &messaging.GraphBuildJob{
		CorpusID:   corpusID,
		CorpusPath: req.CorpusPath,
		Aliases:    req.Aliases,
		RequestID:  c.GetString("request_id"),
	})
	if err != nil {
		respondError(c, err, "failed to enqueue graph build")
		return
	}

	// 工作进程可能已先一步写入 running，这里只在无记录时补 queued
	if _, err := h.jobs.Get(ctx, jobID); errors.Is(err, messaging.ErrJobNotFound) {
		if err := h.jobs.Set(ctx, jobID, corpusID, messaging.JobQueued, ""); err != nil {
			logger.Warn(ctx, "failed to record queued job", "job_id", jobID, "error", err.Error())
		}
	}

	logger.Info(ctx, "graph build enqueued", "job_id", jobID)
	dto.Accepted(c, &dto.JobResponse{JobID: jobID, CorpusID: corpusID, State: messaging.JobQueued})
}

// GetJob 查询任务状态
// @Summary 任务状态
// @Tags Jobs
// @Produce json
// @Param jid path string true "任务 ID"
// @Success 200 {object} dto.Response[dto.JobResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/jobs/{jid} [get]
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := dto.BindJobID(c)
	status, err := h.jobs.Get(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, messaging.ErrJobNotFound) {
			respondError(c, apperrors.ErrNotFound.WithDetail("job "+jobID), "job not found")
			return
		}
		respondError(c, err, "failed to get job")
		return
	}
	dto.Success(c, dto.ToJobResponse(status))
}

package dto

import (
	"time"

	"novel-rag-engine/internal/infrastructure/messaging"
)

// RebuildRequest 图谱重建请求。CorpusPath 为空时由工作进程从向量库中的片段回放章节。
type RebuildRequest struct {
	CorpusPath string            `json:"corpus_path"`
	Aliases    map[string]string `json:"aliases"`
}

// JobResponse 任务状态
type JobResponse struct {
	JobID     string             `json:"job_id"`
	CorpusID  string             `json:"corpus_id"`
	State     messaging.JobState `json:"state"`
	Detail    string             `json:"detail,omitempty"`
	UpdatedAt *time.Time         `json:"updated_at,omitempty"`
}

// ToJobResponse 转换任务状态
func ToJobResponse(s *messaging.JobStatus) *JobResponse {
	resp := &JobResponse{
		JobID:    s.JobID,
		CorpusID: s.CorpusID,
		State:    s.State,
		Detail:   s.Detail,
	}
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		resp.UpdatedAt = &t
	}
	return resp
}

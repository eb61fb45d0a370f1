package dto

import (
	"novel-rag-engine/internal/application/qa"
	"novel-rag-engine/internal/application/retrieval"
	"novel-rag-engine/internal/application/verification"
	"novel-rag-engine/internal/domain/entity"
	"novel-rag-engine/internal/domain/service"
)

// AskRequest 问答请求
type AskRequest struct {
	Question      string `json:"question" binding:"required"`
	TotalChapters int    `json:"total_chapters" binding:"omitempty,min=1"`
	SkipVerify    bool   `json:"skip_verify"`
	// Debug 为 true 时返回重排后的候选片段
	Debug bool `json:"debug"`
}

// AskResponse 问答响应
type AskResponse struct {
	Answer       string                 `json:"answer"`
	Draft        string                 `json:"draft,omitempty"`
	Confidence   entity.ConfidenceLevel `json:"confidence"`
	Breakdown    qa.ConfidenceBreakdown `json:"breakdown"`
	QueryType    entity.QueryType       `json:"query_type"`
	Entities     []string               `json:"entities,omitempty"`
	Citations    []qa.Citation          `json:"citations"`
	Verification *verification.Result   `json:"verification,omitempty"`
	Candidates   []entity.Candidate     `json:"candidates,omitempty"`
	Usage        service.Usage          `json:"usage"`
	Degraded     []string               `json:"degraded,omitempty"`
	DurationMs   int64                  `json:"duration_ms"`
}

// ToAskResponse 转换问答结果；draft 与最终答案相同时省略
func ToAskResponse(out *qa.AskOutput, debug bool) *AskResponse {
	resp := &AskResponse{
		Answer:       out.Answer,
		Confidence:   out.Confidence,
		Breakdown:    out.Breakdown,
		QueryType:    out.QueryType,
		Entities:     out.Entities,
		Citations:    out.Citations,
		Verification: out.Verification,
		Usage:        out.Usage,
		Degraded:     out.Degraded,
		DurationMs:   out.Duration.Milliseconds(),
	}
	if out.Draft != out.Answer {
		resp.Draft = out.Draft
	}
	if resp.Citations == nil {
		resp.Citations = []qa.Citation{}
	}
	if debug {
		resp.Candidates = out.Candidates
	}
	return resp
}

// SearchRequest 检索调试请求
type SearchRequest struct {
	Query        string `json:"query" binding:"required"`
	TopK         int    `json:"top_k" binding:"omitempty,min=1,max=100"`
	ChapterFrom  int    `json:"chapter_from" binding:"omitempty,min=1"`
	ChapterTo    int    `json:"chapter_to" binding:"omitempty,min=1"`
	DialogueOnly bool   `json:"dialogue_only"`
}

// SearchResponse 检索调试响应
type SearchResponse struct {
	Candidates     []entity.Candidate  `json:"candidates"`
	FusedScores    map[string]float64  `json:"fused_scores,omitempty"`
	DisabledReason string              `json:"disabled_reason,omitempty"`
	Debug          retrieval.DebugInfo `json:"debug"`
}

// ToSearchResponse 转换检索结果
func ToSearchResponse(out *retrieval.SearchOutput) *SearchResponse {
	cands := out.Candidates
	if cands == nil {
		cands = []entity.Candidate{}
	}
	return &SearchResponse{
		Candidates:     cands,
		FusedScores:    out.FusedScores,
		DisabledReason: out.DisabledReason,
		Debug:          out.Debug,
	}
}

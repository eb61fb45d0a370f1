// Package service 定义领域层依赖的外部能力接口（port）
package service

import (
	"context"
	"time"
)

// MessageRole 消息角色
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message 对话消息
type Message struct {
	Role    MessageRole
	Content string
}

// CompletionOptions 单次调用参数，零值表示使用供应商默认值
type CompletionOptions struct {
	Model       string
	Temperature *float32
	MaxTokens   int

	// JSONSchema 非空时优先以 response_format=json_schema 约束输出，
	// 供应商不支持时由实现降级为纯 Prompt 约束
	JSONSchemaName string
	JSONSchema     map[string]any
}

// Usage token 用量
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion 生成结果
type Completion struct {
	Text  string
	Usage Usage
}

// ChatCompleter 生成式模型。实现需将供应商错误映射为
// CodeProviderTransient / CodeProviderRateLimited 以便重试。
type ChatCompleter interface {
	Complete(ctx context.Context, messages []Message, opts CompletionOptions) (*Completion, error)
}

// BatchRequest 批量推理中的单条请求
type BatchRequest struct {
	CustomID  string
	Messages  []Message
	MaxTokens int
}

// BatchResult 批量推理中的单条结果，Err 非空表示该条失败
type BatchResult struct {
	Text string
	Err  string
}

// BatchSubmitter 离线批量推理接口
type BatchSubmitter interface {
	// SubmitAndWait 提交整批请求并按 pollInterval 轮询直至终态，结果按 CustomID 索引
	SubmitAndWait(ctx context.Context, reqs []BatchRequest, pollInterval time.Duration) (map[string]BatchResult, error)
}

// TokenCounter 估算文本 token 数
type TokenCounter interface {
	Count(text string) int
}

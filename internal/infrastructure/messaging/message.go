// Package messaging 基于 Redis Stream 的图谱构建任务队列
package messaging

import (
	"encoding/json"
	"time"
)

// Message 消息结构
type Message struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	CorpusID  string            `json:"corpus_id"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
}

// 消息类型
const (
	TypeGraphBuild = "graph_build"
)

// NewMessage 创建新消息
func NewMessage(id, msgType, corpusID string, payload any) (*Message, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Message{
		ID:        id,
		Type:      msgType,
		CorpusID:  corpusID,
		Payload:   payloadBytes,
		Metadata:  make(map[string]string),
		CreatedAt: time.Now(),
	}, nil
}

// SetMetadata 设置元数据
func (m *Message) SetMetadata(key, value string) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]string)
	}
	m.Metadata[key] = value
}

// GetMetadata 获取元数据
func (m *Message) GetMetadata(key string) string {
	if m.Metadata == nil {
		return ""
	}
	return m.Metadata[key]
}

// UnmarshalPayload 解析消息载荷
func (m *Message) UnmarshalPayload(v any) error {
	return json.Unmarshal(m.Payload, v)
}

// Stream 流名称
type Stream string

// StreamGraphBuild 默认的图谱构建任务流
const StreamGraphBuild Stream = "stream:graph:build"

// DLQStream 对应的死信队列流名称
func (s Stream) DLQStream() string {
	return "dlq:" + string(s)
}

// ConsumerGroup 消费者组名称
type ConsumerGroup string

// GroupName 以配置的前缀拼出消费者组名
func GroupName(prefix, name string) ConsumerGroup {
	if prefix == "" {
		return ConsumerGroup(name)
	}
	return ConsumerGroup(prefix + "-" + name)
}

// BackoffConfig 退避配置
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoffConfig 默认退避配置
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    time.Second,
		Max:        time.Minute,
		Multiplier: 2,
	}
}

// CalculateBackoff 第 retryCount 次重试前的等待时长
func (c BackoffConfig) CalculateBackoff(retryCount int) time.Duration {
	backoff := c.Initial
	for i := 0; i < retryCount; i++ {
		backoff = time.Duration(float64(backoff) * c.Multiplier)
		if backoff > c.Max {
			backoff = c.Max
			break
		}
	}
	return backoff
}

// GraphBuildJob 图谱重建任务。CorpusPath 为空时由 worker 从向量库回读片段还原章节。
type GraphBuildJob struct {
	JobID      string            `json:"job_id"`
	CorpusID   string            `json:"corpus_id"`
	CorpusPath string            `json:"corpus_path,omitempty"`
	Aliases    map[string]string `json:"aliases,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
}

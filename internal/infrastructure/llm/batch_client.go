package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	goopenai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"novel-rag-engine/internal/config"
	"novel-rag-engine/internal/domain/service"
	apperrors "novel-rag-engine/pkg/errors"
	"novel-rag-engine/pkg/logger"
)

const (
	batchCompletionWindow = "24h"

	batchStatusCompleted = "completed"
	batchStatusFailed    = "failed"
	batchStatusExpired   = "expired"
	batchStatusCancelled = "cancelled"
)

var batchTracer = otel.Tracer("llm.batch")

// BatchClient 基于 OpenAI Batch API 的离线批量推理
type BatchClient struct {
	client      *goopenai.Client
	model       string
	temperature float32
}

var _ service.BatchSubmitter = (*BatchClient)(nil)

// NewBatchClient 使用供应商配置创建批量推理客户端
func NewBatchClient(cfg config.ProviderConfig) *BatchClient {
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &BatchClient{
		client:      goopenai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
	}
}

// batchLine 请求文件中的一行
type batchLine struct {
	CustomID string                         `json:"custom_id"`
	Method   string                         `json:"method"`
	URL      string                         `json:"url"`
	Body     goopenai.ChatCompletionRequest `json:"body"`
}

// batchOutputLine 结果文件或错误文件中的一行
type batchOutputLine struct {
	CustomID string `json:"custom_id"`
	Response *struct {
		StatusCode int                             `json:"status_code"`
		Body       goopenai.ChatCompletionResponse `json:"body"`
	} `json:"response"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SubmitAndWait 上传请求文件、创建批任务并轮询至终态
func (b *BatchClient) SubmitAndWait(ctx context.Context, reqs []service.BatchRequest, pollInterval time.Duration) (map[string]service.BatchResult, error) {
	ctx, span := batchTracer.Start(ctx, "llm.batch.SubmitAndWait",
		trace.WithAttributes(attribute.Int("batch.requests", len(reqs))))
	defer span.End()

	if len(reqs) == 0 {
		return map[string]service.BatchResult{}, nil
	}

	payload, err := b.encodeRequests(reqs)
	if err != nil {
		return nil, err
	}

	file, err := b.client.CreateFileBytes(ctx, goopenai.FileBytesRequest{
		Name:    fmt.Sprintf("relation-batch-%s.jsonl", uuid.NewString()),
		Bytes:   payload,
		Purpose: goopenai.PurposeBatch,
	})
	if err != nil {
		span.RecordError(err)
		return nil, mapProviderError(err)
	}

	batch, err := b.client.CreateBatch(ctx, goopenai.CreateBatchRequest{
		InputFileID:      file.ID,
		Endpoint:         goopenai.BatchEndpointChatCompletions,
		CompletionWindow: batchCompletionWindow,
	})
	if err != nil {
		span.RecordError(err)
		return nil, mapProviderError(err)
	}
	span.SetAttributes(attribute.String("batch.id", batch.ID))
	logger.Info(ctx, "batch submitted", "batch_id", batch.ID, "requests", len(reqs))

	final, err := b.wait(ctx, batch.ID, pollInterval)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	results := make(map[string]service.BatchResult, len(reqs))
	if final.OutputFileID != nil && *final.OutputFileID != "" {
		if err := b.collect(ctx, *final.OutputFileID, results); err != nil {
			span.RecordError(err)
			return nil, err
		}
	}
	if final.ErrorFileID != nil && *final.ErrorFileID != "" {
		if err := b.collect(ctx, *final.ErrorFileID, results); err != nil {
			logger.Warn(ctx, "read batch error file failed", "batch_id", batch.ID, "error", err.Error())
		}
	}
	for _, r := range reqs {
		if _, ok := results[r.CustomID]; !ok {
			results[r.CustomID] = service.BatchResult{Err: "missing from batch output"}
		}
	}
	return results, nil
}

func (b *BatchClient) encodeRequests(reqs []service.BatchRequest) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range reqs {
		line := batchLine{
			CustomID: r.CustomID,
			Method:   "POST",
			URL:      string(goopenai.BatchEndpointChatCompletions),
			Body: goopenai.ChatCompletionRequest{
				Model:       b.model,
				Messages:    toOpenAIMessages(r.Messages),
				MaxTokens:   r.MaxTokens,
				Temperature: b.temperature,
			},
		}
		if err := enc.Encode(line); err != nil {
			return nil, fmt.Errorf("failed to encode batch line %s: %w", r.CustomID, err)
		}
	}
	return buf.Bytes(), nil
}

// wait 轮询批任务，直到完成、失败、过期或取消
func (b *BatchClient) wait(ctx context.Context, batchID string, pollInterval time.Duration) (goopenai.BatchResponse, error) {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		resp, err := b.client.RetrieveBatch(ctx, batchID)
		if err != nil {
			mapped := mapProviderError(err)
			if !apperrors.IsTransient(mapped) {
				return resp, mapped
			}
			logger.Warn(ctx, "poll batch failed, will retry", "batch_id", batchID, "error", err.Error())
		} else {
			switch resp.Status {
			case batchStatusCompleted:
				return resp, nil
			case batchStatusFailed, batchStatusExpired, batchStatusCancelled:
				return resp, apperrors.ErrProviderError.WithDetail(fmt.Sprintf("batch %s ended with status %s", batchID, resp.Status))
			}
		}

		select {
		case <-ctx.Done():
			return resp, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (b *BatchClient) collect(ctx context.Context, fileID string, into map[string]service.BatchResult) error {
	content, err := b.client.GetFileContent(ctx, fileID)
	if err != nil {
		return mapProviderError(err)
	}
	defer content.Close()
	return parseBatchOutput(content, into)
}

// parseBatchOutput 逐行解析结果文件；已有成功结果的条目不会被错误行覆盖
func parseBatchOutput(r io.Reader, into map[string]service.BatchResult) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for sc.Scan() {
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var line batchOutputLine
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			return apperrors.ErrMalformedOutput.WithError(err)
		}
		if line.CustomID == "" {
			continue
		}
		if prev, ok := into[line.CustomID]; ok && prev.Err == "" {
			continue
		}
		into[line.CustomID] = lineResult(line)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("failed to read batch output: %w", err)
	}
	return nil
}

func lineResult(line batchOutputLine) service.BatchResult {
	switch {
	case line.Error != nil:
		return service.BatchResult{Err: fmt.Sprintf("%s: %s", line.Error.Code, line.Error.Message)}
	case line.Response == nil:
		return service.BatchResult{Err: "empty response"}
	case line.Response.StatusCode != 200:
		return service.BatchResult{Err: fmt.Sprintf("status code %d", line.Response.StatusCode)}
	case len(line.Response.Body.Choices) == 0:
		return service.BatchResult{Err: "no choices"}
	}
	return service.BatchResult{Text: line.Response.Body.Choices[0].Message.Content}
}

func toOpenAIMessages(messages []service.Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := goopenai.ChatMessageRoleUser
		switch m.Role {
		case service.RoleSystem:
			role = goopenai.ChatMessageRoleSystem
		case service.RoleAssistant:
			role = goopenai.ChatMessageRoleAssistant
		}
		out = append(out, goopenai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

// Package embedding 提供基于 Eino 的文本向量化实现
package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"novel-rag-engine/internal/config"
	"novel-rag-engine/internal/domain/service"
	apperrors "novel-rag-engine/pkg/errors"
	"novel-rag-engine/pkg/logger"
)

var tracer = otel.Tracer("embedding")

// Embedder 将 Eino Embedder 适配为 service.Embedder
type Embedder struct {
	inner     embedding.Embedder
	batchSize int
}

var _ service.Embedder = (*Embedder)(nil)

// NewEinoEmbedder 创建基于 Eino OpenAI 兼容接口的 Embedder
func NewEinoEmbedder(ctx context.Context, cfg *config.EmbeddingConfig) (*Embedder, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("embedding base_url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ec := &openai.EmbeddingConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: timeout,
	}
	if cfg.Dimension > 0 {
		dim := cfg.Dimension
		ec.Dimensions = &dim
	}

	inner, err := openai.NewEmbedder(ctx, ec)
	if err != nil {
		return nil, fmt.Errorf("failed to create eino embedder: %w", err)
	}
	return NewEmbedder(inner, cfg.BatchSize), nil
}

// NewEmbedder 包装任意 Eino Embedder
func NewEmbedder(inner embedding.Embedder, batchSize int) *Embedder {
	if batchSize <= 0 {
		batchSize = 32
	}
	return &Embedder{inner: inner, batchSize: batchSize}
}

// Embed 单条向量化
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedMany 按批调用；整批失败时逐条重试以定位失败项
func (e *Embedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, []error) {
	ctx, span := tracer.Start(ctx, "embedding.EmbedMany",
		trace.WithAttributes(attribute.Int("count", len(texts))))
	defer span.End()

	out := make([][]float32, len(texts))
	errs := make([]error, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		vecs, err := e.embed(ctx, texts[start:end])
		if err == nil {
			copy(out[start:end], vecs)
			continue
		}
		if ctx.Err() != nil {
			for i := start; i < len(texts); i++ {
				errs[i] = ctx.Err()
			}
			return out, errs
		}

		logger.Warn(ctx, "embedding batch failed, retrying items one by one",
			"batch_start", start, "batch_size", end-start, "error", err.Error())
		for i := start; i < end; i++ {
			out[i], errs[i] = e.Embed(ctx, texts[i])
		}
	}
	return out, errs
}

func (e *Embedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	raw, err := e.inner.EmbedStrings(ctx, texts)
	if err != nil {
		return nil, apperrors.ErrProviderTransient.WithError(err)
	}
	if len(raw) != len(texts) {
		return nil, apperrors.ErrMalformedOutput.WithDetail(
			fmt.Sprintf("embedding count mismatch: got %d, want %d", len(raw), len(texts)))
	}
	out := make([][]float32, len(raw))
	for i, v := range raw {
		if len(v) == 0 {
			return nil, apperrors.ErrMalformedOutput.WithDetail("empty embedding")
		}
		f := make([]float32, len(v))
		for j, x := range v {
			f[j] = float32(x)
		}
		out[i] = f
	}
	return out, nil
}

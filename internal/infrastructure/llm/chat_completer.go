package llm

import (
	"context"
	"strings"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"novel-rag-engine/internal/domain/service"
	einoobs "novel-rag-engine/internal/observability/eino"
	wfnode "novel-rag-engine/internal/workflow/node"
	apperrors "novel-rag-engine/pkg/errors"
	"novel-rag-engine/pkg/logger"
)

// ChatCompleter 以 Eino ChatModel 实现 service.ChatCompleter
type ChatCompleter struct {
	factory  ChatModelFactory
	provider string
}

var _ service.ChatCompleter = (*ChatCompleter)(nil)

// NewChatCompleter provider 为空时使用工厂的默认供应商
func NewChatCompleter(factory ChatModelFactory, provider string) *ChatCompleter {
	return &ChatCompleter{factory: factory, provider: provider}
}

// Complete 单次生成。设置了 JSONSchema 时先以 response_format 约束，
// 供应商拒绝该参数则去掉约束重试一次。
func (c *ChatCompleter) Complete(ctx context.Context, messages []service.Message, opts service.CompletionOptions) (*service.Completion, error) {
	cm, err := c.factory.Get(ctx, c.provider)
	if err != nil {
		return nil, apperrors.ErrProviderError.WithError(err)
	}

	ctx = service.WithProvider(ctx, c.providerLabel())
	msgs := toSchemaMessages(messages)

	withSchema := len(opts.JSONSchema) > 0
	out, err := c.generate(ctx, cm, msgs, buildModelOptions(opts, withSchema))
	if err != nil && withSchema && wfnode.IsResponseFormatUnsupportedError(err) {
		logger.Warn(ctx, "response_format rejected by provider, retrying without schema",
			"schema", opts.JSONSchemaName,
			"error", err.Error(),
		)
		out, err = c.generate(ctx, cm, msgs, buildModelOptions(opts, false))
	}
	if err != nil {
		return nil, mapProviderError(err)
	}
	if out == nil {
		return nil, apperrors.ErrMalformedOutput.WithDetail("nil message from provider")
	}

	return &service.Completion{Text: out.Content, Usage: usageOf(out)}, nil
}

func (c *ChatCompleter) generate(ctx context.Context, cm model.BaseChatModel, msgs []*schema.Message, opts []model.Option) (*schema.Message, error) {
	ctx = einoobs.WithChatModelRun(ctx, service.WorkflowFromContext(ctx), "OpenAI")
	return cm.Generate(ctx, msgs, opts...)
}

func (c *ChatCompleter) providerLabel() string {
	if c.provider != "" {
		return c.provider
	}
	if f, ok := c.factory.(*EinoFactory); ok {
		return f.resolve("")
	}
	return ""
}

func buildModelOptions(opts service.CompletionOptions, withSchema bool) []model.Option {
	out := make([]model.Option, 0, 4)
	if opts.Temperature != nil {
		out = append(out, model.WithTemperature(*opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		out = append(out, model.WithMaxTokens(opts.MaxTokens))
	}
	if m := strings.TrimSpace(opts.Model); m != "" {
		out = append(out, model.WithModel(m))
	}
	if withSchema {
		out = append(out, openaiopts.WithExtraFields(map[string]any{
			"response_format": map[string]any{
				"type": "json_schema",
				"json_schema": map[string]any{
					"name":   schemaName(opts.JSONSchemaName),
					"strict": false,
					"schema": opts.JSONSchema,
				},
			},
		}))
	}
	return out
}

func schemaName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "response"
	}
	return name
}

func toSchemaMessages(messages []service.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case service.RoleSystem:
			out = append(out, schema.SystemMessage(m.Content))
		case service.RoleAssistant:
			out = append(out, schema.AssistantMessage(m.Content, nil))
		default:
			out = append(out, schema.UserMessage(m.Content))
		}
	}
	return out
}

func usageOf(msg *schema.Message) service.Usage {
	if msg.ResponseMeta == nil || msg.ResponseMeta.Usage == nil {
		return service.Usage{}
	}
	u := msg.ResponseMeta.Usage
	return service.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}

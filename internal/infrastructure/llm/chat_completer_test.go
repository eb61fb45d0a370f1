package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-rag-engine/internal/domain/service"
	apperrors "novel-rag-engine/pkg/errors"
)

type fakeChatModel struct {
	optCounts []int
	inputs    [][]*schema.Message
	rejectRF  bool
	err       error
	reply     *schema.Message
}

func (m *fakeChatModel) Generate(_ context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.optCounts = append(m.optCounts, len(opts))
	m.inputs = append(m.inputs, input)
	if m.rejectRF && len(m.optCounts) == 1 {
		return nil, errors.New("error, status code: 400, message: Unknown parameter: 'response_format'")
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.reply, nil
}

func (m *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

type fakeFactory struct {
	cm  model.BaseChatModel
	err error
}

func (f *fakeFactory) Get(context.Context, string) (model.BaseChatModel, error) {
	return f.cm, f.err
}

func replyWithUsage(text string) *schema.Message {
	msg := schema.AssistantMessage(text, nil)
	msg.ResponseMeta = &schema.ResponseMeta{Usage: &schema.TokenUsage{PromptTokens: 30, CompletionTokens: 8, TotalTokens: 38}}
	return msg
}

func TestCompleteMapsMessagesAndUsage(t *testing.T) {
	cm := &fakeChatModel{reply: replyWithUsage("萧炎是药老的弟子。")}
	c := NewChatCompleter(&fakeFactory{cm: cm}, "deepseek")

	temp := float32(0.3)
	out, err := c.Complete(context.Background(), []service.Message{
		{Role: service.RoleSystem, Content: "你是小说助手"},
		{Role: service.RoleUser, Content: "萧炎的老师是谁？"},
	}, service.CompletionOptions{Temperature: &temp, MaxTokens: 512})
	require.NoError(t, err)

	assert.Equal(t, "萧炎是药老的弟子。", out.Text)
	assert.Equal(t, service.Usage{PromptTokens: 30, CompletionTokens: 8, TotalTokens: 38}, out.Usage)
	require.Len(t, cm.inputs, 1)
	assert.Equal(t, schema.System, cm.inputs[0][0].Role)
	assert.Equal(t, schema.User, cm.inputs[0][1].Role)
	assert.Equal(t, []int{2}, cm.optCounts)
}

func TestCompleteFallsBackWithoutSchema(t *testing.T) {
	cm := &fakeChatModel{rejectRF: true, reply: schema.AssistantMessage(`{"relation_type":"师徒"}`, nil)}
	c := NewChatCompleter(&fakeFactory{cm: cm}, "")

	out, err := c.Complete(context.Background(), []service.Message{{Role: service.RoleUser, Content: "q"}}, service.CompletionOptions{
		MaxTokens:      200,
		JSONSchemaName: "relation_classification",
		JSONSchema:     map[string]any{"type": "object"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"relation_type":"师徒"}`, out.Text)
	assert.Equal(t, []int{2, 1}, cm.optCounts)
	assert.Zero(t, out.Usage)
}

func TestCompleteMapsProviderErrors(t *testing.T) {
	cm := &fakeChatModel{err: errors.New("error, status code: 429, message: rate limit")}
	c := NewChatCompleter(&fakeFactory{cm: cm}, "openai")

	_, err := c.Complete(context.Background(), []service.Message{{Role: service.RoleUser, Content: "q"}}, service.CompletionOptions{})
	require.Error(t, err)
	assert.True(t, apperrors.IsRateLimited(err))

	_, err = NewChatCompleter(&fakeFactory{err: errors.New("provider x not found")}, "x").
		Complete(context.Background(), nil, service.CompletionOptions{})
	assert.Equal(t, apperrors.CodeProviderError, apperrors.CodeOf(err))
}

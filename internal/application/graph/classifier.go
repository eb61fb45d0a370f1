package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"novel-rag-engine/internal/domain/entity"
	"novel-rag-engine/internal/domain/service"
	wfnode "novel-rag-engine/internal/workflow/node"
	workflowprompt "novel-rag-engine/internal/workflow/prompt"
	"novel-rag-engine/pkg/logger"
	"novel-rag-engine/pkg/retry"
)

const (
	fallbackConfidence     = 0.5
	defaultMaxContexts     = 5
	defaultContextMaxRunes = 300
	classifyMaxTokens      = 512
	classifyTemperature    = float32(0.1)
)

var (
	relationTypeRe = regexp.MustCompile(`"relation_type"\s*:\s*"([^"]+)"`)
	confidenceRe   = regexp.MustCompile(`"confidence"\s*:\s*([0-9.]+)`)
)

// ClassifyTask 一次关系分类请求：某一对角色在某个章节窗口内的共现片段
type ClassifyTask struct {
	A        string
	B        string
	Count    int
	Chapters []int
	Contexts []string
}

// ChapterRange 形如 "第3章-第17章"
func (t ClassifyTask) ChapterRange() string {
	if len(t.Chapters) == 0 {
		return ""
	}
	lo, hi := t.Chapters[0], t.Chapters[0]
	for _, ch := range t.Chapters[1:] {
		lo = min(lo, ch)
		hi = max(hi, ch)
	}
	return fmt.Sprintf("第%d章-第%d章", lo, hi)
}

// Classification 分类结果；Fallback 表示未得到有效模型判断
type Classification struct {
	Type       entity.RelationType `json:"relation_type"`
	Confidence float64             `json:"confidence"`
	Reasoning  string              `json:"reasoning"`
	Fallback   bool                `json:"-"`
}

// FallbackClassification 兜底结果：共现 / 0.5
func FallbackClassification(reason string) Classification {
	return Classification{
		Type:       entity.RelationCooccurrence,
		Confidence: fallbackConfidence,
		Reasoning:  reason,
		Fallback:   true,
	}
}

// ClassifierOptions 分类器参数
type ClassifierOptions struct {
	Model           string
	MaxContexts     int
	ContextMaxRunes int
	Retry           retry.Policy
}

// RelationClassifier 调用生成式模型判断两个角色的关系类型
type RelationClassifier struct {
	llm     service.ChatCompleter
	prompts *workflowprompt.Registry
	opts    ClassifierOptions
}

func NewRelationClassifier(llm service.ChatCompleter, prompts *workflowprompt.Registry, opts ClassifierOptions) *RelationClassifier {
	if prompts == nil {
		prompts = workflowprompt.NewRegistry()
	}
	if opts.MaxContexts <= 0 {
		opts.MaxContexts = defaultMaxContexts
	}
	if opts.ContextMaxRunes <= 0 {
		opts.ContextMaxRunes = defaultContextMaxRunes
	}
	return &RelationClassifier{llm: llm, prompts: prompts, opts: opts}
}

// Messages 渲染分类 Prompt
func (c *RelationClassifier) Messages(ctx context.Context, task ClassifyTask) ([]service.Message, error) {
	var b strings.Builder
	for i, snippet := range task.Contexts {
		if i >= c.opts.MaxContexts {
			break
		}
		fmt.Fprintf(&b, "\n【片段%d】%s\n", i+1, wfnode.TruncateByRunes(snippet, c.opts.ContextMaxRunes))
	}

	msgs, err := c.prompts.Render(ctx, workflowprompt.PromptRelationClassifyV1, map[string]any{
		"entity_a":           task.A,
		"entity_b":           task.B,
		"cooccurrence_count": task.Count,
		"chapter_range":      task.ChapterRange(),
		"contexts":           b.String(),
	})
	if err != nil {
		return nil, err
	}
	out := make([]service.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, service.Message{Role: service.MessageRole(m.Role), Content: m.Content})
	}
	return out, nil
}

// Classify 单次分类。任何失败都降级为共现 / 0.5，不会返回错误。
func (c *RelationClassifier) Classify(ctx context.Context, task ClassifyTask) Classification {
	if c == nil || c.llm == nil {
		return FallbackClassification("classifier not configured")
	}
	msgs, err := c.Messages(ctx, task)
	if err != nil {
		logger.Error(ctx, "render relation prompt failed", err)
		return FallbackClassification("prompt render failed")
	}

	temp := classifyTemperature
	ctx = service.WithWorkflow(ctx, service.WorkflowRelationClassify)
	resp, err := retry.Do(ctx, c.opts.Retry, func(ctx context.Context) (*service.Completion, error) {
		return c.llm.Complete(ctx, msgs, service.CompletionOptions{
			Model:          c.opts.Model,
			Temperature:    &temp,
			MaxTokens:      classifyMaxTokens,
			JSONSchemaName: "relation_classification",
			JSONSchema:     classificationJSONSchema(),
		})
	})
	if err != nil {
		logger.Warn(ctx, "relation classification failed",
			"entity_a", task.A,
			"entity_b", task.B,
			"error", err.Error(),
		)
		return FallbackClassification("classification failed: " + err.Error())
	}
	return c.Parse(ctx, resp.Text)
}

type classificationPayload struct {
	RelationType string   `json:"relation_type"`
	Confidence   *float64 `json:"confidence"`
	Reasoning    string   `json:"reasoning"`
}

// Parse 解析模型输出；JSON 损坏时用正则回收 relation_type 与 confidence
func (c *RelationClassifier) Parse(ctx context.Context, text string) Classification {
	if strings.TrimSpace(text) == "" {
		return FallbackClassification("empty response")
	}

	raw := wfnode.ExtractJSONObject(text)
	var payload classificationPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		m := relationTypeRe.FindStringSubmatch(raw)
		if m == nil {
			logger.Warn(ctx, "unrecoverable classification output", "content", wfnode.TruncateByRunes(raw, 200))
			return FallbackClassification("malformed output")
		}
		payload = classificationPayload{RelationType: m[1], Reasoning: "partial output recovered"}
		if cm := confidenceRe.FindStringSubmatch(raw); cm != nil {
			if v, err := strconv.ParseFloat(cm[1], 64); err == nil {
				payload.Confidence = &v
			}
		}
	}

	if strings.TrimSpace(payload.RelationType) == "" {
		return FallbackClassification("missing relation_type")
	}
	rt, err := entity.ParseRelationType(payload.RelationType)
	if err != nil {
		logger.Warn(ctx, "unknown relation type from model", "relation_type", payload.RelationType)
		return FallbackClassification(err.Error())
	}

	conf := fallbackConfidence
	if payload.Confidence != nil {
		conf = min(max(*payload.Confidence, 0), 1)
	}
	return Classification{Type: rt, Confidence: conf, Reasoning: payload.Reasoning}
}

func classificationJSONSchema() map[string]any {
	types := make([]any, 0, len(entity.AllRelationTypes))
	for _, t := range entity.AllRelationTypes {
		types = append(types, string(t))
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"relation_type", "confidence"},
		"properties": map[string]any{
			"relation_type": map[string]any{"type": "string", "enum": types},
			"confidence":    map[string]any{"type": "number", "minimum": 0, "maximum": 1},
			"reasoning":     map[string]any{"type": "string"},
		},
	}
}

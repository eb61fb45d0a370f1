// Package nlp 对接外部命名实体识别服务
package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"novel-rag-engine/internal/config"
	"novel-rag-engine/internal/domain/service"
	"novel-rag-engine/pkg/logger"
)

const (
	// maxInputRunes NER 模型单次输入上限
	maxInputRunes  = 512
	maxEntityRunes = 10
)

var tracer = otel.Tracer("nlp")

var (
	chapterTitleRe = regexp.MustCompile(`第[零一二三四五六七八九十百千万\d]+[章回]|[Cc]hapter\s*\d+|^\d+[\.、\s]*章|卷[零一二三四五六七八九十百千万\d]+`)
	symbolsOnlyRe  = regexp.MustCompile(`^[\d\p{P}\p{S}\s]+$`)

	noiseWords = []string{
		"作者", "本书", "本章", "正文", "番外", "序章", "楔子", "引子",
		"前言", "后记", "附录", "目录", "简介", "完本", "完结",
		"PS", "VIP", "月票", "推荐票", "打赏",
	}
	quoteChars = "'\"‘’“”`´"
)

// Client HTTP NER 客户端。任何失败都降级为空集合。
type Client struct {
	endpoint string
	http     *http.Client
}

var _ service.EntityRecognizer = (*Client)(nil)

// NewClient 创建 NER 客户端
func NewClient(cfg *config.NERConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint: cfg.Endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

type nerRequest struct {
	Text  string `json:"text"`
	Tasks string `json:"tasks"`
}

type nerResponse struct {
	Entities []nerItem `json:"entities"`
}

// nerItem 兼容 ["萧炎","PER",0,2] 与 {"text":"萧炎","type":"PER"} 两种形式
type nerItem struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

func (it *nerItem) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var tuple []any
		if err := json.Unmarshal(data, &tuple); err != nil {
			return err
		}
		if len(tuple) < 2 {
			return nil
		}
		it.Text, _ = tuple[0].(string)
		it.Type, _ = tuple[1].(string)
		return nil
	}
	type plain nerItem
	return json.Unmarshal(data, (*plain)(it))
}

// ExtractEntities 识别人名、地名与组织名。长文本按窗口切分后逐段识别，
// 单段失败只丢弃该段结果。
func (c *Client) ExtractEntities(ctx context.Context, text string) service.EntitySet {
	if strings.TrimSpace(text) == "" || c.endpoint == "" {
		return service.EntitySet{}
	}

	ctx, span := tracer.Start(ctx, "nlp.ExtractEntities",
		trace.WithAttributes(attribute.Int("text.runes", utf8.RuneCountInString(text))))
	defer span.End()

	var items []nerItem
	parts := windows(text, maxInputRunes)
	for i, part := range parts {
		if ctx.Err() != nil {
			break
		}
		got, err := c.call(ctx, part)
		if err != nil {
			span.RecordError(err)
			logger.Warn(ctx, "entity recognition failed, degrading to empty set",
				"error", err.Error(),
				"window", i,
				"windows", len(parts),
			)
			continue
		}
		items = append(items, got...)
	}
	set := classify(items)
	span.SetAttributes(attribute.Int("entities.characters", len(set.Characters)))
	return set
}

func (c *Client) call(ctx context.Context, text string) ([]nerItem, error) {
	body, err := json.Marshal(nerRequest{Text: text, Tasks: "ner"})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("ner service returned %d: %s", resp.StatusCode, snippet)
	}
	var out nerResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode ner response: %w", err)
	}
	return out.Entities, nil
}

// classify 按 MSRA / OntoNotes / PKU 标签归类，清洗并去重（保持出现顺序）
func classify(items []nerItem) service.EntitySet {
	var set service.EntitySet
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		name, ok := CleanEntityName(it.Text)
		if !ok {
			continue
		}
		var bucket *[]string
		var kind string
		switch strings.ToUpper(it.Type) {
		case "PER", "PERSON", "NR":
			bucket, kind = &set.Characters, "per"
		case "LOC", "LOCATION", "GPE", "NS":
			bucket, kind = &set.Locations, "loc"
		case "ORG", "ORGANIZATION", "NT":
			bucket, kind = &set.Organizations, "org"
		default:
			continue
		}
		key := kind + "\x00" + name
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		*bucket = append(*bucket, name)
	}
	return set
}

// CleanEntityName 过滤章节标题、噪音词、过长或带引号的名字
func CleanEntityName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	if n < 2 || n > maxEntityRunes {
		return "", false
	}
	if symbolsOnlyRe.MatchString(name) || chapterTitleRe.MatchString(name) {
		return "", false
	}
	if strings.ContainsAny(name, quoteChars) {
		return "", false
	}
	for _, w := range noiseWords {
		if strings.Contains(name, w) {
			return "", false
		}
	}
	return name, true
}

// windows 按 rune 数切分，尽量在句末标点处断开
func windows(text string, size int) []string {
	rs := []rune(text)
	var out []string
	for len(rs) > 0 {
		if len(rs) <= size {
			if part := strings.TrimSpace(string(rs)); part != "" {
				out = append(out, part)
			}
			break
		}
		cut := size
		for i := size - 1; i >= size/2; i-- {
			if strings.ContainsRune("。！？\n", rs[i]) {
				cut = i + 1
				break
			}
		}
		if part := strings.TrimSpace(string(rs[:cut])); part != "" {
			out = append(out, part)
		}
		rs = rs[cut:]
	}
	return out
}

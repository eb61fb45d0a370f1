package llm

import (
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"novel-rag-engine/internal/domain/service"
)

const fallbackEncoding = "cl100k_base"

// TiktokenCounter 使用 tiktoken 计数；编码表不可用时按字符估算
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

var _ service.TokenCounter = (*TiktokenCounter)(nil)

// NewTiktokenCounter 按模型选择编码，未知模型降级到 cl100k_base
func NewTiktokenCounter(model string) (*TiktokenCounter, error) {
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, err
		}
	}
	return &TiktokenCounter{encoding: encoding}, nil
}

// Count 返回文本的 token 数
func (c *TiktokenCounter) Count(text string) int {
	if c == nil || c.encoding == nil {
		return estimateTokens(text)
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// estimateTokens 中文约一字一 token，其余约四字节一 token
func estimateTokens(text string) int {
	cjk, other := 0, 0
	for _, r := range text {
		if r >= 0x4e00 && r <= 0x9fff {
			cjk++
			continue
		}
		other += utf8.RuneLen(r)
	}
	return cjk + (other+3)/4
}

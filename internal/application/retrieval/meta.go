package retrieval

import (
	"encoding/json"
	"strings"
)

const chunkMetaPrefix = "@@meta:"

// ChunkMeta 写入向量库 text_content 头部的结构化元信息。
// 仅用于读写自家写入的片段；不存在时安全降级。
type ChunkMeta struct {
	ChapterTitle string `json:"chapter_title,omitempty"`
	Seq          int    `json:"seq"`
}

func encodeChunkText(meta ChunkMeta, text string) string {
	b, _ := json.Marshal(meta)
	var sb strings.Builder
	sb.Grow(len(chunkMetaPrefix) + len(b) + 1 + len(text))
	sb.WriteString(chunkMetaPrefix)
	sb.Write(b)
	sb.WriteByte('\n')
	sb.WriteString(text)
	return sb.String()
}

func decodeChunkText(textContent string) (ChunkMeta, string) {
	raw := strings.TrimSpace(textContent)
	if !strings.HasPrefix(raw, chunkMetaPrefix) {
		return ChunkMeta{}, raw
	}
	line, body, ok := strings.Cut(strings.TrimPrefix(raw, chunkMetaPrefix), "\n")
	if !ok {
		return ChunkMeta{}, raw
	}
	var meta ChunkMeta
	if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &meta); err != nil {
		return ChunkMeta{}, strings.TrimSpace(body)
	}
	return meta, strings.TrimSpace(body)
}

// DecodeChunkText 还原向量库中的原始文本，供适配器复用
func DecodeChunkText(textContent string) (ChunkMeta, string) {
	return decodeChunkText(textContent)
}

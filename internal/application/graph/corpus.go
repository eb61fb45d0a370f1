package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"novel-rag-engine/internal/domain/entity"
	"novel-rag-engine/internal/domain/service"
	"novel-rag-engine/pkg/logger"
)

// CorpusChapter 语料中的一章
type CorpusChapter struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Text   string `json:"text"`
}

// Corpus 离线构建使用的语料文件格式
type Corpus struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Chapters []CorpusChapter `json:"chapters"`
	// Aliases 别名到规范名的映射，如 "薰儿" -> "萧薰儿"
	Aliases map[string]string `json:"aliases,omitempty"`
}

// ReadCorpus 解析 JSON 语料并按章节号排序
func ReadCorpus(r io.Reader) (*Corpus, error) {
	var c Corpus
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("decode corpus: %w", err)
	}
	c.ID = strings.TrimSpace(c.ID)
	if c.ID == "" {
		return nil, fmt.Errorf("corpus id is required")
	}
	sort.SliceStable(c.Chapters, func(i, j int) bool { return c.Chapters[i].Number < c.Chapters[j].Number })
	return &c, nil
}

// Texts 章节正文视图
func (c *Corpus) Texts() MapChapterTexts {
	m := make(MapChapterTexts, len(c.Chapters))
	for _, ch := range c.Chapters {
		m[ch.Number] = ch.Text
	}
	return m
}

// TotalChapters 最大章节号
func (c *Corpus) TotalChapters() int {
	total := 0
	for _, ch := range c.Chapters {
		total = max(total, ch.Number)
	}
	return total
}

// ExtractEntities 逐章调用实体识别并做别名归并。识别服务失败时该章为空。
func (c *Corpus) ExtractEntities(ctx context.Context, ner service.EntityRecognizer) ([]entity.ChapterEntities, error) {
	out := make([]entity.ChapterEntities, 0, len(c.Chapters))
	for _, ch := range c.Chapters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		set := ner.ExtractEntities(ctx, ch.Text)
		if set.Empty() {
			logger.Debug(ctx, "no entities recognized", "chapter", ch.Number)
		}
		out = append(out, entity.ChapterEntities{
			Chapter:       ch.Number,
			Characters:    c.resolve(set.Characters),
			Locations:     c.resolve(set.Locations),
			Organizations: c.resolve(set.Organizations),
		})
	}
	return out, nil
}

func (c *Corpus) resolve(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if canon, ok := c.Aliases[n]; ok {
			n = canon
		}
		if n != "" {
			out = append(out, n)
		}
	}
	return uniqueNames(out)
}

// CorpusFromChunks 由已入库片段还原章节正文，相邻片段的重叠部分只保留一份
func CorpusFromChunks(corpusID string, chunks []entity.Chunk, aliases map[string]string) *Corpus {
	sorted := append([]entity.Chunk(nil), chunks...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Chapter != sorted[j].Chapter {
			return sorted[i].Chapter < sorted[j].Chapter
		}
		return sorted[i].Seq < sorted[j].Seq
	})

	c := &Corpus{ID: corpusID, Aliases: aliases}
	var b strings.Builder
	flush := func() {
		if len(c.Chapters) > 0 {
			c.Chapters[len(c.Chapters)-1].Text = b.String()
		}
		b.Reset()
	}
	prev := ""
	for _, ch := range sorted {
		if len(c.Chapters) == 0 || c.Chapters[len(c.Chapters)-1].Number != ch.Chapter {
			flush()
			c.Chapters = append(c.Chapters, CorpusChapter{Number: ch.Chapter, Title: ch.ChapterTitle})
			prev = ""
		}
		b.WriteString(ch.Content[overlapLen(prev, ch.Content):])
		prev = ch.Content
	}
	flush()
	return c
}

// overlapLen prev 的后缀与 next 的前缀重合的字节数
func overlapLen(prev, next string) int {
	n := min(len(prev), len(next))
	for k := n; k > 0; k-- {
		if strings.HasSuffix(prev, next[:k]) {
			return k
		}
	}
	return 0
}

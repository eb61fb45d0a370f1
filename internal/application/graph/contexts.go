package graph

import (
	"context"
	"fmt"
	"strings"
)

// ContextProvider 为一对角色提供若干共现片段
type ContextProvider interface {
	Contexts(ctx context.Context, a, b string, chapters []int) ([]string, error)
}

// ChapterTexts 章节正文来源
type ChapterTexts interface {
	ChapterText(ctx context.Context, chapter int) (string, bool, error)
}

// MapChapterTexts 内存中的章节正文
type MapChapterTexts map[int]string

func (m MapChapterTexts) ChapterText(_ context.Context, chapter int) (string, bool, error) {
	s, ok := m[chapter]
	return s, ok, nil
}

const (
	snippetPadding   = 150
	snippetMaxRunes  = 400
	nearbyMaxGap     = 800
	nearbyPadBefore  = 100
	nearbyPadAfter   = 200
	aliasPrefixRunes = 2
)

// TextContextProvider 从章节正文中截取同时提到两个角色的段落
type TextContextProvider struct {
	texts ChapterTexts
}

func NewTextContextProvider(texts ChapterTexts) *TextContextProvider {
	return &TextContextProvider{texts: texts}
}

func (p *TextContextProvider) Contexts(ctx context.Context, a, b string, chapters []int) ([]string, error) {
	out := make([]string, 0, len(chapters))
	for _, ch := range chapters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, ok, err := p.texts.ChapterText(ctx, ch)
		if err != nil {
			return nil, fmt.Errorf("load chapter %d: %w", ch, err)
		}
		if !ok {
			continue
		}
		if snippet := ExtractSnippet(text, a, b, ch); snippet != "" {
			out = append(out, snippet)
		}
	}
	return out, nil
}

// ExtractSnippet 优先选取同时包含两个角色（或其姓氏前缀）的最后一行并前后扩展；
// 找不到时退而在 800 字符内寻找两者相邻出现的位置。
func ExtractSnippet(content, a, b string, chapter int) string {
	rs := []rune(content)
	pa := aliasPatterns(a)
	pb := aliasPatterns(b)

	best := ""
	offset := 0
	for _, line := range strings.Split(content, "\n") {
		lineRunes := []rune(line)
		if containsAny(line, pa) && containsAny(line, pb) {
			start := max(0, offset-snippetPadding)
			end := min(len(rs), offset+len(lineRunes)+snippetPadding)
			best = formatSnippet(rs[start:end], chapter)
		}
		offset += len(lineRunes) + 1
	}
	if best != "" {
		return best
	}

	ia := indexAny(rs, pa)
	ib := indexAny(rs, pb)
	if ia < 0 || ib < 0 || abs(ia-ib) >= nearbyMaxGap {
		return ""
	}
	start := max(0, min(ia, ib)-nearbyPadBefore)
	end := min(len(rs), max(ia, ib)+nearbyPadAfter)
	return formatSnippet(rs[start:end], chapter)
}

func formatSnippet(rs []rune, chapter int) string {
	s := strings.TrimSpace(string(rs))
	if r := []rune(s); len(r) > snippetMaxRunes {
		s = string(r[:snippetMaxRunes]) + "..."
	}
	return fmt.Sprintf("[第%d章] %s", chapter, s)
}

func aliasPatterns(name string) []string {
	rs := []rune(name)
	if len(rs) > aliasPrefixRunes {
		return []string{name, string(rs[:aliasPrefixRunes])}
	}
	return []string{name}
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func indexAny(rs []rune, patterns []string) int {
	s := string(rs)
	for _, p := range patterns {
		if i := strings.Index(s, p); i >= 0 {
			return len([]rune(s[:i]))
		}
	}
	return -1
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

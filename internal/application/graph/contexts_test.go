package graph

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSnippetPrefersSharedLine(t *testing.T) {
	text := "第一行只有萧炎。\n药老看着萧炎，缓缓开口。\n结尾。"
	got := ExtractSnippet(text, "萧炎", "药老", 7)
	assert.True(t, strings.HasPrefix(got, "[第7章] "))
	assert.Contains(t, got, "药老看着萧炎")
}

func TestExtractSnippetNearbyFallback(t *testing.T) {
	text := "萧炎站在山顶。\n" + strings.Repeat("风", 20) + "\n远处药老踏空而来。"
	got := ExtractSnippet(text, "萧炎", "药老", 3)
	assert.Contains(t, got, "萧炎站在山顶")
	assert.Contains(t, got, "药老踏空")

	far := "萧炎\n" + strings.Repeat("风", 900) + "\n药老"
	assert.Empty(t, ExtractSnippet(far, "萧炎", "药老", 3))
}

func TestExtractSnippetTruncates(t *testing.T) {
	line := "萧炎与药老" + strings.Repeat("谈", 600)
	got := ExtractSnippet(line, "萧炎", "药老", 1)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, len([]rune("[第1章] "))+snippetMaxRunes+3, len([]rune(got)))
}

func TestTextContextProvider(t *testing.T) {
	p := NewTextContextProvider(MapChapterTexts{
		1: "萧炎与药老对话。",
		2: "萧炎独自修炼。",
	})
	got, err := p.Contexts(context.Background(), "萧炎", "药老", []int{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"[第1章] 萧炎与药老对话。"}, got)
}

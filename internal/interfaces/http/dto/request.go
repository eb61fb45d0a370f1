package dto

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// BindCorpusID 从 URI 绑定语料 ID
func BindCorpusID(c *gin.Context) string {
	return strings.TrimSpace(c.Param("corpus"))
}

// BindJobID 从 URI 绑定任务 ID
func BindJobID(c *gin.Context) string {
	return strings.TrimSpace(c.Param("jid"))
}

// BindOptionalChapter 读取可选的章节参数；未提供时返回 nil，格式错误时 ok 为 false
func BindOptionalChapter(c *gin.Context, key string) (chapter *int, ok bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return nil, false
	}
	return &v, true
}

// QueryInt 解析整数查询参数，失败时返回默认值
func QueryInt(c *gin.Context, key string, defaultVal int) int {
	return parseIntWithDefault(c.Query(key), defaultVal)
}

// parseIntWithDefault 解析整数，失败时返回默认值
func parseIntWithDefault(s string, defaultVal int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

package llm

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strconv"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	apperrors "novel-rag-engine/pkg/errors"
)

var statusCodeRe = regexp.MustCompile(`status code: (\d{3})`)

// mapProviderError 将供应商错误归类为限流、瞬时或不可重试三类
func mapProviderError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	switch code := statusCode(err); {
	case code == 429:
		return apperrors.ErrProviderRateLimited.WithError(err)
	case code >= 500:
		return apperrors.ErrProviderTransient.WithError(err)
	case code >= 400:
		return apperrors.ErrProviderError.WithError(err)
	}

	msg := strings.ToLower(err.Error())
	var netErr net.Error
	switch {
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "too many requests"):
		return apperrors.ErrProviderRateLimited.WithError(err)
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout(),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "eof"):
		return apperrors.ErrProviderTransient.WithError(err)
	}
	return apperrors.ErrProviderError.WithError(err)
}

// statusCode 优先取 go-openai 的结构化错误，其余从错误文本中解析
func statusCode(err error) int {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	if m := statusCodeRe.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		return code
	}
	return 0
}

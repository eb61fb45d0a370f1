// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"novel-rag-engine/internal/interfaces/http/dto"
	apperrors "novel-rag-engine/pkg/errors"
	"novel-rag-engine/pkg/logger"
)

// respondError 将应用错误映射为响应；非 AppError 一律视为内部错误
func respondError(c *gin.Context, err error, message string) {
	ctx := c.Request.Context()
	if errors.Is(err, context.Canceled) {
		// 客户端已断开，写什么都收不到
		c.Abort()
		return
	}
	if apperrors.IsAppError(err) {
		appErr := apperrors.AsAppError(err)
		if appErr.HTTPStatus >= 500 {
			logger.Error(ctx, message, err)
		}
		dto.ErrorWithDetail(c, appErr.HTTPStatus, appErr.Message, &dto.ErrorDetail{
			ErrorCode: string(appErr.Code),
			Details:   appErr.Detail,
		})
		return
	}
	logger.Error(ctx, message, err)
	dto.InternalError(c, message)
}

// Package errors 提供统一的错误定义
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误 (1xxx)
	CodeSuccess            ErrorCode = "0"
	CodeUnknown            ErrorCode = "1000"
	CodeInvalidParam       ErrorCode = "1001"
	CodeNotFound           ErrorCode = "1004"
	CodeTooManyRequests    ErrorCode = "1006"
	CodeInternalError      ErrorCode = "1007"
	CodeServiceUnavailable ErrorCode = "1008"

	// 资源错误 (3xxx)
	CodeCorpusNotFound   ErrorCode = "3001"
	CodeSnapshotNotFound ErrorCode = "3002"
	CodeEntityNotFound   ErrorCode = "3003"

	// 业务错误 (4xxx)
	CodeRetrievalFailed    ErrorCode = "4001"
	CodeGraphBuildFailed   ErrorCode = "4002"
	CodeVerificationFailed ErrorCode = "4003"
	CodeGenerationFailed   ErrorCode = "4004"
	CodeMalformedOutput    ErrorCode = "4005"
	CodeCapabilityMissing  ErrorCode = "4006"
	CodeContractViolation  ErrorCode = "4007"

	// 外部服务错误 (5xxx)
	CodeDatabaseError        ErrorCode = "5001"
	CodeCacheError           ErrorCode = "5002"
	CodeVectorDBError        ErrorCode = "5003"
	CodeProviderTransient    ErrorCode = "5004"
	CodeProviderRateLimited  ErrorCode = "5005"
	CodeProviderError        ErrorCode = "5006"
	CodeEntityRecognizeError ErrorCode = "5007"
)

// AppError 应用错误
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Err        error     `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 按错误码比较，便于 errors.Is 与预定义错误匹配
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetail 添加详细信息，返回副本以免污染预定义错误
func (e *AppError) WithDetail(detail string) *AppError {
	cp := *e
	cp.Detail = detail
	return &cp
}

// WithError 添加底层错误，返回副本
func (e *AppError) WithError(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

// New 创建新的应用错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Err:        err,
	}
}

// codeToHTTPStatus 错误码转 HTTP 状态码
func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case CodeSuccess:
		return http.StatusOK
	case CodeInvalidParam, CodeContractViolation:
		return http.StatusBadRequest
	case CodeNotFound, CodeCorpusNotFound, CodeSnapshotNotFound, CodeEntityNotFound:
		return http.StatusNotFound
	case CodeTooManyRequests, CodeProviderRateLimited:
		return http.StatusTooManyRequests
	case CodeServiceUnavailable, CodeProviderTransient:
		return http.StatusServiceUnavailable
	case CodeMalformedOutput, CodeProviderError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// 预定义错误
var (
	ErrInvalidParam       = New(CodeInvalidParam, "invalid parameter")
	ErrNotFound           = New(CodeNotFound, "resource not found")
	ErrTooManyRequests    = New(CodeTooManyRequests, "too many requests")
	ErrInternalError      = New(CodeInternalError, "internal server error")
	ErrServiceUnavailable = New(CodeServiceUnavailable, "service unavailable")

	ErrCorpusNotFound   = New(CodeCorpusNotFound, "corpus not found")
	ErrSnapshotNotFound = New(CodeSnapshotNotFound, "graph snapshot not found")
	ErrEntityNotFound   = New(CodeEntityNotFound, "entity not found")

	ErrGenerationFailed  = New(CodeGenerationFailed, "answer generation failed")
	ErrMalformedOutput   = New(CodeMalformedOutput, "malformed model output")
	ErrCapabilityMissing = New(CodeCapabilityMissing, "optional capability missing")
	ErrContractViolation = New(CodeContractViolation, "contract violation")

	ErrProviderTransient   = New(CodeProviderTransient, "provider temporarily unavailable")
	ErrProviderRateLimited = New(CodeProviderRateLimited, "provider rate limited")
	ErrProviderError       = New(CodeProviderError, "provider error")
)

// IsAppError 检查是否为 AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError 将错误转换为 AppError
func AsAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeUnknown, "unknown error")
}

// CodeOf 返回错误链上第一个 AppError 的错误码
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// IsTransient 判断是否为可重试的供应商错误（含限流）
func IsTransient(err error) bool {
	switch CodeOf(err) {
	case CodeProviderTransient, CodeProviderRateLimited:
		return true
	default:
		return false
	}
}

// IsRateLimited 判断是否为限流错误
func IsRateLimited(err error) bool {
	return CodeOf(err) == CodeProviderRateLimited
}

// Package eino 将 Eino 组件回调接入 Prometheus 指标与 OpenTelemetry 追踪
package eino

import (
	"context"
	"sync"

	einocallbacks "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	cbtemplate "github.com/cloudwego/eino/utils/callbacks"
)

var initOnce sync.Once

// Init 注册 Eino 全局 callbacks（进程级一次）。
func Init() {
	initOnce.Do(func() {
		handler := cbtemplate.NewHandlerHelper().
			ChatModel(newChatModelCallbackHandler()).
			Handler()
		einocallbacks.AppendGlobalHandlers(handler)
	})
}

// WithChatModelRun 在图编排之外直接调用模型时，为 ctx 挂上全局回调
func WithChatModelRun(ctx context.Context, name, typ string) context.Context {
	return einocallbacks.InitCallbacks(ctx, &einocallbacks.RunInfo{
		Name:      name,
		Type:      typ,
		Component: components.ComponentOfChatModel,
	})
}

package graph

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"novel-rag-engine/internal/domain/service"
	"novel-rag-engine/pkg/retry"
)

// noWaitPolicy 默认重试策略，但不真正等待，只记录等待次数
func noWaitPolicy(slept *int) retry.Policy {
	return retry.DefaultPolicy().WithSleep(func(context.Context, time.Duration) error {
		*slept++
		return nil
	})
}

// fakeCompleter 根据用户消息中的关键片段返回预设回复
type fakeCompleter struct {
	mu      sync.Mutex
	replies map[string]string
	err     error
	calls   int
}

func (f *fakeCompleter) Complete(_ context.Context, msgs []service.Message, _ service.CompletionOptions) (*service.Completion, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	user := msgs[len(msgs)-1].Content
	for needle, reply := range f.replies {
		if strings.Contains(user, needle) {
			return &service.Completion{Text: reply}, nil
		}
	}
	return &service.Completion{Text: ""}, nil
}

type fakeBatch struct {
	results map[string]service.BatchResult
	err     error
	got     []service.BatchRequest
}

func (f *fakeBatch) SubmitAndWait(_ context.Context, reqs []service.BatchRequest, _ time.Duration) (map[string]service.BatchResult, error) {
	f.got = reqs
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type runeCounter struct{}

func (runeCounter) Count(text string) int { return utf8.RuneCountInString(text) }

// staticContexts 每个采样章节返回一条片段
type staticContexts struct{}

func (staticContexts) Contexts(_ context.Context, a, b string, chapters []int) ([]string, error) {
	out := make([]string, 0, len(chapters))
	for range chapters {
		out = append(out, a+"与"+b+"同行")
	}
	return out, nil
}

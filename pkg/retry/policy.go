// Package retry 提供供应商调用的指数退避重试策略
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	apperrors "novel-rag-engine/pkg/errors"
	"novel-rag-engine/pkg/logger"
)

// Policy 重试策略
type Policy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	Multiplier     float64
	MaxDelay       time.Duration
	RateLimitFloor time.Duration

	// sleep 可在测试中替换
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy 默认策略：3 次尝试，1s 起步，翻倍，上限 30s，限流至少等待 5s
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		BaseDelay:      time.Second,
		Multiplier:     2,
		MaxDelay:       30 * time.Second,
		RateLimitFloor: 5 * time.Second,
	}
}

// WithSleep 替换等待函数，测试中用于跳过真实等待
func (p Policy) WithSleep(fn func(ctx context.Context, d time.Duration) error) Policy {
	p.sleep = fn
	return p
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = d.Multiplier
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.sleep == nil {
		p.sleep = sleepCtx
	}
	return p
}

// Delays 返回各次重试前的等待时长（不含限流下限）
func (p Policy) Delays() []time.Duration {
	p = p.normalized()
	b := p.newBackOff()
	out := make([]time.Duration, 0, p.MaxAttempts-1)
	for i := 1; i < p.MaxAttempts; i++ {
		out = append(out, b.NextBackOff())
	}
	return out
}

func (p Policy) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = p.Multiplier
	b.MaxInterval = p.MaxDelay
	b.RandomizationFactor = 0
	b.Reset()
	return b
}

// Do 执行 op，对瞬时错误按策略重试；非瞬时错误立即返回
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	p = p.normalized()
	b := p.newBackOff()

	var zero T
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !apperrors.IsTransient(err) || attempt == p.MaxAttempts {
			break
		}

		delay := b.NextBackOff()
		if apperrors.IsRateLimited(err) && delay < p.RateLimitFloor {
			delay = p.RateLimitFloor
		}
		logger.Warn(ctx, "provider call failed, retrying",
			"attempt", attempt,
			"delay", delay.String(),
			"error", err.Error(),
		)
		if err := p.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"novel-rag-engine/internal/domain/service"
	"novel-rag-engine/pkg/logger"
	"novel-rag-engine/pkg/metrics"
)

const (
	defaultConcurrency      = 3
	defaultBatchThreshold   = 20
	defaultMaxBatchRequests = 50000
	batchMaxTokens          = 200
	estimatedOutputTokens   = 80
)

// DispatchOptions 分类调度参数
type DispatchOptions struct {
	Concurrency       int
	BatchDelay        time.Duration
	RequestsPerSecond float64
	BatchThreshold    int
	PollInterval      time.Duration
	MaxBatchRequests  int
}

// DefaultDispatchOptions 并发 3、批间隔 1s、20 条以上走离线批量、30s 轮询
func DefaultDispatchOptions() DispatchOptions {
	return DispatchOptions{
		Concurrency:      defaultConcurrency,
		BatchDelay:       time.Second,
		BatchThreshold:   defaultBatchThreshold,
		PollInterval:     30 * time.Second,
		MaxBatchRequests: defaultMaxBatchRequests,
	}
}

// TokenStats 分类阶段的 token 估算
type TokenStats struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Dispatcher 在实时并发与离线批量两种方式之间选择并执行分类
type Dispatcher struct {
	classifier *RelationClassifier
	batch      service.BatchSubmitter
	counter    service.TokenCounter
	limiter    *rate.Limiter
	opts       DispatchOptions
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewDispatcher batch 与 counter 可为空
func NewDispatcher(classifier *RelationClassifier, batch service.BatchSubmitter, counter service.TokenCounter, opts DispatchOptions) *Dispatcher {
	def := DefaultDispatchOptions()
	if opts.Concurrency <= 0 {
		opts.Concurrency = def.Concurrency
	}
	if opts.BatchDelay < 0 {
		opts.BatchDelay = 0
	}
	if opts.BatchThreshold <= 0 {
		opts.BatchThreshold = def.BatchThreshold
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.MaxBatchRequests <= 0 {
		opts.MaxBatchRequests = def.MaxBatchRequests
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &Dispatcher{
		classifier: classifier,
		batch:      batch,
		counter:    counter,
		limiter:    rate.NewLimiter(limit, opts.Concurrency),
		opts:       opts,
		sleep:      sleepCtx,
	}
}

// ClassifyAll 按任务顺序返回分类结果。单条失败降级为共现 / 0.5；
// 只有 ctx 取消会返回错误。
func (d *Dispatcher) ClassifyAll(ctx context.Context, tasks []ClassifyTask) ([]Classification, TokenStats, error) {
	if len(tasks) == 0 {
		return nil, TokenStats{}, nil
	}
	if d.classifier == nil {
		out := make([]Classification, len(tasks))
		for i := range out {
			out[i] = FallbackClassification("classifier not configured")
		}
		return out, TokenStats{}, nil
	}

	useBatch := d.batch != nil && len(tasks) >= d.opts.BatchThreshold
	if useBatch && len(tasks) > d.opts.MaxBatchRequests {
		logger.Warn(ctx, "too many classification requests for one batch, using realtime calls",
			"tasks", len(tasks),
			"limit", d.opts.MaxBatchRequests,
		)
		useBatch = false
	}

	var (
		results []Classification
		err     error
	)
	if useBatch {
		logger.Info(ctx, "classifying relations via batch api", "tasks", len(tasks))
		results, err = d.classifyBatch(ctx, tasks)
	} else {
		logger.Info(ctx, "classifying relations via realtime api",
			"tasks", len(tasks),
			"concurrency", d.opts.Concurrency,
		)
		results, err = d.classifyRealtime(ctx, tasks)
	}
	if err != nil {
		return nil, TokenStats{}, err
	}

	counts := make(map[string]int)
	for _, r := range results {
		counts[string(r.Type)]++
		if r.Fallback {
			metrics.GraphClassifyFallback.Inc()
		}
	}
	logger.Info(ctx, "relation classification done", "distribution", counts)
	return results, d.estimateTokens(tasks), nil
}

func (d *Dispatcher) classifyRealtime(ctx context.Context, tasks []ClassifyTask) ([]Classification, error) {
	results := make([]Classification, len(tasks))
	size := d.opts.Concurrency
	total := (len(tasks) + size - 1) / size

	for start := 0; start < len(tasks); start += size {
		end := min(start+size, len(tasks))
		logger.Debug(ctx, "classification batch", "batch", start/size+1, "total", total, "size", end-start)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(size)
		for i := start; i < end; i++ {
			g.Go(func() error {
				if err := d.limiter.Wait(gctx); err != nil {
					return err
				}
				results[i] = d.classifier.Classify(gctx, tasks[i])
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if end < len(tasks) && d.opts.BatchDelay > 0 {
			if err := d.sleep(ctx, d.opts.BatchDelay); err != nil {
				return nil, err
			}
		}
	}
	return results, nil
}

// BatchCustomID 离线批量请求的 custom_id
func BatchCustomID(i int, t ClassifyTask) string {
	return fmt.Sprintf("relation-%d-%s-%s", i, t.A, t.B)
}

func (d *Dispatcher) classifyBatch(ctx context.Context, tasks []ClassifyTask) ([]Classification, error) {
	reqs := make([]service.BatchRequest, 0, len(tasks))
	for i, t := range tasks {
		msgs, err := d.classifier.Messages(ctx, t)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, service.BatchRequest{
			CustomID:  BatchCustomID(i, t),
			Messages:  msgs,
			MaxTokens: batchMaxTokens,
		})
	}

	out := make([]Classification, len(tasks))
	res, err := d.batch.SubmitAndWait(ctx, reqs, d.opts.PollInterval)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.Error(ctx, "batch classification failed, falling back to co-occurrence", err, "tasks", len(tasks))
		metrics.LLMBatchJobs.WithLabelValues("failed").Inc()
		for i := range out {
			out[i] = FallbackClassification("batch failed: " + err.Error())
		}
		return out, nil
	}
	metrics.LLMBatchJobs.WithLabelValues("completed").Inc()

	for i, t := range tasks {
		id := BatchCustomID(i, t)
		r, ok := res[id]
		switch {
		case !ok:
			logger.Warn(ctx, "batch result missing", "custom_id", id)
			out[i] = FallbackClassification("missing result")
		case strings.TrimSpace(r.Err) != "":
			logger.Warn(ctx, "batch request failed", "custom_id", id, "error", r.Err)
			out[i] = FallbackClassification("api error: " + r.Err)
		default:
			out[i] = d.classifier.Parse(ctx, r.Text)
		}
	}
	return out, nil
}

// estimateTokens 按精简后的提示词估算输入 token，输出按每条 80 计
func (d *Dispatcher) estimateTokens(tasks []ClassifyTask) TokenStats {
	if d.counter == nil {
		return TokenStats{}
	}
	var in int
	for _, t := range tasks {
		ctxs := t.Contexts
		if len(ctxs) > 3 {
			ctxs = ctxs[:3]
		}
		prompt := fmt.Sprintf("角色1：%s\n角色2：%s\n共现次数：%d\n上下文：%s", t.A, t.B, t.Count, strings.Join(ctxs, ""))
		in += d.counter.Count(prompt)
	}
	outTokens := len(tasks) * estimatedOutputTokens
	return TokenStats{InputTokens: in, OutputTokens: outTokens, TotalTokens: in + outTokens}
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

package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// JobState 构建任务状态
type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

// ErrJobNotFound 任务不存在或已过期
var ErrJobNotFound = errors.New("job not found")

// JobStatus 任务状态快照
type JobStatus struct {
	JobID     string    `json:"job_id"`
	CorpusID  string    `json:"corpus_id"`
	State     JobState  `json:"state"`
	Detail    string    `json:"detail,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JobTracker 以 Redis Hash 记录任务状态，供 HTTP 查询
type JobTracker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewJobTracker ttl<=0 时默认保留 7 天
func NewJobTracker(client *redis.Client, ttl time.Duration) *JobTracker {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &JobTracker{client: client, ttl: ttl}
}

// JobKey 任务状态键
func JobKey(jobID string) string {
	return "graph:job:" + jobID
}

// Set 写入状态并刷新过期时间
func (t *JobTracker) Set(ctx context.Context, jobID, corpusID string, state JobState, detail string) error {
	key := JobKey(jobID)
	pipe := t.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"corpus_id":  corpusID,
		"state":      string(state),
		"detail":     detail,
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	pipe.Expire(ctx, key, t.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record job status: %w", err)
	}
	return nil
}

// Get 读取状态
func (t *JobTracker) Get(ctx context.Context, jobID string) (*JobStatus, error) {
	vals, err := t.client.HGetAll(ctx, JobKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read job status: %w", err)
	}
	if len(vals) == 0 {
		return nil, ErrJobNotFound
	}
	updated, _ := time.Parse(time.RFC3339Nano, vals["updated_at"])
	return &JobStatus{
		JobID:     jobID,
		CorpusID:  vals["corpus_id"],
		State:     JobState(vals["state"]),
		Detail:    vals["detail"],
		UpdatedAt: updated,
	}, nil
}

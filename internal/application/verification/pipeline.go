package verification

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"novel-rag-engine/internal/application/rerank"
	"novel-rag-engine/internal/config"
	"novel-rag-engine/internal/domain/entity"
	"novel-rag-engine/pkg/logger"
	"novel-rag-engine/pkg/metrics"
	"novel-rag-engine/pkg/tracer"
)

// Stage 校验流水线阶段，只能按声明顺序前进
type Stage string

const (
	StageExtractAssertions    Stage = "extract_assertions"
	StageCollectEvidence      Stage = "collect_evidence"
	StageScoreEvidence        Stage = "score_evidence"
	StageCheckConsistency     Stage = "check_consistency"
	StageDetectContradictions Stage = "detect_contradictions"
	StageCorrectAnswer        Stage = "correct_answer"
	StageDone                 Stage = "done"
)

// Config 校验阈值
type Config struct {
	MinAssertionConfidence float64
	EvidenceTopK           int
	WeakSupportThreshold   float64
	DirectConflictMinGap   int
}

// DefaultConfig 默认阈值
func DefaultConfig() Config {
	return Config{
		MinAssertionConfidence: defaultMinAssertionScore,
		EvidenceTopK:           defaultEvidenceTopK,
		WeakSupportThreshold:   defaultWeakSupportThreshold,
		DirectConflictMinGap:   defaultDirectConflictGap,
	}
}

// ConfigFrom 由配置文件段落生成，缺省项回落到默认值
func ConfigFrom(c config.VerificationConfig) Config {
	cfg := DefaultConfig()
	if c.MinAssertionConfidence > 0 {
		cfg.MinAssertionConfidence = c.MinAssertionConfidence
	}
	if c.EvidenceTopK > 0 {
		cfg.EvidenceTopK = c.EvidenceTopK
	}
	if c.WeakSupportThreshold > 0 {
		cfg.WeakSupportThreshold = c.WeakSupportThreshold
	}
	if c.DirectConflictMinGap > 0 {
		cfg.DirectConflictMinGap = c.DirectConflictMinGap
	}
	return cfg
}

// Input 一次校验的输入
type Input struct {
	CorpusID      string
	Answer        string
	Confidence    entity.ConfidenceLevel
	TotalChapters int
	// History 与 Importance 来自图谱快照，缺失时进入降级模式
	History    RelationHistory
	Importance rerank.ImportanceSource
}

// Result 校验结果
type Result struct {
	Answer         string                    `json:"answer"`
	OriginalAnswer string                    `json:"original_answer"`
	Confidence     entity.ConfidenceLevel    `json:"confidence"`
	Explanation    string                    `json:"explanation"`
	Assertions     []entity.Assertion        `json:"assertions"`
	Evidence       [][]entity.Evidence       `json:"evidence"`
	Issues         []entity.ConsistencyIssue `json:"issues"`
	Contradictions []entity.Contradiction    `json:"contradictions"`
	Modifications  []Modification            `json:"modifications"`
	Stages         []Stage                   `json:"stages"`
	Degraded       bool                      `json:"degraded"`
	Duration       time.Duration             `json:"duration"`
}

// Pipeline 自校验流水线，无状态，可并发使用
type Pipeline struct {
	cfg       Config
	extractor *Extractor
	collector *Collector
	scorer    *Scorer
	detector  *Detector
}

// NewPipeline retriever 可为空
func NewPipeline(retriever Retriever, cfg Config) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		extractor: NewExtractor(cfg.MinAssertionConfidence),
		collector: NewCollector(retriever, cfg.EvidenceTopK),
		scorer:    NewScorer(),
		detector:  NewDetector(cfg.DirectConflictMinGap, cfg.WeakSupportThreshold),
	}
}

type run struct {
	in     Input
	res    *Result
	report ConsistencyReport
}

type step struct {
	stage Stage
	exec  func(context.Context, *run)
}

// Verify 按固定顺序执行各阶段，阶段之间检查取消；取消时直接返回错误
func (p *Pipeline) Verify(ctx context.Context, in Input) (*Result, error) {
	if in.Confidence == "" {
		in.Confidence = entity.ConfidenceHigh
	}
	start := time.Now()
	ctx, span := tracer.StartStage(ctx, "verify", attribute.String("corpus_id", in.CorpusID))
	defer span.End()

	r := &run{
		in: in,
		res: &Result{
			Answer:         in.Answer,
			OriginalAnswer: in.Answer,
			Confidence:     in.Confidence,
			Degraded:       in.History == nil,
		},
	}

	for _, s := range p.steps() {
		if err := ctx.Err(); err != nil {
			tracer.EndWithError(span, err)
			logger.Warn(ctx, "verification aborted", "stage", string(s.stage), "error", err.Error())
			return nil, err
		}
		s.exec(logger.WithStage(ctx, string(s.stage)), r)
		r.res.Stages = append(r.res.Stages, s.stage)
	}
	r.res.Stages = append(r.res.Stages, StageDone)
	r.res.Explanation = ExplainConfidence(r.res.Confidence, r.res.Contradictions)
	r.res.Duration = time.Since(start)

	metrics.VerificationTotal.WithLabelValues(string(r.res.Confidence)).Inc()
	for _, c := range r.res.Contradictions {
		metrics.ContradictionsTotal.WithLabelValues(string(c.Type), string(c.Confidence)).Inc()
	}
	logger.Info(ctx, "verification finished",
		"assertions", len(r.res.Assertions),
		"contradictions", len(r.res.Contradictions),
		"confidence", string(r.res.Confidence),
		"degraded", r.res.Degraded,
		"duration_ms", r.res.Duration.Milliseconds(),
	)
	return r.res, nil
}

func (p *Pipeline) steps() []step {
	return []step{
		{StageExtractAssertions, p.extract},
		{StageCollectEvidence, p.collect},
		{StageScoreEvidence, p.score},
		{StageCheckConsistency, p.check},
		{StageDetectContradictions, p.detect},
		{StageCorrectAnswer, p.correct},
	}
}

func (p *Pipeline) extract(ctx context.Context, r *run) {
	r.res.Assertions = p.extractor.Extract(r.in.Answer)
	logger.Debug(ctx, "assertions extracted", "count", len(r.res.Assertions))
}

func (p *Pipeline) collect(ctx context.Context, r *run) {
	r.res.Evidence = make([][]entity.Evidence, len(r.res.Assertions))
	for i, a := range r.res.Assertions {
		if ctx.Err() != nil {
			return
		}
		r.res.Evidence[i] = p.collector.Collect(ctx, r.in.CorpusID, a, r.in.History)
	}
}

func (p *Pipeline) score(_ context.Context, r *run) {
	for i, ev := range r.res.Evidence {
		r.res.Evidence[i] = p.scorer.ScoreAll(ev, ScoreContext{
			TotalChapters: r.in.TotalChapters,
			TargetChapter: r.res.Assertions[i].Chapter,
			Importance:    r.in.Importance,
		})
	}
}

func (p *Pipeline) check(ctx context.Context, r *run) {
	r.report = CheckConsistency(r.res.Assertions)
	r.res.Issues = r.report.Issues()
	if len(r.res.Issues) > 0 {
		counts := r.report.SeverityCounts()
		logger.Debug(ctx, "consistency issues found",
			"temporal", len(r.report.Temporal),
			"character", len(r.report.Character),
			"high", counts[entity.SeverityHigh],
		)
	}
}

func (p *Pipeline) detect(_ context.Context, r *run) {
	r.res.Contradictions = p.detector.Detect(r.res.Assertions, r.res.Evidence, r.report)
}

func (p *Pipeline) correct(_ context.Context, r *run) {
	c := Correct(r.in.Answer, r.res.Contradictions, r.in.Confidence)
	r.res.Answer = c.Answer
	r.res.Confidence = c.Confidence
	r.res.Modifications = c.Modifications
}

// Summary 供日志与接口展示的简短摘要
func (r *Result) Summary() string {
	if r == nil || len(r.Contradictions) == 0 {
		return "未发现矛盾"
	}
	labels := make([]string, 0, len(r.Contradictions))
	for _, c := range r.Contradictions {
		labels = append(labels, c.Type.Label()+"("+string(c.Confidence)+")")
	}
	return strings.Join(labels, "、")
}

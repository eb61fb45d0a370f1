package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"

	"novel-rag-engine/internal/application/graph"
	"novel-rag-engine/internal/application/retrieval"
	"novel-rag-engine/internal/infrastructure/messaging"
	"novel-rag-engine/pkg/logger"
)

// IngestReport 一次入库的统计
type IngestReport struct {
	Index *retrieval.IndexReport `json:"index,omitempty"`
	Graph *graph.BuildReport     `json:"graph"`
}

// Ingest 可选地重建检索索引，然后重建图谱快照。向量库不可用时只建关键词索引。
func (e *Engine) Ingest(ctx context.Context, c *graph.Corpus, index bool) (*IngestReport, error) {
	ctx = logger.WithCorpus(ctx, c.ID)
	report := &IngestReport{}

	if index {
		ir, err := e.index(ctx, c)
		if err != nil {
			return nil, err
		}
		report.Index = ir
	}

	gr, err := e.Graphs.RebuildCorpus(ctx, c, e.NER)
	if err != nil {
		return nil, fmt.Errorf("rebuild graph: %w", err)
	}
	report.Graph = gr
	return report, nil
}

func (e *Engine) index(ctx context.Context, c *graph.Corpus) (*retrieval.IndexReport, error) {
	if err := e.Indexer.DropCorpus(ctx, c.ID); err != nil {
		logger.Warn(ctx, "drop previous index failed", "error", err.Error())
	}
	total := &retrieval.IndexReport{}
	for _, ch := range c.Chapters {
		r, err := e.Indexer.IndexChapter(ctx, c.ID, ch.Number, ch.Title, ch.Text)
		if r != nil {
			total.Chunks += r.Chunks
			total.Embedded += r.Embedded
			total.ZeroVector += r.ZeroVector
		}
		if errors.Is(err, retrieval.ErrVectorDisabled) {
			continue
		}
		if err != nil {
			return total, fmt.Errorf("index chapter %d: %w", ch.Number, err)
		}
	}
	logger.Info(ctx, "corpus indexed", "chunks", total.Chunks, "embedded", total.Embedded)
	return total, nil
}

// LoadCorpus 任务指定了语料文件时读取文件，否则由向量库中的片段还原正文
func (e *Engine) LoadCorpus(ctx context.Context, job *messaging.GraphBuildJob) (*graph.Corpus, error) {
	if job.CorpusPath != "" {
		c, err := ReadCorpusFile(job.CorpusPath)
		if err != nil {
			return nil, err
		}
		if c.ID != job.CorpusID {
			return nil, fmt.Errorf("corpus file id %q does not match job corpus %q", c.ID, job.CorpusID)
		}
		for k, v := range job.Aliases {
			if c.Aliases == nil {
				c.Aliases = make(map[string]string)
			}
			c.Aliases[k] = v
		}
		return c, nil
	}

	if e.Vectors == nil {
		return nil, errors.New("no corpus path given and vector store is unavailable")
	}
	chunks, err := e.Vectors.LoadChunks(ctx, retrieval.CollectionName(job.CorpusID))
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("corpus %q has no indexed chunks", job.CorpusID)
	}
	return graph.CorpusFromChunks(job.CorpusID, chunks, job.Aliases), nil
}

// ReadCorpusFile 读取 JSON 语料文件
func ReadCorpusFile(path string) (*graph.Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return graph.ReadCorpus(f)
}

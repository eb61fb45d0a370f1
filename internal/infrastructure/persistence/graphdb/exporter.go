// Package graphdb 将图谱快照镜像到 Neo4j，供交互式探索
package graphdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"novel-rag-engine/internal/config"
	"novel-rag-engine/internal/domain/entity"
	"novel-rag-engine/internal/domain/repository"
)

var tracer = otel.Tracer("neo4j")

const batchSize = 1000

// Exporter Neo4j 导出器。每次导出先清空该语料的节点再整体写入。
type Exporter struct {
	driver   neo4j.DriverWithContext
	database string
}

var _ repository.GraphExporter = (*Exporter)(nil)

// NewExporter 连接 Neo4j 并创建索引
func NewExporter(ctx context.Context, cfg config.Neo4jConfig) (*Exporter, error) {
	uri := cfg.URI
	if uri == "" {
		uri = "bolt://localhost:7687"
	}

	auth := neo4j.NoAuth()
	if cfg.User != "" && cfg.Password != "" {
		auth = neo4j.BasicAuth(cfg.User, cfg.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(uri, auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to verify connectivity: %w", err)
	}

	e := &Exporter{driver: driver, database: cfg.Database}
	if err := e.createIndexes(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}
	return e, nil
}

// Close 关闭驱动
func (e *Exporter) Close(ctx context.Context) error {
	return e.driver.Close(ctx)
}

func (e *Exporter) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return e.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: e.database, AccessMode: mode})
}

func (e *Exporter) createIndexes(ctx context.Context) error {
	session := e.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	indexes := []string{
		"CREATE INDEX character_corpus IF NOT EXISTS FOR (c:Character) ON (c.corpus_id)",
		"CREATE INDEX character_name IF NOT EXISTS FOR (c:Character) ON (c.corpus_id, c.name)",
	}
	for _, idx := range indexes {
		if _, err := session.Run(ctx, idx, nil); err != nil && !strings.Contains(err.Error(), "already exists") {
			return err
		}
	}
	return nil
}

// Export 在单个写事务中替换该语料的全部节点与关系
func (e *Exporter) Export(ctx context.Context, g *entity.Graph) error {
	ctx, span := tracer.Start(ctx, "neo4j.Export", trace.WithAttributes(
		attribute.String("corpus.id", g.CorpusID),
		attribute.Int("graph.nodes", len(g.Nodes)),
		attribute.Int("graph.edges", len(g.Edges)),
	))
	defer span.End()

	session := e.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	nodes, edges := Records(g)
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `MATCH (c:Character {corpus_id: $corpus}) DETACH DELETE c`,
			map[string]any{"corpus": g.CorpusID}); err != nil {
			return nil, err
		}
		for _, chunk := range chunks(nodes) {
			if _, err := tx.Run(ctx, `
				UNWIND $rows AS row
				CREATE (c:Character {corpus_id: $corpus})
				SET c += row`,
				map[string]any{"corpus": g.CorpusID, "rows": chunk}); err != nil {
				return nil, err
			}
		}
		for _, chunk := range chunks(edges) {
			if _, err := tx.Run(ctx, `
				UNWIND $rows AS row
				MATCH (a:Character {corpus_id: $corpus, name: row.source})
				MATCH (b:Character {corpus_id: $corpus, name: row.target})
				CREATE (a)-[r:RELATES]->(b)
				SET r = row.props`,
				map[string]any{"corpus": g.CorpusID, "rows": chunk}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("export graph to neo4j: %w", err)
	}
	return nil
}

// Records 将快照展开为 Cypher 参数。演化轨迹拆成两个并列数组。
func Records(g *entity.Graph) (nodes, edges []map[string]any) {
	nodes = make([]map[string]any, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes = append(nodes, map[string]any{
			"name":          n.Name,
			"category":      string(n.Category),
			"first_chapter": int64(n.FirstChapter),
			"last_chapter":  int64(n.LastChapter),
			"mentions":      int64(n.MentionCount),
			"importance":    n.Importance,
		})
	}

	edges = make([]map[string]any, 0, len(g.Edges))
	for _, e := range g.Edges {
		props := map[string]any{
			"seq":           int64(e.Seq),
			"type":          string(e.Type),
			"strength":      e.Strength,
			"start_chapter": int64(e.StartChapter),
			"confidence":    e.Confidence,
			"cooccurrence":  int64(e.CooccurrenceCount),
		}
		if e.EndChapter != nil {
			props["end_chapter"] = int64(*e.EndChapter)
		}
		if len(e.Evolution) > 0 {
			chapters := make([]int64, len(e.Evolution))
			types := make([]string, len(e.Evolution))
			for i, cp := range e.Evolution {
				chapters[i], types[i] = int64(cp.Chapter), string(cp.Type)
			}
			props["evolution_chapters"] = chapters
			props["evolution_types"] = types
		}
		edges = append(edges, map[string]any{
			"source": g.Name(e.Source),
			"target": g.Name(e.Target),
			"props":  props,
		})
	}
	return nodes, edges
}

func chunks(rows []map[string]any) [][]map[string]any {
	var out [][]map[string]any
	for start := 0; start < len(rows); start += batchSize {
		out = append(out, rows[start:min(start+batchSize, len(rows))])
	}
	return out
}

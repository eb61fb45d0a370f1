package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"novel-rag-engine/internal/domain/entity"
	"novel-rag-engine/internal/domain/repository"
	"novel-rag-engine/internal/infrastructure/persistence/snapshot"
	"novel-rag-engine/pkg/metrics"
)

const storeLabel = "postgres"

// SnapshotModel 快照归档行。同一语料每次重建追加一个修订号，Load 取最新修订。
type SnapshotModel struct {
	ID            string `gorm:"type:uuid;primaryKey"`
	CorpusID      string `gorm:"size:128;not null;uniqueIndex:idx_snapshot_corpus_revision"`
	Revision      int    `gorm:"not null;uniqueIndex:idx_snapshot_corpus_revision"`
	FormatVersion int    `gorm:"not null"`
	TotalChapters int    `gorm:"not null"`
	NodeCount     int    `gorm:"not null"`
	EdgeCount     int    `gorm:"not null"`
	// RelationTypes 本修订出现过的关系类型，便于按类型筛选归档
	RelationTypes pq.StringArray `gorm:"type:text[]"`
	Payload       []byte         `gorm:"type:bytea;not null"`
	BuiltAt       time.Time      `gorm:"not null"`
	CreatedAt     time.Time
}

// TableName 表名
func (SnapshotModel) TableName() string { return "graph_snapshots" }

// ChapterImportanceModel 章节重要度明细，便于直接在 SQL 中排序筛选
type ChapterImportanceModel struct {
	CorpusID string  `gorm:"size:128;primaryKey"`
	Revision int     `gorm:"primaryKey"`
	Chapter  int     `gorm:"primaryKey"`
	Score    float64 `gorm:"not null"`
}

// TableName 表名
func (ChapterImportanceModel) TableName() string { return "graph_chapter_importance" }

// SnapshotRevision 归档修订摘要
type SnapshotRevision struct {
	Revision      int            `json:"revision"`
	NodeCount     int            `json:"node_count"`
	EdgeCount     int            `json:"edge_count"`
	RelationTypes pq.StringArray `json:"relation_types" gorm:"type:text[]"`
	BuiltAt       time.Time      `json:"built_at"`
}

// SnapshotRepository 版本化快照归档
type SnapshotRepository struct {
	client *Client
	tx     repository.Transactor
	// keep 保留的修订数，0 表示全部保留
	keep int
}

var _ repository.GraphSnapshotRepository = (*SnapshotRepository)(nil)

// NewSnapshotRepository 创建快照归档仓储
func NewSnapshotRepository(client *Client, tx repository.Transactor, keep int) *SnapshotRepository {
	return &SnapshotRepository{client: client, tx: tx, keep: max(keep, 0)}
}

// Save 在事务中追加新修订及其章节重要度
func (r *SnapshotRepository) Save(ctx context.Context, g *entity.Graph) (err error) {
	ctx, span := tracer.Start(ctx, "postgres.SnapshotRepository.Save",
		trace.WithAttributes(attribute.String("corpus.id", g.CorpusID)))
	defer func() { finish(span, "save", err) }()

	payload, err := snapshot.Encode(g)
	if err != nil {
		return err
	}

	return r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		db := getDB(ctx, r.client.db)

		var latest int
		if err := db.Model(&SnapshotModel{}).
			Where("corpus_id = ?", g.CorpusID).
			Select("COALESCE(MAX(revision), 0)").
			Scan(&latest).Error; err != nil {
			return fmt.Errorf("failed to read latest revision: %w", err)
		}

		row := newSnapshotModel(g, payload, latest+1)
		if err := db.Create(row).Error; err != nil {
			return fmt.Errorf("failed to insert snapshot: %w", err)
		}
		if rows := importanceRows(g, row.Revision); len(rows) > 0 {
			if err := db.CreateInBatches(rows, 500).Error; err != nil {
				return fmt.Errorf("failed to insert chapter importance: %w", err)
			}
		}
		if floor := pruneFloor(row.Revision, r.keep); floor > 0 {
			if err := r.deleteRevisions(db, g.CorpusID, floor); err != nil {
				return err
			}
		}
		span.SetAttributes(attribute.Int("snapshot.revision", row.Revision))
		return nil
	})
}

// Load 返回最新修订
func (r *SnapshotRepository) Load(ctx context.Context, corpusID string) (g *entity.Graph, err error) {
	ctx, span := tracer.Start(ctx, "postgres.SnapshotRepository.Load",
		trace.WithAttributes(attribute.String("corpus.id", corpusID)))
	defer func() { finish(span, "load", err) }()

	var row SnapshotModel
	err = getDB(ctx, r.client.db).
		Where("corpus_id = ?", corpusID).
		Order("revision DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return snapshot.Decode(row.Payload)
}

// LoadRevision 读取指定修订
func (r *SnapshotRepository) LoadRevision(ctx context.Context, corpusID string, revision int) (*entity.Graph, error) {
	ctx, span := tracer.Start(ctx, "postgres.SnapshotRepository.LoadRevision")
	defer span.End()

	var row SnapshotModel
	err := getDB(ctx, r.client.db).
		Where("corpus_id = ? AND revision = ?", corpusID, revision).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrSnapshotNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load snapshot revision: %w", err)
	}
	return snapshot.Decode(row.Payload)
}

// Revisions 按修订号倒序列出归档
func (r *SnapshotRepository) Revisions(ctx context.Context, corpusID string) ([]SnapshotRevision, error) {
	ctx, span := tracer.Start(ctx, "postgres.SnapshotRepository.Revisions")
	defer span.End()

	var out []SnapshotRevision
	err := getDB(ctx, r.client.db).Model(&SnapshotModel{}).
		Select("revision, node_count, edge_count, relation_types, built_at").
		Where("corpus_id = ?", corpusID).
		Order("revision DESC").
		Scan(&out).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list revisions: %w", err)
	}
	return out, nil
}

// TopChapters 最新修订中重要度最高的 n 个章节
func (r *SnapshotRepository) TopChapters(ctx context.Context, corpusID string, n int) ([]ChapterImportanceModel, error) {
	ctx, span := tracer.Start(ctx, "postgres.SnapshotRepository.TopChapters")
	defer span.End()

	db := getDB(ctx, r.client.db)
	latest := db.Model(&SnapshotModel{}).Select("MAX(revision)").Where("corpus_id = ?", corpusID)

	var rows []ChapterImportanceModel
	err := db.Where("corpus_id = ? AND revision = (?)", corpusID, latest).
		Order("score DESC, chapter ASC").
		Limit(n).
		Find(&rows).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query chapter importance: %w", err)
	}
	return rows, nil
}

// Delete 删除该语料的全部修订
func (r *SnapshotRepository) Delete(ctx context.Context, corpusID string) (err error) {
	ctx, span := tracer.Start(ctx, "postgres.SnapshotRepository.Delete")
	defer func() { finish(span, "delete", err) }()

	return r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		return r.deleteRevisions(getDB(ctx, r.client.db), corpusID, 0)
	})
}

// deleteRevisions 删除修订号不大于 upTo 的归档；upTo 为 0 时删除全部
func (r *SnapshotRepository) deleteRevisions(db *gorm.DB, corpusID string, upTo int) error {
	imp := db.Where("corpus_id = ?", corpusID)
	snaps := db.Where("corpus_id = ?", corpusID)
	if upTo > 0 {
		imp = imp.Where("revision <= ?", upTo)
		snaps = snaps.Where("revision <= ?", upTo)
	}
	if err := imp.Delete(&ChapterImportanceModel{}).Error; err != nil {
		return fmt.Errorf("failed to delete chapter importance: %w", err)
	}
	if err := snaps.Delete(&SnapshotModel{}).Error; err != nil {
		return fmt.Errorf("failed to delete snapshots: %w", err)
	}
	return nil
}

// pruneFloor 写入 latest 后需要清理的最高修订号，keep 为 0 或尚未超出时返回 0
func pruneFloor(latest, keep int) int {
	if keep <= 0 || latest <= keep {
		return 0
	}
	return latest - keep
}

// Exists 是否存在任一修订
func (r *SnapshotRepository) Exists(ctx context.Context, corpusID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "postgres.SnapshotRepository.Exists")
	defer span.End()

	var n int64
	if err := getDB(ctx, r.client.db).Model(&SnapshotModel{}).Where("corpus_id = ?", corpusID).Count(&n).Error; err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return n > 0, nil
}

func newSnapshotModel(g *entity.Graph, payload []byte, revision int) *SnapshotModel {
	built := g.BuiltAt
	if built.IsZero() {
		built = time.Now()
	}
	return &SnapshotModel{
		ID:            uuid.NewString(),
		CorpusID:      g.CorpusID,
		Revision:      revision,
		FormatVersion: entity.SnapshotVersion,
		TotalChapters: g.TotalChapters,
		NodeCount:     len(g.Nodes),
		EdgeCount:     len(g.Edges),
		RelationTypes: relationTypes(g),
		Payload:       payload,
		BuiltAt:       built,
	}
}

// relationTypes 去重后按字典序排列
func relationTypes(g *entity.Graph) pq.StringArray {
	seen := make(map[string]bool)
	out := pq.StringArray{}
	for _, e := range g.Edges {
		t := string(e.Type)
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// importanceRows 按章节升序展开
func importanceRows(g *entity.Graph, revision int) []ChapterImportanceModel {
	rows := make([]ChapterImportanceModel, 0, len(g.ChapterImportance))
	for ch, score := range g.ChapterImportance {
		rows = append(rows, ChapterImportanceModel{CorpusID: g.CorpusID, Revision: revision, Chapter: ch, Score: score})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Chapter < rows[j].Chapter })
	return rows
}

func finish(span trace.Span, op string, err error) {
	status := "ok"
	switch {
	case errors.Is(err, repository.ErrSnapshotNotFound):
		status = "miss"
	case err != nil:
		status = "error"
		span.RecordError(err)
	}
	metrics.SnapshotOpsTotal.WithLabelValues(storeLabel, op, status).Inc()
	span.End()
}

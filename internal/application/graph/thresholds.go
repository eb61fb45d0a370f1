// Package graph 构建并查询时序知识图谱：共现统计、关系分类调度、
// 演化轨迹、PageRank 重要度与章节重要度。
package graph

// Tier 语料篇幅档位
type Tier string

const (
	TierShort  Tier = "short"
	TierMedium Tier = "medium"
	TierLong   Tier = "long"
)

// Thresholds 弱/强共现阈值
type Thresholds struct {
	Weak   int
	Strong int
}

// PairDecision 共现对的处理方式
type PairDecision int

const (
	PairDropped PairDecision = iota
	PairCooccurrence
	PairClassify
)

func (d PairDecision) String() string {
	switch d {
	case PairCooccurrence:
		return "cooccurrence"
	case PairClassify:
		return "classified"
	default:
		return "skipped"
	}
}

// Decide 低于弱阈值丢弃，介于两者之间仅标记共现，达到强阈值交给模型分类
func (t Thresholds) Decide(count int) PairDecision {
	switch {
	case count < t.Weak:
		return PairDropped
	case count < t.Strong:
		return PairCooccurrence
	default:
		return PairClassify
	}
}

// TierConfig 按章节数分档的阈值表
type TierConfig struct {
	ShortMaxChapters  int
	MediumMaxChapters int
	Short             Thresholds
	Medium            Thresholds
	Long              Thresholds
}

// DefaultTierConfig 短篇 ≤100 章、中篇 ≤500 章，其余为长篇
func DefaultTierConfig() TierConfig {
	return TierConfig{
		ShortMaxChapters:  100,
		MediumMaxChapters: 500,
		Short:             Thresholds{Weak: 2, Strong: 5},
		Medium:            Thresholds{Weak: 3, Strong: 8},
		Long:              Thresholds{Weak: 5, Strong: 15},
	}
}

// Select 根据总章节数选择档位与阈值
func (c TierConfig) Select(totalChapters int) (Tier, Thresholds) {
	switch {
	case totalChapters <= c.ShortMaxChapters:
		return TierShort, c.Short
	case totalChapters <= c.MediumMaxChapters:
		return TierMedium, c.Medium
	default:
		return TierLong, c.Long
	}
}

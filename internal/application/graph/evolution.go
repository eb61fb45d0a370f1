package graph

import (
	"sort"

	"novel-rag-engine/internal/domain/entity"
)

// SegmentCount 按共现跨度决定分段数
func SegmentCount(span int) int {
	switch {
	case span <= 50:
		return 2
	case span <= 200:
		return 3
	default:
		return 5
	}
}

// SplitSegments 把升序章节列表切成连续窗口，最后一段吸收余数。
// 章节数少于段数时只返回非空窗口。
func SplitSegments(chapters []int) [][]int {
	if len(chapters) == 0 {
		return nil
	}
	n := SegmentCount(chapters[len(chapters)-1] - chapters[0])
	size := len(chapters) / n
	if size == 0 {
		size = 1
	}

	out := make([][]int, 0, n)
	for i := 0; i < n; i++ {
		start := i * size
		if start >= len(chapters) {
			break
		}
		end := start + size
		if i == n-1 || end > len(chapters) {
			end = len(chapters)
		}
		out = append(out, chapters[start:end])
	}
	return out
}

// SampleChapters 首、中、尾各取一章，剩余名额均匀采样
func SampleChapters(chapters []int, maxSamples int) []int {
	if len(chapters) <= maxSamples {
		out := make([]int, len(chapters))
		copy(out, chapters)
		return out
	}
	picked := map[int]struct{}{
		chapters[0]:               {},
		chapters[len(chapters)/2]: {},
		chapters[len(chapters)-1]: {},
	}
	if remaining := maxSamples - 3; remaining > 0 {
		step := (len(chapters) - 1) / (remaining + 1)
		for i := 1; i <= remaining; i++ {
			if idx := i * step; idx < len(chapters) {
				picked[chapters[idx]] = struct{}{}
			}
		}
	}
	out := make([]int, 0, len(picked))
	for ch := range picked {
		out = append(out, ch)
	}
	sort.Ints(out)
	return out
}

// CollapseTrajectory 去掉与前一个检查点类型相同的点，
// 并丢弃章节不递增的点，保证轨迹严格递增。
func CollapseTrajectory(cps []entity.Checkpoint) []entity.Checkpoint {
	out := make([]entity.Checkpoint, 0, len(cps))
	for _, cp := range cps {
		if n := len(out); n > 0 {
			last := out[n-1]
			if cp.Chapter <= last.Chapter || cp.Type == last.Type {
				continue
			}
		}
		out = append(out, cp)
	}
	return out
}

// meanConfidence 轨迹各点置信度均值
func meanConfidence(cps []entity.Checkpoint) float64 {
	if len(cps) == 0 {
		return 0
	}
	sum := 0.0
	for _, cp := range cps {
		sum += cp.Confidence
	}
	return sum / float64(len(cps))
}

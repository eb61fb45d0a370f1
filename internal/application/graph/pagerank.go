package graph

import (
	"math"

	"novel-rag-engine/internal/domain/entity"
)

const (
	importanceFloor = 0.1
	importanceTie   = 0.5
)

// PageRankOptions 阻尼系数、最大迭代次数与收敛阈值
type PageRankOptions struct {
	Alpha      float64
	Iterations int
	Tolerance  float64
}

func DefaultPageRankOptions() PageRankOptions {
	return PageRankOptions{Alpha: 0.85, Iterations: 100, Tolerance: 1e-6}
}

// PageRank 以边强度为权重计算节点重要度。关系边按无向处理，
// 结果线性缩放到 [0.1, 1.0]；所有原始分数相同时统一为 0.5。
func PageRank(g *entity.Graph, opts PageRankOptions) []float64 {
	n := len(g.Nodes)
	if n == 0 {
		return nil
	}
	def := DefaultPageRankOptions()
	if opts.Alpha <= 0 || opts.Alpha >= 1 {
		opts.Alpha = def.Alpha
	}
	if opts.Iterations <= 0 {
		opts.Iterations = def.Iterations
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = def.Tolerance
	}

	type link struct {
		to int
		w  float64
	}
	adj := make([][]link, n)
	outW := make([]float64, n)
	for i := range g.Edges {
		e := &g.Edges[i]
		if e.Source == e.Target || e.Strength <= 0 || g.IsReverse(e) {
			continue
		}
		adj[e.Source] = append(adj[e.Source], link{to: e.Target, w: e.Strength})
		adj[e.Target] = append(adj[e.Target], link{to: e.Source, w: e.Strength})
		outW[e.Source] += e.Strength
		outW[e.Target] += e.Strength
	}

	rank := make([]float64, n)
	for i := range rank {
		rank[i] = 1 / float64(n)
	}
	next := make([]float64, n)
	for iter := 0; iter < opts.Iterations; iter++ {
		dangling := 0.0
		for i := range rank {
			if outW[i] == 0 {
				dangling += rank[i]
			}
		}
		base := (1-opts.Alpha)/float64(n) + opts.Alpha*dangling/float64(n)
		for i := range next {
			next[i] = base
		}
		for i, links := range adj {
			if outW[i] == 0 {
				continue
			}
			share := opts.Alpha * rank[i] / outW[i]
			for _, l := range links {
				next[l.to] += share * l.w
			}
		}

		diff := 0.0
		for i := range rank {
			diff += math.Abs(next[i] - rank[i])
		}
		rank, next = next, rank
		if diff < float64(n)*opts.Tolerance {
			break
		}
	}
	return rescale(rank)
}

func rescale(raw []float64) []float64 {
	lo, hi := raw[0], raw[0]
	for _, v := range raw[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	out := make([]float64, len(raw))
	if hi-lo < 1e-12 {
		for i := range out {
			out[i] = importanceTie
		}
		return out
	}
	for i, v := range raw {
		out[i] = importanceFloor + (1-importanceFloor)*(v-lo)/(hi-lo)
	}
	return out
}

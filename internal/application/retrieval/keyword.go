package retrieval

import (
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"novel-rag-engine/internal/domain/entity"
)

const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// KeywordHit 关键词检索命中
type KeywordHit struct {
	Chunk entity.Chunk
	Score float64
}

// KeywordIndex 单个语料的内存 BM25 索引。汉字按字二元组切分，
// 拉丁字母与数字按整词切分。
type KeywordIndex struct {
	mu    sync.RWMutex
	docs  []entity.Chunk
	tf    []map[string]int
	lens  []int
	df    map[string]int
	ids   map[string]int
	total int
}

// NewKeywordIndex 创建空索引
func NewKeywordIndex() *KeywordIndex {
	return &KeywordIndex{
		df:  make(map[string]int),
		ids: make(map[string]int),
	}
}

// Add 加入片段，ID 已存在时忽略
func (x *KeywordIndex) Add(chunks ...entity.Chunk) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, c := range chunks {
		if _, dup := x.ids[c.ID]; dup {
			continue
		}
		terms := Tokenize(c.Content)
		freq := make(map[string]int, len(terms))
		for _, t := range terms {
			freq[t]++
		}
		for t := range freq {
			x.df[t]++
		}
		x.ids[c.ID] = len(x.docs)
		x.docs = append(x.docs, c)
		x.tf = append(x.tf, freq)
		x.lens = append(x.lens, len(terms))
		x.total += len(terms)
	}
}

// Len 已索引片段数
func (x *KeywordIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.docs)
}

// Search 返回得分为正的前 k 个片段，按得分降序
func (x *KeywordIndex) Search(q string, k int, filter VectorFilter) []KeywordHit {
	x.mu.RLock()
	defer x.mu.RUnlock()

	n := len(x.docs)
	if n == 0 || k <= 0 {
		return nil
	}
	terms := uniq(Tokenize(q))
	if len(terms) == 0 {
		return nil
	}
	avg := float64(x.total) / float64(n)
	if avg == 0 {
		avg = 1
	}

	hits := make([]KeywordHit, 0, k)
	for i, doc := range x.docs {
		if !filter.Match(doc.Chapter, doc.HasDialogue) {
			continue
		}
		var score float64
		for _, t := range terms {
			f := float64(x.tf[i][t])
			if f == 0 {
				continue
			}
			df := float64(x.df[t])
			idf := math.Log(1 + (float64(n)-df+0.5)/(df+0.5))
			norm := f * (bm25K1 + 1) / (f + bm25K1*(1-bm25B+bm25B*float64(x.lens[i])/avg))
			score += idf * norm
		}
		if score > 0 {
			hits = append(hits, KeywordHit{Chunk: doc, Score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.ID < hits[j].Chunk.ID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// Tokenize 切分检索词项
func Tokenize(s string) []string {
	var (
		out  []string
		word []rune
		han  []rune
	)
	flushWord := func() {
		if len(word) > 0 {
			out = append(out, strings.ToLower(string(word)))
			word = word[:0]
		}
	}
	flushHan := func() {
		switch len(han) {
		case 0:
		case 1:
			out = append(out, string(han))
		default:
			for i := 0; i+1 < len(han); i++ {
				out = append(out, string(han[i:i+2]))
			}
		}
		han = han[:0]
	}
	for _, r := range s {
		switch {
		case unicode.Is(unicode.Han, r):
			flushWord()
			han = append(han, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			flushHan()
			word = append(word, r)
		default:
			flushWord()
			flushHan()
		}
	}
	flushWord()
	flushHan()
	return out
}

func uniq(ss []string) []string {
	seen := make(map[string]struct{}, len(ss))
	out := ss[:0:0]
	for _, s := range ss {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// KeywordRegistry 按语料管理关键词索引
type KeywordRegistry struct {
	mu      sync.RWMutex
	indexes map[string]*KeywordIndex
}

// NewKeywordRegistry 创建注册表
func NewKeywordRegistry() *KeywordRegistry {
	return &KeywordRegistry{indexes: make(map[string]*KeywordIndex)}
}

// Get 返回语料索引，不存在时返回 nil
func (r *KeywordRegistry) Get(corpusID string) *KeywordIndex {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.indexes[corpusID]
}

// GetOrCreate 返回语料索引，不存在时创建
func (r *KeywordRegistry) GetOrCreate(corpusID string) *KeywordIndex {
	r.mu.Lock()
	defer r.mu.Unlock()
	x, ok := r.indexes[corpusID]
	if !ok {
		x = NewKeywordIndex()
		r.indexes[corpusID] = x
	}
	return x
}

// Drop 删除语料索引
func (r *KeywordRegistry) Drop(corpusID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.indexes, corpusID)
}

package recall

import (
	"context"
	"math"
	"sort"

	"github.com/rushteam/tourkit/core"
	"github.com/rushteam/tourkit/pkg/conv"
	"github.com/rushteam/tourkit/pkg/text"
)

// ContentEngine 是基于文本内容的相似度引擎。
//
// 核心思想：每个游览的文档（名称 + 类目 + 城市）做 TF-IDF 向量化，
// 两两计算余弦相似度得到 N×N 相似度矩阵。
//
//   - tf：词频原始计数
//   - idf：ln((1+N)/(1+df)) + 1
//   - 向量 L2 归一化后点积即余弦
//
// 矩阵对称、对角线恒为 1、取值 [0,1]，每个目录版本构建一次。
type ContentEngine struct {
	index *core.TourIndex
	n     int
	sim   []float64 // 行主序 n*n
}

// contentTag 标识序列化格式的引擎变体
const contentTag = "tfidf"

// BuildContentEngine 从目录构建相似度矩阵
func BuildContentEngine(catalog *core.Catalog) *ContentEngine {
	n := catalog.Len()
	vecs := make([]sparseVec, n)
	df := make(map[string]int)
	counts := make([]map[string]int, n)
	for i := 0; i < n; i++ {
		tf := make(map[string]int)
		for _, tok := range text.Analyze(text.Document(catalog.At(i))) {
			tf[tok]++
		}
		counts[i] = tf
		for term := range tf {
			df[term]++
		}
	}

	// 词表按字典序编号，保证构建结果与 map 遍历顺序无关
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	termID := make(map[string]int, len(terms))
	idf := make([]float64, len(terms))
	for id, term := range terms {
		termID[term] = id
		idf[id] = math.Log(float64(1+n)/float64(1+df[term])) + 1
	}
	for i, tf := range counts {
		vecs[i] = newSparseVec(tf, termID, idf)
	}

	e := &ContentEngine{index: catalog.Index(), n: n, sim: make([]float64, n*n)}
	for i := 0; i < n; i++ {
		e.sim[i*n+i] = 1
		for j := i + 1; j < n; j++ {
			s := clamp01(vecs[i].dot(vecs[j]))
			e.sim[i*n+j] = s
			e.sim[j*n+i] = s
		}
	}
	return e
}

func (e *ContentEngine) Name() string { return "content.tfidf" }

func (e *ContentEngine) Tag() string { return contentTag }

// Len 返回矩阵维度
func (e *ContentEngine) Len() int { return e.n }

// Similarity 返回两个游览的相似度；任一不在目录中返回 NOT_FOUND。
func (e *ContentEngine) Similarity(a, b string) (float64, error) {
	i, ok := e.index.Index(a)
	if !ok {
		return 0, tourNotFound(a)
	}
	j, ok := e.index.Index(b)
	if !ok {
		return 0, tourNotFound(b)
	}
	return e.sim[i*e.n+j], nil
}

// SimilarTours 返回与 tourID 最相似的 topN 个游览，不含自身；
// 相似度降序，相同按 tour_id 升序。topN <= 0 表示全部。
func (e *ContentEngine) SimilarTours(tourID string, topN int) ([]core.ScoredTour, error) {
	i, ok := e.index.Index(tourID)
	if !ok {
		return nil, tourNotFound(tourID)
	}
	out := make([]core.ScoredTour, 0, e.n-1)
	row := e.sim[i*e.n : (i+1)*e.n]
	for j, s := range row {
		if j == i {
			continue
		}
		out = append(out, core.ScoredTour{TourID: e.index.ID(j), Score: s})
	}
	core.SortScored(out)
	return core.TopN(out, topN), nil
}

// ContentState 是相似度矩阵的可序列化形态
type ContentState struct {
	IDs []string
	Sim []float64
}

func (e *ContentEngine) State() ContentState {
	return ContentState{IDs: e.index.IDs(), Sim: e.sim}
}

// ContentEngineFromState 恢复相似度引擎，矩阵尺寸不符返回 SNAPSHOT_INCOMPATIBLE。
func ContentEngineFromState(st ContentState) (*ContentEngine, error) {
	n := len(st.IDs)
	if len(st.Sim) != n*n {
		return nil, core.SnapshotIncompatible("content: similarity matrix size does not match catalog")
	}
	return &ContentEngine{index: core.NewTourIndex(st.IDs), n: n, sim: st.Sim}, nil
}

// ContentRecall 是 SimilarTours 的召回源包装，种子游览取 rctx.Params["tour_id"]。
type ContentRecall struct {
	Engine core.SimilarityScorer
	TopK   int
}

// ParamTourID 是相似推荐的种子游览参数
const ParamTourID = "tour_id"

func (r *ContentRecall) Name() string { return "recall.content" }

func (r *ContentRecall) Recall(_ context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	seed := conv.ConfigGet(rctx.Params, ParamTourID, "")
	if seed == "" {
		return nil, core.InvalidRequest(core.ModuleRecall, "tour_id is required")
	}
	scored, err := r.Engine.SimilarTours(seed, r.TopK)
	if err != nil {
		return nil, err
	}
	return scoredItems(scored, r.Name()), nil
}

type sparseVec struct {
	ids []int
	w   []float64
}

func newSparseVec(tf map[string]int, termID map[string]int, idf []float64) sparseVec {
	v := sparseVec{ids: make([]int, 0, len(tf))}
	for term := range tf {
		v.ids = append(v.ids, termID[term])
	}
	sort.Ints(v.ids)
	v.w = make([]float64, len(v.ids))
	for term, c := range tf {
		id := termID[term]
		k := sort.SearchInts(v.ids, id)
		v.w[k] = float64(c) * idf[id]
	}
	var norm float64
	for _, x := range v.w {
		norm += x * x
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for k := range v.w {
			v.w[k] /= norm
		}
	}
	return v
}

func (a sparseVec) dot(b sparseVec) float64 {
	var s float64
	i, j := 0, 0
	for i < len(a.ids) && j < len(b.ids) {
		switch {
		case a.ids[i] == b.ids[j]:
			s += a.w[i] * b.w[j]
			i++
			j++
		case a.ids[i] < b.ids[j]:
			i++
		default:
			j++
		}
	}
	return s
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func tourNotFound(id string) error {
	return core.NotFound(core.ModuleRecall, "tour not found: "+id)
}

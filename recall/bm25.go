package recall

import (
	"context"
	"math"
	"sort"

	"github.com/rushteam/tourkit/core"
	"github.com/rushteam/tourkit/pkg/text"
)

// BM25Config 是 BM25 的可调常数
type BM25Config struct {
	K1 float64 // 词频饱和度
	B  float64 // 文档长度归一化强度 [0,1]
}

// DefaultBM25Config 返回标准默认值 k1=1.5, b=0.75
func DefaultBM25Config() BM25Config {
	return BM25Config{K1: 1.5, B: 0.75}
}

// Posting 是倒排表中的一项：文档下标与词频
type Posting struct {
	Doc int
	TF  int
}

// BM25Index 是游览文档上的倒排索引与 BM25 打分器。
//
//	score(d, q) = Σ_t∈q IDF(t) * tf*(k1+1) / (tf + k1*(1 - b + b*dl/avgdl))
//	IDF(t)      = ln(1 + (N - n_t + 0.5) / (n_t + 0.5))
//
// IDF 恒为正，因此词频增加（文档长度不变）不会降低得分。
// 分词：小写 + 空白切分，不做词干化。
type BM25Index struct {
	cfg      BM25Config
	index    *core.TourIndex
	postings map[string][]Posting
	idf      map[string]float64
	docLen   []int
	avgDL    float64
}

const bm25Tag = "bm25"

// BuildBM25Index 从目录构建索引
func BuildBM25Index(catalog *core.Catalog, cfg BM25Config) *BM25Index {
	n := catalog.Len()
	postings := make(map[string][]Posting)
	docLen := make([]int, n)
	for i := 0; i < n; i++ {
		toks := text.Tokenize(text.Document(catalog.At(i)))
		docLen[i] = len(toks)
		tf := make(map[string]int, len(toks))
		for _, tok := range toks {
			tf[tok]++
		}
		for term, c := range tf {
			postings[term] = append(postings[term], Posting{Doc: i, TF: c})
		}
	}
	return newBM25Index(cfg, catalog.Index(), postings, docLen)
}

func newBM25Index(cfg BM25Config, index *core.TourIndex, postings map[string][]Posting, docLen []int) *BM25Index {
	x := &BM25Index{
		cfg:      cfg,
		index:    index,
		postings: postings,
		idf:      make(map[string]float64, len(postings)),
		docLen:   docLen,
	}
	var total int
	for _, l := range docLen {
		total += l
	}
	if len(docLen) > 0 {
		x.avgDL = float64(total) / float64(len(docLen))
	}
	n := float64(len(docLen))
	for term, ps := range postings {
		df := float64(len(ps))
		x.idf[term] = math.Log(1 + (n-df+0.5)/(df+0.5))
	}
	return x
}

func (x *BM25Index) Name() string { return "search.bm25" }

func (x *BM25Index) Tag() string { return bm25Tag }

// Len 返回索引覆盖的游览数
func (x *BM25Index) Len() int { return x.index.Len() }

// Config 返回打分常数
func (x *BM25Index) Config() BM25Config { return x.cfg }

func (x *BM25Index) termScore(term string, p Posting) float64 {
	tf := float64(p.TF)
	norm := 1.0
	if x.avgDL > 0 {
		norm = 1 - x.cfg.B + x.cfg.B*float64(x.docLen[p.Doc])/x.avgDL
	}
	return x.idf[term] * tf * (x.cfg.K1 + 1) / (tf + x.cfg.K1*norm)
}

func (x *BM25Index) scores(query string) map[int]float64 {
	acc := make(map[int]float64)
	for _, term := range text.Tokenize(query) {
		for _, p := range x.postings[term] {
			acc[p.Doc] += x.termScore(term, p)
		}
	}
	return acc
}

// Search 返回得分大于 0 的前 topN 个游览，得分降序，相同按 tour_id 升序，不做补齐。
func (x *BM25Index) Search(query string, topN int) []core.ScoredTour {
	acc := x.scores(query)
	out := make([]core.ScoredTour, 0, len(acc))
	for doc, s := range acc {
		if s > 0 {
			out = append(out, core.ScoredTour{TourID: x.index.ID(doc), Score: s})
		}
	}
	core.SortScored(out)
	return core.TopN(out, topN)
}

// BM25State 是索引的可序列化形态
type BM25State struct {
	K1       float64
	B        float64
	IDs      []string
	DocLen   []int
	Terms    []string
	Postings [][]Posting
}

// State 导出状态，词项按字典序排列
func (x *BM25Index) State() BM25State {
	st := BM25State{K1: x.cfg.K1, B: x.cfg.B, IDs: x.index.IDs(), DocLen: x.docLen}
	for term := range x.postings {
		st.Terms = append(st.Terms, term)
	}
	sort.Strings(st.Terms)
	st.Postings = make([][]Posting, len(st.Terms))
	for i, term := range st.Terms {
		st.Postings[i] = x.postings[term]
	}
	return st
}

// BM25IndexFromState 恢复索引，结构不一致返回 SNAPSHOT_INCOMPATIBLE。
func BM25IndexFromState(st BM25State) (*BM25Index, error) {
	if len(st.DocLen) != len(st.IDs) || len(st.Terms) != len(st.Postings) {
		return nil, core.SnapshotIncompatible("bm25: index structure is inconsistent")
	}
	postings := make(map[string][]Posting, len(st.Terms))
	for i, term := range st.Terms {
		for _, p := range st.Postings[i] {
			if p.Doc < 0 || p.Doc >= len(st.IDs) {
				return nil, core.SnapshotIncompatible("bm25: posting refers to unknown document")
			}
		}
		postings[term] = st.Postings[i]
	}
	return newBM25Index(BM25Config{K1: st.K1, B: st.B}, core.NewTourIndex(st.IDs), postings, st.DocLen), nil
}

// BM25Recall 是词法检索召回源，查询取 rctx.Params["query"]。
type BM25Recall struct {
	Searcher core.LexicalSearcher
	TopK     int
}

func (r *BM25Recall) Name() string { return "recall.bm25" }

func (r *BM25Recall) Recall(_ context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	q := rctx.Query()
	if q == "" {
		return nil, core.InvalidRequest(core.ModuleRecall, "query is required")
	}
	return scoredItems(r.Searcher.Search(q, r.TopK), r.Name()), nil
}

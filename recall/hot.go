package recall

import (
	"context"
	"sort"

	"github.com/rushteam/tourkit/core"
	"github.com/rushteam/tourkit/pipeline"
)

// Hot 是人群级高分兜底召回：按目录评分降序、评论数降序、tour_id 升序排列。
// 用于 CF 无法覆盖的未知用户。Hot 同时实现了 Source 和 Node 接口。
type Hot struct {
	ids    []string
	scores map[string]float64
	TopK   int
}

// NewHot 从目录预先计算兜底顺序
func NewHot(tours []core.Tour) *Hot {
	sorted := make([]core.Tour, len(tours))
	copy(sorted, tours)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Stars != b.Stars {
			return a.Stars > b.Stars
		}
		if a.ReviewCount != b.ReviewCount {
			return a.ReviewCount > b.ReviewCount
		}
		return a.ID < b.ID
	})
	h := &Hot{ids: make([]string, len(sorted)), scores: make(map[string]float64, len(sorted))}
	for i, t := range sorted {
		h.ids[i] = t.ID
		h.scores[t.ID] = t.Stars
	}
	return h
}

// WithTopK 返回共享排序结果、截断数不同的副本，供单个请求使用
func (r *Hot) WithTopK(n int) *Hot {
	cp := *r
	cp.TopK = n
	return &cp
}

// IDs 返回完整兜底顺序
func (r *Hot) IDs() []string {
	return append([]string(nil), r.ids...)
}

func (r *Hot) Name() string        { return "recall.hot" }
func (r *Hot) Kind() pipeline.Kind { return pipeline.KindRecall }

// Top 返回前 n 个游览，跳过 exclude 中的 id；n <= 0 表示全部。
func (r *Hot) Top(n int, exclude map[string]struct{}) []core.ScoredTour {
	out := make([]core.ScoredTour, 0, len(r.ids))
	for _, id := range r.ids {
		if _, skip := exclude[id]; skip {
			continue
		}
		out = append(out, core.ScoredTour{TourID: id, Score: r.scores[id]})
		if n > 0 && len(out) == n {
			break
		}
	}
	return out
}

// Process 实现 Node 接口，直接调用 Recall
func (r *Hot) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

// Recall 实现 Source 接口
func (r *Hot) Recall(_ context.Context, _ *core.RecommendContext) ([]*core.Item, error) {
	items := scoredItems(r.Top(r.TopK, nil), r.Name())
	for _, it := range items {
		it.PutLabel(LabelRecallSource, core.Label{Value: "fallback", Source: "recall"})
	}
	return items, nil
}

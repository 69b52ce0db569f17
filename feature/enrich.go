package feature

import (
	"context"

	"github.com/rushteam/tourkit/core"
	"github.com/rushteam/tourkit/pipeline"
)

// EnrichNode 是特征注入节点：为每个候选拼接 (rctx.UserID, item.ID) 的特征向量，
// 写入 item.Features 供排序节点使用。未知用户/游览按 schema 填充，冷启动不报错。
type EnrichNode struct {
	Features *Store
}

func (n *EnrichNode) Name() string {
	return "feature.enrich"
}

func (n *EnrichNode) Kind() pipeline.Kind {
	return pipeline.KindPostProcess
}

func (n *EnrichNode) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.Features == nil || len(items) == 0 {
		return items, nil
	}

	userID := ""
	if rctx != nil {
		userID = rctx.UserID
	}
	pairs := make([]Pair, 0, len(items))
	for _, it := range items {
		if it != nil {
			pairs = append(pairs, Pair{UserID: userID, TourID: it.ID})
		}
	}
	vecs := n.Features.Join(pairs)

	i := 0
	for _, it := range items {
		if it == nil {
			continue
		}
		if it.Features == nil {
			it.Features = make(map[string]float64, len(vecs[i]))
		}
		for k, v := range vecs[i] {
			it.Features[k] = v
		}
		i++
	}
	return items, nil
}

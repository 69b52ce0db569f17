// Package rerank 提供排序之后的结果整形节点。
package rerank

import (
	"context"

	"github.com/rushteam/tourkit/core"
	"github.com/rushteam/tourkit/pipeline"
	"github.com/rushteam/tourkit/pkg/conv"
)

// TopNNode 截取前 N 个物品，放在排序节点之后。
// N 优先取请求参数 top_n（正整数），否则取节点配置；两者都 <= 0 时不截断。
type TopNNode struct {
	N int
}

func (n *TopNNode) Name() string {
	return "rerank.topn"
}

func (n *TopNNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *TopNNode) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	limit := n.N
	if rctx != nil {
		if v := conv.ConfigGet(rctx.Params, core.ParamTopN, 0); v > 0 {
			limit = v
		}
	}
	if limit <= 0 || len(items) <= limit {
		return items, nil
	}
	return items[:limit], nil
}

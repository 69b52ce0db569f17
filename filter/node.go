package filter

import (
	"context"
	"fmt"

	"github.com/rushteam/tourkit/core"
	"github.com/rushteam/tourkit/pipeline"
)

// LabelFiltered 记录候选被哪个过滤器移除，写在 rctx 上
const LabelFiltered = "filtered"

// Node 组合多个过滤器，保持剩余候选的原有顺序。
type Node struct {
	Filters []Filter
}

func (n *Node) Name() string {
	return "filter.node"
}

func (n *Node) Kind() pipeline.Kind {
	return pipeline.KindFilter
}

func (n *Node) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(n.Filters) == 0 || len(items) == 0 {
		return items, nil
	}

	out := make([]*core.Item, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		reason := ""
		for _, f := range n.Filters {
			drop, err := f.ShouldFilter(ctx, rctx, item)
			if err != nil {
				return nil, fmt.Errorf("filter %s: %w", f.Name(), err)
			}
			if drop {
				reason = f.Name()
				break
			}
		}
		if reason != "" {
			if rctx != nil {
				rctx.PutLabel(LabelFiltered, core.Label{Value: item.ID, Source: reason})
			}
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

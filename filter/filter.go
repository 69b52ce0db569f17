// Package filter 提供候选过滤节点：任一过滤器命中即移除该候选。
package filter

import (
	"context"

	"github.com/rushteam/tourkit/core"
)

// Filter 判断一个 Item 是否应该被移除，返回 true 表示移除。
type Filter interface {
	Name() string

	ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error)
}

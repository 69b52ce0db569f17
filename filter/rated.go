package filter

import (
	"context"

	"github.com/rushteam/tourkit/core"
)

// RatedLookup 返回用户评过分的游览集合
type RatedLookup interface {
	Rated(userID string) map[string]struct{}
}

// RatedFilter 移除当前用户已评分的游览。rctx 没有用户时不过滤。
type RatedFilter struct {
	Lookup RatedLookup
}

func (f *RatedFilter) Name() string {
	return "filter.rated"
}

func (f *RatedFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}
	if f.Lookup == nil || rctx == nil || rctx.UserID == "" {
		return false, nil
	}
	_, rated := f.Lookup.Rated(rctx.UserID)[item.ID]
	return rated, nil
}

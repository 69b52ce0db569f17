package recall

import (
	"context"
	"testing"

	"github.com/rushteam/tourkit/core"
)

func TestHotOrder(t *testing.T) {
	c := scenarioCatalog(t)
	h := NewHot(c.Tours())
	// T1 与 T2 同为 4.5 分，T2 评论更多
	if ids := h.IDs(); ids[0] != "T2" || ids[1] != "T1" || ids[2] != "T3" {
		t.Fatalf("hot order = %v, want [T2 T1 T3]", ids)
	}
	top := h.Top(2, map[string]struct{}{"T2": {}})
	if ids := core.ScoredIDs(top); len(ids) != 2 || ids[0] != "T1" || ids[1] != "T3" {
		t.Fatalf("Top with exclude = %v", ids)
	}
}

func TestHotNode(t *testing.T) {
	h := NewHot(scenarioCatalog(t).Tours()).WithTopK(1)
	items, err := h.Process(context.Background(), core.NewRecommendContext("u"), nil)
	if err != nil || len(items) != 1 || items[0].ID != "T2" {
		t.Fatalf("Process() = %v, %v", core.IDs(items), err)
	}
}

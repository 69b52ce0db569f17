package filter

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/rushteam/tourkit/core"
)

type ratedMap map[string]map[string]struct{}

func (m ratedMap) Rated(userID string) map[string]struct{} { return m[userID] }

type failingFilter struct{}

func (failingFilter) Name() string { return "filter.failing" }

func (failingFilter) ShouldFilter(context.Context, *core.RecommendContext, *core.Item) (bool, error) {
	return false, errors.New("boom")
}

func TestNode_RatedFilter(t *testing.T) {
	lookup := ratedMap{"U1": {"T2": {}, "T4": {}}}
	node := &Node{Filters: []Filter{&RatedFilter{Lookup: lookup}}}

	tests := []struct {
		user string
		want []string
	}{
		{"U1", []string{"T1", "T3"}},
		{"U9", []string{"T1", "T2", "T3", "T4"}},
		{"", []string{"T1", "T2", "T3", "T4"}},
	}
	for _, tt := range tests {
		t.Run("user="+tt.user, func(t *testing.T) {
			rctx := core.NewRecommendContext(tt.user)
			items := core.ItemsFromIDs([]string{"T1", "T2", "T3", "T4"})
			out, err := node.Process(context.Background(), rctx, items)
			if err != nil {
				t.Fatal(err)
			}
			if got := core.IDs(out); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ids = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNode_LabelsAndNil(t *testing.T) {
	node := &Node{Filters: []Filter{&RatedFilter{Lookup: ratedMap{"U1": {"T2": {}}}}}}
	rctx := core.NewRecommendContext("U1")
	items := []*core.Item{core.NewItem("T1"), nil, core.NewItem("T2")}

	out, err := node.Process(context.Background(), rctx, items)
	if err != nil {
		t.Fatal(err)
	}
	if got := core.IDs(out); !reflect.DeepEqual(got, []string{"T1"}) {
		t.Errorf("ids = %v", got)
	}
	lbl, ok := rctx.GetLabel(LabelFiltered)
	if !ok || lbl.Value != "T2" || lbl.Source != "filter.rated" {
		t.Errorf("filtered label = %+v, %v", lbl, ok)
	}
}

func TestNode_Error(t *testing.T) {
	node := &Node{Filters: []Filter{failingFilter{}}}
	_, err := node.Process(context.Background(), core.NewRecommendContext("U1"), core.ItemsFromIDs([]string{"T1"}))
	if err == nil {
		t.Fatal("expected filter error")
	}
}

package recall

import (
	"context"

	"github.com/rushteam/tourkit/core"
	"github.com/rushteam/tourkit/pipeline"
)

// Source 表示一个召回源（内容相似/CF/BM25/热门）。
type Source interface {
	Name() string
	Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error)
}

// SourceNode 把 Source 适配为 Pipeline 的召回节点，忽略上游 items。
type SourceNode struct {
	Source Source
}

func (n *SourceNode) Name() string        { return n.Source.Name() }
func (n *SourceNode) Kind() pipeline.Kind { return pipeline.KindRecall }

func (n *SourceNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return n.Source.Recall(ctx, rctx)
}

// LabelRecallSource 是候选来源标签 key
const LabelRecallSource = "recall_source"

// scoredItems 把带分结果转为 Item，并写入召回分与来源标签
func scoredItems(scored []core.ScoredTour, source string) []*core.Item {
	out := make([]*core.Item, 0, len(scored))
	for _, st := range scored {
		it := core.NewItem(st.TourID)
		it.Score = st.Score
		it.Features[source] = st.Score
		it.PutLabel(LabelRecallSource, core.Label{Value: source, Source: "recall"})
		out = append(out, it)
	}
	return out
}

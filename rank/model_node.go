package rank

import (
	"context"

	"github.com/rushteam/tourkit/core"
	"github.com/rushteam/tourkit/feature"
	"github.com/rushteam/tourkit/model"
	"github.com/rushteam/tourkit/pipeline"
)

// LabelRankModel 是排序模型标签 key
const LabelRankModel = "rank_model"

// ModelNode 是使用 RankModel 的排序 Node（不限定模型变体）。
//   - 按 Schema 把 item.Features 展开为模型输入行，一次批量打分
//   - 写入 labels：rank_model
//   - 更新 item.Score，按分数降序、tour_id 升序排序，与输入顺序无关
type ModelNode struct {
	Model  model.RankModel
	Schema feature.Schema
}

func (n *ModelNode) Name() string        { return "rank.model" }
func (n *ModelNode) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *ModelNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.Model == nil || len(items) == 0 {
		return items, nil
	}

	live := make([]*core.Item, 0, len(items))
	rows := make([][]float64, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		live = append(live, it)
		rows = append(rows, n.Schema.Row(it.Features))
	}
	scores, err := n.Model.Score(rows)
	if err != nil {
		return nil, err
	}
	for i, it := range live {
		it.Score = scores[i]
		it.PutLabel(LabelRankModel, core.Label{Value: n.Model.Tag(), Source: "rank"})
	}

	core.SortItems(live)
	return live, nil
}

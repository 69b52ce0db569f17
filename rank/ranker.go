package rank

import (
	"context"

	"github.com/rushteam/tourkit/core"
	"github.com/rushteam/tourkit/feature"
	"github.com/rushteam/tourkit/model"
	"github.com/rushteam/tourkit/pipeline"
)

// Ranker 对调用方给出的候选做个性化排序：特征注入 -> 模型打分。
// 输出恰好是输入的一个排列，顺序只取决于分数与 tour_id。
type Ranker struct {
	Features *feature.Store
	Model    model.RankModel
}

// NewRanker 创建排序器
func NewRanker(features *feature.Store, m model.RankModel) *Ranker {
	return &Ranker{Features: features, Model: m}
}

// Pipeline 返回排序链路：feature.enrich -> rank.model
func (r *Ranker) Pipeline() *pipeline.Pipeline {
	return pipeline.New(
		&feature.EnrichNode{Features: r.Features},
		&ModelNode{Model: r.Model, Schema: r.Features.Schema()},
	)
}

// Rank 实现 core.CandidateRanker
func (r *Ranker) Rank(ctx context.Context, userID string, tourIDs []string) ([]core.ScoredTour, error) {
	rctx := core.NewRecommendContext(userID)
	items, err := r.Pipeline().Run(ctx, rctx, core.ItemsFromIDs(tourIDs))
	if err != nil {
		return nil, err
	}
	out := make([]core.ScoredTour, len(items))
	for i, it := range items {
		out[i] = core.ScoredTour{TourID: it.ID, Score: it.Score}
	}
	return out, nil
}

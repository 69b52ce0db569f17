// Package train 是离线训练流水线：按依赖顺序依次构建特征、各召回引擎与排序模型，
// 最终组装为一个快照。各阶段串行执行，任一阶段失败整次训练失败。
package train

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/tourkit/config"
	"github.com/rushteam/tourkit/core"
	"github.com/rushteam/tourkit/feature"
	"github.com/rushteam/tourkit/model"
	"github.com/rushteam/tourkit/pkg/logging"
	"github.com/rushteam/tourkit/recall"
	"github.com/rushteam/tourkit/snapshot"
)

// 写入 manifest 的训练指标
const (
	MetricInteractions     = "interactions"
	MetricUsers            = "users"
	MetricCFTrainRMSE      = "cf_train_rmse"
	MetricCFHoldoutRMSE    = "cf_holdout_rmse"
	MetricRankValidL1      = "rank_valid_l1"
	MetricRankBestIter     = "rank_best_iteration"
	MetricDroppedUnknownID = "dropped_unknown_tour"
)

// minHoldoutRows 少于该数量的评分不做留出评估
const minHoldoutRows = 10

// Config 是一次训练的全部参数
type Config struct {
	Schema  feature.Schema
	MF      recall.MFConfig
	Holdout float64
	BM25    recall.BM25Config
	// RankModel 取 model.TagGBDT 或 model.TagLinear
	RankModel   string
	GBDT        model.GBDTConfig
	LinearRidge float64
}

// DefaultConfig 返回默认训练参数
func DefaultConfig() Config {
	return Config{
		Schema:      feature.DefaultSchema(),
		MF:          recall.DefaultMFConfig(),
		BM25:        recall.DefaultBM25Config(),
		RankModel:   model.TagGBDT,
		GBDT:        model.DefaultGBDTConfig(),
		LinearRidge: 1.0,
	}
}

// FromAppConfig 由进程配置生成训练参数
func FromAppConfig(c config.Config) Config {
	return Config{
		Schema: feature.DefaultSchema(),
		MF: recall.MFConfig{
			Factors:        c.Collaborative.Factors,
			Epochs:         c.Collaborative.Epochs,
			LearningRate:   c.Collaborative.LearningRate,
			Regularization: c.Collaborative.Regularization,
			InitStd:        c.Collaborative.InitStd,
			Seed:           c.Collaborative.Seed,
		},
		Holdout:   c.Collaborative.Holdout,
		BM25:      recall.BM25Config{K1: c.Lexical.K1, B: c.Lexical.B},
		RankModel: c.Ranking.Model,
		GBDT: model.GBDTConfig{
			Rounds:             c.Ranking.Rounds,
			LearningRate:       c.Ranking.LearningRate,
			MaxDepth:           c.Ranking.MaxDepth,
			MinSamplesLeaf:     c.Ranking.MinSamplesLeaf,
			Patience:           c.Ranking.Patience,
			ValidationFraction: c.Ranking.ValidationFraction,
			Seed:               c.Ranking.Seed,
		},
		LinearRidge: c.Ranking.Regularization,
	}
}

// Trainer 持有训练参数与日志
type Trainer struct {
	cfg Config
	log zerolog.Logger
}

// New 创建 Trainer
func New(cfg Config) *Trainer {
	if len(cfg.Schema.Fields) == 0 {
		cfg.Schema = feature.DefaultSchema()
	}
	if cfg.RankModel == "" {
		cfg.RankModel = model.TagGBDT
	}
	return &Trainer{cfg: cfg, log: logging.Component("train")}
}

// Build 训练全部组件并组装快照。输入为空或字段缺失时返回 TRAINING_DATA。
func (t *Trainer) Build(ctx context.Context, tours []core.Tour, interactions []core.Interaction) (*snapshot.Snapshot, error) {
	metrics := make(map[string]float64)
	var (
		catalog  *core.Catalog
		features *feature.Store
		content  *recall.ContentEngine
		lexical  *recall.BM25Index
		mf       *recall.MFEngine
		ranker   model.RankModel
	)

	stages := []struct {
		name string
		run  func() error
	}{
		{"catalog", func() (err error) {
			catalog, err = core.NewCatalog(tours)
			if err != nil {
				return err
			}
			interactions, err = t.cleanInteractions(catalog, interactions, metrics)
			return err
		}},
		{"features", func() error {
			features = feature.NewStore(t.cfg.Schema, catalog.Tours(), interactions)
			metrics[MetricUsers] = float64(len(feature.BuildUserFeatures(interactions)))
			return nil
		}},
		{"content", func() error {
			content = recall.BuildContentEngine(catalog)
			return nil
		}},
		{"lexical", func() error {
			lexical = recall.BuildBM25Index(catalog, t.cfg.BM25)
			return nil
		}},
		{"collaborative", func() (err error) {
			mf, err = t.trainMF(catalog, interactions, metrics)
			return err
		}},
		{"ranking", func() (err error) {
			ranker, err = t.trainRanker(features, interactions, metrics)
			return err
		}},
	}

	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		if err := st.run(); err != nil {
			t.log.Error().Err(err).Str("stage", st.name).Msg("training stage failed")
			return nil, fmt.Errorf("train: stage %s: %w", st.name, err)
		}
		t.log.Info().
			Str("stage", st.name).
			Int("tours", len(tours)).
			Int("interactions", len(interactions)).
			Dur("elapsed", time.Since(start)).
			Msg("training stage done")
	}

	snap, err := snapshot.New(snapshot.Parts{
		Catalog:  catalog,
		Features: features,
		Content:  content,
		MF:       mf,
		Lexical:  lexical,
		Ranker:   ranker,
		Metrics:  metrics,
	})
	if err != nil {
		return nil, err
	}
	t.log.Info().Str("snapshot", snap.ID).Str("ranker", ranker.Tag()).Interface("metrics", metrics).Msg("snapshot built")
	return snap, nil
}

// cleanInteractions 校验必填字段与评分范围，丢弃目录外的游览
func (t *Trainer) cleanInteractions(catalog *core.Catalog, in []core.Interaction, metrics map[string]float64) ([]core.Interaction, error) {
	if len(in) == 0 {
		return nil, core.TrainingData(core.ModuleTrain, "train: interaction set is empty")
	}
	out := make([]core.Interaction, 0, len(in))
	dropped := 0
	for i, it := range in {
		if it.UserID == "" || it.TourID == "" {
			return nil, core.TrainingData(core.ModuleTrain, fmt.Sprintf("train: interaction %d lacks user_id or tour_id", i))
		}
		if it.Stars < core.MinRating || it.Stars > core.MaxRating {
			return nil, core.TrainingData(core.ModuleTrain, fmt.Sprintf("train: interaction %d rating %d out of range", i, it.Stars))
		}
		if _, ok := catalog.Get(it.TourID); !ok {
			dropped++
			continue
		}
		out = append(out, it)
	}
	if dropped > 0 {
		t.log.Warn().Int("dropped", dropped).Msg("interactions reference tours outside the catalog")
	}
	if len(out) == 0 {
		return nil, core.TrainingData(core.ModuleTrain, "train: no interaction references a catalog tour")
	}
	metrics[MetricInteractions] = float64(len(out))
	metrics[MetricDroppedUnknownID] = float64(dropped)
	return out, nil
}

func (t *Trainer) trainMF(catalog *core.Catalog, interactions []core.Interaction, metrics map[string]float64) (*recall.MFEngine, error) {
	ids := catalog.Index().IDs()
	if t.cfg.Holdout > 0 && len(interactions) >= minHoldoutRows {
		fit, holdout := splitHoldout(interactions, t.cfg.Holdout, t.cfg.MF.Seed)
		if len(fit) > 0 && len(holdout) > 0 {
			eval, err := recall.TrainMF(fit, ids, t.cfg.MF)
			if err != nil {
				return nil, err
			}
			metrics[MetricCFHoldoutRMSE] = eval.Evaluate(holdout)
		}
	}
	mf, err := recall.TrainMF(interactions, ids, t.cfg.MF)
	if err != nil {
		return nil, err
	}
	metrics[MetricCFTrainRMSE] = mf.Evaluate(interactions)
	return mf, nil
}

func (t *Trainer) trainRanker(features *feature.Store, interactions []core.Interaction, metrics map[string]float64) (model.RankModel, error) {
	pairs := make([]feature.Pair, len(interactions))
	targets := make([]float64, len(interactions))
	for i, it := range interactions {
		pairs[i] = feature.Pair{UserID: it.UserID, TourID: it.TourID}
		targets[i] = float64(it.Stars)
	}
	rows := features.Rows(pairs)
	schema := features.Schema()

	switch t.cfg.RankModel {
	case model.TagGBDT:
		m, err := model.TrainGBDT(rows, targets, schema.Names(), schema.Version, t.cfg.GBDT)
		if err != nil {
			return nil, err
		}
		metrics[MetricRankValidL1] = m.ValidationL1()
		metrics[MetricRankBestIter] = float64(m.BestIteration())
		return m, nil
	case model.TagLinear:
		return model.TrainLinear(rows, targets, schema.Names(), schema.Version, t.cfg.LinearRidge)
	default:
		return nil, core.NewDomainError(core.ModuleTrain, core.ErrorCodeNotSupported, "train: unknown rank model "+t.cfg.RankModel)
	}
}

// splitHoldout 按种子打乱后切出 frac 比例作为留出集
func splitHoldout(in []core.Interaction, frac float64, seed uint64) (fit, holdout []core.Interaction) {
	idx := make([]int, len(in))
	for i := range idx {
		idx[i] = i
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	n := int(float64(len(in)) * frac)
	for k, i := range idx {
		if k < n {
			holdout = append(holdout, in[i])
		} else {
			fit = append(fit, in[i])
		}
	}
	return fit, holdout
}

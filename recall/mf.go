package recall

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/rushteam/tourkit/core"
)

// MFConfig 是隐因子模型的训练参数
type MFConfig struct {
	Factors        int     // 隐向量维度
	Epochs         int     // SGD 轮数
	LearningRate   float64 // 学习率
	Regularization float64 // L2 正则强度
	InitStd        float64 // 隐向量初始化标准差
	Seed           uint64  // 随机种子，固定种子下训练结果可复现
}

// DefaultMFConfig 返回默认训练参数
func DefaultMFConfig() MFConfig {
	return MFConfig{
		Factors:        100,
		Epochs:         20,
		LearningRate:   0.005,
		Regularization: 0.02,
		InitStd:        0.1,
		Seed:           42,
	}
}

func (c MFConfig) withDefaults() MFConfig {
	d := DefaultMFConfig()
	if c.Factors <= 0 {
		c.Factors = d.Factors
	}
	if c.Epochs <= 0 {
		c.Epochs = d.Epochs
	}
	if c.LearningRate <= 0 {
		c.LearningRate = d.LearningRate
	}
	if c.Regularization < 0 {
		c.Regularization = d.Regularization
	}
	if c.InitStd <= 0 {
		c.InitStd = d.InitStd
	}
	return c
}

// MFEngine 是带偏置的矩阵分解（Matrix Factorization）协同过滤引擎。
//
// 预测评分 = 全局均值 + 用户偏置 + 游览偏置 + dot(用户隐向量, 游览隐向量)
//
// 训练：对观测到的 (user, tour, rating) 做 SGD，最小化带 L2 正则的平方误差。
// 冷启动：未知用户或游览只保留已知的偏置项，不计隐向量贡献。
type MFEngine struct {
	factors    int
	globalMean float64

	users *core.TourIndex // 复用双向映射：user_id <-> 下标
	tours *core.TourIndex

	userBias []float64
	tourBias []float64
	p        []float64 // 用户隐向量，行主序 len(users)*factors
	q        []float64 // 游览隐向量，行主序 len(tours)*factors

	catalog []string // 推荐时参与打分的全部游览
	rated   map[string]map[string]struct{}
}

const mfTag = "svd"

// TrainMF 在评分历史上训练隐因子模型。catalogIDs 是 Recommend 的打分范围。
func TrainMF(interactions []core.Interaction, catalogIDs []string, cfg MFConfig) (*MFEngine, error) {
	if len(interactions) == 0 {
		return nil, core.TrainingData(core.ModuleRecall, "mf: interaction set is empty")
	}
	cfg = cfg.withDefaults()

	var userIDs, tourIDs []string
	userSeen := make(map[string]int)
	tourSeen := make(map[string]int)
	type triple struct {
		u, t int
		r    float64
	}
	data := make([]triple, 0, len(interactions))
	rated := make(map[string]map[string]struct{})
	var sum float64
	for _, in := range interactions {
		if in.UserID == "" || in.TourID == "" {
			return nil, core.TrainingData(core.ModuleRecall, "mf: user_id and tour_id are required")
		}
		if in.Stars < core.MinRating || in.Stars > core.MaxRating {
			return nil, core.TrainingData(core.ModuleRecall, "mf: rating out of range for review "+in.ReviewID)
		}
		u, ok := userSeen[in.UserID]
		if !ok {
			u = len(userIDs)
			userSeen[in.UserID] = u
			userIDs = append(userIDs, in.UserID)
		}
		t, ok := tourSeen[in.TourID]
		if !ok {
			t = len(tourIDs)
			tourSeen[in.TourID] = t
			tourIDs = append(tourIDs, in.TourID)
		}
		data = append(data, triple{u: u, t: t, r: float64(in.Stars)})
		sum += float64(in.Stars)
		if rated[in.UserID] == nil {
			rated[in.UserID] = make(map[string]struct{})
		}
		rated[in.UserID][in.TourID] = struct{}{}
	}

	k := cfg.Factors
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	e := &MFEngine{
		factors:    k,
		globalMean: sum / float64(len(data)),
		users:      core.NewTourIndex(userIDs),
		tours:      core.NewTourIndex(tourIDs),
		userBias:   make([]float64, len(userIDs)),
		tourBias:   make([]float64, len(tourIDs)),
		p:          make([]float64, len(userIDs)*k),
		q:          make([]float64, len(tourIDs)*k),
		catalog:    append([]string(nil), catalogIDs...),
		rated:      rated,
	}
	for i := range e.p {
		e.p[i] = rng.NormFloat64() * cfg.InitStd
	}
	for i := range e.q {
		e.q[i] = rng.NormFloat64() * cfg.InitStd
	}

	lr, reg := cfg.LearningRate, cfg.Regularization
	order := make([]int, len(data))
	for i := range order {
		order[i] = i
	}
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		for _, idx := range order {
			d := data[idx]
			pu := e.p[d.u*k : (d.u+1)*k]
			qi := e.q[d.t*k : (d.t+1)*k]
			err := d.r - (e.globalMean + e.userBias[d.u] + e.tourBias[d.t] + dotProduct(pu, qi))

			e.userBias[d.u] += lr * (err - reg*e.userBias[d.u])
			e.tourBias[d.t] += lr * (err - reg*e.tourBias[d.t])
			for f := 0; f < k; f++ {
				puf, qif := pu[f], qi[f]
				pu[f] += lr * (err*qif - reg*puf)
				qi[f] += lr * (err*puf - reg*qif)
			}
		}
	}
	return e, nil
}

func (e *MFEngine) Name() string { return "cf.mf" }

func (e *MFEngine) Tag() string { return mfTag }

// GlobalMean 返回训练集平均评分
func (e *MFEngine) GlobalMean() float64 { return e.globalMean }

// KnownUser 判断用户是否出现在训练数据中
func (e *MFEngine) KnownUser(userID string) bool {
	_, ok := e.users.Index(userID)
	return ok
}

// PredictRating 预测评分，未知一侧不计偏置与隐向量
func (e *MFEngine) PredictRating(userID, tourID string) float64 {
	u, uok := e.users.Index(userID)
	t, tok := e.tours.Index(tourID)
	return e.predict(u, uok, t, tok)
}

func (e *MFEngine) predict(u int, uok bool, t int, tok bool) float64 {
	est := e.globalMean
	if uok {
		est += e.userBias[u]
	}
	if tok {
		est += e.tourBias[t]
	}
	if uok && tok {
		est += dotProduct(e.p[u*e.factors:(u+1)*e.factors], e.q[t*e.factors:(t+1)*e.factors])
	}
	return est
}

// Recommend 对目录中用户未评分过的游览打分，返回前 topN 个；未知用户返回 nil。
func (e *MFEngine) Recommend(userID string, topN int) []core.ScoredTour {
	u, ok := e.users.Index(userID)
	if !ok {
		return nil
	}
	seen := e.rated[userID]
	out := make([]core.ScoredTour, 0, len(e.catalog))
	for _, id := range e.catalog {
		if _, done := seen[id]; done {
			continue
		}
		t, tok := e.tours.Index(id)
		out = append(out, core.ScoredTour{TourID: id, Score: e.predict(u, true, t, tok)})
	}
	core.SortScored(out)
	return core.TopN(out, topN)
}

// Rated 返回用户评分过的游览集合
func (e *MFEngine) Rated(userID string) map[string]struct{} {
	return e.rated[userID]
}

// Evaluate 返回在 holdout 上的 RMSE
func (e *MFEngine) Evaluate(holdout []core.Interaction) float64 {
	if len(holdout) == 0 {
		return 0
	}
	var se float64
	for _, in := range holdout {
		d := float64(in.Stars) - e.PredictRating(in.UserID, in.TourID)
		se += d * d
	}
	return math.Sqrt(se / float64(len(holdout)))
}

// MFState 是隐因子模型的可序列化形态
type MFState struct {
	Factors    int
	GlobalMean float64
	UserIDs    []string
	TourIDs    []string
	UserBias   []float64
	TourBias   []float64
	P          []float64
	Q          []float64
	Catalog    []string
	Rated      map[string][]string
}

func (e *MFEngine) State() MFState {
	st := MFState{
		Factors:    e.factors,
		GlobalMean: e.globalMean,
		UserIDs:    e.users.IDs(),
		TourIDs:    e.tours.IDs(),
		UserBias:   e.userBias,
		TourBias:   e.tourBias,
		P:          e.p,
		Q:          e.q,
		Catalog:    e.catalog,
		Rated:      make(map[string][]string, len(e.rated)),
	}
	for u, set := range e.rated {
		ids := make([]string, 0, len(set))
		for t := range set {
			ids = append(ids, t)
		}
		st.Rated[u] = ids
	}
	return st
}

// MFEngineFromState 恢复隐因子模型，维度不一致返回 SNAPSHOT_INCOMPATIBLE。
func MFEngineFromState(st MFState) (*MFEngine, error) {
	nu, nt := len(st.UserIDs), len(st.TourIDs)
	if st.Factors <= 0 || len(st.UserBias) != nu || len(st.TourBias) != nt ||
		len(st.P) != nu*st.Factors || len(st.Q) != nt*st.Factors {
		return nil, core.SnapshotIncompatible("mf: embedding dimensions are inconsistent")
	}
	rated := make(map[string]map[string]struct{}, len(st.Rated))
	for u, ids := range st.Rated {
		set := make(map[string]struct{}, len(ids))
		for _, t := range ids {
			set[t] = struct{}{}
		}
		rated[u] = set
	}
	return &MFEngine{
		factors:    st.Factors,
		globalMean: st.GlobalMean,
		users:      core.NewTourIndex(st.UserIDs),
		tours:      core.NewTourIndex(st.TourIDs),
		userBias:   st.UserBias,
		tourBias:   st.TourBias,
		p:          st.P,
		q:          st.Q,
		catalog:    st.Catalog,
		rated:      rated,
	}, nil
}

// dotProduct 计算两个向量的点积
func dotProduct(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// MFRecall 是协同过滤召回源；未知用户返回空，由上层走兜底。
type MFRecall struct {
	Predictor core.RatingPredictor
	TopK      int
}

func (r *MFRecall) Name() string { return "recall.mf" }

func (r *MFRecall) Recall(_ context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	if r.Predictor == nil || rctx == nil || rctx.UserID == "" || !r.Predictor.KnownUser(rctx.UserID) {
		return nil, nil
	}
	return scoredItems(r.Predictor.Recommend(rctx.UserID, r.TopK), r.Name()), nil
}

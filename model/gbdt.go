package model

import (
	"bytes"
	"encoding/gob"
	"math"
	"math/rand/v2"
	"sort"
)

// TagGBDT 是梯度提升树变体的标签
const TagGBDT = "gbdt"

// GBDTConfig 是梯度提升树的训练参数
type GBDTConfig struct {
	Rounds             int     // 最大棵数
	LearningRate       float64 // 每棵树的收缩系数
	MaxDepth           int     // 树深度上限（浅树）
	MinSamplesLeaf     int     // 叶子最少样本数
	Patience           int     // 验证误差连续多少轮不下降即停止
	ValidationFraction float64 // 验证集比例
	Seed               uint64  // 切分随机种子
}

// DefaultGBDTConfig 返回默认训练参数
func DefaultGBDTConfig() GBDTConfig {
	return GBDTConfig{
		Rounds:             100,
		LearningRate:       0.1,
		MaxDepth:           3,
		MinSamplesLeaf:     20,
		Patience:           10,
		ValidationFraction: 0.2,
		Seed:               42,
	}
}

func (c GBDTConfig) withDefaults() GBDTConfig {
	d := DefaultGBDTConfig()
	if c.Rounds <= 0 {
		c.Rounds = d.Rounds
	}
	if c.LearningRate <= 0 {
		c.LearningRate = d.LearningRate
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = d.MaxDepth
	}
	if c.MinSamplesLeaf <= 0 {
		c.MinSamplesLeaf = d.MinSamplesLeaf
	}
	if c.Patience <= 0 {
		c.Patience = d.Patience
	}
	if c.ValidationFraction < 0 || c.ValidationFraction >= 1 {
		c.ValidationFraction = d.ValidationFraction
	}
	return c
}

// minValidationRows 以下不切验证集，早停改看训练误差
const minValidationRows = 5

// GBDT 是 L1 损失的梯度提升回归树。
//
// 每一轮：
//  1. 负梯度 = sign(y - F)
//  2. 以方差下降为准则在负梯度上生长一棵浅树
//  3. 叶子值重设为落入该叶子样本残差 (y - F) 的中位数
//  4. F += learning_rate * leaf
//
// 验证集 L1 误差连续 Patience 轮没有改善即停止，只保留最优轮次之前的树。
type GBDT struct {
	base          float64
	learningRate  float64
	trees         []Tree
	features      []string
	schemaVersion string
	bestIteration int
	validL1       float64
}

// TrainGBDT 训练 GBDT。features 是列名顺序，schemaVersion 记录特征结构版本。
func TrainGBDT(rows [][]float64, targets []float64, features []string, schemaVersion string, cfg GBDTConfig) (*GBDT, error) {
	if err := checkTraining(rows, targets, len(features)); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	trainIdx, validIdx := splitRows(len(rows), cfg.ValidationFraction, cfg.Seed)
	if len(validIdx) == 0 {
		// 样本太少时用训练集本身判断早停
		validIdx = trainIdx
	}

	trainY := pick(targets, trainIdx)
	m := &GBDT{
		base:          median(trainY),
		learningRate:  cfg.LearningRate,
		features:      append([]string(nil), features...),
		schemaVersion: schemaVersion,
	}

	pred := make([]float64, len(rows))
	for i := range pred {
		pred[i] = m.base
	}
	best := l1(targets, pred, validIdx)
	m.validL1 = best
	since := 0

	grad := make([]float64, len(rows))
	resid := make([]float64, len(rows))
	for round := 0; round < cfg.Rounds; round++ {
		nonzero := false
		for _, i := range trainIdx {
			resid[i] = targets[i] - pred[i]
			grad[i] = sign(resid[i])
			if grad[i] != 0 {
				nonzero = true
			}
		}
		if !nonzero {
			break
		}

		b := &treeBuilder{rows: rows, grad: grad, resid: resid, maxDepth: cfg.MaxDepth, minLeaf: cfg.MinSamplesLeaf}
		tree := b.build(trainIdx)
		m.trees = append(m.trees, tree)
		for i := range rows {
			pred[i] += m.learningRate * tree.predict(rows[i])
		}

		score := l1(targets, pred, validIdx)
		if score < best-1e-12 {
			best = score
			m.bestIteration = len(m.trees)
			m.validL1 = score
			since = 0
			continue
		}
		since++
		if since >= cfg.Patience {
			break
		}
	}
	m.trees = m.trees[:m.bestIteration]
	return m, nil
}

func (m *GBDT) Name() string { return "rank.gbdt" }

func (m *GBDT) Tag() string { return TagGBDT }

func (m *GBDT) SchemaVersion() string { return m.schemaVersion }

func (m *GBDT) Features() []string { return append([]string(nil), m.features...) }

// BestIteration 返回早停保留的树数量
func (m *GBDT) BestIteration() int { return m.bestIteration }

// ValidationL1 返回最优轮次的验证集平均绝对误差
func (m *GBDT) ValidationL1() float64 { return m.validL1 }

// Score 逐行打分，行顺序不变
func (m *GBDT) Score(rows [][]float64) ([]float64, error) {
	if err := checkRows(rows, len(m.features)); err != nil {
		return nil, err
	}
	out := make([]float64, len(rows))
	for i, r := range rows {
		s := m.base
		for _, t := range m.trees {
			s += m.learningRate * t.predict(r)
		}
		out[i] = s
	}
	return out, nil
}

type gbdtState struct {
	Base          float64
	LearningRate  float64
	Trees         []Tree
	Features      []string
	SchemaVersion string
	BestIteration int
	ValidL1       float64
}

func (m *GBDT) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(gbdtState{
		Base:          m.base,
		LearningRate:  m.learningRate,
		Trees:         m.trees,
		Features:      m.features,
		SchemaVersion: m.schemaVersion,
		BestIteration: m.bestIteration,
		ValidL1:       m.validL1,
	})
	return buf.Bytes(), err
}

// UnmarshalGBDT 从 MarshalBinary 的输出恢复模型
func UnmarshalGBDT(data []byte) (*GBDT, error) {
	var st gbdtState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return nil, err
	}
	for _, t := range st.Trees {
		if err := t.validate(len(st.Features)); err != nil {
			return nil, err
		}
	}
	return &GBDT{
		base:          st.Base,
		learningRate:  st.LearningRate,
		trees:         st.Trees,
		features:      st.Features,
		schemaVersion: st.SchemaVersion,
		bestIteration: st.BestIteration,
		validL1:       st.ValidL1,
	}, nil
}

// splitRows 固定种子打乱后切出验证集
func splitRows(n int, frac float64, seed uint64) (train, valid []int) {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	nValid := int(math.Floor(frac * float64(n)))
	if n < minValidationRows || nValid == 0 {
		return idx, nil
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
	rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	valid = append([]int(nil), idx[:nValid]...)
	train = append([]int(nil), idx[nValid:]...)
	sort.Ints(valid)
	sort.Ints(train)
	return train, valid
}

func pick(v []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for k, i := range idx {
		out[k] = v[i]
	}
	return out
}

func median(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

func l1(y, pred []float64, idx []int) float64 {
	var s float64
	for _, i := range idx {
		s += math.Abs(y[i] - pred[i])
	}
	return s / float64(len(idx))
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
